/*
 * Copyright 2025 SteelPOS Systems, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

import "errors"

var (
	// ErrInvalidRequest marks validation failures; the API maps it to 400.
	ErrInvalidRequest = errors.New("invalid request")

	errSerialRequired    = errors.New("serial number is required")
	errUnknownTaskKind   = errors.New("unknown task kind")
	errTaskNotPending    = errors.New("only pending tasks can be cancelled")
	errNoTargetTerminals = errors.New("selection matched no terminals")
	errArtifactRequired  = errors.New("version and model are required")
)
