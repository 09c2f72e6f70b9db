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

package device

import "errors"

var (
	// ErrNotConnected is returned by operations that need an established link.
	ErrNotConnected = errors.New("device not connected")

	// ErrNoDevices is returned by Scan when nothing answers.
	ErrNoDevices = errors.New("no devices found")

	errUnknownDriver = errors.New("unknown device driver")
	errDeviceFault   = errors.New("device reported fault")
)
