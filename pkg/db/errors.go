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

package db

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	// Callers surface it to the client without mutating local state.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when creating a record whose identity
	// is already taken, e.g. republishing a firmware artifact.
	ErrAlreadyExists = errors.New("record already exists")

	errFailedToQuery = errors.New("failed to query database")
	errFailedToExec  = errors.New("failed to execute statement")
	errFailedToScan  = errors.New("failed to scan row")
)
