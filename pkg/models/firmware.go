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

package models

import "time"

// FirmwareArtifact is an immutable published firmware image descriptor.
// Identity is (version, model); once published only the is-latest flag
// moves, when a newer artifact for the same model supersedes it.
type FirmwareArtifact struct {
	Version      string    `json:"version"`
	Model        string    `json:"model"`
	FileName     string    `json:"file_name"`
	SizeBytes    int64     `json:"file_size"`
	SHA256       string    `json:"file_hash"`
	FileURL      string    `json:"file_url"`
	ReleaseNotes string    `json:"release_notes,omitempty"`
	Mandatory    bool      `json:"is_mandatory"`
	Latest       bool      `json:"is_latest"`
	ReleasedAt   time.Time `json:"released_date"`
	CreatedAt    time.Time `json:"created_at"`
	CreatedBy    string    `json:"created_by,omitempty"`
}

// Payload derives the task content descriptor for this artifact.
func (a *FirmwareArtifact) Payload() FirmwarePayload {
	return FirmwarePayload{
		Version:   a.Version,
		FileURL:   a.FileURL,
		SHA256:    a.SHA256,
		SizeBytes: a.SizeBytes,
	}
}
