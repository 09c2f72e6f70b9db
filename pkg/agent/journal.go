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

package agent

import (
	"sync"
	"time"

	"github.com/steelpos/termfleet/pkg/models"
)

// journalCap bounds memory during a long coordinator outage; oldest
// entries fall off first once exceeded.
const journalCap = 1000

// journal is the local-first log buffer. Entries are recorded here before
// any upload attempt, so a network partition delays delivery but never
// loses the record.
type journal struct {
	mu      sync.Mutex
	entries []models.LogSubmission
}

func (j *journal) record(level models.LogLevel, category models.LogCategory, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, models.LogSubmission{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Category:  category,
		Message:   message,
	})

	if overflow := len(j.entries) - journalCap; overflow > 0 {
		j.entries = j.entries[overflow:]
	}
}

// drain removes and returns all buffered entries.
func (j *journal) drain() []models.LogSubmission {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := j.entries
	j.entries = nil

	return out
}

// requeue puts failed-to-upload entries back ahead of anything recorded
// since the drain.
func (j *journal) requeue(entries []models.LogSubmission) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(entries, j.entries...)

	if overflow := len(j.entries) - journalCap; overflow > 0 {
		j.entries = j.entries[overflow:]
	}
}
