// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package process

import "os"

// logRing is a fixed-capacity ring buffer of the most recent output
// lines, backing RunnerState.log_ring. Not safe for concurrent use;
// callers hold baseRunner.mu.
type logRing struct {
	lines []string
	cap   int
	next  int
	full  bool
}

func newLogRing(capacity int) *logRing {
	return &logRing{lines: make([]string, capacity), cap: capacity}
}

func (r *logRing) push(line string) {
	if r.cap == 0 {
		return
	}
	r.lines[r.next] = line
	r.next = (r.next + 1) % r.cap
	if r.next == 0 {
		r.full = true
	}
}

// tail returns up to n of the most recent lines, oldest first. n <= 0
// means "all retained lines".
func (r *logRing) tail(n int) []string {
	var ordered []string
	if r.full {
		ordered = append(ordered, r.lines[r.next:]...)
		ordered = append(ordered, r.lines[:r.next]...)
	} else {
		ordered = append(ordered, r.lines[:r.next]...)
	}
	if n <= 0 || n >= len(ordered) {
		return ordered
	}
	return ordered[len(ordered)-n:]
}

func envPairs() [][2]string {
	environ := os.Environ()
	out := make([][2]string, 0, len(environ))
	for _, kv := range environ {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				out = append(out, [2]string{kv[:i], kv[i+1:]})
				break
			}
		}
	}
	return out
}
