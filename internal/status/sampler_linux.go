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

//go:build linux

package status

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// clockTicksPerSec is USER_HZ, the kernel's scheduler tick rate used to
// convert /proc/<pid>/stat's utime/stime into seconds. 100 is the value
// on every mainstream Linux distribution; reading the true value
// requires sysconf(3), which the stdlib does not expose without cgo.
const clockTicksPerSec = 100

// NewSampler returns a Sampler backed by /proc/<pid>/stat, matching the
// teacher's own per-platform process-introspection split
// (lifecycle/process_linux.go used /proc; process_darwin.go shelled
// out to ps). CPU% is derived from the change in accumulated process
// ticks between two samples, so the first sample for a given pid always
// reports 0% until a second one arrives.
func NewSampler() Sampler {
	var mu sync.Mutex
	prev := make(map[int]sample)

	return func(pid int) (float64, uint64, bool) {
		ticks, rss, ok := readProcStat(pid)
		if !ok {
			return 0, 0, false
		}
		now := time.Now()

		mu.Lock()
		last, had := prev[pid]
		prev[pid] = sample{ticks: ticks, at: now}
		mu.Unlock()

		if !had {
			return 0, rss, true
		}
		elapsed := now.Sub(last.at).Seconds()
		if elapsed <= 0 {
			return 0, rss, true
		}
		cpuPercent := float64(ticks-last.ticks) / clockTicksPerSec / elapsed * 100
		return cpuPercent, rss, true
	}
}

type sample struct {
	ticks uint64
	at    time.Time
}

// readProcStat parses /proc/<pid>/stat, returning the sum of utime+stime
// (field 14+15, in clock ticks) and rss (field 24, in pages).
func readProcStat(pid int) (ticks uint64, rssBytes uint64, ok bool) {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return 0, 0, false
	}

	// comm can itself contain spaces and parens; split on the last ')'
	// to skip past it reliably, as /proc/<pid>/stat's own format requires.
	s := string(data)
	close := strings.LastIndexByte(s, ')')
	if close == -1 || close+2 >= len(s) {
		return 0, 0, false
	}
	fields := strings.Fields(s[close+2:])
	// fields[0] is state (field 3); utime is field 14, stime field 15,
	// rss is field 24 — offsets here are relative to fields[0]==field3.
	const utimeIdx, stimeIdx, rssIdx = 14 - 3, 15 - 3, 24 - 3
	if len(fields) <= rssIdx {
		return 0, 0, false
	}
	utime, err := strconv.ParseUint(fields[utimeIdx], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	stime, err := strconv.ParseUint(fields[stimeIdx], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	rssPages, err := strconv.ParseUint(fields[rssIdx], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return utime + stime, rssPages * uint64(os.Getpagesize()), true
}
