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

//go:build !linux

package status

import (
	"os/exec"
	"strconv"
	"strings"
)

// NewSampler returns a Sampler backed by ps(1), mirroring the teacher's
// process_darwin.go precedent of shelling out rather than reading /proc
// (which doesn't exist on non-Linux platforms).
func NewSampler() Sampler {
	return func(pid int) (float64, uint64, bool) {
		out, err := exec.Command("ps", "-o", "%cpu=,rss=", "-p", strconv.Itoa(pid)).Output()
		if err != nil {
			return 0, 0, false
		}
		fields := strings.Fields(string(out))
		if len(fields) < 2 {
			return 0, 0, false
		}
		cpuPercent, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return 0, 0, false
		}
		rssKB, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		return cpuPercent, rssKB * 1024, true
	}
}
