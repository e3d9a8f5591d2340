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

package ui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dominicbartl/orckit/internal/status"
)

// FormatOverview renders a status.Snapshot into the opaque text the
// core hands to Session.UpdateOverview. The exact layout is not a wire
// contract — only the external UI collaborator reads it — so it is
// free to change without breaking anything else in the system.
func FormatOverview(snap status.Snapshot) string {
	names := make([]string, 0, len(snap.Processes))
	for name := range snap.Processes {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "%d running, %d building, %d failed, %d stopped (%d total)\n",
		snap.Summary.Running, snap.Summary.Building, snap.Summary.Failed, snap.Summary.Stopped, snap.Summary.Total)

	for _, name := range names {
		p := snap.Processes[name]
		line := fmt.Sprintf("  %-20s %-10s", name, p.Status)
		if p.RestartCount > 0 {
			line += fmt.Sprintf(" restarts=%d", p.RestartCount)
		}
		if p.Build.Progress > 0 && p.Build.Progress < 100 {
			line += fmt.Sprintf(" build=%d%%", p.Build.Progress)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
