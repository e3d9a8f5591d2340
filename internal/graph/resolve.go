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

// Package graph resolves a process configuration into a deterministic
// topological order and wave grouping, using Kahn's algorithm over the
// dependency edges.
package graph

import (
	"fmt"
	"sort"

	"github.com/dominicbartl/orckit/internal/config"
)

// Plan is the resolver's output: a linear start order plus the same
// processes grouped into waves, where every member of wave k has all
// its dependencies satisfied by waves 0..k-1.
type Plan struct {
	Order []string
	Waves [][]string
}

// WaveOf returns the zero-based wave index containing name, or -1 if
// name is not part of the plan.
func (p *Plan) WaveOf(name string) int {
	for i, wave := range p.Waves {
		for _, n := range wave {
			if n == name {
				return i
			}
		}
	}
	return -1
}

// CycleError reports a set of processes that could not be ordered
// because they participate in a dependency cycle.
type CycleError struct {
	Names []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected among: %v", e.Names)
}

// UnknownDependencyError reports a process that depends on a name not
// present in the config.
type UnknownDependencyError struct {
	Process string
	Dep     string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("process %q depends on unknown process %q", e.Process, e.Dep)
}

// Resolve computes the wave-grouped start order for cfg's processes.
// cfg is assumed already validated by config.Validate, but Resolve
// still checks dependency references itself since cycle detection and
// reference checking share the same traversal.
func Resolve(cfg *config.Config) (*Plan, error) {
	procs := cfg.ProcessMap()

	inDegree := make(map[string]int, len(procs))
	dependents := make(map[string][]string, len(procs))
	for name := range procs {
		inDegree[name] = 0
	}
	for name, p := range procs {
		for _, dep := range p.Dependencies {
			if _, ok := procs[dep]; !ok {
				return nil, &UnknownDependencyError{Process: name, Dep: dep}
			}
			inDegree[name]++
			dependents[dep] = append(dependents[dep], name)
		}
	}

	remaining := make(map[string]int, len(inDegree))
	for k, v := range inDegree {
		remaining[k] = v
	}

	var order []string
	var waves [][]string
	processed := 0

	for {
		var ready []string
		for name, deg := range remaining {
			if deg == 0 {
				ready = append(ready, name)
			}
		}
		if len(ready) == 0 {
			break
		}
		sort.Strings(ready)
		waves = append(waves, ready)
		order = append(order, ready...)
		processed += len(ready)

		for _, name := range ready {
			delete(remaining, name)
			for _, dependent := range dependents[name] {
				remaining[dependent]--
			}
		}
	}

	if processed != len(procs) {
		var stuck []string
		for name := range remaining {
			stuck = append(stuck, name)
		}
		sort.Strings(stuck)
		return nil, &CycleError{Names: stuck}
	}

	return &Plan{Order: order, Waves: waves}, nil
}

// ReverseOrder returns order reversed, used by the orchestrator to stop
// processes in the opposite sequence they were started in.
func ReverseOrder(order []string) []string {
	out := make([]string, len(order))
	for i, name := range order {
		out[len(order)-1-i] = name
	}
	return out
}
