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

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// webpackEventSentinel prefixes the JSON payload a companion plugin
// writes to stdout in deep mode.
const webpackEventSentinel = "[EVENT]"

// webpackParser recognizes sentinel-prefixed JSON lines emitted by a
// companion webpack plugin. Outside deep mode it extracts nothing —
// webpack has no documented text-pattern fallback.
type webpackParser struct {
	deep bool
}

type webpackPayload struct {
	Kind    string `json:"kind"`
	Payload struct {
		Progress   int  `json:"progress"`
		Errors     int  `json:"errors"`
		Warnings   int  `json:"warnings"`
		Success    bool `json:"success"`
		DurationMs int64 `json:"duration_ms"`
	} `json:"payload"`
}

func (p *webpackParser) parseLine(line string) []Event {
	if !p.deep {
		return nil
	}
	rest, ok := strings.CutPrefix(line, webpackEventSentinel)
	if !ok {
		return nil
	}
	var payload webpackPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest)), &payload); err != nil {
		// Malformed JSON in deep mode is dropped silently, per spec §4.4.
		return nil
	}

	switch payload.Kind {
	case "build-start":
		return []Event{{Kind: EventBuildStart}}
	case "build-progress":
		return []Event{{Kind: EventBuildProgress, Progress: payload.Payload.Progress}}
	case "build-stats":
		return []Event{{Kind: EventBuildStats, Errors: payload.Payload.Errors, Warnings: payload.Payload.Warnings}}
	case "build-complete":
		return []Event{{Kind: EventBuildComplete, Success: payload.Payload.Success, DurationMs: payload.Payload.DurationMs, Errors: payload.Payload.Errors, Warnings: payload.Payload.Warnings}}
	case "build-failed":
		return []Event{{Kind: EventBuildFailed, Errors: payload.Payload.Errors, Warnings: payload.Payload.Warnings}}
	default:
		return nil
	}
}

// angularParser reads one JSON object per line in deep mode, falling
// back to known text patterns outside deep mode (or when a line is not
// valid JSON).
type angularParser struct {
	deep bool
}

type angularLine struct {
	Type     string   `json:"type"`
	Progress *int     `json:"progress"`
	Success  *bool    `json:"success"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Time     *int64   `json:"time"`
}

var anglePercentRe = regexp.MustCompile(`(\d+)%\s+building`)

func (p *angularParser) parseLine(line string) []Event {
	if p.deep {
		var al angularLine
		if err := json.Unmarshal([]byte(strings.TrimSpace(line)), &al); err == nil && al.Type != "" {
			return angularEventsFromJSON(al)
		}
		// Fall through to text patterns: deep-mode angular tools may
		// still emit a banner line or two around the JSON stream.
	}
	return angularEventsFromText(line)
}

func angularEventsFromJSON(al angularLine) []Event {
	switch al.Type {
	case "build-start":
		return []Event{{Kind: EventBuildStart}}
	case "build-progress":
		progress := 0
		if al.Progress != nil {
			progress = *al.Progress
		}
		return []Event{{Kind: EventBuildProgress, Progress: progress}}
	case "build-complete":
		success := al.Success != nil && *al.Success
		var duration int64
		if al.Time != nil {
			duration = *al.Time
		}
		ev := Event{Kind: EventBuildComplete, Success: success, DurationMs: duration, Errors: len(al.Errors), Warnings: len(al.Warnings)}
		if !success {
			return []Event{{Kind: EventBuildFailed, Errors: len(al.Errors), Warnings: len(al.Warnings)}}
		}
		return []Event{ev}
	case "build-error":
		return []Event{{Kind: EventBuildFailed, Errors: len(al.Errors), Warnings: len(al.Warnings)}}
	default:
		return nil
	}
}

func angularEventsFromText(line string) []Event {
	switch {
	case strings.Contains(line, "Compiled successfully."):
		return []Event{{Kind: EventBuildComplete, Success: true}}
	case strings.Contains(line, "Compiling"), strings.Contains(line, "Building"):
		return []Event{{Kind: EventBuildStart}}
	case strings.Contains(line, "ERROR in"), strings.Contains(line, "Failed to compile"):
		return []Event{{Kind: EventBuildFailed}}
	}
	if m := anglePercentRe.FindStringSubmatch(line); m != nil {
		if pct, err := strconv.Atoi(m[1]); err == nil {
			return []Event{{Kind: EventBuildProgress, Progress: pct}}
		}
	}
	return nil
}

// viteParser only understands text patterns — vite has no documented
// deep JSON protocol.
type viteParser struct{}

var viteReadyRe = regexp.MustCompile(`ready in \d+ ?ms`)

func (p *viteParser) parseLine(line string) []Event {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(line, "Local:"), viteReadyRe.MatchString(line):
		return []Event{{Kind: EventBuildComplete, Success: true}}
	case strings.Contains(lower, "hmr update"), strings.Contains(lower, "page reload"):
		return []Event{{Kind: EventBuildStart}}
	case strings.Contains(lower, "error"):
		return []Event{{Kind: EventBuildFailed}}
	}
	return nil
}
