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

package health

import (
	"context"
	"time"

	conductorerrors "github.com/dominicbartl/orckit/pkg/errors"
)

// Attempt describes one readiness polling attempt, passed to the
// caller's onAttempt callback for logging/status-monitor updates.
type Attempt struct {
	Number int
	Result Result
	Elapsed time.Duration
}

// WaitForReady retries prober.Probe at the given interval until it
// succeeds, or until timeout/maxAttempts is exhausted, whichever comes
// first. onAttempt, if non-nil, is called after every attempt including
// the first. Cancelling ctx aborts the wait early.
func WaitForReady(ctx context.Context, process string, prober Prober, timeout time.Duration, interval time.Duration, maxAttempts int, onAttempt func(Attempt)) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	attempt := 0

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		attempt++
		result := prober.Probe(ctx)
		if onAttempt != nil {
			onAttempt(Attempt{Number: attempt, Result: result, Elapsed: time.Since(start)})
		}
		if result.Ok {
			return nil
		}

		if maxAttempts > 0 && attempt >= maxAttempts {
			return &conductorerrors.ReadinessTimeoutError{
				Process:   process,
				Attempts:  attempt,
				ElapsedMs: time.Since(start).Milliseconds(),
			}
		}

		select {
		case <-ctx.Done():
			return &conductorerrors.ReadinessTimeoutError{
				Process:   process,
				Attempts:  attempt,
				ElapsedMs: time.Since(start).Milliseconds(),
			}
		case <-ticker.C:
		}
	}
}
