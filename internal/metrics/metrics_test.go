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

package metrics_test

import (
	"context"
	"testing"

	"github.com/dominicbartl/orckit/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SetProcessStatusOnlyOneGaugeIsOne(t *testing.T) {
	reg, err := metrics.New()
	require.NoError(t, err)
	defer reg.Shutdown(context.Background())

	reg.SetProcessStatus("api", "running")

	count := testutil.CollectAndCount(reg.Registerer(), "orckit_process_status")
	require.Greater(t, count, 0)

	mfs, err := reg.Registerer().Gather()
	require.NoError(t, err)
	ones := 0
	for _, mf := range mfs {
		if mf.GetName() != "orckit_process_status" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if m.GetGauge().GetValue() == 1 {
				ones++
			}
		}
	}
	require.Equal(t, 1, ones)
}

func TestRegistry_IncRestart(t *testing.T) {
	reg, err := metrics.New()
	require.NoError(t, err)
	defer reg.Shutdown(context.Background())

	reg.IncRestart("flaky")
	reg.IncRestart("flaky")

	count := testutil.CollectAndCount(reg.Registerer(), "orckit_process_restarts_total")
	require.Greater(t, count, 0)
}

func TestRegistry_IncPreflightFailure(t *testing.T) {
	reg, err := metrics.New()
	require.NoError(t, err)
	defer reg.Shutdown(context.Background())

	reg.IncPreflightFailure("container-daemon")

	count := testutil.CollectAndCount(reg.Registerer(), "orckit_preflight_failures_total")
	require.Greater(t, count, 0)
}
