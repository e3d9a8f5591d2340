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

package status_test

import (
	"os"
	"testing"

	"github.com/dominicbartl/orckit/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSampler_ReadsOwnProcessRSS(t *testing.T) {
	sampler := status.NewSampler()
	_, rss, ok := sampler(os.Getpid())
	require.True(t, ok)
	assert.Greater(t, rss, uint64(0))
}

func TestNewSampler_UnknownPIDNotOK(t *testing.T) {
	sampler := status.NewSampler()
	_, _, ok := sampler(1 << 30)
	assert.False(t, ok)
}

func TestNewSampler_SecondSampleReportsNonNegativeCPU(t *testing.T) {
	sampler := status.NewSampler()
	pid := os.Getpid()

	_, _, ok := sampler(pid)
	require.True(t, ok)

	cpu, _, ok := sampler(pid)
	require.True(t, ok)
	assert.GreaterOrEqual(t, cpu, 0.0)
}
