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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAngularParser_DeepModeSequence(t *testing.T) {
	p := &angularParser{deep: true}

	evs := p.parseLine(`{"type":"build-start"}`)
	require.Len(t, evs, 1)
	assert.Equal(t, EventBuildStart, evs[0].Kind)

	evs = p.parseLine(`{"type":"build-progress","progress":50}`)
	require.Len(t, evs, 1)
	assert.Equal(t, 50, evs[0].Progress)

	evs = p.parseLine(`{"type":"build-complete","success":true,"time":1234,"errors":[],"warnings":[]}`)
	require.Len(t, evs, 1)
	assert.Equal(t, EventBuildComplete, evs[0].Kind)
	assert.True(t, evs[0].Success)
	assert.EqualValues(t, 1234, evs[0].DurationMs)
	assert.Equal(t, 0, evs[0].Errors)
}

func TestAngularParser_MalformedJSONDroppedSilently(t *testing.T) {
	p := &angularParser{deep: true}
	evs := p.parseLine(`{not json`)
	assert.Nil(t, evs)
}

func TestAngularParser_TextFallbackOutsideDeepMode(t *testing.T) {
	p := &angularParser{deep: false}

	evs := p.parseLine("Compiling @angular/core")
	require.Len(t, evs, 1)
	assert.Equal(t, EventBuildStart, evs[0].Kind)

	evs = p.parseLine("Compiled successfully.")
	require.Len(t, evs, 1)
	assert.True(t, evs[0].Success)

	evs = p.parseLine("ERROR in src/main.ts")
	require.Len(t, evs, 1)
	assert.Equal(t, EventBuildFailed, evs[0].Kind)

	evs = p.parseLine("42% building modules")
	require.Len(t, evs, 1)
	assert.Equal(t, 42, evs[0].Progress)
}

func TestWebpackParser_DeepModeSentinel(t *testing.T) {
	p := &webpackParser{deep: true}

	evs := p.parseLine(`[EVENT]{"kind":"build-start","payload":{}}`)
	require.Len(t, evs, 1)
	assert.Equal(t, EventBuildStart, evs[0].Kind)

	evs = p.parseLine(`[EVENT]{"kind":"build-complete","payload":{"success":true,"duration_ms":500}}`)
	require.Len(t, evs, 1)
	assert.True(t, evs[0].Success)
	assert.EqualValues(t, 500, evs[0].DurationMs)
}

func TestWebpackParser_IgnoresNonSentinelLines(t *testing.T) {
	p := &webpackParser{deep: true}
	assert.Nil(t, p.parseLine("webpack compiled successfully"))
}

func TestWebpackParser_SurfaceModeExtractsNothing(t *testing.T) {
	p := &webpackParser{deep: false}
	assert.Nil(t, p.parseLine(`[EVENT]{"kind":"build-start","payload":{}}`))
}

func TestWebpackParser_MalformedJSONDroppedSilently(t *testing.T) {
	p := &webpackParser{deep: true}
	assert.Nil(t, p.parseLine(`[EVENT]not json`))
}

func TestViteParser_ReadyLineSignalsComplete(t *testing.T) {
	p := &viteParser{}
	evs := p.parseLine("  ready in 312 ms")
	require.Len(t, evs, 1)
	assert.True(t, evs[0].Success)
}

func TestViteParser_HMRUpdateSignalsStart(t *testing.T) {
	p := &viteParser{}
	evs := p.parseLine("hmr update /src/App.vue")
	require.Len(t, evs, 1)
	assert.Equal(t, EventBuildStart, evs[0].Kind)
}

func TestViteParser_ErrorSignalsFailed(t *testing.T) {
	p := &viteParser{}
	evs := p.parseLine("Internal server error: something broke")
	require.Len(t, evs, 1)
	assert.Equal(t, EventBuildFailed, evs[0].Kind)
}
