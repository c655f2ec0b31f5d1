// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package tracer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayloadForwardFromCursor(t *testing.T) {
	flow := NewFlow("f", "/a.go::F", "[]")
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 1})
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 2})
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 3})

	p := BuildPayload(flow, Target{Function: "F", Line: 2})
	require.Equal(t, 1, p.StoppedAt)
	assert.Len(t, p.Events, 2)
	assert.Equal(t, 1, flow.LastServedIndex())
}

func TestBuildPayloadWrapsToReplayEarlierHistory(t *testing.T) {
	flow := NewFlow("f", "/a.go::F", "[]")
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 1}) // 0
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 2}) // 1
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 3}) // 2

	first := BuildPayload(flow, Target{Function: "F", Line: 3})
	require.Equal(t, 2, first.StoppedAt)

	// Nothing forward of the cursor matches line 1 again; the wrap phase
	// should replay the earlier occurrence instead of failing outright.
	second := BuildPayload(flow, Target{Function: "F", Line: 1})
	require.Equal(t, 0, second.StoppedAt)
}

func TestBuildPayloadFallsBackToLatestWhenNothingMatches(t *testing.T) {
	flow := NewFlow("f", "/a.go::F", "[]")
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 1})
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 2})

	p := BuildPayload(flow, Target{Function: "F", Line: 999})
	assert.Equal(t, flow.LatestIndex(), p.StoppedAt)
}

func TestBuildPayloadEmptyFlowReportsNoStop(t *testing.T) {
	flow := NewFlow("f", "/a.go::F", "[]")
	p := BuildPayload(flow, Target{Function: "F", Line: 1})
	assert.Equal(t, -1, p.StoppedAt)
	assert.Nil(t, p.Events)
}
