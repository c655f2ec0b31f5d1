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

func TestFlowRecordAssignsLinearIndices(t *testing.T) {
	flow := NewFlow("f", "/a.go::F", "[]")
	e0 := flow.Record(Event{Kind: EventLine, Function: "F", Line: 1})
	e1 := flow.Record(Event{Kind: EventLine, Function: "F", Line: 2})
	assert.Equal(t, 0, e0.linearIndex)
	assert.Equal(t, 1, e1.linearIndex)
	assert.Equal(t, 1, flow.LatestIndex())
}

func TestFlowLastServedIndexNeverMovesBackward(t *testing.T) {
	flow := NewFlow("f", "/a.go::F", "[]")
	flow.MarkServed(5)
	flow.MarkServed(2)
	assert.Equal(t, 5, flow.LastServedIndex())
	flow.MarkServed(9)
	assert.Equal(t, 9, flow.LastServedIndex())
}

func TestFlowFindIndexForwardOnly(t *testing.T) {
	flow := NewFlow("f", "/a.go::F", "[]")
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 1})
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 2})
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 3})

	idx, ok := flow.FindIndex("F", 2, 0, "", false)
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	idx, ok = flow.FindIndex("F", 1, 2, "", false)
	require.True(t, ok)
	assert.Equal(t, 2, idx, "a request for an earlier line matches the first event at or past it forward of the cursor, not the earlier exact line")
}

func TestFlowFindIndexWrapReplaysEarlierHistory(t *testing.T) {
	flow := NewFlow("f", "/a.go::F", "[]")
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 1}) // 0
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 5}) // 1
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 2}) // 2, loop iteration 2

	idx, ok := flow.FindIndex("F", 5, 2, "", false)
	assert.False(t, ok)

	idx, ok = flow.FindIndex("F", 5, 2, "", true)
	require.True(t, ok)
	assert.Equal(t, 1, idx, "wrap search must restart from the beginning of the journal")
}

func TestFlowFindIndexFileDisambiguation(t *testing.T) {
	flow := NewFlow("f", "/a.go::F", "[]")
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 10, File: "/a.go"})
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 10, File: "/b.go"})

	idx, ok := flow.FindIndex("F", 10, 0, "/b.go", false)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestFlowSliceToIndexIsDeepCopy(t *testing.T) {
	flow := NewFlow("f", "/a.go::F", "[]")
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 1})
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 2})

	slice := flow.SliceToIndex(1)
	require.Len(t, slice, 2)
	slice[0].Line = 999
	again := flow.SliceToIndex(1)
	assert.Equal(t, 1, again[0].Line, "mutating a returned slice must not affect the journal")
}

func TestFlowSliceToIndexOutOfRange(t *testing.T) {
	flow := NewFlow("f", "/a.go::F", "[]")
	flow.Record(Event{Kind: EventLine, Function: "F", Line: 1})
	assert.Nil(t, flow.SliceToIndex(-1))
	assert.Nil(t, flow.SliceToIndex(5))
}

func TestTargetLabel(t *testing.T) {
	assert.Equal(t, "3 in F", Target{Function: "F", Line: 3}.Label())
	file := "/a.go"
	assert.Equal(t, "/a.go:3 in F", Target{Function: "F", Line: 3, File: &file}.Label())
}
