// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package tracer

// Payload is one response to a stepping request: the transcript of every
// event recorded since the flow began, up to and including the event that
// satisfied the request, plus enough identity to let the controller
// correlate it with the session.
type Payload struct {
	Flow      string  `json:"flow"`
	EntryID   string  `json:"entry_full_id"`
	ArgsKey   string  `json:"args_key"`
	Label     string  `json:"requested_location"`
	Events    []Event `json:"events"`
	StoppedAt int     `json:"stopped_at_index"`
}

// BuildPayload implements the three-phase flow-payload search from
// §6.4.7: first look forward from the cursor for an event matching
// target; if nothing forward matches, replay earlier history (the journal
// may already have passed the requested location on an earlier lap, e.g.
// inside a loop the controller wants to re-inspect); if still nothing,
// fall back to the latest recorded event so the controller always gets
// something rather than an empty response.
func BuildPayload(flow *Flow, target Target) Payload {
	after := flow.LastServedIndex() + 1

	idx, ok := flow.FindIndex(target.Function, target.Line, after, fileOf(target), false)
	if !ok {
		idx, ok = flow.FindIndex(target.Function, target.Line, after, fileOf(target), true)
	}
	if !ok {
		idx = flow.LatestIndex()
	}
	if idx < 0 {
		return Payload{Flow: flow.Name, EntryID: flow.EntryID, ArgsKey: flow.ArgsKey, Label: target.Label(), StoppedAt: -1}
	}

	flow.MarkServed(idx)
	return Payload{
		Flow:      flow.Name,
		EntryID:   flow.EntryID,
		ArgsKey:   flow.ArgsKey,
		Label:     target.Label(),
		Events:    flow.SliceToIndex(idx),
		StoppedAt: idx,
	}
}

func fileOf(t Target) string {
	if t.File == nil {
		return ""
	}
	return *t.File
}
