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
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProtocolReadLineSplitsOnNewlines(t *testing.T) {
	in := strings.NewReader("stop_line:1\nstop_line:2\n")
	var out, errw bytes.Buffer
	p := NewProtocol(in, &out, &errw)

	line, ok := p.ReadLine()
	require.True(t, ok)
	assert.Equal(t, "stop_line:1", line)

	line, ok = p.ReadLine()
	require.True(t, ok)
	assert.Equal(t, "stop_line:2", line)

	_, ok = p.ReadLine()
	assert.False(t, ok)
}

func TestProtocolWriteResponseGoesToErrStream(t *testing.T) {
	var out, errw bytes.Buffer
	p := NewProtocol(strings.NewReader(""), &out, &errw)

	msg := "boom"
	require.NoError(t, p.WriteResponse(Response{Error: &msg}))

	assert.Empty(t, out.String())
	var resp Response
	require.NoError(t, json.Unmarshal(errw.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "boom", *resp.Error)
}

func TestProtocolWriteMetadataGoesToOutStream(t *testing.T) {
	var out, errw bytes.Buffer
	p := NewProtocol(strings.NewReader(""), &out, &errw)

	payload := Payload{Flow: "f", StoppedAt: 3}
	require.NoError(t, p.WriteMetadata(Response{Payload: &payload}))

	assert.Empty(t, errw.String())
	var resp Response
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	require.NotNil(t, resp.Payload)
	assert.Equal(t, "f", resp.Payload.Flow)
}

func TestIsEndOnEmptyOrZero(t *testing.T) {
	assert.True(t, IsEnd(""))
	assert.True(t, IsEnd("0"))
	assert.True(t, IsEnd("   "))
	assert.False(t, IsEnd(`{"line":5}`))
}

func TestParseRequestBareInteger(t *testing.T) {
	target, err := ParseRequest("11", "h")
	require.NoError(t, err)
	assert.Equal(t, Target{Function: "h", Line: 11}, target)
}

func TestParseRequestObjectKeys(t *testing.T) {
	target, err := ParseRequest(`{"function":"k","line":3,"file":"/b.go"}`, "h")
	require.NoError(t, err)
	require.NotNil(t, target.File)
	assert.Equal(t, "k", target.Function)
	assert.Equal(t, 3, target.Line)
	assert.Equal(t, "/b.go", *target.File)
}

func TestParseRequestLocationOverridesFunctionAndLine(t *testing.T) {
	target, err := ParseRequest(`{"location":"k:3"}`, "h")
	require.NoError(t, err)
	assert.Equal(t, "k", target.Function)
	assert.Equal(t, 3, target.Line)
}

func TestParseRequestLocationSubstitutesTopLevelSentinel(t *testing.T) {
	target, err := ParseRequest(`{"location":"<top-level>:7"}`, "<module>")
	require.NoError(t, err)
	assert.Equal(t, "<module>", target.Function)
	assert.Equal(t, 7, target.Line)
}

func TestParseRequestMalformedReportsError(t *testing.T) {
	_, err := ParseRequest(`{not json`, "h")
	assert.Error(t, err)
}
