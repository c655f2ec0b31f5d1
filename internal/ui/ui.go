// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui holds the small set of terminal-presentation helpers shared by
// the flowtrace subcommands: color enablement and status glyphs.
package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

var (
	Bold   = color.New(color.Bold)
	Green  = color.New(color.FgGreen)
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Cyan   = color.New(color.FgCyan)
	Faint  = color.New(color.Faint)
)

// InitColors decides whether ANSI colour output is used. Explicit --no-color
// always wins; otherwise colour is enabled only when stdout is a terminal.
func InitColors(noColor bool) {
	if noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// OK prefixes msg with a green check glyph.
func OK(format string, a ...interface{}) string {
	return Green.Sprint("✓ ") + fmt.Sprintf(format, a...)
}

// Fail prefixes msg with a red cross glyph.
func Fail(format string, a ...interface{}) string {
	return Red.Sprint("✗ ") + fmt.Sprintf(format, a...)
}

// Warn prefixes msg with a yellow warning glyph.
func Warn(format string, a ...interface{}) string {
	return Yellow.Sprint("! ") + fmt.Sprintf(format, a...)
}
