// Copyright 2026 FlowTrace Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the flowtrace CLI.
//
// Usage:
//
//	flowtrace changeset                 Analyse the working tree's changed functions
//	flowtrace callsites --target <id>   Find call sites for a canonical id
//	flowtrace signature --entry <id>    Print a function's signature
//	flowtrace extract-args ...          Reconstruct a call's actual arguments
//	flowtrace trace ...                 Open an interactive step session
//	flowtrace config                    Print effective configuration
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/tracegraph/flowtrace/internal/ui"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds flags that apply to every subcommand.
type GlobalFlags struct {
	JSON       bool
	NoColor    bool
	Verbose    int
	Quiet      bool
	ConfigPath string
}

func logInfo(g GlobalFlags, format string, args ...interface{}) {
	if !g.Quiet && g.Verbose >= 1 {
		fmt.Fprintf(os.Stderr, "[INFO] "+format+"\n", args...)
	}
}

func logError(g GlobalFlags, format string, args ...interface{}) {
	if !g.Quiet {
		fmt.Fprintf(os.Stderr, "[ERROR] "+format+"\n", args...)
	}
}

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to .flowtrace/project.yaml")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v info, -vv debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output")
	)

	flag.SetInterspersed(false)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `FlowTrace - interactive, line-addressable execution tracer

Usage:
  flowtrace <command> [options]

Commands:
  changeset     Analyse the working tree's changed functions and call graph
  callsites     Find repository-wide call sites for a canonical id
  signature     Print a function's parameter signature
  extract-args  Reconstruct the actual arguments at a call site
  trace         Open an interactive line-stepping session
  config        Print effective configuration

Global Options:
  --json          Output in JSON format
  --no-color      Disable color output (respects NO_COLOR)
  -v, --verbose   Increase verbosity (-v info, -vv debug)
  -q, --quiet     Suppress non-essential output
  -c, --config    Path to .flowtrace/project.yaml
  -V, --version   Show version and exit
`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("flowtrace version %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	if *quiet && *verbose > 0 {
		fmt.Fprintln(os.Stderr, "Error: cannot use --quiet and --verbose together")
		os.Exit(1)
	}
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{
		JSON:       *jsonOutput,
		NoColor:    *noColor,
		Verbose:    *verbose,
		Quiet:      *quiet,
		ConfigPath: *configPath,
	}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	var err error
	switch command {
	case "changeset":
		err = runChangeset(cmdArgs, globals)
	case "callsites":
		err = runCallsites(cmdArgs, globals)
	case "signature":
		err = runSignature(cmdArgs, globals)
	case "extract-args":
		err = runExtractArgs(cmdArgs, globals)
	case "trace":
		err = runTrace(cmdArgs, globals)
	case "config":
		err = runConfig(cmdArgs, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		logError(globals, "%v", err)
		os.Exit(1)
	}
}
