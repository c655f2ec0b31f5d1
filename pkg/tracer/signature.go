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
	"fmt"

	"github.com/tracegraph/flowtrace/pkg/ident"
	"github.com/tracegraph/flowtrace/pkg/staticindex"
)

// Signature runs IT's signature mode (§6.4.3): the one-shot response is
// exactly the Static Index's signature record, no interpreter involved.
func Signature(idx *staticindex.Index, entry ident.ID) (staticindex.Signature, error) {
	if entry.IsTopLevel() {
		return staticindex.Signature{}, nil
	}
	decl, _, err := idx.Resolve(entry)
	if err != nil {
		return staticindex.Signature{}, fmt.Errorf("tracer: signature for %s: %w", entry, err)
	}
	return staticindex.ExtractSignature(decl), nil
}
