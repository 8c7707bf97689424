// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package sample implements the naming conventions that connect a sample
// identifier such as "XK-8T_S21" to its project ("XK"), its role in a
// tumor/normal pair ("T") and the raw FASTQ files delivered by the
// sequencer.
package sample

import "strings"

// Namer derives project and role from sample identifiers.
type Namer struct {
	// Project, if set, is the project of every sample. Otherwise the project
	// is the part of the identifier before the first '-'.
	Project string
}

// ProjectOf returns the project of sample id. An identifier without a '-'
// is its own project.
func (n Namer) ProjectOf(id string) string {
	if n.Project != "" {
		return n.Project
	}
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

// RoleOf returns the role marker of sample id: the run-number suffix after
// '_' is dropped, then everything up to the last '-', then any leading
// digits. RoleOf("XK-8T_S21") is "T" and RoleOf("XK-2W_S17") is "W".
func (n Namer) RoleOf(id string) string {
	if i := strings.IndexByte(id, '_'); i >= 0 {
		id = id[:i]
	}
	if i := strings.LastIndexByte(id, '-'); i >= 0 {
		id = id[i+1:]
	}
	return strings.TrimLeft(id, "0123456789")
}
