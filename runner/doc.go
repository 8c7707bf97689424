// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package runner invokes the external programs (trimmer, aligner, samtools,
// GATK, annovar) that do the actual work of each pipeline stage.
//
// A Command is a plain argument vector. It is never passed through a shell,
// so sample names and paths are not subject to interpolation, and commands
// can be built and compared in tests without running anything. Output
// redirection, which the shell used to provide, is expressed with
// Command.Stdout.
//
// Every command is appended to an AuditLog before it starts, whether or not
// it later succeeds. The log is shared by all workers of a run.
package runner
