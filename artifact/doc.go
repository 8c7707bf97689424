// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package artifact maps pipeline stages to files on local disk and answers
// the only question the pipeline ever asks about its state: does the output
// of a stage exist?
//
// Every artifact lives at {base}/{project}/{sample}/{sample}{suffix}. Paths
// are a pure function of the sample identifier, so rerunning the pipeline
// against the same inputs always probes the same files.
//
// Stages never write their final artifact in place. Store.Stage hands out a
// private staging directory next to the sample directory, and Store.Promote
// renames the staged files into place once the producing tools exit, the
// primary artifact last. An interrupted tool therefore never leaves behind a
// file that looks complete.
//
// Consumed intermediates are retired with Store.Retire. Under the default
// Truncate policy the file is cut to zero bytes: the path survives as a
// tombstone but can no longer serve as input (see Store.Usable).
package artifact
