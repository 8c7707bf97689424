// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package pipeline runs the germline variant-calling workflow: trimming,
// alignment, BAM conversion and sorting, duplicate marking, base quality
// recalibration, variant calling, SNP and indel hard filtering, and
// annotation.
//
// Each stage of each sample is a Task. A task is done when its output file
// exists; there is no other record of progress. To produce the terminal
// Annotate output of a sample, a Resolver walks the dependency graph
// backwards, stops at the first task whose output already exists, and then
// runs the missing stages forward. A rerun after a crash therefore picks up
// where the previous run left off, and a rerun after success does nothing.
//
// Stages write into a private staging directory and their outputs are
// renamed into the sample directory only after every tool of the stage has
// exited, so an output that exists is an output that is complete. Once a
// stage has consumed and verified its input, some intermediates (the SAM and
// unsorted BAM) are retired to reclaim disk space.
//
// A Scheduler runs a batch of samples on a bounded worker pool. Samples
// never share files, so one sample's failure does not affect the others.
package pipeline
