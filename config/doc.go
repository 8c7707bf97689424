// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package config defines the settings of a germline pipeline run and reads
// them from an HCL file. A Config is built once, validated, and then passed
// by value to the pipeline; nothing in it changes while samples run.
//
// Strings in the file may refer to the environment of the process through
// the env object, e.g.
//
//	reference = "${env.REF_DIR}/hg19.fa"
package config
