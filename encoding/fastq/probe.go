package fastq

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// DefaultProbeReads is the number of reads (or pairs) Probe inspects when
// the caller passes n <= 0.
const DefaultProbeReads = 1000

type readCloser struct {
	io.Reader
	close func() error
}

func (r readCloser) Close() error { return r.close() }

// Open opens a FASTQ file for reading. Files ending in ".gz" are
// decompressed.
func Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	r := f.Reader(ctx)
	if !strings.HasSuffix(path, ".gz") {
		return readCloser{r, func() error { return f.Close(ctx) }}, nil
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		_ = f.Close(ctx)
		return nil, errors.E(errors.Invalid, err, "gzip", path)
	}
	return readCloser{gz, func() error {
		err := gz.Close()
		if cerr := f.Close(ctx); err == nil {
			err = cerr
		}
		return err
	}}, nil
}

// Probe checks that the first n reads of r1 (and r2, if not empty) are well
// formed and, for pairs, concordant. It returns the number of reads or pairs
// inspected. An empty file is an error: nothing downstream can make use of
// it. Syntax problems are reported with kind errors.Invalid.
func Probe(ctx context.Context, r1, r2 string, n int) (int, error) {
	if n <= 0 {
		n = DefaultProbeReads
	}
	in1, err := Open(ctx, r1)
	if err != nil {
		return 0, err
	}
	defer in1.Close() // nolint: errcheck
	if r2 == "" {
		var (
			s    = NewScanner(in1)
			read Read
			got  int
		)
		for got < n && s.Scan(&read) {
			got++
		}
		if err := s.Err(); err != nil {
			return got, errors.E(errors.Invalid, err, r1)
		}
		if got == 0 {
			return 0, errors.E(errors.Invalid, "no reads in", r1)
		}
		return got, nil
	}
	in2, err := Open(ctx, r2)
	if err != nil {
		return 0, err
	}
	defer in2.Close() // nolint: errcheck
	var (
		s    = NewPairScanner(in1, in2)
		a, b Read
		got  int
	)
	for got < n && s.Scan(&a, &b) {
		got++
	}
	if err := s.Err(); err != nil {
		return got, errors.E(errors.Invalid, err, r1, r2)
	}
	if got == 0 {
		return 0, errors.E(errors.Invalid, "no reads in", r1)
	}
	return got, nil
}
