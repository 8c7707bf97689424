package interval

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
	gunsafe "github.com/grailbio/base/unsafe"
)

// maxVCFLine bounds the length of a VCF record. INFO and sample columns of
// joint-called VCFs get long.
const maxVCFLine = 64 << 20

// WriteVCFAsBED writes one BED interval per record of the VCF read from r
// and returns the number of intervals written. VCF positions are 1-based
// and closed; BED intervals are 0-based and half-open, so a record at POS
// becomes [POS-1, POS-1+max(len(REF), len(ALT...))). Records are written in
// VCF order and are not merged.
func WriteVCFAsBED(w io.Writer, r io.Reader) (int, error) {
	var (
		scanner = bufio.NewScanner(r)
		out     = tsv.NewWriter(w)
		tokens  [5][]byte
		lineIdx int
		n       int
	)
	scanner.Buffer(nil, maxVCFLine)
	for scanner.Scan() {
		lineIdx++
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		if getTokens(tokens[:], line) != len(tokens) {
			return n, errors.E(errors.Invalid, fmt.Sprintf("line %d: VCF record has fewer than %d columns", lineIdx, len(tokens)))
		}
		pos, err := strconv.Atoi(gunsafe.BytesToString(tokens[1]))
		if err != nil || pos < 1 {
			return n, errors.E(errors.Invalid, fmt.Sprintf("line %d: bad POS %q", lineIdx, tokens[1]))
		}
		width := len(tokens[3])
		for _, alt := range bytes.Split(tokens[4], []byte{','}) {
			if len(alt) > width {
				width = len(alt)
			}
		}
		out.WriteString(string(tokens[0]))
		out.WriteInt64(int64(pos - 1))
		out.WriteInt64(int64(pos - 1 + width))
		if err := out.EndLine(); err != nil {
			return n, err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, err
	}
	return n, out.Flush()
}

// VCFToBED derives a BED file of target intervals from the VCF at inPath,
// which may be compressed, for samples delivered without one. See
// WriteVCFAsBED.
func VCFToBED(ctx context.Context, inPath, outPath string) (n int, err error) {
	in, err := file.Open(ctx, inPath)
	if err != nil {
		return 0, errors.E(err, "open VCF", inPath)
	}
	defer in.Close(ctx) // nolint: errcheck
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		defer u.Close() // nolint: errcheck
		r = u
	}
	out, err := file.Create(ctx, outPath)
	if err != nil {
		return 0, errors.E(err, "create", outPath)
	}
	w := bufio.NewWriter(out.Writer(ctx))
	if n, err = WriteVCFAsBED(w, r); err == nil {
		err = w.Flush()
	}
	if cerr := out.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return n, errors.E(err, inPath)
	}
	log.Printf("%s: wrote %d interval(s) to %s", inPath, n, outPath)
	return n, nil
}
