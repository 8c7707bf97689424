package fasta

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/tsv"
)

// IndexPath returns the path of the index of the given FASTA file.
func IndexPath(fastaPath string) string { return fastaPath + ".fai" }

// GenerateIndex generates an index (*.fai) from FASTA.  The index can be later
// passed to ReadIndex().
//
// The index format is defined by "samtool faidx"
// (http://www.htslib.org/doc/faidx.html). Like samtools, GenerateIndex
// rejects a sequence whose lines, other than the last, differ in length.
func GenerateIndex(out io.Writer, in io.Reader) (err error) {
	var (
		tsvOut      = tsv.NewWriter(out)
		r           = bufio.NewReader(in)
		seqName     string
		seqStartOff int64
		totalBases  int
		lineBases   int
		lineWidth   int
		shortLine   bool // a line shorter than lineBases was seen in seqName
		cumByte     int64
		lineNo      int
		eof         bool
	)

	setErr := func(e error) {
		if e != nil && err == nil {
			err = e
		}
	}
	flush := func() {
		tsvOut.WriteString(seqName)
		tsvOut.WriteInt64(int64(totalBases))
		tsvOut.WriteInt64(seqStartOff)
		tsvOut.WriteInt64(int64(lineBases))
		tsvOut.WriteInt64(int64(lineWidth))
		setErr(tsvOut.EndLine())
	}
	for !eof && err == nil {
		fullLine, e := r.ReadBytes('\n')
		if e == io.EOF { // Process fullLine, then exit the loop
			eof = true
		} else if e != nil {
			setErr(e)
		}
		lineNo++
		cumByte += int64(len(fullLine))
		line := bytes.TrimRight(fullLine, "\r\n")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			if lineWidth != 0 {
				if seqName == "" {
					setErr(errors.E(errors.Invalid, "malformed FASTA file"))
				}
				flush()
			}
			seqName = strings.Split(string(line[1:]), " ")[0]
			seqStartOff = cumByte
			lineWidth = 0
			lineBases = 0
			totalBases = 0
			shortLine = false
			continue
		}
		if lineWidth == 0 {
			lineWidth = len(fullLine)
			lineBases = len(line)
		} else if shortLine || len(line) > lineBases {
			setErr(errors.E(errors.Invalid,
				fmt.Sprintf("line %d: different line length in sequence %s", lineNo, seqName)))
		}
		if len(line) < lineBases {
			shortLine = true
		}
		totalBases += len(line)
	}
	if err != nil {
		return
	}
	flush()
	setErr(tsvOut.Flush())
	if cumByte == 0 {
		setErr(errors.E(errors.Invalid, "empty FASTA file"))
	}
	return
}

// EnsureIndex generates the index of the FASTA file at path unless it already
// exists, and returns the index path. Compressed references are not
// supported.
func EnsureIndex(ctx context.Context, path string) (string, error) {
	idxPath := IndexPath(path)
	if _, err := os.Stat(idxPath); err == nil {
		return idxPath, nil
	}
	if strings.HasSuffix(path, ".gz") {
		return "", errors.E(errors.Invalid, "reference", path, "is compressed; index it with samtools faidx")
	}
	in, err := file.Open(ctx, path)
	if err != nil {
		return "", errors.E(err, "open reference", path)
	}
	defer in.Close(ctx) // nolint: errcheck
	// The index is a few bytes per sequence; build it in memory so that a
	// malformed reference leaves nothing behind.
	var buf bytes.Buffer
	if err := GenerateIndex(&buf, bufio.NewReaderSize(in.Reader(ctx), 1<<20)); err != nil {
		return "", errors.E(err, "index reference", path)
	}
	out, err := file.Create(ctx, idxPath)
	if err != nil {
		return "", errors.E(err, "create", idxPath)
	}
	if _, err := out.Writer(ctx).Write(buf.Bytes()); err != nil {
		_ = out.Close(ctx)
		return "", errors.E(err, "write", idxPath)
	}
	if err := out.Close(ctx); err != nil {
		return "", errors.E(err, "close", idxPath)
	}
	log.Printf("generated reference index %s", idxPath)
	return idxPath, nil
}

// LoadIndex reads the index of the FASTA file at path, generating it first if
// it is missing.
func LoadIndex(ctx context.Context, path string) (*Index, error) {
	idxPath, err := EnsureIndex(ctx, path)
	if err != nil {
		return nil, err
	}
	data, err := file.ReadFile(ctx, idxPath)
	if err != nil {
		return nil, errors.E(err, "read", idxPath)
	}
	idx, err := ReadIndex(bytes.NewReader(data))
	if err != nil {
		return nil, errors.E(errors.Invalid, err, idxPath)
	}
	return idx, nil
}
