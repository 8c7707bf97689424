package interval

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
)

// PosType is the coordinate type of Targets.
type PosType int32

const posTypeMax = math.MaxInt32

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// searchPosType returns the index of x in a[], or the position where x would
// be inserted if x isn't in a (this could be len(a)).  It's exactly the same
// as sort.SearchInt(), except for PosType.
func searchPosType(a []PosType, x PosType) int {
	return sort.Search(len(a), func(i int) bool { return a[i] >= x })
}

// Targets is the union of the intervals of a BED file. Each chromosome maps to
// a length-2N sequence, where N is the number of disjoint intervals, the
// (0-based) start position of the interval #k is in element [2k] and the end
// position is in element [2k+1], and the intervals are stored in increasing
// order.
type Targets struct {
	chroms    []string
	intervals map[string][]PosType
	bases     int
}

// Chroms returns the chromosomes mentioned in the BED, in file order.
func (t *Targets) Chroms() []string { return t.chroms }

// Bases returns the number of bases covered by the union.
func (t *Targets) Bases() int { return t.bases }

// Len returns the number of disjoint intervals.
func (t *Targets) Len() int {
	n := 0
	for _, iv := range t.intervals {
		n += len(iv) / 2
	}
	return n
}

// Contains checks whether the (0-based) interval [pos, pos+1) is contained
// within the targets.
func (t *Targets) Contains(chrName string, pos PosType) bool {
	return searchPosType(t.intervals[chrName], pos+1)&1 == 1
}

// CheckReference verifies that every chromosome of the targets exists in the
// reference and that no interval extends past its end. lengths maps sequence
// names to lengths, as read from the reference's FASTA index.
func (t *Targets) CheckReference(lengths map[string]uint64) error {
	for _, chr := range t.chroms {
		length, ok := lengths[chr]
		if !ok {
			return errors.E(errors.Invalid, fmt.Sprintf("chromosome %s is not in the reference", chr))
		}
		iv := t.intervals[chr]
		if n := len(iv); n > 0 && uint64(iv[n-1]) > length {
			return errors.E(errors.Invalid,
				fmt.Sprintf("interval ending at %d is past the end of %s (length %d)", iv[n-1], chr, length))
		}
	}
	return nil
}

// header reports whether a BED line is a comment or a UCSC browser/track
// line.
func header(line []byte) bool {
	return line[0] == '#' || bytes.HasPrefix(line, []byte("track")) || bytes.HasPrefix(line, []byte("browser"))
}

// ReadBED loads the intervals of a BED file that is sorted by chromosome and
// start position, merging touching and overlapping intervals and dropping
// empty ones. Columns after the third are ignored. Syntax errors and unsorted
// input are reported with kind errors.Invalid.
func ReadBED(r io.Reader) (*Targets, error) {
	t := &Targets{intervals: make(map[string][]PosType)}
	scanner := bufio.NewScanner(r)
	invalid := func(lineIdx int, format string, args ...interface{}) error {
		return errors.E(errors.Invalid, fmt.Sprintf("line %d: ", lineIdx)+fmt.Sprintf(format, args...))
	}

	var (
		tokens           [3][]byte
		lineIdx          int
		prevChr          string
		prevStart        PosType
		prevEnd          PosType
		chrIntervals     []PosType
		saveChrIntervals = func() {
			if prevEnd != -1 {
				chrIntervals = append(chrIntervals, prevStart, prevEnd)
			}
			t.intervals[prevChr] = chrIntervals
		}
	)
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		nToken := getTokens(tokens[:], curLine)
		if nToken == 0 || header(curLine) {
			continue
		}
		if nToken != 3 {
			return nil, invalid(lineIdx, "has fewer tokens than expected")
		}
		curChr := tokens[0]
		parsedStart, err := strconv.Atoi(gunsafe.BytesToString(tokens[1]))
		if err != nil {
			return nil, invalid(lineIdx, "bad start coordinate %q", tokens[1])
		}
		if parsedStart < 0 {
			return nil, invalid(lineIdx, "negative start coordinate %d", parsedStart)
		}
		parsedEnd, err := strconv.Atoi(gunsafe.BytesToString(tokens[2]))
		if err != nil {
			return nil, invalid(lineIdx, "bad end coordinate %q", tokens[2])
		}
		if parsedEnd < parsedStart || parsedEnd >= posTypeMax {
			return nil, invalid(lineIdx, "invalid coordinate pair %d, %d", parsedStart, parsedEnd)
		}
		start, end := PosType(parsedStart), PosType(parsedEnd)
		if prevChr != gunsafe.BytesToString(curChr) {
			if prevChr != "" {
				saveChrIntervals()
			}
			// curChr refers to bytes of curLine, which the scanner reuses.
			prevChr = string(curChr)
			if _, found := t.intervals[prevChr]; found {
				return nil, invalid(lineIdx, "unsorted input (split chromosome %s)", prevChr)
			}
			t.chroms = append(t.chroms, prevChr)
			chrIntervals = []PosType{}
			if end == start {
				prevStart, prevEnd = -1, -1
			} else {
				prevStart, prevEnd = start, end
			}
			t.bases += int(end - start)
			continue
		}
		if end == start {
			continue
		}
		if prevEnd == -1 {
			prevStart, prevEnd = start, end
			t.bases += int(end - start)
			continue
		}
		if start > prevEnd {
			chrIntervals = append(chrIntervals, prevStart, prevEnd)
			prevStart, prevEnd = start, end
			t.bases += int(end - start)
			continue
		}
		if start < prevStart {
			return nil, invalid(lineIdx, "unsorted input")
		}
		if end > prevEnd {
			t.bases += int(end - prevEnd)
			prevEnd = end
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if prevChr != "" {
		saveChrIntervals()
	}
	return t, nil
}

// LoadBED reads the BED file at path, which may be gzip- or
// bzip2-compressed.
func LoadBED(ctx context.Context, path string) (t *Targets, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open BED", path)
	}
	defer func() {
		if cerr := in.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		defer u.Close() // nolint: errcheck
		r = u
	}
	if t, err = ReadBED(r); err != nil {
		return nil, errors.E(err, path)
	}
	log.Printf("%s: %d interval(s) on %d chromosome(s), %d base(s) covered", path, t.Len(), len(t.chroms), t.bases)
	return t, nil
}
