// Package fasta handles the reference genome the aligner and the GATK tools
// read. See http://www.htslib.org/doc/faidx.html. Briefly, FASTA files
// consist of a number of named sequences that may be interrupted by
// newlines. For example:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// Note: Sequence names are defined to be the stretch of characters excluding
// spaces immediately after '>'.  Any text appear after a space are ignored.
// For example, '>chr1 A viral sequence' becomes 'chr1'.
//
// The tools only accept a reference that has a samtools-compatible index
// (*.fai) next to it. This package generates that index when it is missing
// and reads it back to learn the sequence names and lengths.
package fasta

import (
	"bufio"
	"io"
	"regexp"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Index files consist of one tab-separated line per sequence in the associated
// FASTA file.  The format is: "<sequence name>\t<length>\t<byte
// offset>\t<bases per line>\t<bytes per line>".
// For example: "chr3\t12345\t9000\t80\t81".
var indexRegExp = regexp.MustCompile(`^(\S+)\t(\d+)\t(\d+)\t(\d+)\t(\d+)$`)

// IndexEntry is one line of a FASTA index.
type IndexEntry struct {
	Name      string
	Length    uint64
	Offset    uint64
	LineBases uint64
	LineWidth uint64
}

// Index is a parsed FASTA index.
type Index struct {
	entries map[string]IndexEntry
	names   []string
}

// ReadIndex parses a FASTA index.
func ReadIndex(r io.Reader) (*Index, error) {
	idx := &Index{entries: make(map[string]IndexEntry)}
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Text()
		if line == "" {
			continue
		}
		m := indexRegExp.FindStringSubmatch(line)
		if m == nil {
			return nil, errors.Errorf("line %d: invalid index line: %q", n, line)
		}
		var ent IndexEntry
		ent.Name = m[1]
		ent.Length, _ = strconv.ParseUint(m[2], 10, 64)
		ent.Offset, _ = strconv.ParseUint(m[3], 10, 64)
		ent.LineBases, _ = strconv.ParseUint(m[4], 10, 64)
		ent.LineWidth, _ = strconv.ParseUint(m[5], 10, 64)
		if _, ok := idx.entries[ent.Name]; ok {
			return nil, errors.Errorf("line %d: duplicate sequence %s", n, ent.Name)
		}
		idx.entries[ent.Name] = ent
		idx.names = append(idx.names, ent.Name)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA index")
	}
	sort.SliceStable(idx.names, func(i, j int) bool {
		return idx.entries[idx.names[i]].Offset < idx.entries[idx.names[j]].Offset
	})
	return idx, nil
}

// Len returns the length of the named sequence.
func (idx *Index) Len(seqName string) (uint64, error) {
	ent, ok := idx.entries[seqName]
	if !ok {
		return 0, errors.Errorf("sequence not found in index: %s", seqName)
	}
	return ent.Length, nil
}

// Entry returns the index entry of the named sequence.
func (idx *Index) Entry(seqName string) (IndexEntry, bool) {
	ent, ok := idx.entries[seqName]
	return ent, ok
}

// SeqNames returns the names of all sequences, in the order of appearance in
// the FASTA file.
func (idx *Index) SeqNames() []string {
	return idx.names
}

// Lengths returns a map of sequence name to sequence length.
func (idx *Index) Lengths() map[string]uint64 {
	m := make(map[string]uint64, len(idx.entries))
	for name, ent := range idx.entries {
		m[name] = ent.Length
	}
	return m
}
