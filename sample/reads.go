package sample

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// FastqOpts describes how raw FASTQ files are named.
type FastqOpts struct {
	// Dir holds the raw FASTQ files.
	Dir string
	// Suffix is the file extension, e.g. ".fastq.gz".
	Suffix string
	// R1 and R2 mark the first and second read of a pair, e.g. "_R1".
	R1, R2 string
	// SelfAdjust searches Dir for any file whose name contains the sample
	// identifier and the read marker, instead of requiring the exact name
	// {sample}{R1}{Suffix}.
	SelfAdjust bool
	// Exclude, if set, drops candidate files whose name contains it. Used
	// with SelfAdjust to skip e.g. "Undetermined" files.
	Exclude string
}

// DefaultFastqOpts are the Illumina bcl2fastq defaults.
var DefaultFastqOpts = FastqOpts{
	Suffix: ".fastq.gz",
	R1:     "_R1",
	R2:     "_R2",
}

// Reads are the raw FASTQ files of a sample. R2 is empty for single-end
// data.
type Reads struct {
	R1, R2 string
}

// Paired reports whether r has a second read file.
func (r Reads) Paired() bool { return r.R2 != "" }

// FindReads locates the raw FASTQ files of sample id. Single-end data is
// looked up with the R1 marker. A missing file is reported with kind
// errors.NotExist and, when there is one, the closest sample name found in
// the directory.
func FindReads(ctx context.Context, opts FastqOpts, id string, pairedEnd bool) (Reads, error) {
	var (
		r   Reads
		err error
	)
	if r.R1, err = find(opts, id, opts.R1); err != nil {
		return Reads{}, err
	}
	if pairedEnd {
		if r.R2, err = find(opts, id, opts.R2); err != nil {
			return Reads{}, err
		}
	}
	log.Debug.Printf("%s: raw reads %+v", id, r)
	return r, nil
}

func find(opts FastqOpts, id, marker string) (string, error) {
	if !opts.SelfAdjust {
		path := filepath.Join(opts.Dir, id+marker+opts.Suffix)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !os.IsNotExist(err) {
			return "", errors.E(err, "stat", path)
		}
		return "", notFound(opts, id, path)
	}
	matches, err := filepath.Glob(filepath.Join(opts.Dir, "*"+globEscape(id)+"*"))
	if err != nil {
		return "", errors.E(errors.Invalid, err, "bad sample name", id)
	}
	var hits []string
	for _, m := range matches {
		base := filepath.Base(m)
		if opts.Exclude != "" && strings.Contains(base, opts.Exclude) {
			continue
		}
		if !strings.HasSuffix(base, opts.Suffix) || !strings.Contains(base, marker) {
			continue
		}
		hits = append(hits, m)
	}
	switch len(hits) {
	case 0:
		return "", notFound(opts, id, filepath.Join(opts.Dir, "*"+id+"*"+marker+"*"+opts.Suffix))
	case 1:
	default:
		sort.Strings(hits)
		log.Printf("%s: %d files match %s, using %s", id, len(hits), marker, hits[0])
	}
	return hits[0], nil
}

func notFound(opts FastqOpts, id, want string) error {
	msg := fmt.Sprintf("no raw reads for sample %s: %s does not exist", id, want)
	if s := Suggest(opts, id); s != "" {
		msg += fmt.Sprintf("; did you mean %s?", s)
	}
	return errors.E(errors.NotExist, msg)
}

// Suggest returns the sample name in opts.Dir closest to id by edit
// distance, or "" if the directory holds no FASTQ files or none is close.
func Suggest(opts FastqOpts, id string) string {
	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return ""
	}
	var (
		best     string
		bestDist = len(id)/2 + 1
	)
	seen := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, opts.Suffix) {
			continue
		}
		name = strings.TrimSuffix(name, opts.Suffix)
		for _, marker := range []string{opts.R1, opts.R2} {
			if marker != "" && strings.HasSuffix(name, marker) {
				name = strings.TrimSuffix(name, marker)
				break
			}
		}
		if seen[name] || name == id {
			continue
		}
		seen[name] = true
		if d := matchr.Levenshtein(id, name); d < bestDist {
			best, bestDist = name, d
		}
	}
	return best
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return r.Replace(s)
}
