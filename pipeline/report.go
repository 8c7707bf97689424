package pipeline

import (
	"context"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
)

// Status strings of a batch report.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Status returns the report status of r.
func (r Result) Status() string {
	switch {
	case r.Skipped:
		return StatusSkipped
	case r.Err != nil:
		return StatusFailed
	}
	return StatusOK
}

// WriteReport writes results as a TSV file with one line per sample, sorted
// by sample: sample, status, output path, failing stage, error kind and
// error message.
func WriteReport(ctx context.Context, path string, results map[string]Result) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create report", path)
	}
	defer func() {
		if cerr := out.Close(ctx); cerr != nil && err == nil {
			err = errors.E(cerr, "close report", path)
		}
	}()
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tsv.NewWriter(out.Writer(ctx))
	w.WriteString("#sample\tstatus\tpath\tstage\tkind\terror")
	if err := w.EndLine(); err != nil {
		return err
	}
	for _, id := range ids {
		res := results[id]
		w.WriteString(id)
		w.WriteString(res.Status())
		w.WriteString(res.Path)
		stage, kind, msg := "", "", ""
		if res.Err != nil {
			if k, ok := res.Stage(); ok {
				stage = k.String()
			}
			if root := Root(res.Err); root != nil {
				kind = root.Kind.String()
			}
			msg = oneLine(res.Err.Error())
		}
		w.WriteString(stage)
		w.WriteString(kind)
		w.WriteString(msg)
		if err := w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}

// oneLine replaces tabs and newlines, which tool stderr is full of, so that
// a message fits in one TSV field.
func oneLine(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c == '\t' || c == '\n' || c == '\r' {
			b[i] = ' '
		}
	}
	return string(b)
}
