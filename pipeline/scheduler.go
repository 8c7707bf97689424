package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// Result is the outcome of one sample of a batch.
type Result struct {
	Sample string
	// Path is the sample's annotation table. Empty unless the sample
	// succeeded.
	Path string
	// Skipped is set for samples excluded by the role filter.
	Skipped bool
	Err     error
}

// Stage returns the stage at which the sample failed.
func (r Result) Stage() (Kind, bool) { return RootStage(r.Err) }

// Scheduler runs batches of samples.
type Scheduler struct {
	p *Pipeline
}

// NewScheduler creates a Scheduler for p.
func NewScheduler(p *Pipeline) *Scheduler {
	return &Scheduler{p: p}
}

// Select applies the role filter of opts to samples. Duplicates are
// dropped; order is preserved.
func (s *Scheduler) Select(samples []string, opts BatchOptions) (run, skipped []string) {
	seen := make(map[string]bool, len(samples))
	for _, id := range samples {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if opts.NormalSampleMarker != "" && s.p.namer.RoleOf(id) != opts.NormalSampleMarker {
			skipped = append(skipped, id)
			continue
		}
		run = append(run, id)
	}
	return
}

// RunBatch resolves the Annotate task of every selected sample, at most
// Config.Concurrency samples at a time. A failing sample does not stop the
// others. The result map has an entry for every distinct sample.
func (s *Scheduler) RunBatch(ctx context.Context, samples []string, opts BatchOptions) map[string]Result {
	run, skipped := s.Select(samples, opts)
	results := make(map[string]Result, len(run)+len(skipped))
	for _, id := range skipped {
		log.Printf("%s: skipped, role %q is not %q", id, s.p.namer.RoleOf(id), opts.NormalSampleMarker)
		results[id] = Result{Sample: id, Skipped: true}
	}
	var (
		mu sync.Mutex
		r  = NewResolver(s.p, opts)
	)
	log.Printf("running %d sample(s), %d at a time", len(run), s.p.cfg.Concurrency)
	_ = traverse.Limit(s.p.cfg.Concurrency).Each(len(run), func(i int) error {
		id := run[i]
		res := Result{Sample: id}
		res.Path, res.Err = r.Resolve(ctx, r.Task(Annotate, id))
		// Every stage of the sample has returned, so no Stage can race with
		// the removal.
		if err := s.p.store.Tidy(s.p.layout.StagingRoot(s.p.namer.ProjectOf(id), id)); err != nil {
			log.Error.Printf("%s: %v", id, err)
		}
		if res.Err != nil {
			log.Error.Printf("%s: failed: %v", id, res.Err)
			s.note("%s: FAILED: %v", id, res.Err)
		} else {
			log.Printf("%s: finished: %s", id, res.Path)
			s.note("%s: NORMALLY END: %s", id, res.Path)
		}
		mu.Lock()
		results[id] = res
		mu.Unlock()
		return nil
	})
	return results
}

func (s *Scheduler) note(format string, args ...interface{}) {
	if err := s.p.log.Note(fmt.Sprintf(format, args...)); err != nil {
		log.Error.Printf("audit log: %v", err)
	}
}

// Plan returns, per selected sample, the tasks RunBatch would execute.
func (s *Scheduler) Plan(ctx context.Context, samples []string, opts BatchOptions) (map[string][]Key, error) {
	run, _ := s.Select(samples, opts)
	r := NewResolver(s.p, opts)
	plans := make(map[string][]Key, len(run))
	for _, id := range run {
		plan, err := r.Plan(ctx, r.Task(Annotate, id))
		if err != nil {
			return nil, err
		}
		plans[id] = plan
	}
	return plans, nil
}
