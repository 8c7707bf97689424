package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// call is one evaluation of a task, shared by everyone who asks for the task
// during a run.
type call struct {
	done chan struct{}
	path string
	err  error
}

// Resolver produces task outputs, running missing upstream tasks first. A
// Resolver is one run: every task is evaluated at most once, and concurrent
// requests for the same task wait for the same evaluation. A Resolver is
// safe for concurrent use.
type Resolver struct {
	p    *Pipeline
	opts BatchOptions

	mu   sync.Mutex
	memo map[Key]*call
}

// NewResolver starts a run of p with the given options.
func NewResolver(p *Pipeline, opts BatchOptions) *Resolver {
	return &Resolver{p: p, opts: opts, memo: make(map[Key]*call)}
}

// Task returns the task of the given stage and sample.
func (r *Resolver) Task(k Kind, sampleName string) *Task {
	return &Task{
		Key:     Key{Kind: k, Sample: sampleName},
		r:       r,
		project: r.p.namer.ProjectOf(sampleName),
	}
}

// Resolve makes sure the output of t exists and returns the path of its
// product. If the output already exists, nothing upstream of t is
// inspected. Otherwise the dependencies of t are resolved first, then t is
// executed, its output verified, and the inputs it consumed retired.
func (r *Resolver) Resolve(ctx context.Context, t *Task) (string, error) {
	r.mu.Lock()
	if c, ok := r.memo[t.Key]; ok {
		r.mu.Unlock()
		select {
		case <-c.done:
			return c.path, c.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c := &call{done: make(chan struct{})}
	r.memo[t.Key] = c
	r.mu.Unlock()

	c.path, c.err = r.resolve(ctx, t)
	close(c.done)
	return c.path, c.err
}

func (r *Resolver) fail(t *Task, kind ErrorKind, err error) *Error {
	e := &Error{Kind: kind, Sample: t.Sample, Stage: t.Kind, Err: err}
	if kind != DependencyResolutionError {
		log.Error.Printf("%v", e)
	}
	return e
}

func (r *Resolver) resolve(ctx context.Context, t *Task) (string, error) {
	done, err := t.Satisfied()
	if err != nil {
		return "", r.fail(t, IOError, err)
	}
	if done {
		log.Debug.Printf("%v: %s exists", t.Key, t.Output())
		return t.Product(), nil
	}

	deps := t.Deps()
	if err := r.resolveDeps(ctx, deps); err != nil {
		return "", r.fail(t, DependencyResolutionError, err)
	}
	for _, dep := range deps {
		if err := r.checkInput(dep); err != nil {
			return "", r.fail(t, err.Kind, err.Err)
		}
	}

	if err := r.execute(ctx, t); err != nil {
		return "", err
	}
	// The tools' exit status is not trusted.
	if ok, err := t.Satisfied(); err != nil {
		return "", r.fail(t, IOError, err)
	} else if !ok {
		return "", r.fail(t, ExternalToolFailure, fmt.Errorf("%v finished without producing %s", t.Kind, t.Output()))
	}
	for _, k := range t.def().retires {
		if err := r.p.store.Retire(ctx, r.Task(k, t.Sample).Product()); err != nil {
			return "", r.fail(t, IOError, err)
		}
	}
	return t.Product(), nil
}

// checkInput verifies that the product of the satisfied task dep can be
// consumed. A product can be missing even though dep is satisfied when it
// is not dep's output, as in amplicon mode.
func (r *Resolver) checkInput(dep *Task) *Error {
	in := dep.Product()
	store := r.p.store
	exists, err := store.Exists(in)
	if err != nil {
		return &Error{Kind: IOError, Err: err}
	}
	if !exists {
		return &Error{Kind: DependencyResolutionError, Err: fmt.Errorf("input %s of %v is missing", in, dep.Kind)}
	}
	ok, err := store.Usable(in)
	if err != nil {
		return &Error{Kind: IOError, Err: err}
	}
	if !ok {
		return &Error{Kind: DependencyResolutionError, Err: fmt.Errorf("input %s of %v is empty; it was retired", in, dep.Kind)}
	}
	return nil
}

// resolveDeps resolves deps in order. Independent branches run concurrently
// when branch parallelism is enabled.
func (r *Resolver) resolveDeps(ctx context.Context, deps []*Task) error {
	if len(deps) > 1 && r.p.cfg.BranchParallelism {
		errs := make([]error, len(deps))
		_ = traverse.Each(len(deps), func(i int) error {
			_, errs[i] = r.Resolve(ctx, deps[i])
			return nil
		})
		for _, err := range errs {
			if err != nil {
				return err
			}
		}
		return nil
	}
	for _, dep := range deps {
		if _, err := r.Resolve(ctx, dep); err != nil {
			return err
		}
	}
	return nil
}

// execute runs the commands of t in a fresh staging directory and promotes
// what they produced into the sample directory.
func (r *Resolver) execute(ctx context.Context, t *Task) error {
	var (
		store   = r.p.store
		dir     = t.Dir()
		staging = r.p.layout.StagingDir(t.project, t.Sample, t.Kind.String())
	)
	if err := store.EnsureDir(ctx, dir); err != nil {
		return r.fail(t, IOError, err)
	}
	if err := store.Stage(ctx, staging); err != nil {
		return r.fail(t, IOError, err)
	}
	cmds, err := t.def().build(ctx, t, staging)
	if err != nil {
		return r.fail(t, classify(err), err)
	}
	if extra := r.p.cfg.Stage(t.Kind.String()).ExtraArgs; len(extra) > 0 && len(cmds) > 0 {
		cmds[0].Args = append(cmds[0].Args, extra...)
	}
	log.Printf("%v: start (%d command(s))", t.Key, len(cmds))
	start := time.Now()
	for _, cmd := range cmds {
		if err := r.p.runner.Run(ctx, cmd); err != nil {
			return r.fail(t, ExternalToolFailure, err)
		}
	}
	if err := store.Promote(ctx, staging, dir, filepath.Base(t.Output())); err != nil {
		return r.fail(t, IOError, err)
	}
	log.Printf("%v: done in %v", t.Key, time.Since(start).Round(time.Millisecond))
	return nil
}

// Plan returns the tasks Resolve(ctx, t) would execute, in execution order,
// assuming every one of them succeeds. Nothing is executed or retired.
func (r *Resolver) Plan(ctx context.Context, t *Task) ([]Key, error) {
	var (
		plan    []Key
		visited = make(map[Key]bool)
		visit   func(t *Task) error
	)
	visit = func(t *Task) error {
		if visited[t.Key] {
			return nil
		}
		visited[t.Key] = true
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := t.Satisfied()
		if err != nil {
			return r.fail(t, IOError, err)
		}
		if done {
			return nil
		}
		for _, dep := range t.Deps() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		plan = append(plan, t.Key)
		return nil
	}
	if err := visit(t); err != nil {
		return nil, err
	}
	return plan, nil
}
