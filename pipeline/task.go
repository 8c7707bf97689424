package pipeline

import (
	"path/filepath"
)

// Key identifies a task: one stage of one sample.
type Key struct {
	Kind   Kind
	Sample string
}

// String implements fmt.Stringer.
func (k Key) String() string { return k.Sample + "/" + k.Kind.String() }

// Task is one stage of one sample within a Resolver's run. Tasks are cheap
// and carry no state of their own; whether a task is done is read from the
// filesystem every time it is asked.
type Task struct {
	Key
	r       *Resolver
	project string
}

func (t *Task) def() *stage { return &stages[t.Kind] }

// Deps returns the tasks t depends on, in resolution order.
func (t *Task) Deps() []*Task {
	deps := make([]*Task, len(t.def().deps))
	for i, k := range t.def().deps {
		deps[i] = t.r.Task(k, t.Sample)
	}
	return deps
}

// Dir returns the sample directory.
func (t *Task) Dir() string {
	return t.r.p.layout.SampleDir(t.project, t.Sample)
}

// Output returns the path of the task's primary artifact. The task is done
// when this file exists.
func (t *Task) Output() string {
	return t.r.p.layout.Path(t.project, t.Sample, t.def().suffix(t))
}

// Product returns the path downstream tasks read. It is Output except for
// Deduplicate in amplicon mode, whose output is an empty placeholder and
// whose product is the sorted BAM.
func (t *Task) Product() string {
	if t.Kind == Deduplicate && t.r.opts.Amplicon {
		return t.r.Task(Sort, t.Sample).Output()
	}
	return t.Output()
}

// Satisfied reports whether the task's output exists.
func (t *Task) Satisfied() (bool, error) {
	return t.r.p.store.Exists(t.Output())
}

// staged returns the path in the staging directory dir of the artifact
// with the given suffix.
func (t *Task) staged(dir, suffix string) string {
	return filepath.Join(dir, t.Sample+suffix)
}

// input returns the product of the dependency of kind k.
func (t *Task) input(k Kind) string {
	return t.r.Task(k, t.Sample).Product()
}
