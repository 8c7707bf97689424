package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
)

// RetirePolicy selects what Retire does to a consumed artifact.
type RetirePolicy int

const (
	// Truncate cuts the artifact to zero bytes, leaving the path in place.
	Truncate RetirePolicy = iota
	// Delete removes the artifact.
	Delete
	// Keep leaves the artifact untouched.
	Keep
)

// String implements fmt.Stringer.
func (p RetirePolicy) String() string {
	switch p {
	case Truncate:
		return "truncate"
	case Delete:
		return "delete"
	case Keep:
		return "keep"
	}
	return fmt.Sprintf("RetirePolicy(%d)", int(p))
}

// ParseRetirePolicy parses the string form of a RetirePolicy. The empty
// string yields Truncate.
func ParseRetirePolicy(s string) (RetirePolicy, error) {
	switch s {
	case "", "truncate":
		return Truncate, nil
	case "delete":
		return Delete, nil
	case "keep":
		return Keep, nil
	}
	return Truncate, errors.E(errors.Invalid, fmt.Sprintf("unknown retire policy %q, want truncate, delete or keep", s))
}

// Opts configures a Store.
type Opts struct {
	// Retire is applied by Store.Retire.
	Retire RetirePolicy
	// IORetries bounds the number of retries of a failed filesystem
	// mutation (mkdir, rename, truncate). Zero disables retries.
	IORetries uint64
	// IORetryInterval is the initial backoff interval. Defaults to 100ms.
	IORetryInterval time.Duration
}

// Store is the local-filesystem artifact store. It is safe for concurrent
// use; callers are expected to operate on disjoint sample directories.
type Store struct {
	opts Opts
}

// NewStore creates a Store.
func NewStore(opts Opts) *Store {
	if opts.IORetryInterval <= 0 {
		opts.IORetryInterval = 100 * time.Millisecond
	}
	return &Store{opts: opts}
}

// Policy returns the store's retire policy.
func (s *Store) Policy() RetirePolicy { return s.opts.Retire }

// Exists reports whether path exists. Retired tombstones and empty
// placeholders exist.
func (s *Store) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.E(err, "stat", path)
}

// Usable reports whether path exists and holds data, i.e. whether it can be
// consumed by a downstream stage. A retired artifact is not usable.
func (s *Store) Usable(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.E(err, "stat", path)
	}
	return info.IsDir() || info.Size() > 0, nil
}

// EnsureDir creates dir and its parents. It is a no-op if dir exists.
func (s *Store) EnsureDir(ctx context.Context, dir string) error {
	return s.retry(ctx, "mkdir "+dir, func() error {
		return os.MkdirAll(dir, 0755)
	})
}

// Stage prepares an empty staging directory. Leftovers of an earlier,
// interrupted attempt are removed first.
func (s *Store) Stage(ctx context.Context, staging string) error {
	if err := os.RemoveAll(staging); err != nil {
		return errors.E(err, "clear staging directory", staging)
	}
	return s.EnsureDir(ctx, staging)
}

// Promote moves every file in staging into dir and removes staging. The file
// named primary is moved last, so once it is visible in dir all of its
// sidecars (indexes, metrics) are too. A missing primary is not an error
// here; the caller detects it through Exists.
func (s *Store) Promote(ctx context.Context, staging, dir, primary string) error {
	entries, err := os.ReadDir(staging)
	if err != nil {
		return errors.E(err, "list staging directory", staging)
	}
	var names []string
	hasPrimary := false
	for _, e := range entries {
		if e.Name() == primary {
			hasPrimary = true
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if hasPrimary {
		names = append(names, primary)
	}
	for _, name := range names {
		src, dst := filepath.Join(staging, name), filepath.Join(dir, name)
		if err := s.retry(ctx, "rename "+src, func() error { return os.Rename(src, dst) }); err != nil {
			return err
		}
		log.Debug.Printf("promoted %s", dst)
	}
	if err := os.RemoveAll(staging); err != nil {
		return errors.E(err, "remove staging directory", staging)
	}
	return nil
}

// Tidy removes the staging root of a sample directory if it is empty. It
// must not race with Stage for the same sample; call it once all of the
// sample's stages have returned. Leftovers of failed stages keep the root
// in place until a later run stages them again.
func (s *Store) Tidy(root string) error {
	err := os.Remove(root)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	if entries, rerr := os.ReadDir(root); rerr == nil && len(entries) > 0 {
		return nil
	}
	return errors.E(err, "remove staging root", root)
}

// Placeholder atomically creates an empty artifact at path.
func (s *Store) Placeholder(ctx context.Context, path string) error {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create placeholder", path)
	}
	return out.Close(ctx)
}

// Retire marks a consumed artifact as behind us according to the store's
// policy. Retiring a missing artifact is a no-op. Retirement is
// irreversible.
func (s *Store) Retire(ctx context.Context, path string) error {
	if s.opts.Retire == Keep {
		return nil
	}
	ok, err := s.Exists(path)
	if err != nil || !ok {
		return err
	}
	log.Printf("retire %s (%s)", path, s.opts.Retire)
	switch s.opts.Retire {
	case Delete:
		return s.retry(ctx, "delete "+path, func() error { return os.Remove(path) })
	default:
		return s.retry(ctx, "truncate "+path, func() error { return os.Truncate(path, 0) })
	}
}

// retry runs op, retrying failures with exponential backoff up to
// opts.IORetries times. Missing files and permission errors are not
// retried.
func (s *Store) retry(ctx context.Context, what string, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.IORetryInterval
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := op()
		if err == nil {
			return nil
		}
		if os.IsNotExist(err) || os.IsPermission(err) {
			return backoff.Permanent(err)
		}
		log.Error.Printf("%s: attempt %d: %v", what, attempt, err)
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, s.opts.IORetries), ctx))
	if err != nil {
		return errors.E(err, what)
	}
	return nil
}
