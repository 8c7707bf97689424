package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// Runner runs external commands.
type Runner interface {
	// Run executes cmd and waits for it to exit. A nil error means the
	// program exited with status zero; it does not mean the program produced
	// what it was supposed to.
	Run(ctx context.Context, cmd Command) error
}

// Exec is the Runner that starts real processes.
type Exec struct {
	// Log receives one line per command. May be nil.
	Log *AuditLog
	// Env is the environment of the child processes. Nil inherits the
	// environment of the current process.
	Env []string
}

// maxCapture bounds how much of a command's stderr (and stdout, when not
// redirected) is kept for error messages and debug logs.
const maxCapture = 16 << 10

// Run implements Runner. The command is recorded in the audit log before it
// starts. Cancelling ctx kills the process.
func (e *Exec) Run(ctx context.Context, cmd Command) error {
	if err := e.Log.Record(cmd); err != nil {
		log.Error.Printf("%s: %v", cmd.Stage, err)
	}
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = e.Env
	stderr := &tailBuffer{max: maxCapture}
	c.Stderr = stderr
	stdout := &tailBuffer{max: maxCapture}
	var redirect *os.File
	if cmd.Stdout != "" {
		var err error
		if redirect, err = os.Create(cmd.Stdout); err != nil {
			return errors.E(err, "create stdout file for", cmd.Stage)
		}
		c.Stdout = redirect
	} else {
		c.Stdout = stdout
	}

	log.Debug.Printf("%s %s: %s", cmd.Stage, cmd.Sample, cmd)
	start := time.Now()
	err := c.Run()
	elapsed := time.Since(start).Round(time.Millisecond)
	if redirect != nil {
		if cerr := redirect.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if stdout.Len() > 0 {
		log.Debug.Printf("%s %s stdout:\n%s", cmd.Stage, cmd.Sample, stdout)
	}
	if err != nil {
		if programMissing(err) {
			return errors.E(errors.NotExist, fmt.Sprintf("%s: program %s not found", cmd.Stage, cmd.Path), err)
		}
		if ctx.Err() != nil {
			return errors.E(errors.Canceled, fmt.Sprintf("%s: %s interrupted after %v", cmd.Stage, cmd.Path, elapsed), ctx.Err())
		}
		return errors.E(fmt.Sprintf("%s: %s failed after %v; stderr:\n%s", cmd.Stage, cmd, elapsed, stderr), err)
	}
	log.Debug.Printf("%s %s: %s finished in %v", cmd.Stage, cmd.Sample, cmd.Path, elapsed)
	return nil
}

func programMissing(err error) bool {
	switch e := err.(type) {
	case *exec.Error:
		return e.Err == exec.ErrNotFound
	case *os.PathError:
		return os.IsNotExist(e)
	}
	return false
}

// tailBuffer is an io.Writer that keeps the last max bytes written to it.
type tailBuffer struct {
	max       int
	buf       []byte
	truncated bool
}

var _ io.Writer = (*tailBuffer)(nil)

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
		b.truncated = true
	}
	return n, nil
}

func (b *tailBuffer) Len() int { return len(b.buf) }

func (b *tailBuffer) String() string {
	if b.truncated {
		return "..." + string(b.buf)
	}
	return string(b.buf)
}
