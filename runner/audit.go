package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/grailbio/base/errors"
)

// AuditLog is an append-only record of every command a pipeline run issued.
// Each line is "<time>    <command>". Appends from concurrent workers are
// serialized, so lines never interleave.
//
// A nil *AuditLog discards everything.
type AuditLog struct {
	mu  sync.Mutex
	out *os.File
	// now is replaced in tests.
	now func() time.Time
}

// OpenAuditLog opens the log at path for appending. If the file does not yet
// exist it is created and a banner naming the pipeline is written first.
func OpenAuditLog(path, pipeline string) (*AuditLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.E(err, "create audit log directory for", path)
	}
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, errors.E(err, "open audit log", path)
	}
	l := &AuditLog{out: out, now: time.Now}
	if isNew {
		if _, err := fmt.Fprintln(out, banner(fmt.Sprintf("Starting the %s pipelines.", pipeline), 40)); err != nil {
			_ = out.Close()
			return nil, errors.E(err, "write audit log", path)
		}
	}
	return l, nil
}

// Record appends cmd to the log.
func (l *AuditLog) Record(cmd Command) error {
	return l.Note(fmt.Sprintf("%s    #%016x", cmd, cmd.Fingerprint()))
}

// Note appends a free-form line to the log.
func (l *AuditLog) Note(msg string) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	line := l.now().Format(time.ANSIC) + "    " + msg + "\n"
	if _, err := l.out.WriteString(line); err != nil {
		return errors.E(err, "append to audit log", l.out.Name())
	}
	return nil
}

// Close closes the underlying file.
func (l *AuditLog) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

// banner centers msg in a line of width '#' characters.
func banner(msg string, width int) string {
	pad := width - len(msg)
	if pad <= 0 {
		return msg
	}
	left := pad / 2
	return strings.Repeat("#", left) + msg + strings.Repeat("#", pad-left)
}
