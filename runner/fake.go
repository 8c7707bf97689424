package runner

import (
	"context"
	"fmt"
	"io/ioutil"
	"strings"
	"sync"
)

// Fake is a Runner for unittests. Instead of starting processes it records
// each command and writes a small file to every path named in
// Command.Outputs and Command.Stdout.
type Fake struct {
	// Log, if set, receives each command like Exec would.
	Log *AuditLog
	// Fail, if set, is consulted before each command. A non-nil result is
	// returned from Run and no outputs are written.
	Fail func(Command) error
	// Silent lists stages whose commands exit cleanly without producing
	// anything, mimicking tools that do not report errors through their
	// exit status.
	Silent map[string]bool
	// Hook, if set, is called after a command's outputs have been written.
	Hook func(Command)

	mu   sync.Mutex
	cmds []Command
}

// Run implements Runner.
func (f *Fake) Run(ctx context.Context, cmd Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	f.cmds = append(f.cmds, cmd)
	f.mu.Unlock()
	if err := f.Log.Record(cmd); err != nil {
		return err
	}
	if f.Fail != nil {
		if err := f.Fail(cmd); err != nil {
			return err
		}
	}
	if f.Silent[cmd.Stage] {
		return nil
	}
	data := []byte(fmt.Sprintf("%s\n", strings.Join(cmd.Argv(), " ")))
	for _, path := range append(cmd.Outputs, cmd.Stdout) {
		if path == "" {
			continue
		}
		if err := ioutil.WriteFile(path, data, 0644); err != nil {
			return err
		}
	}
	if f.Hook != nil {
		f.Hook(cmd)
	}
	return nil
}

// Commands returns the commands run so far, in order.
func (f *Fake) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.cmds...)
}

// Stages returns the stage of each command run so far for sample (all
// samples if empty), with consecutive repeats collapsed so that a stage
// issuing several commands appears once.
func (f *Fake) Stages(sample string) []string {
	var stages []string
	for _, c := range f.Commands() {
		if sample != "" && c.Sample != sample {
			continue
		}
		if n := len(stages); n > 0 && stages[n-1] == c.Stage {
			continue
		}
		stages = append(stages, c.Stage)
	}
	return stages
}

// Reset forgets all recorded commands.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.cmds = nil
	f.mu.Unlock()
}
