package runner

import (
	"strings"

	farm "github.com/dgryski/go-farm"
)

// Command describes one invocation of an external program.
type Command struct {
	// Stage and Sample identify the pipeline task issuing the command. They
	// are used for logging only.
	Stage, Sample string
	// Path is the program to run. A bare name is looked up in $PATH.
	Path string
	// Args are the program arguments, excluding Path.
	Args []string
	// Stdout, if nonempty, is the file that receives the program's standard
	// output. The file is created or truncated.
	Stdout string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Outputs lists the files the program is expected to create, excluding
	// Stdout. The pipeline checks for artifacts itself; Outputs exists so
	// that fakes know what to produce.
	Outputs []string
}

// Argv returns Path followed by Args.
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}

// String renders the command the way a shell user would type it. The result
// is meant for humans; it is never executed.
func (c Command) String() string {
	argv := c.Argv()
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = quote(a)
	}
	s := strings.Join(quoted, " ")
	if c.Stdout != "" {
		s += " > " + quote(c.Stdout)
	}
	return s
}

// Fingerprint returns a stable 64-bit hash of the argument vector and the
// stdout target. Two commands with the same fingerprint do the same thing.
func (c Command) Fingerprint() uint64 {
	var b strings.Builder
	for _, a := range c.Argv() {
		b.WriteString(a)
		b.WriteByte(0)
	}
	b.WriteString(c.Stdout)
	return farm.Fingerprint64([]byte(b.String()))
}

const shellSpecial = " \t\n'\"\\$`|&;<>()*?[]#~!{}"

func quote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, shellSpecial) {
		return s
	}
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}
