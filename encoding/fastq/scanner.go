package fastq

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrDiscordant is returned when two underlying FASTQ files are discordant.
	ErrDiscordant = errors.New("discordant FASTQ pairs")
)

// A Read is a FASTQ read, comprising an ID, sequence, line 3
// ("unknown"), and a quality string.
type Read struct {
	ID, Seq, Unk, Qual string
}

// Name returns the read ID without the leading '@' and without the comment
// that follows the first space, e.g. "NB500956:89:HW2FHBGX2:1:11101:25648:1069".
// Mates of a pair share a name.
func (r *Read) Name() string {
	id := r.ID
	if len(id) > 0 && id[0] == '@' {
		id = id[1:]
	}
	for i := 0; i < len(id); i++ {
		if id[i] == ' ' || id[i] == '\t' {
			id = id[:i]
			break
		}
	}
	// Old Illumina pipelines mark mates with a /1 or /2 suffix.
	if n := len(id); n > 2 && id[n-2] == '/' && (id[n-1] == '1' || id[n-1] == '2') {
		id = id[:n-2]
	}
	return id
}

// SyntaxError reports where in the stream a malformed read was found.
type SyntaxError struct {
	// Line is the 1-based line number of the offending line.
	Line int
	// Err is ErrShort or ErrInvalid.
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap returns ErrShort or ErrInvalid.
func (e *SyntaxError) Unwrap() error { return e.Err }

var errEOF = errors.New("eof")

// Scanner reads FASTQ records one at a time. Scanners are not threadsafe.
//
// Scanner checks the record structure: ID lines must begin with "@", line 3
// must begin with "+", and the sequence and quality strings must have the
// same length.
type Scanner struct {
	b    *bufio.Scanner
	line int
	err  error
}

// NewScanner constructs a new Scanner that reads raw FASTQ data from the
// provided reader.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{b: bufio.NewScanner(r)}
}

// Scan the next read into the provided read. Scan returns a boolean
// indicating whether the scan succeeded. Once Scan returns false, it
// never returns true again. Upon completion, the user should check
// the Err method to determine whether scanning stopped because of an
// error or because the end of the stream was reached.
func (f *Scanner) Scan(read *Read) bool {
	if f.err != nil {
		return false
	}
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = errEOF
		}
		return false
	}
	f.line++
	id := f.b.Text()
	if len(id) == 0 || id[0] != '@' {
		return f.fail(ErrInvalid)
	}
	read.ID = id
	if !f.scan() {
		return false
	}
	read.Seq = f.b.Text()
	if !f.scan() {
		return false
	}
	unk := f.b.Text()
	if len(unk) == 0 || unk[0] != '+' {
		return f.fail(ErrInvalid)
	}
	read.Unk = unk
	if !f.scan() {
		return false
	}
	read.Qual = f.b.Text()
	if len(read.Qual) != len(read.Seq) {
		return f.fail(ErrInvalid)
	}
	return true
}

func (f *Scanner) scan() bool {
	if !f.b.Scan() {
		if f.err = f.b.Err(); f.err == nil {
			f.err = &SyntaxError{Line: f.line + 1, Err: ErrShort}
		}
		return false
	}
	f.line++
	return true
}

func (f *Scanner) fail(err error) bool {
	f.err = &SyntaxError{Line: f.line, Err: err}
	return false
}

// Err returns the scanning error, if any. Syntax problems are reported as
// *SyntaxError; use errors.Is to compare against ErrShort and ErrInvalid.
func (f *Scanner) Err() error {
	if f.err == errEOF {
		return nil
	}
	return f.err
}

// PairScanner composes a pair of scanners to scan a pair of FASTQ
// streams.
type PairScanner struct {
	r1, r2 *Scanner
	err    error
}

// NewPairScanner creates a new FASTQ pair scanner from the provided
// R1 and R2 readers.
func NewPairScanner(r1, r2 io.Reader) *PairScanner {
	return &PairScanner{r1: NewScanner(r1), r2: NewScanner(r2)}
}

// Scan scans the next read pair into r1, r2. It stops with ErrDiscordant
// when one stream ends before the other or when the mates' names differ.
func (p *PairScanner) Scan(r1, r2 *Read) bool {
	if p.err != nil {
		return false
	}
	ok1 := p.r1.Scan(r1)
	ok2 := p.r2.Scan(r2)
	if ok1 != ok2 {
		p.err = ErrDiscordant
		return false
	}
	if ok1 && r1.Name() != r2.Name() {
		p.err = fmt.Errorf("%v: %s vs %s", ErrDiscordant, r1.Name(), r2.Name())
		return false
	}
	return ok1
}

// Err returns the scanning error, if any. It should be checked
// after Scan returns false.
func (p *PairScanner) Err() error {
	if err := p.r1.Err(); err != nil {
		return err
	}
	if err := p.r2.Err(); err != nil {
		return err
	}
	return p.err
}
