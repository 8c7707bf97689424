package runner_test

import (
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/germline/runner"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
	"v.io/x/lib/gosh"
	"v.io/x/lib/lookpath"
)

func TestCommandString(t *testing.T) {
	c := runner.Command{
		Path: "gatk",
		Args: []string{"VariantFiltration", "--filter-expression", "QD < 2.0 || FS > 60.0", "--filter-name", "my_snp_filter"},
	}
	expect.EQ(t, c.String(), "gatk VariantFiltration --filter-expression 'QD < 2.0 || FS > 60.0' --filter-name my_snp_filter")

	c = runner.Command{Path: "convert2annovar.pl", Args: []string{"A.merged.vcf", "-format", "vcf4"}, Stdout: "/out/A.merged.av"}
	expect.EQ(t, c.String(), "convert2annovar.pl A.merged.vcf -format vcf4 > /out/A.merged.av")

	c = runner.Command{Path: "echo", Args: []string{"it's", ""}}
	expect.EQ(t, c.String(), `echo 'it'\''s' ''`)
}

func TestCommandFingerprint(t *testing.T) {
	a := runner.Command{Path: "samtools", Args: []string{"index", "A.bam"}}
	b := runner.Command{Path: "samtools", Args: []string{"index", "A.bam"}, Stage: "Sort"}
	c := runner.Command{Path: "samtools", Args: []string{"indexA.bam"}}
	d := runner.Command{Path: "samtools", Args: []string{"index", "A.bam"}, Stdout: "x"}
	expect.EQ(t, a.Fingerprint(), b.Fingerprint())
	expect.True(t, a.Fingerprint() != c.Fingerprint())
	expect.True(t, a.Fingerprint() != d.Fingerprint())
}

func readLines(t *testing.T, path string) []string {
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestAuditLog(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "logs", "germline_pipelines.log")

	l, err := runner.OpenAuditLog(path, "germline")
	require.NoError(t, err)
	require.NoError(t, l.Record(runner.Command{Path: "bwa", Args: []string{"mem", "ref.fa"}}))
	require.NoError(t, l.Note("NORMALLY END"))
	require.NoError(t, l.Close())

	// Reopening appends without a second banner.
	l, err = runner.OpenAuditLog(path, "germline")
	require.NoError(t, err)
	require.NoError(t, l.Note("again"))
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	require.Equal(t, 4, len(lines), "%v", lines)
	expect.EQ(t, lines[0], "####Starting the germline pipelines.####")
	expect.HasSubstr(t, lines[1], "    bwa mem ref.fa    #")
	expect.HasSubstr(t, lines[2], "    NORMALLY END")
	expect.HasSubstr(t, lines[3], "    again")

	var nilLog *runner.AuditLog
	assert.NoError(t, nilLog.Note("ignored"))
	assert.NoError(t, nilLog.Close())
}

func TestAuditLogConcurrentAppends(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "audit.log")
	l, err := runner.OpenAuditLog(path, "germline")
	require.NoError(t, err)

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, l.Note(fmt.Sprintf("worker-%03d %s", i, strings.Repeat("x", 512))))
		}(i)
	}
	wg.Wait()
	require.NoError(t, l.Close())

	lines := readLines(t, path)
	require.Equal(t, n+1, len(lines))
	for _, line := range lines[1:] {
		expect.True(t, strings.HasSuffix(line, strings.Repeat("x", 512)), line)
	}
}

func TestExec(t *testing.T) {
	sh := gosh.NewShell(t)
	defer sh.Cleanup()
	echo, err := lookpath.Look(sh.Vars, "echo")
	if err != nil {
		t.Skip("echo not found")
	}
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	logPath := filepath.Join(tempDir, "audit.log")
	l, err := runner.OpenAuditLog(logPath, "germline")
	require.NoError(t, err)
	defer l.Close() // nolint: errcheck

	r := &runner.Exec{Log: l}
	out := filepath.Join(tempDir, "A.merged.av")
	ctx := context.Background()
	require.NoError(t, r.Run(ctx, runner.Command{Stage: "ConvertToAnnotationFormat", Path: echo, Args: []string{"chr1", "100"}, Stdout: out}))
	data, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	expect.EQ(t, string(data), "chr1 100\n")

	// Arguments are not interpreted by a shell.
	out2 := filepath.Join(tempDir, "literal.txt")
	require.NoError(t, r.Run(ctx, runner.Command{Path: echo, Args: []string{"$HOME;", "`id`"}, Stdout: out2}))
	data, err = ioutil.ReadFile(out2)
	require.NoError(t, err)
	expect.EQ(t, string(data), "$HOME; `id`\n")

	err = r.Run(ctx, runner.Command{Stage: "Align", Path: filepath.Join(tempDir, "no-such-bwa")})
	require.Error(t, err)
	expect.True(t, errors.Is(errors.NotExist, err), err)

	// Failed commands are logged as well.
	lines := readLines(t, logPath)
	expect.EQ(t, len(lines), 4)
	expect.HasSubstr(t, lines[3], "no-such-bwa")
}

func TestExecFailure(t *testing.T) {
	sh := gosh.NewShell(t)
	defer sh.Cleanup()
	falseBin, err := lookpath.Look(sh.Vars, "false")
	if err != nil {
		t.Skip("false not found")
	}
	r := &runner.Exec{}
	err = r.Run(context.Background(), runner.Command{Stage: "Sort", Path: falseBin})
	require.Error(t, err)
	expect.HasSubstr(t, err.Error(), "Sort")
}

func TestFake(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	f := &runner.Fake{Silent: map[string]bool{"Sort": true}}

	out := filepath.Join(tempDir, "A.bam")
	require.NoError(t, f.Run(ctx, runner.Command{Stage: "ConvertFormat", Sample: "A", Path: "samtools", Outputs: []string{out}}))
	data, err := ioutil.ReadFile(out)
	require.NoError(t, err)
	expect.HasSubstr(t, string(data), "samtools")

	sorted := filepath.Join(tempDir, "A_sorted.bam")
	require.NoError(t, f.Run(ctx, runner.Command{Stage: "Sort", Sample: "A", Path: "samtools", Outputs: []string{sorted}}))
	_, err = ioutil.ReadFile(sorted)
	expect.True(t, err != nil)

	f.Fail = func(c runner.Command) error {
		if c.Sample == "B" {
			return fmt.Errorf("boom")
		}
		return nil
	}
	require.Error(t, f.Run(ctx, runner.Command{Stage: "Trim", Sample: "B", Path: "java"}))
	expect.EQ(t, f.Stages("A"), []string{"ConvertFormat", "Sort"})
	expect.EQ(t, f.Stages(""), []string{"ConvertFormat", "Sort", "Trim"})
	f.Reset()
	expect.EQ(t, len(f.Commands()), 0)
}
