package sample_test

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/germline/sample"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

func TestNamer(t *testing.T) {
	tests := []struct {
		id, project, role string
	}{
		{"XK-8T_S21", "XK", "T"},
		{"XK-2W_S17", "XK", "W"},
		{"XK-12T", "XK", "T"},
		{"ABC-DE-3N_S1", "ABC", "N"},
		{"solo", "solo", "solo"},
	}
	var n sample.Namer
	for _, test := range tests {
		expect.EQ(t, n.ProjectOf(test.id), test.project, test.id)
		expect.EQ(t, n.RoleOf(test.id), test.role, test.id)
	}
	n.Project = "fixed"
	expect.EQ(t, n.ProjectOf("XK-8T_S21"), "fixed")
}

func touch(t *testing.T, dir string, names ...string) {
	for _, name := range names {
		require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte("@r\nA\n+\nE\n"), 0644))
	}
}

func TestFindReads(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	touch(t, tempDir, "XK-8T_S21_R1.fastq.gz", "XK-8T_S21_R2.fastq.gz", "XK-2W_S17_R1.fastq.gz")

	opts := sample.DefaultFastqOpts
	opts.Dir = tempDir
	r, err := sample.FindReads(ctx, opts, "XK-8T_S21", true)
	assert.NoError(t, err)
	expect.EQ(t, r, sample.Reads{
		R1: filepath.Join(tempDir, "XK-8T_S21_R1.fastq.gz"),
		R2: filepath.Join(tempDir, "XK-8T_S21_R2.fastq.gz"),
	})
	expect.True(t, r.Paired())

	r, err = sample.FindReads(ctx, opts, "XK-2W_S17", false)
	assert.NoError(t, err)
	expect.EQ(t, r.R1, filepath.Join(tempDir, "XK-2W_S17_R1.fastq.gz"))
	expect.False(t, r.Paired())

	// R2 is missing.
	_, err = sample.FindReads(ctx, opts, "XK-2W_S17", true)
	require.Error(t, err)
	expect.True(t, errors.Is(errors.NotExist, err))

	// A typo gets a suggestion.
	_, err = sample.FindReads(ctx, opts, "XK-8T_S12", true)
	require.Error(t, err)
	expect.True(t, errors.Is(errors.NotExist, err))
	expect.HasSubstr(t, err.Error(), "did you mean XK-8T_S21?")
}

func TestFindReadsSelfAdjust(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	touch(t, tempDir,
		"XK-8T_S21_L001_R1_001.fastq.gz",
		"XK-8T_S21_L001_R2_001.fastq.gz",
		"Undetermined_XK-8T_S21_R1.fastq.gz",
		"XK-8T_S21.md5")

	opts := sample.DefaultFastqOpts
	opts.Dir = tempDir
	opts.SelfAdjust = true
	opts.Exclude = "Undetermined"
	r, err := sample.FindReads(ctx, opts, "XK-8T_S21", true)
	assert.NoError(t, err)
	expect.EQ(t, r.R1, filepath.Join(tempDir, "XK-8T_S21_L001_R1_001.fastq.gz"))
	expect.EQ(t, r.R2, filepath.Join(tempDir, "XK-8T_S21_L001_R2_001.fastq.gz"))

	_, err = sample.FindReads(ctx, opts, "XK-9T_S30", true)
	require.Error(t, err)
	expect.True(t, errors.Is(errors.NotExist, err))
}

func TestSuggest(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	touch(t, tempDir, "XK-8T_S21_R1.fastq.gz", "XK-8T_S21_R2.fastq.gz", "notes.txt")
	opts := sample.DefaultFastqOpts
	opts.Dir = tempDir
	expect.EQ(t, sample.Suggest(opts, "XK-8T_S2"), "XK-8T_S21")
	expect.EQ(t, sample.Suggest(opts, "ZZZZZZZZZZZZ"), "")
	opts.Dir = filepath.Join(tempDir, "missing")
	expect.EQ(t, sample.Suggest(opts, "XK-8T_S21"), "")
}
