package fastq_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/germline/encoding/fastq"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

const reads = `@r1 1:N:0:ACGT
ACGTACGT
+
EEEEEEEE
@r2 1:N:0:ACGT
TTTTGGGG
+
EEEEAAAA
@r3 1:N:0:ACGT
CCCCAAAA
+
AAAAEEEE
`

func writeGzip(t *testing.T, path, data string) {
	f, err := os.Create(path)
	require.NoError(t, err)
	w := gzip.NewWriter(f)
	_, err = w.Write([]byte(data))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
}

func TestProbe(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	r1 := filepath.Join(tempDir, "A_R1.fastq.gz")
	r2 := filepath.Join(tempDir, "A_R2.fastq.gz")
	writeGzip(t, r1, reads)
	writeGzip(t, r2, strings.Replace(reads, " 1:N", " 2:N", -1))

	n, err := fastq.Probe(ctx, r1, r2, 0)
	assert.NoError(t, err)
	expect.EQ(t, n, 3)

	n, err = fastq.Probe(ctx, r1, "", 2)
	assert.NoError(t, err)
	expect.EQ(t, n, 2)

	plain := filepath.Join(tempDir, "B.fastq")
	require.NoError(t, ioutil.WriteFile(plain, []byte(reads), 0644))
	n, err = fastq.Probe(ctx, plain, "", 0)
	assert.NoError(t, err)
	expect.EQ(t, n, 3)
}

func TestProbeErrors(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()

	empty := filepath.Join(tempDir, "empty.fastq.gz")
	writeGzip(t, empty, "")
	_, err := fastq.Probe(ctx, empty, "", 0)
	require.Error(t, err)
	expect.True(t, errors.Is(errors.Invalid, err))

	bad := filepath.Join(tempDir, "bad.fastq")
	require.NoError(t, ioutil.WriteFile(bad, []byte("@r1\nACGT\n+\nEE\n"), 0644))
	_, err = fastq.Probe(ctx, bad, "", 0)
	require.Error(t, err)
	expect.True(t, errors.Is(errors.Invalid, err))

	// R2 ends early.
	r1 := filepath.Join(tempDir, "C_R1.fastq.gz")
	r2 := filepath.Join(tempDir, "C_R2.fastq.gz")
	writeGzip(t, r1, reads)
	writeGzip(t, r2, strings.Join(strings.Split(reads, "\n")[:4], "\n")+"\n")
	_, err = fastq.Probe(ctx, r1, r2, 0)
	require.Error(t, err)
	expect.HasSubstr(t, err.Error(), "discordant")

	notGzip := filepath.Join(tempDir, "D.fastq.gz")
	require.NoError(t, ioutil.WriteFile(notGzip, []byte(reads), 0644))
	_, err = fastq.Probe(ctx, notGzip, "", 0)
	require.Error(t, err)
	expect.True(t, errors.Is(errors.Invalid, err))

	_, err = fastq.Probe(ctx, filepath.Join(tempDir, "missing.fastq"), "", 0)
	require.Error(t, err)
}
