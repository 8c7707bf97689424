package fasta_test

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/germline/encoding/fasta"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const (
	fastaData  = ">seq1\n" + "ACGTA\nCGTAC\nGT\n" + ">seq2 A viral sequence\n" + "ACGT\n" + "ACGT\n"
	fastaIndex = "seq1\t12\t6\t5\t6\n" + "seq2\t8\t44\t4\t5\n"
)

func TestReadIndex(t *testing.T) {
	idx, err := fasta.ReadIndex(strings.NewReader(fastaIndex))
	assert.NoError(t, err)
	expect.EQ(t, idx.SeqNames(), []string{"seq1", "seq2"})
	l, err := idx.Len("seq2")
	assert.NoError(t, err)
	expect.EQ(t, l, uint64(8))
	_, err = idx.Len("seq3")
	expect.Regexp(t, err, "sequence not found")
	ent, ok := idx.Entry("seq1")
	expect.True(t, ok)
	expect.EQ(t, ent, fasta.IndexEntry{Name: "seq1", Length: 12, Offset: 6, LineBases: 5, LineWidth: 6})
	expect.EQ(t, idx.Lengths(), map[string]uint64{"seq1": 12, "seq2": 8})

	// Sequence names are ordered by file offset.
	idx, err = fasta.ReadIndex(strings.NewReader("chr2\t199000000\t250000000\t60\t61\nchr1\t250000000\t6\t60\t61\n"))
	assert.NoError(t, err)
	expect.EQ(t, idx.SeqNames(), []string{"chr1", "chr2"})

	_, err = fasta.ReadIndex(strings.NewReader("seq1\t12\n"))
	expect.Regexp(t, err, "line 1: invalid index line")
	_, err = fasta.ReadIndex(strings.NewReader(fastaIndex + "seq1\t1\t100\t1\t2\n"))
	expect.Regexp(t, err, "duplicate sequence seq1")
}

func TestGenerateIndex(t *testing.T) {
	generateIndex := func(fa string) (faidx string) {
		idx := bytes.Buffer{}
		assert.NoError(t, fasta.GenerateIndex(&idx, strings.NewReader(fa)))
		return idx.String()
	}

	expect.EQ(t, generateIndex(fastaData), fastaIndex)

	fa := `>E0
GGTGAAATC
CCTGAAATC
AAAATTGCT
>E1
GTCCCTCCCCAGACATGGCCCTGGGAGGC
>E2
CCGCGCCCGCGCCCCCGCCGCC
>E3
GTCAAGGTTGCACAG
>E4
ATGAATCATGTGGTAAAA
`
	fai := generateIndex(fa)
	assert.EQ(t, fai, `E0	27	4	9	10
E1	29	38	29	30
E2	22	72	22	23
E3	15	99	15	16
E4	18	119	18	19
`)
	idx, err := fasta.ReadIndex(strings.NewReader(fai))
	assert.NoError(t, err)
	l, err := idx.Len("E3")
	assert.NoError(t, err)
	assert.EQ(t, l, uint64(15))

	// MO-DOS newline encodinng.
	assert.EQ(t, generateIndex(">E0\r\nGGGG\r\n>E1\r\nAAAAA\r\n"),
		`E0	4	5	4	6
E1	5	16	5	7
`)

	// No newline at the end.
	assert.EQ(t, generateIndex(">E0\nGGGG\n>E1\nCCCCC\nAAAAA"),
		`E0	4	4	4	5
E1	10	13	5	6
`)
	// Note: samtool faidx emits "5 13 5 6" for E1, but "5 13 5 5" is correct
	// by the .fai format description.
	assert.EQ(t, generateIndex(">E0\nGGGG\n>E1\nAAAAA"),
		`E0	4	4	4	5
E1	5	13	5	5
`)

	idx2 := bytes.Buffer{}
	err = fasta.GenerateIndex(&idx2, strings.NewReader(""))
	assert.Regexp(t, err, "empty FASTA")
	expect.True(t, errors.Is(errors.Invalid, err))

	for _, bad := range []string{
		">E0\nGGGG\nGG\nGGGG\n",
		">E0\nGGGG\nGGGGG\n",
	} {
		err := fasta.GenerateIndex(&idx2, strings.NewReader(bad))
		expect.Regexp(t, err, "different line length in sequence E0")
		expect.True(t, errors.Is(errors.Invalid, err))
	}
}

func TestEnsureIndex(t *testing.T) {
	ctx := vcontext.Background()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	ref := filepath.Join(tempDir, "ref.fa")
	assert.NoError(t, ioutil.WriteFile(ref, []byte(fastaData), 0644))
	idxPath, err := fasta.EnsureIndex(ctx, ref)
	assert.NoError(t, err)
	expect.EQ(t, idxPath, ref+".fai")
	data, err := ioutil.ReadFile(idxPath)
	assert.NoError(t, err)
	expect.EQ(t, string(data), fastaIndex)

	// An existing index is left alone.
	assert.NoError(t, ioutil.WriteFile(idxPath, []byte("chrX\t1\t6\t1\t2\n"), 0644))
	idx, err := fasta.LoadIndex(ctx, ref)
	assert.NoError(t, err)
	expect.EQ(t, idx.SeqNames(), []string{"chrX"})

	bad := filepath.Join(tempDir, "bad.fa")
	assert.NoError(t, ioutil.WriteFile(bad, []byte(">E0\nGGGG\nGG\nGGGG\n"), 0644))
	_, err = fasta.EnsureIndex(ctx, bad)
	expect.True(t, errors.Is(errors.Invalid, err))
	_, err = ioutil.ReadFile(bad + ".fai")
	expect.True(t, err != nil)

	_, err = fasta.EnsureIndex(ctx, filepath.Join(tempDir, "ref.fa.gz"))
	expect.True(t, errors.Is(errors.Invalid, err))

	_, err = fasta.EnsureIndex(ctx, filepath.Join(tempDir, "missing.fa"))
	expect.True(t, err != nil)
}
