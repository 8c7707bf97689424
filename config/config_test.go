package config_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/germline/artifact"
	"github.com/grailbio/germline/config"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"
)

const minimal = `
base_dir  = "/data/out"
input_dir = "/data/raw"
reference = "${env.REF_DIR}/hg19.fa"

tools {
  trimmomatic = "/opt/trimmomatic/trimmomatic.jar"
  annovar     = "/opt/annovar"
}

annotation {
  humandb = "/opt/annovar/humandb"
}
`

func TestParseDefaults(t *testing.T) {
	c, err := config.Parse([]byte(minimal), "minimal.hcl", map[string]string{"REF_DIR": "/ref"})
	require.NoError(t, err)
	assert.NoError(t, c.Validate())

	def := config.Default()
	expect.EQ(t, c.BaseDir, "/data/out")
	expect.EQ(t, c.Fastq.Dir, "/data/raw")
	expect.EQ(t, c.Reference, "/ref/hg19.fa")
	expect.EQ(t, c.Concurrency, def.Concurrency)
	expect.EQ(t, c.Threads, 20)
	expect.True(t, c.PairedEnd)
	expect.False(t, c.Amplicon)
	expect.True(t, c.BranchParallelism)
	expect.EQ(t, c.Retire, artifact.Truncate)
	expect.EQ(t, c.Fastq.Suffix, ".fastq.gz")
	expect.EQ(t, c.Fastq.R1, "_R1")
	expect.EQ(t, c.Tools.BWA, "bwa")
	expect.EQ(t, c.Tools.Trimmomatic, "/opt/trimmomatic/trimmomatic.jar")
	expect.EQ(t, c.AdapterDir(), "/opt/trimmomatic/adapters")
	expect.EQ(t, config.AdapterFile(c.PairedEnd), "TruSeq3-PE.fa")
	expect.EQ(t, c.Annotation.BuildVer, "hg19")
	expect.EQ(t, c.Annotation.Threads, 10)
	expect.EQ(t, c.Filters, def.Filters)
	expect.EQ(t, c.Stage("Deduplicate").JavaOptions, "-Xmx30g")
	expect.EQ(t, c.Stage("Align"), config.StageOpts{})
	expect.EQ(t, c.AuditLogPath(), "/data/out/germline_pipelines.log")
}

func TestParseOverrides(t *testing.T) {
	src := minimal + `
project     = "XK"
concurrency = 4
threads     = 8
paired_end  = false
amplicon    = true
retire      = "delete"
known_sites = ["a.vcf", "b.vcf"]
dbsnp       = "dbsnp.vcf"
intervals   = "targets.bed"
normal_sample_marker = "T"
audit_log   = "/logs/run.log"
branch_parallelism = false

fastq {
  suffix       = ".fq.gz"
  self_adjust  = true
  exclude      = "Undetermined"
}

trim {
  min_len_single = 30
}

filters {
  snp = "QD < 3.0"
}

stage "CallVariants" {
  java_options = "-Xmx20g"
  extra_args   = ["--min-base-quality-score", "20"]
}

stage "Deduplicate" {
  extra_args = ["--VALIDATION_STRINGENCY", "LENIENT"]
}
`
	c, err := config.Parse([]byte(src), "full.hcl", map[string]string{"REF_DIR": "/ref"})
	require.NoError(t, err)
	expect.EQ(t, c.Project, "XK")
	expect.EQ(t, c.Concurrency, 4)
	expect.EQ(t, c.Threads, 8)
	expect.False(t, c.PairedEnd)
	expect.True(t, c.Amplicon)
	expect.EQ(t, c.Retire, artifact.Delete)
	expect.EQ(t, c.KnownSites, []string{"a.vcf", "b.vcf"})
	expect.EQ(t, c.Intervals, "targets.bed")
	expect.EQ(t, c.NormalSampleMarker, "T")
	expect.EQ(t, c.AuditLogPath(), "/logs/run.log")
	expect.False(t, c.BranchParallelism)
	expect.EQ(t, c.Fastq.Suffix, ".fq.gz")
	expect.EQ(t, c.Fastq.R1, "_R1")
	expect.True(t, c.Fastq.SelfAdjust)
	expect.EQ(t, c.Fastq.Exclude, "Undetermined")
	expect.EQ(t, c.Trim.MinLenSingle, 30)
	expect.EQ(t, c.Trim.MinLenPaired, 50)
	expect.EQ(t, config.AdapterFile(c.PairedEnd), "TruSeq3-SE.fa")
	expect.EQ(t, c.Filters.SNP, "QD < 3.0")
	expect.EQ(t, c.Filters.SNPName, "my_snp_filter")
	expect.EQ(t, c.Stage("CallVariants"), config.StageOpts{
		JavaOptions: "-Xmx20g",
		ExtraArgs:   []string{"--min-base-quality-score", "20"},
	})
	dedup := c.Stage("Deduplicate")
	expect.EQ(t, dedup.JavaOptions, "-Xmx30g")
	expect.EQ(t, dedup.ExtraArgs, []string{"--VALIDATION_STRINGENCY", "LENIENT"})

	// Defaults are not shared between configs.
	expect.EQ(t, config.Default().Stage("Deduplicate").ExtraArgs, []string(nil))
}

func TestParseErrors(t *testing.T) {
	for _, test := range []struct {
		src, want string
	}{
		{`base_dir = `, "parse bad.hcl"},
		{`reference = "x"`, "base_dir"},
		{minimal + `colour = "blue"`, "colour"},
		{minimal + `retire = "shred"`, "shred"},
		{minimal + `dbsnp = "${env.MISSING}"`, "decode bad.hcl"},
		{minimal + "stage \"Sort\" {}\nstage \"Sort\" {}\n", `stage "Sort" is configured more than once`},
	} {
		_, err := config.Parse([]byte(test.src), "bad.hcl", map[string]string{"REF_DIR": "/ref"})
		require.Error(t, err, test.src)
		expect.HasSubstr(t, err.Error(), test.want, test.src)
	}
}

func TestValidate(t *testing.T) {
	c := config.Default()
	err := c.Validate()
	require.Error(t, err)
	expect.True(t, errors.Is(errors.Invalid, err))
	for _, want := range []string{"base_dir is not set", "reference is not set", "input_dir is not set", "tools.trimmomatic is not set"} {
		expect.HasSubstr(t, err.Error(), want)
	}

	c, err = config.Parse([]byte(minimal+"concurrency = 0\n"), "c.hcl", map[string]string{"REF_DIR": "/ref"})
	require.NoError(t, err)
	expect.HasSubstr(t, c.Validate().Error(), "concurrency must be at least 1")
}

func TestLoad(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tempDir, "germline.hcl")
	require.NoError(t, ioutil.WriteFile(path, []byte(minimal), 0644))
	require.NoError(t, os.Setenv("REF_DIR", "/from/env"))
	defer os.Unsetenv("REF_DIR") // nolint: errcheck

	c, err := config.Load(context.Background(), path)
	require.NoError(t, err)
	expect.EQ(t, c.Reference, "/from/env/hg19.fa")

	_, err = config.Load(context.Background(), filepath.Join(tempDir, "missing.hcl"))
	require.Error(t, err)
}
