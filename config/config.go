package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/germline/artifact"
	"github.com/grailbio/germline/sample"
)

// Tools locates the external programs.
type Tools struct {
	Java        string
	Trimmomatic string // path to trimmomatic.jar
	BWA         string
	Samtools    string
	GATK        string
	// Annovar is the directory holding convert2annovar.pl and
	// table_annovar.pl.
	Annovar string
}

// Trim holds the trimmomatic steps.
type Trim struct {
	// AdapterDir holds TruSeq3-PE.fa and TruSeq3-SE.fa. Defaults to the
	// adapters directory next to the trimmomatic jar.
	AdapterDir    string
	Leading       int
	Trailing      int
	SlidingWindow string
	// MinLenPaired and MinLenSingle are the MINLEN of paired-end and
	// single-end runs.
	MinLenPaired int
	MinLenSingle int
}

// Filters are the hard filters applied to raw variant calls.
type Filters struct {
	SNP       string
	SNPName   string
	Indel     string
	IndelName string
}

// Annotation configures table_annovar.
type Annotation struct {
	BuildVer  string
	HumanDB   string
	Protocol  string
	Operation string
	// Argument is passed to --argument verbatim.
	Argument string
	Threads  int
}

// StageOpts are per-stage overrides.
type StageOpts struct {
	// JavaOptions is passed to GATK stages as --java-options.
	JavaOptions string
	// ExtraArgs are appended to the first command of the stage: the sort of
	// Sort and the ApplyBQSR of ApplyRecalibration, not their index
	// commands.
	ExtraArgs []string
}

// Config is the complete, immutable description of a pipeline run.
type Config struct {
	// BaseDir is the root of the output tree.
	BaseDir string
	// Project, if set, overrides the project derived from sample names.
	Project string
	// Concurrency bounds the number of samples processed at once.
	Concurrency int
	// Threads is the thread count handed to multithreaded tools.
	Threads int
	// SortMemory is samtools sort's per-thread memory (-m).
	SortMemory string
	PairedEnd  bool
	// Amplicon disables duplicate marking.
	Amplicon bool
	Retire   artifact.RetirePolicy
	// IORetries bounds retries of transient filesystem failures.
	IORetries int

	Reference  string
	KnownSites []string
	DBSNP      string
	// Intervals, if set, is a BED file restricting variant calling.
	Intervals string
	// NormalSampleMarker, if set, restricts a batch to samples with this
	// role (see sample.Namer.RoleOf).
	NormalSampleMarker string
	// AuditLog is the command log. Defaults to
	// {BaseDir}/germline_pipelines.log.
	AuditLog string
	// BranchParallelism runs the SNP and indel branches of a sample
	// concurrently.
	BranchParallelism bool
	// ProbeReads is the number of raw reads checked before trimming. Negative
	// disables the check.
	ProbeReads int

	Fastq      sample.FastqOpts
	Tools      Tools
	Trim       Trim
	Filters    Filters
	Annotation Annotation
	// Stages maps stage names to overrides.
	Stages map[string]StageOpts
}

// Default returns the built-in settings. They follow the GATK best-practice
// germline workflow on hg19.
func Default() Config {
	return Config{
		Concurrency:       1,
		Threads:           20,
		SortMemory:        "2G",
		PairedEnd:         true,
		Retire:            artifact.Truncate,
		IORetries:         3,
		BranchParallelism: true,
		ProbeReads:        1000,
		Fastq:             sample.DefaultFastqOpts,
		Tools: Tools{
			Java:     "java",
			BWA:      "bwa",
			Samtools: "samtools",
			GATK:     "gatk",
		},
		Trim: Trim{
			Leading:       3,
			Trailing:      3,
			SlidingWindow: "4:15",
			MinLenPaired:  50,
			MinLenSingle:  36,
		},
		Filters: Filters{
			SNP:       "QD < 2.0 || FS > 60.0 || MQ < 40.0 || MQRankSum < -12.5 || ReadPosRankSum < -8.0",
			SNPName:   "my_snp_filter",
			Indel:     "QD < 2.0 || FS > 200.0 || ReadPosRankSum < -20.0",
			IndelName: "my_indel_filter",
		},
		Annotation: Annotation{
			BuildVer:  "hg19",
			Protocol:  "refGene,phastConsElements100way,genomicSuperDups,gnomad_genome,avsnp150,clinvar_20170905,cosmic70,dbnsfp33a,1000g2015aug_all",
			Operation: "g,r,r,f,f,f,f,f,f",
			Argument:  "-exonicsplicing -splicing 25,,,,,,,,",
			Threads:   10,
		},
		Stages: map[string]StageOpts{
			"Deduplicate":  {JavaOptions: "-Xmx30g"},
			"SelectSNPs":   {JavaOptions: "-Xmx4g"},
			"SelectIndels": {JavaOptions: "-Xmx4g"},
		},
	}
}

// Stage returns the overrides of the named stage.
func (c Config) Stage(name string) StageOpts {
	return c.Stages[name]
}

// AuditLogPath returns the path of the command log.
func (c Config) AuditLogPath() string {
	if c.AuditLog != "" {
		return c.AuditLog
	}
	return filepath.Join(c.BaseDir, "germline_pipelines.log")
}

// AdapterDir returns the directory of the trimming adapters.
func (c Config) AdapterDir() string {
	if c.Trim.AdapterDir != "" {
		return c.Trim.AdapterDir
	}
	return filepath.Join(filepath.Dir(c.Tools.Trimmomatic), "adapters")
}

// AdapterFile returns the name of the adapter file for paired-end or
// single-end reads.
func AdapterFile(paired bool) string {
	if paired {
		return "TruSeq3-PE.fa"
	}
	return "TruSeq3-SE.fa"
}

// Validate checks the settings for consistency without touching the
// filesystem. Problems are reported with kind errors.Invalid.
func (c Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}
	check(c.BaseDir != "", "base_dir is not set")
	check(c.Reference != "", "reference is not set")
	check(c.Fastq.Dir != "", "input_dir is not set")
	check(c.Concurrency >= 1, "concurrency must be at least 1, got %d", c.Concurrency)
	check(c.Threads >= 1, "threads must be at least 1, got %d", c.Threads)
	check(c.IORetries >= 0, "io_retries must not be negative, got %d", c.IORetries)
	check(c.Fastq.Suffix != "", "fastq.suffix is not set")
	check(c.Fastq.R1 != "", "fastq.r1_indicator is not set")
	check(!c.PairedEnd || c.Fastq.R2 != "", "fastq.r2_indicator is not set")
	check(c.Fastq.R1 != c.Fastq.R2, "fastq.r1_indicator and fastq.r2_indicator are both %q", c.Fastq.R1)
	check(c.Tools.Trimmomatic != "", "tools.trimmomatic is not set")
	check(c.Tools.Annovar != "", "tools.annovar is not set")
	check(c.Annotation.HumanDB != "", "annotation.humandb is not set")
	check(c.Annotation.BuildVer != "", "annotation.buildver is not set")
	check(c.Annotation.Threads >= 1, "annotation.threads must be at least 1, got %d", c.Annotation.Threads)
	check(c.Filters.SNP != "" && c.Filters.SNPName != "", "filters.snp and filters.snp_name must be set")
	check(c.Filters.Indel != "" && c.Filters.IndelName != "", "filters.indel and filters.indel_name must be set")
	if len(problems) == 0 {
		return nil
	}
	return errors.E(errors.Invalid, "invalid configuration: "+strings.Join(problems, "; "))
}

