package config

import (
	"context"
	"os"

	"github.com/grailbio/base/file"
	"github.com/grailbio/germline/artifact"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/pkg/errors"
	"github.com/zclconf/go-cty/cty"
	"v.io/x/lib/envvar"
)

// hclFile is the schema of a config file. Attributes left out of the file
// keep the values they were initialized with; blocks are decoded into zero
// values and merged over the defaults field by field.
type hclFile struct {
	BaseDir            string   `hcl:"base_dir"`
	InputDir           string   `hcl:"input_dir,optional"`
	Project            string   `hcl:"project,optional"`
	Concurrency        int      `hcl:"concurrency,optional"`
	Threads            int      `hcl:"threads,optional"`
	SortMemory         string   `hcl:"sort_memory,optional"`
	PairedEnd          bool     `hcl:"paired_end,optional"`
	Amplicon           bool     `hcl:"amplicon,optional"`
	Retire             string   `hcl:"retire,optional"`
	IORetries          int      `hcl:"io_retries,optional"`
	Reference          string   `hcl:"reference"`
	KnownSites         []string `hcl:"known_sites,optional"`
	DBSNP              string   `hcl:"dbsnp,optional"`
	Intervals          string   `hcl:"intervals,optional"`
	NormalSampleMarker string   `hcl:"normal_sample_marker,optional"`
	AuditLog           string   `hcl:"audit_log,optional"`
	BranchParallelism  bool     `hcl:"branch_parallelism,optional"`
	ProbeReads         int      `hcl:"probe_reads,optional"`

	Fastq      *hclFastq      `hcl:"fastq,block"`
	Tools      *hclTools      `hcl:"tools,block"`
	Trim       *hclTrim       `hcl:"trim,block"`
	Filters    *hclFilters    `hcl:"filters,block"`
	Annotation *hclAnnotation `hcl:"annotation,block"`
	Stages     []*hclStage    `hcl:"stage,block"`
}

type hclFastq struct {
	Suffix     string `hcl:"suffix,optional"`
	R1         string `hcl:"r1_indicator,optional"`
	R2         string `hcl:"r2_indicator,optional"`
	SelfAdjust bool   `hcl:"self_adjust,optional"`
	Exclude    string `hcl:"exclude,optional"`
}

type hclTools struct {
	Java        string `hcl:"java,optional"`
	Trimmomatic string `hcl:"trimmomatic,optional"`
	BWA         string `hcl:"bwa,optional"`
	Samtools    string `hcl:"samtools,optional"`
	GATK        string `hcl:"gatk,optional"`
	Annovar     string `hcl:"annovar,optional"`
}

type hclTrim struct {
	AdapterDir    string `hcl:"adapter_dir,optional"`
	Leading       int    `hcl:"leading,optional"`
	Trailing      int    `hcl:"trailing,optional"`
	SlidingWindow string `hcl:"sliding_window,optional"`
	MinLenPaired  int    `hcl:"min_len_paired,optional"`
	MinLenSingle  int    `hcl:"min_len_single,optional"`
}

type hclFilters struct {
	SNP       string `hcl:"snp,optional"`
	SNPName   string `hcl:"snp_name,optional"`
	Indel     string `hcl:"indel,optional"`
	IndelName string `hcl:"indel_name,optional"`
}

type hclAnnotation struct {
	BuildVer  string `hcl:"buildver,optional"`
	HumanDB   string `hcl:"humandb,optional"`
	Protocol  string `hcl:"protocol,optional"`
	Operation string `hcl:"operation,optional"`
	Argument  string `hcl:"argument,optional"`
	Threads   int    `hcl:"threads,optional"`
}

type hclStage struct {
	Name        string   `hcl:"name,label"`
	JavaOptions string   `hcl:"java_options,optional"`
	ExtraArgs   []string `hcl:"extra_args,optional"`
}

func str(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func num(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

// Parse decodes a config file. env supplies the env object visible to
// expressions in the file. Fields the file does not mention keep their
// Default values.
func Parse(src []byte, filename string, env map[string]string) (Config, error) {
	c := Default()
	f, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return Config{}, errors.Wrapf(diags, "parse %s", filename)
	}
	envVals := make(map[string]cty.Value, len(env))
	for k, v := range env {
		envVals[k] = cty.StringVal(v)
	}
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(envVals)},
	}
	raw := hclFile{
		Concurrency:       c.Concurrency,
		Threads:           c.Threads,
		SortMemory:        c.SortMemory,
		PairedEnd:         c.PairedEnd,
		Retire:            c.Retire.String(),
		IORetries:         c.IORetries,
		BranchParallelism: c.BranchParallelism,
		ProbeReads:        c.ProbeReads,
	}
	if diags := gohcl.DecodeBody(f.Body, evalCtx, &raw); diags.HasErrors() {
		return Config{}, errors.Wrapf(diags, "decode %s", filename)
	}
	retire, err := artifact.ParseRetirePolicy(raw.Retire)
	if err != nil {
		return Config{}, errors.Wrapf(err, "%s", filename)
	}

	c.BaseDir = raw.BaseDir
	c.Project = raw.Project
	c.Concurrency = raw.Concurrency
	c.Threads = raw.Threads
	c.SortMemory = raw.SortMemory
	c.PairedEnd = raw.PairedEnd
	c.Amplicon = raw.Amplicon
	c.Retire = retire
	c.IORetries = raw.IORetries
	c.Reference = raw.Reference
	c.KnownSites = raw.KnownSites
	c.DBSNP = raw.DBSNP
	c.Intervals = raw.Intervals
	c.NormalSampleMarker = raw.NormalSampleMarker
	c.AuditLog = raw.AuditLog
	c.BranchParallelism = raw.BranchParallelism
	c.ProbeReads = raw.ProbeReads
	c.Fastq.Dir = raw.InputDir

	if b := raw.Fastq; b != nil {
		str(&c.Fastq.Suffix, b.Suffix)
		str(&c.Fastq.R1, b.R1)
		str(&c.Fastq.R2, b.R2)
		str(&c.Fastq.Exclude, b.Exclude)
		c.Fastq.SelfAdjust = b.SelfAdjust
	}
	if b := raw.Tools; b != nil {
		str(&c.Tools.Java, b.Java)
		str(&c.Tools.Trimmomatic, b.Trimmomatic)
		str(&c.Tools.BWA, b.BWA)
		str(&c.Tools.Samtools, b.Samtools)
		str(&c.Tools.GATK, b.GATK)
		str(&c.Tools.Annovar, b.Annovar)
	}
	if b := raw.Trim; b != nil {
		str(&c.Trim.AdapterDir, b.AdapterDir)
		num(&c.Trim.Leading, b.Leading)
		num(&c.Trim.Trailing, b.Trailing)
		str(&c.Trim.SlidingWindow, b.SlidingWindow)
		num(&c.Trim.MinLenPaired, b.MinLenPaired)
		num(&c.Trim.MinLenSingle, b.MinLenSingle)
	}
	if b := raw.Filters; b != nil {
		str(&c.Filters.SNP, b.SNP)
		str(&c.Filters.SNPName, b.SNPName)
		str(&c.Filters.Indel, b.Indel)
		str(&c.Filters.IndelName, b.IndelName)
	}
	if b := raw.Annotation; b != nil {
		str(&c.Annotation.BuildVer, b.BuildVer)
		str(&c.Annotation.HumanDB, b.HumanDB)
		str(&c.Annotation.Protocol, b.Protocol)
		str(&c.Annotation.Operation, b.Operation)
		str(&c.Annotation.Argument, b.Argument)
		num(&c.Annotation.Threads, b.Threads)
	}
	stages := make(map[string]StageOpts, len(c.Stages))
	for name, opts := range c.Stages {
		stages[name] = opts
	}
	seen := make(map[string]bool)
	for _, b := range raw.Stages {
		if seen[b.Name] {
			return Config{}, errors.Errorf("%s: stage %q is configured more than once", filename, b.Name)
		}
		seen[b.Name] = true
		opts := stages[b.Name]
		str(&opts.JavaOptions, b.JavaOptions)
		if b.ExtraArgs != nil {
			opts.ExtraArgs = b.ExtraArgs
		}
		stages[b.Name] = opts
	}
	c.Stages = stages
	return c, nil
}

// Load reads the config file at path. The file sees the environment of the
// current process.
func Load(ctx context.Context, path string) (Config, error) {
	src, err := file.ReadFile(ctx, path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(src, path, envvar.SliceToMap(os.Environ()))
}
