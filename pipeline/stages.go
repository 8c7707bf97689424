package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/germline/config"
	"github.com/grailbio/germline/encoding/fastq"
	"github.com/grailbio/germline/runner"
	"github.com/grailbio/germline/sample"
	"github.com/grailbio/hts/sam"
)

// stage describes one Kind.
type stage struct {
	deps []Kind
	// suffix is appended to the sample name to form the output file name.
	suffix func(t *Task) string
	// retires lists the dependencies whose products are retired once this
	// stage's output has been verified.
	retires []Kind
	// build returns the commands that produce the stage's outputs in the
	// staging directory dir. It may also write to dir directly.
	build func(ctx context.Context, t *Task, dir string) ([]runner.Command, error)
}

// stages is indexed by Kind. It is filled in by init because the build
// functions refer back to it.
var stages [numKinds + 1]stage

func fixed(suffix string) func(*Task) string {
	return func(*Task) string { return suffix }
}

func init() {
	stages = [numKinds + 1]stage{
		Trim:                      {suffix: trimSuffix, build: buildTrim},
		Align:                     {deps: []Kind{Trim}, suffix: fixed(".sam"), build: buildAlign},
		ConvertFormat:             {deps: []Kind{Align}, suffix: fixed(".bam"), retires: []Kind{Align}, build: buildConvertFormat},
		Sort:                      {deps: []Kind{ConvertFormat}, suffix: fixed("_sorted.bam"), retires: []Kind{ConvertFormat}, build: buildSort},
		Deduplicate:               {deps: []Kind{Sort}, suffix: fixed(".dedup.bam"), build: buildDeduplicate},
		Recalibrate:               {deps: []Kind{Deduplicate}, suffix: fixed(".recal_data.table"), build: buildRecalibrate},
		ApplyRecalibration:        {deps: []Kind{Deduplicate, Recalibrate}, suffix: fixed(".recal_reads.bam"), build: buildApplyRecalibration},
		CallVariants:              {deps: []Kind{ApplyRecalibration}, suffix: fixed(".raw_variants.vcf"), build: buildCallVariants},
		SelectSNPs:                {deps: []Kind{CallVariants}, suffix: fixed(".raw_snps.vcf"), build: buildSelect("SNP")},
		FilterSNPs:                {deps: []Kind{SelectSNPs}, suffix: fixed(".filter_snps.vcf"), build: buildFilter(SelectSNPs)},
		SelectIndels:              {deps: []Kind{CallVariants}, suffix: fixed(".raw_indels.vcf"), build: buildSelect("INDEL")},
		FilterIndels:              {deps: []Kind{SelectIndels}, suffix: fixed(".filter_indels.vcf"), build: buildFilter(SelectIndels)},
		MergeVariants:             {deps: []Kind{FilterSNPs, FilterIndels}, suffix: fixed(".merged.vcf"), build: buildMergeVariants},
		ConvertToAnnotationFormat: {deps: []Kind{MergeVariants}, suffix: fixed(".merged.av"), build: buildConvertToAnnotationFormat},
		Annotate:                  {deps: []Kind{ConvertToAnnotationFormat}, suffix: annotateSuffix, build: buildAnnotate},
	}
}

func (t *Task) command(path string, args ...string) runner.Command {
	return runner.Command{
		Stage:  t.Kind.String(),
		Sample: t.Sample,
		Path:   path,
		Args:   args,
	}
}

func (t *Task) threads() string { return strconv.Itoa(t.r.p.cfg.Threads) }

// gatk returns a GATK command running tool. The stage's java options, if
// any, are passed to the launcher.
func (t *Task) gatk(tool string, args ...string) runner.Command {
	var argv []string
	if opts := t.r.p.cfg.Stage(t.Kind.String()).JavaOptions; opts != "" {
		argv = append(argv, "--java-options", opts)
	}
	argv = append(argv, tool)
	return t.command(t.r.p.cfg.Tools.GATK, append(argv, args...)...)
}

// Raw reads are trimmed into {sample}_R1.clean.fq.gz and
// {sample}_R2.clean.fq.gz. The R1 file is the primary output; single-end
// data has only {sample}.clean.fq.gz.
const (
	trimmedR1     = "_R1.clean.fq.gz"
	trimmedR2     = "_R2.clean.fq.gz"
	trimmedSingle = ".clean.fq.gz"
)

func trimSuffix(t *Task) string {
	if t.r.opts.PairedEnd {
		return trimmedR1
	}
	return trimmedSingle
}

// Mate returns the path of the trimmed R2 reads of a paired-end Trim task.
func (t *Task) Mate() string {
	return t.r.p.layout.Path(t.project, t.Sample, trimmedR2)
}

func buildTrim(ctx context.Context, t *Task, dir string) ([]runner.Command, error) {
	cfg := t.r.p.cfg
	fq := cfg.Fastq
	reads, err := sample.FindReads(ctx, fq, t.Sample, t.r.opts.PairedEnd)
	if err != nil {
		return nil, err
	}
	if cfg.ProbeReads >= 0 {
		n, err := fastq.Probe(ctx, reads.R1, reads.R2, cfg.ProbeReads)
		if err != nil {
			return nil, err
		}
		log.Debug.Printf("%s: %d raw read(s) look fine", t.Sample, n)
	}

	var argv []string
	argv = append(argv, strings.Fields(cfg.Stage(t.Kind.String()).JavaOptions)...)
	argv = append(argv, "-jar", cfg.Tools.Trimmomatic)
	trimlog := filepath.Join(dir, t.Sample+"_trimed.log")
	clip := fmt.Sprintf("ILLUMINACLIP:%s:2:30:10", filepath.Join(cfg.AdapterDir(), config.AdapterFile(reads.Paired())))
	steps := []string{
		clip,
		fmt.Sprintf("LEADING:%d", cfg.Trim.Leading),
		fmt.Sprintf("TRAILING:%d", cfg.Trim.Trailing),
		"SLIDINGWINDOW:" + cfg.Trim.SlidingWindow,
	}
	cmd := t.command(cfg.Tools.Java)
	if reads.Paired() {
		var (
			r1 = t.staged(dir, trimmedR1)
			r2 = t.staged(dir, trimmedR2)
		)
		argv = append(argv, "PE", "-threads", t.threads(), reads.R1, reads.R2, "-trimlog", trimlog,
			r1, t.staged(dir, "_R1.unpaired.fq.gz"), r2, t.staged(dir, "_R2.unpaired.fq.gz"))
		argv = append(argv, steps...)
		argv = append(argv, fmt.Sprintf("MINLEN:%d", cfg.Trim.MinLenPaired))
		cmd.Outputs = []string{r1, r2}
	} else {
		out := t.staged(dir, trimmedSingle)
		argv = append(argv, "SE", "-threads", t.threads(), reads.R1, "-trimlog", trimlog, out)
		argv = append(argv, steps...)
		argv = append(argv, fmt.Sprintf("MINLEN:%d", cfg.Trim.MinLenSingle))
		cmd.Outputs = []string{out}
	}
	cmd.Args = argv
	return []runner.Command{cmd}, nil
}

// readGroup returns the @RG header line bwa adds to every alignment, with
// tabs escaped the way bwa's -R option expects them.
func readGroup(sampleName string) (string, error) {
	rg, err := sam.NewReadGroup(sampleName, "", "", "lib1", "", "illumina", "L001", sampleName, "", "", time.Time{}, 0)
	if err != nil {
		return "", errors.E(errors.Invalid, err, "read group for", sampleName)
	}
	return strings.Replace(rg.String(), "\t", `\t`, -1), nil
}

func buildAlign(ctx context.Context, t *Task, dir string) ([]runner.Command, error) {
	cfg := t.r.p.cfg
	rg, err := readGroup(t.Sample)
	if err != nil {
		return nil, err
	}
	cmd := t.command(cfg.Tools.BWA, "mem", "-M", "-t", t.threads(), "-k", "19", "-R", rg, cfg.Reference,
		t.input(Trim))
	if t.r.opts.PairedEnd {
		cmd.Args = append(cmd.Args, t.r.Task(Trim, t.Sample).Mate())
	}
	cmd.Stdout = t.staged(dir, ".sam")
	return []runner.Command{cmd}, nil
}

func buildConvertFormat(ctx context.Context, t *Task, dir string) ([]runner.Command, error) {
	cfg := t.r.p.cfg
	out := t.staged(dir, ".bam")
	cmd := t.command(cfg.Tools.Samtools, "view", "-@", t.threads(), "-F", "0x100", "-T", cfg.Reference,
		"-b", t.input(Align), "-o", out)
	cmd.Outputs = []string{out}
	return []runner.Command{cmd}, nil
}

func buildSort(ctx context.Context, t *Task, dir string) ([]runner.Command, error) {
	cfg := t.r.p.cfg
	out := t.staged(dir, "_sorted.bam")
	sort := t.command(cfg.Tools.Samtools, "sort", "-m", cfg.SortMemory, "-@", t.threads(), t.input(ConvertFormat), "-o", out)
	sort.Outputs = []string{out}
	index := t.command(cfg.Tools.Samtools, "index", out)
	index.Outputs = []string{out + ".bai"}
	return []runner.Command{sort, index}, nil
}

func buildDeduplicate(ctx context.Context, t *Task, dir string) ([]runner.Command, error) {
	out := t.staged(dir, ".dedup.bam")
	if t.r.opts.Amplicon {
		// PCR duplicates are expected in amplicon data. The empty output marks
		// the stage done; downstream stages read the sorted BAM instead.
		log.Printf("%s: amplicon mode, skipping duplicate marking", t.Sample)
		return nil, t.r.p.store.Placeholder(ctx, out)
	}
	cmd := t.gatk("MarkDuplicates",
		"--INPUT", t.input(Sort),
		"--OUTPUT", out,
		"--METRICS_FILE", t.staged(dir, ".dedup_metrics.txt"),
		"--CREATE_INDEX", "true",
		"--REMOVE_DUPLICATES", "true",
		"-AS", "true")
	cmd.Outputs = []string{out}
	return []runner.Command{cmd}, nil
}

func buildRecalibrate(ctx context.Context, t *Task, dir string) ([]runner.Command, error) {
	cfg := t.r.p.cfg
	out := t.staged(dir, ".recal_data.table")
	args := []string{"--reference", cfg.Reference, "--input", t.input(Deduplicate)}
	for _, site := range cfg.KnownSites {
		args = append(args, "--known-sites", site)
	}
	cmd := t.gatk("BaseRecalibrator", append(args, "--output", out)...)
	cmd.Outputs = []string{out}
	return []runner.Command{cmd}, nil
}

func buildApplyRecalibration(ctx context.Context, t *Task, dir string) ([]runner.Command, error) {
	cfg := t.r.p.cfg
	out := t.staged(dir, ".recal_reads.bam")
	apply := t.gatk("ApplyBQSR",
		"--reference", cfg.Reference,
		"--input", t.input(Deduplicate),
		"--bqsr-recal-file", t.input(Recalibrate),
		"--output", out)
	apply.Outputs = []string{out}
	index := t.command(cfg.Tools.Samtools, "index", out)
	index.Outputs = []string{out + ".bai"}
	return []runner.Command{apply, index}, nil
}

// annotations are the HaplotypeCaller annotations the hard filters use.
var annotations = []string{
	"Coverage", "DepthPerAlleleBySample", "FisherStrand", "BaseQuality", "QualByDepth",
	"RMSMappingQuality", "MappingQualityRankSumTest", "ReadPosRankSumTest", "ChromosomeCounts",
}

func buildCallVariants(ctx context.Context, t *Task, dir string) ([]runner.Command, error) {
	cfg := t.r.p.cfg
	out := t.staged(dir, ".raw_variants.vcf")
	args := []string{
		"--reference", cfg.Reference,
		"--input", t.input(ApplyRecalibration),
		"--native-pair-hmm-threads", t.threads(),
		"--genotyping-mode", "DISCOVERY",
	}
	if cfg.DBSNP != "" {
		args = append(args, "--dbsnp", cfg.DBSNP)
	}
	args = append(args, "-stand-call-conf", "10")
	for _, a := range annotations {
		args = append(args, "-A", a)
	}
	args = append(args, "--all-site-pls", "true", "--output", out)
	if bed := t.r.opts.TargetIntervals; bed != "" {
		args = append(args, "--intervals", bed)
	}
	cmd := t.gatk("HaplotypeCaller", args...)
	cmd.Outputs = []string{out}
	return []runner.Command{cmd}, nil
}

func buildSelect(variantType string) func(context.Context, *Task, string) ([]runner.Command, error) {
	return func(ctx context.Context, t *Task, dir string) ([]runner.Command, error) {
		out := t.staged(dir, t.def().suffix(t))
		cmd := t.gatk("SelectVariants",
			"-R", t.r.p.cfg.Reference,
			"-V", t.input(CallVariants),
			"-select-type", variantType,
			"-O", out)
		cmd.Outputs = []string{out}
		return []runner.Command{cmd}, nil
	}
}

func buildFilter(from Kind) func(context.Context, *Task, string) ([]runner.Command, error) {
	return func(ctx context.Context, t *Task, dir string) ([]runner.Command, error) {
		filters := t.r.p.cfg.Filters
		expr, name := filters.SNP, filters.SNPName
		if from == SelectIndels {
			expr, name = filters.Indel, filters.IndelName
		}
		out := t.staged(dir, t.def().suffix(t))
		cmd := t.gatk("VariantFiltration",
			"-R", t.r.p.cfg.Reference,
			"-V", t.input(from),
			"--filter-expression", expr,
			"--filter-name", name,
			"-O", out)
		cmd.Outputs = []string{out}
		return []runner.Command{cmd}, nil
	}
}

func buildMergeVariants(ctx context.Context, t *Task, dir string) ([]runner.Command, error) {
	out := t.staged(dir, ".merged.vcf")
	cmd := t.gatk("MergeVcfs",
		"-R", t.r.p.cfg.Reference,
		"--INPUT", t.input(FilterIndels),
		"--INPUT", t.input(FilterSNPs),
		"--OUTPUT", out)
	cmd.Outputs = []string{out}
	return []runner.Command{cmd}, nil
}

func buildConvertToAnnotationFormat(ctx context.Context, t *Task, dir string) ([]runner.Command, error) {
	cmd := t.command(filepath.Join(t.r.p.cfg.Tools.Annovar, "convert2annovar.pl"),
		t.input(MergeVariants), "--includeinfo", "-format", "vcf4")
	cmd.Stdout = t.staged(dir, ".merged.av")
	return []runner.Command{cmd}, nil
}

// table_annovar names its output {outfile}.{buildver}_multianno.csv.
const annotatePrefix = ".merged.anno"

func annotateSuffix(t *Task) string {
	return fmt.Sprintf("%s.%s_multianno.csv", annotatePrefix, t.r.p.cfg.Annotation.BuildVer)
}

func buildAnnotate(ctx context.Context, t *Task, dir string) ([]runner.Command, error) {
	a := t.r.p.cfg.Annotation
	cmd := t.command(filepath.Join(t.r.p.cfg.Tools.Annovar, "table_annovar.pl"),
		t.input(ConvertToAnnotationFormat), a.HumanDB,
		"-buildver", a.BuildVer,
		"-protocol", a.Protocol,
		"-operation", a.Operation,
		"-nastring", ".",
		"--remove", "--otherinfo", "--csvout",
		"--thread", strconv.Itoa(a.Threads),
		"--outfile", t.staged(dir, annotatePrefix),
		"--argument", a.Argument)
	cmd.Outputs = []string{t.staged(dir, annotateSuffix(t))}
	return []runner.Command{cmd}, nil
}
