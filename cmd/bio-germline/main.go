// bio-germline runs the germline variant-calling pipeline: read trimming,
// alignment, duplicate marking, base recalibration, HaplotypeCaller, hard
// filtering and ANNOVAR annotation, one sample directory per sample.
//
// Example:
//
//	bio-germline run -config germline.hcl -report batch.tsv XK-1W_S1 XK-2W_S2
//
// Stages whose outputs already exist are not rerun, so an interrupted batch
// is resumed by running the same command again. "plan" shows what "run"
// would execute.
package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/germline/config"
	"github.com/grailbio/germline/interval"
	"github.com/grailbio/germline/pipeline"
	"github.com/grailbio/germline/runner"
	"v.io/x/lib/cmdline"
)

type batchFlags struct {
	config      *string
	samples     *string
	concurrency *int
	amplicon    *bool
	singleEnd   *bool
}

func addBatchFlags(cmd *cmdline.Command) batchFlags {
	return batchFlags{
		config:      cmd.Flags.String("config", "", "Pipeline configuration file (HCL). Required."),
		samples:     cmd.Flags.String("samples", "", "Comma-separated sample identifiers, in addition to the arguments."),
		concurrency: cmd.Flags.Int("concurrency", 0, "Number of samples processed at once. Zero uses the configured value."),
		amplicon:    cmd.Flags.Bool("amplicon", false, "Amplicon data: skip duplicate marking."),
		singleEnd:   cmd.Flags.Bool("single-end", false, "Single-end reads: look for R1 files only."),
	}
}

// load reads the configuration and applies the command-line overrides.
func (f batchFlags) load(ctx context.Context, argv []string) (config.Config, []string, error) {
	if *f.config == "" {
		return config.Config{}, nil, errors.E(errors.Invalid, "-config is required")
	}
	cfg, err := config.Load(ctx, *f.config)
	if err != nil {
		return cfg, nil, err
	}
	if *f.concurrency > 0 {
		cfg.Concurrency = *f.concurrency
	}
	if *f.amplicon {
		cfg.Amplicon = true
	}
	if *f.singleEnd {
		cfg.PairedEnd = false
	}
	samples := append([]string(nil), argv...)
	for _, s := range strings.Split(*f.samples, ",") {
		if s = strings.TrimSpace(s); s != "" {
			samples = append(samples, s)
		}
	}
	if len(samples) == 0 {
		return cfg, nil, errors.E(errors.Invalid, "no samples given")
	}
	return cfg, samples, nil
}

func newCmdRun() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "run",
		Short:    "Run the pipeline on a batch of samples",
		ArgsName: "sample...",
		ArgsLong: "sample... are sample identifiers such as XK-8T_S21.",
	}
	flags := addBatchFlags(cmd)
	reportFlag := cmd.Flags.String("report", "", "If set, write a per-sample TSV summary to this path.")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		ctx := vcontext.Background()
		cfg, samples, err := flags.load(ctx, argv)
		if err != nil {
			return err
		}
		if err := cfg.Preflight(ctx, env.Vars); err != nil {
			log.Fatalf("%v", err)
		}
		auditLog, err := runner.OpenAuditLog(cfg.AuditLogPath(), "germline")
		if err != nil {
			return err
		}
		defer func() {
			if err := auditLog.Close(); err != nil {
				log.Error.Printf("close audit log: %v", err)
			}
		}()
		p, err := pipeline.New(cfg, &runner.Exec{Log: auditLog}, auditLog)
		if err != nil {
			return err
		}
		return runBatch(ctx, env, p, samples, *reportFlag)
	})
	return cmd
}

func runBatch(ctx context.Context, env *cmdline.Env, p *pipeline.Pipeline, samples []string, report string) error {
	results := pipeline.NewScheduler(p).RunBatch(ctx, samples, p.DefaultBatchOptions())
	if report != "" {
		if err := pipeline.WriteReport(ctx, report, results); err != nil {
			return err
		}
	}
	return summarize(env, results)
}

// summarize prints one line per sample and returns an error if any sample
// failed.
func summarize(env *cmdline.Env, results map[string]pipeline.Result) error {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	failed := 0
	for _, id := range ids {
		res := results[id]
		switch res.Status() {
		case pipeline.StatusOK:
			fmt.Fprintf(env.Stdout, "%s\t%s\t%s\n", id, res.Status(), res.Path)
		case pipeline.StatusFailed:
			failed++
			fmt.Fprintf(env.Stdout, "%s\t%s\t%v\n", id, res.Status(), res.Err)
		default:
			fmt.Fprintf(env.Stdout, "%s\t%s\n", id, res.Status())
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sample(s) failed", failed, len(ids))
	}
	return nil
}

func newCmdPlan() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "plan",
		Short:    "Show the stages a run would execute",
		ArgsName: "sample...",
	}
	flags := addBatchFlags(cmd)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		ctx := vcontext.Background()
		cfg, samples, err := flags.load(ctx, argv)
		if err != nil {
			return err
		}
		// Planning only looks at the output tree; the tools need not be
		// installed here.
		if err := cfg.Validate(); err != nil {
			return err
		}
		p, err := pipeline.New(cfg, nil, nil)
		if err != nil {
			return err
		}
		return plan(ctx, env, p, samples)
	})
	return cmd
}

func plan(ctx context.Context, env *cmdline.Env, p *pipeline.Pipeline, samples []string) error {
	s := pipeline.NewScheduler(p)
	opts := p.DefaultBatchOptions()
	plans, err := s.Plan(ctx, samples, opts)
	if err != nil {
		return err
	}
	run, skipped := s.Select(samples, opts)
	for _, id := range run {
		keys := plans[id]
		if len(keys) == 0 {
			fmt.Fprintf(env.Stdout, "%s\tdone\n", id)
			continue
		}
		for _, k := range keys {
			fmt.Fprintf(env.Stdout, "%s\t%v\n", id, k.Kind)
		}
	}
	for _, id := range skipped {
		fmt.Fprintf(env.Stdout, "%s\tskipped\n", id)
	}
	return nil
}

func newCmdVCF2BED() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "vcf2bed",
		Short:    "Convert the variant sites of a VCF file to BED intervals",
		Long: `vcf2bed writes one 0-based, half-open interval per VCF record, covering the
reference allele and the longest alternate allele. The output can be used as
the intervals setting of a targeted run.`,
		ArgsName: "in.vcf[.gz] out.bed",
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("vcf2bed takes an input and an output path, but got %v", argv)
		}
		n, err := interval.VCFToBED(vcontext.Background(), argv[0], argv[1])
		if err != nil {
			return err
		}
		log.Printf("%s: wrote %d interval(s)", argv[1], n)
		return nil
	})
	return cmd
}

func newRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:     "bio-germline",
		Short:    "Germline variant calling for batches of samples",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdRun(),
			newCmdPlan(),
			newCmdVCF2BED(),
		},
	}
}

func main() {
	cleanup := grail.Init()
	cmdline.HideGlobalFlagsExcept()
	env := cmdline.EnvFromOS()
	err := cmdline.ParseAndRun(newRoot(), env, os.Args[1:])
	code := cmdline.ExitCode(err, env.Stderr)
	cleanup()
	os.Exit(code)
}
