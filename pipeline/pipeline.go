package pipeline

import (
	"github.com/grailbio/germline/artifact"
	"github.com/grailbio/germline/config"
	"github.com/grailbio/germline/runner"
	"github.com/grailbio/germline/sample"
)

// BatchOptions are the settings that may vary between batches run with the
// same Pipeline.
type BatchOptions struct {
	PairedEnd bool
	// Amplicon skips duplicate marking.
	Amplicon bool
	// TargetIntervals, if set, is a BED file restricting variant calling.
	TargetIntervals string
	// NormalSampleMarker, if set, restricts the batch to samples with this
	// role.
	NormalSampleMarker string
}

// Pipeline binds a configuration to a runner and an artifact store.
type Pipeline struct {
	cfg    config.Config
	layout artifact.Layout
	store  *artifact.Store
	namer  sample.Namer
	runner runner.Runner
	log    *runner.AuditLog
}

// New creates a Pipeline. cfg must have passed Validate. auditLog may be
// nil.
func New(cfg config.Config, r runner.Runner, auditLog *runner.AuditLog) (*Pipeline, error) {
	for name := range cfg.Stages {
		if _, err := ParseKind(name); err != nil {
			return nil, &Error{Kind: ConfigurationError, Err: err}
		}
	}
	return &Pipeline{
		cfg:    cfg,
		layout: artifact.Layout{Base: cfg.BaseDir},
		store: artifact.NewStore(artifact.Opts{
			Retire:    cfg.Retire,
			IORetries: uint64(cfg.IORetries),
		}),
		namer:  sample.Namer{Project: cfg.Project},
		runner: r,
		log:    auditLog,
	}, nil
}

// Config returns the pipeline's configuration.
func (p *Pipeline) Config() config.Config { return p.cfg }

// DefaultBatchOptions returns the batch settings of the configuration.
func (p *Pipeline) DefaultBatchOptions() BatchOptions {
	return BatchOptions{
		PairedEnd:          p.cfg.PairedEnd,
		Amplicon:           p.cfg.Amplicon,
		TargetIntervals:    p.cfg.Intervals,
		NormalSampleMarker: p.cfg.NormalSampleMarker,
	}
}
