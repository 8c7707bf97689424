package artifact

import "path/filepath"

// Layout derives artifact paths from a base directory.
type Layout struct {
	// Base is the root of the output tree.
	Base string
}

// SampleDir returns {base}/{project}/{sample}.
func (l Layout) SampleDir(project, sample string) string {
	return filepath.Join(l.Base, project, sample)
}

// Path returns {base}/{project}/{sample}/{sample}{suffix}. Suffix includes
// its leading separator, e.g. ".dedup.bam" or "_sorted.bam".
func (l Layout) Path(project, sample, suffix string) string {
	return filepath.Join(l.SampleDir(project, sample), sample+suffix)
}

// StagingDir returns the private directory in which the named stage of a
// sample writes its outputs before promotion.
func (l Layout) StagingDir(project, sample, stage string) string {
	return filepath.Join(l.StagingRoot(project, sample), stage)
}

// StagingRoot returns the directory holding all staging directories of a
// sample.
func (l Layout) StagingRoot(project, sample string) string {
	return filepath.Join(l.SampleDir(project, sample), stagingDirName)
}

const stagingDirName = ".staging"
