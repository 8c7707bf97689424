package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/germline/encoding/fasta"
	"github.com/grailbio/germline/interval"
	"v.io/x/lib/lookpath"
)

// Preflight checks that everything the run needs from outside the output
// tree is in place before any sample starts: the tools are installed, the
// reference and its companions exist, and the target intervals fit the
// reference. The reference .fai index is generated if it is missing. env is
// the environment used to search PATH. All problems are reported together,
// with kind errors.Invalid.
func (c Config) Preflight(ctx context.Context, env map[string]string) error {
	if err := c.Validate(); err != nil {
		return err
	}
	var problems []string
	add := func(err error) {
		if err != nil {
			problems = append(problems, err.Error())
		}
	}
	for _, tool := range []struct{ key, path string }{
		{"tools.java", c.Tools.Java},
		{"tools.bwa", c.Tools.BWA},
		{"tools.samtools", c.Tools.Samtools},
		{"tools.gatk", c.Tools.GATK},
	} {
		add(checkProgram(env, tool.key, tool.path))
	}
	add(checkFile("tools.trimmomatic", c.Tools.Trimmomatic, false))
	add(checkFile("trim.adapter_dir", filepath.Join(c.AdapterDir(), AdapterFile(c.PairedEnd)), false))
	for _, script := range []string{"convert2annovar.pl", "table_annovar.pl"} {
		add(checkFile("tools.annovar", filepath.Join(c.Tools.Annovar, script), false))
	}
	add(checkFile("annotation.humandb", c.Annotation.HumanDB, true))
	add(checkFile("input_dir", c.Fastq.Dir, true))
	for _, site := range c.KnownSites {
		add(checkFile("known_sites", site, false))
	}
	if c.DBSNP != "" {
		add(checkFile("dbsnp", c.DBSNP, false))
	}

	if err := checkFile("reference", c.Reference, false); err != nil {
		add(err)
	} else if idx, err := fasta.LoadIndex(ctx, c.Reference); err != nil {
		add(err)
	} else if c.Intervals != "" {
		if targets, err := interval.LoadBED(ctx, c.Intervals); err != nil {
			add(err)
		} else {
			add(targets.CheckReference(idx.Lengths()))
		}
	}
	if len(problems) > 0 {
		for _, p := range problems {
			log.Error.Printf("preflight: %s", p)
		}
		return errors.E(errors.Invalid, fmt.Sprintf("preflight failed: %s", strings.Join(problems, "; ")))
	}
	log.Printf("preflight: tools, reference and targets ok")
	return nil
}

func checkFile(key, path string, dir bool) error {
	if path == "" {
		return errors.E(errors.Invalid, key+" is not set")
	}
	info, err := os.Stat(path)
	if err != nil {
		return errors.E(errors.NotExist, fmt.Sprintf("%s: %s does not exist", key, path))
	}
	if info.IsDir() != dir {
		want := "a file"
		if dir {
			want = "a directory"
		}
		return errors.E(errors.Invalid, fmt.Sprintf("%s: %s is not %s", key, path, want))
	}
	return nil
}

func checkProgram(env map[string]string, key, name string) error {
	if name == "" {
		return errors.E(errors.Invalid, key+" is not set")
	}
	if strings.ContainsRune(name, filepath.Separator) {
		info, err := os.Stat(name)
		if err != nil || info.IsDir() || info.Mode()&0111 == 0 {
			return errors.E(errors.NotExist, fmt.Sprintf("%s: %s is not an executable", key, name))
		}
		return nil
	}
	if _, err := lookpath.Look(env, name); err != nil {
		return errors.E(errors.NotExist, fmt.Sprintf("%s: %s not found in PATH", key, name))
	}
	return nil
}
