package pipeline

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Kind identifies a pipeline stage.
type Kind int

// The stages, in dependency order. The SNP and indel branches are
// independent of each other.
const (
	Trim Kind = iota + 1
	Align
	ConvertFormat
	Sort
	Deduplicate
	// Recalibrate builds the base quality recalibration table.
	Recalibrate
	ApplyRecalibration
	CallVariants
	SelectSNPs
	FilterSNPs
	SelectIndels
	FilterIndels
	MergeVariants
	ConvertToAnnotationFormat
	// Annotate is the terminal stage of every sample.
	Annotate

	numKinds = int(Annotate)
)

var kindNames = [...]string{
	Trim:                      "Trim",
	Align:                     "Align",
	ConvertFormat:             "ConvertFormat",
	Sort:                      "Sort",
	Deduplicate:               "Deduplicate",
	Recalibrate:               "Recalibrate",
	ApplyRecalibration:        "ApplyRecalibration",
	CallVariants:              "CallVariants",
	SelectSNPs:                "SelectSNPs",
	FilterSNPs:                "FilterSNPs",
	SelectIndels:              "SelectIndels",
	FilterIndels:              "FilterIndels",
	MergeVariants:             "MergeVariants",
	ConvertToAnnotationFormat: "ConvertToAnnotationFormat",
	Annotate:                  "Annotate",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k < Trim || k > Annotate {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Valid reports whether k names a stage.
func (k Kind) Valid() bool { return k >= Trim && k <= Annotate }

// ParseKind returns the stage with the given name.
func ParseKind(name string) (Kind, error) {
	for _, k := range Kinds() {
		if kindNames[k] == name {
			return k, nil
		}
	}
	return 0, errors.E(errors.Invalid, fmt.Sprintf("unknown stage %q", name))
}

// Kinds returns all stages in dependency order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, numKinds)
	for k := Trim; k <= Annotate; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}
