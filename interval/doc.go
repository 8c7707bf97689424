/*Package interval handles the target regions of amplicon and exome runs.
  Targets are read from BED files, merged into disjoint per-chromosome
  interval sets and checked against the reference before the variant caller
  is pointed at them. Samples sequenced without a target BED can derive one
  from a VCF (see VCFToBED).
  It assumes every position fits in a PosType, which is currently defined as
  int32 since that's what BAM files are limited to.
*/
package interval
