package locus

import (
	"fmt"
	"strings"
)

// Strand is the orientation of a feature relative to the reference contig.
type Strand int8

const (
	// Unstranded matches either strand when used as a query filter.
	// It is never a valid strand for a Locus.
	Unstranded Strand = 0
	Forward    Strand = 1
	Reverse    Strand = -1
)

// ParseStrand accepts "+", "-", "1" and "-1".
func ParseStrand(s string) (Strand, error) {
	switch s {
	case "+", "1":
		return Forward, nil
	case "-", "-1":
		return Reverse, nil
	case "":
		return Unstranded, &InvalidLocusError{Reason: "strand cannot be empty"}
	}
	return Unstranded, &InvalidLocusError{Reason: fmt.Sprintf("invalid strand %q", s)}
}

// ParseStrandFilter is like ParseStrand but maps "" and "." to Unstranded,
// which query filters treat as "either strand".
func ParseStrandFilter(s string) (Strand, error) {
	if s == "" || s == "." {
		return Unstranded, nil
	}
	return ParseStrand(s)
}

// String returns "+", "-" or "." for Unstranded.
func (s Strand) String() string {
	switch s {
	case Forward:
		return "+"
	case Reverse:
		return "-"
	}
	return "."
}

// NormalizeContig strips a lowercase "chr" prefix, uppercases single-letter
// names and maps the mitochondrial "M" to "MT".
// Only the lowercase prefix is removed since some unplaced contigs start with "CHR".
func NormalizeContig(c string) (string, error) {
	if c == "" {
		return "", &InvalidLocusError{Reason: "contig name cannot be empty"}
	}
	if c == "0" {
		return "", &InvalidLocusError{Reason: "contig name cannot be 0"}
	}
	if strings.HasPrefix(c, "chr") && len(c) > 3 {
		c = c[3:]
	}
	if len(c) == 1 {
		c = strings.ToUpper(c)
	}
	if c == "M" {
		return "MT", nil
	}
	return c, nil
}

// InvalidLocusError reports a violated interval invariant: a zero coordinate,
// end before start, or a bad contig or strand.
type InvalidLocusError struct {
	Reason string
}

func (e *InvalidLocusError) Error() string {
	return "invalid locus: " + e.Reason
}
