// Package locus models genomic intervals with strand-aware offset and
// overlap arithmetic. Coordinates are 1-based and both ends are inclusive.
package locus

import (
	"fmt"
	"math"
)

// Infinite is the distance between two loci that can never interact
// (different contigs or strands).
const Infinite int64 = math.MaxInt64

// Locus is an immutable genomic interval. Two loci are equal when all of
// their fields are equal, so values can be compared with ==.
type Locus struct {
	contig string
	start  int64
	end    int64
	strand Strand
}

// New validates and normalizes its arguments into a Locus.
func New(contig string, start, end int64, strand Strand) (Locus, error) {
	c, err := NormalizeContig(contig)
	if err != nil {
		return Locus{}, err
	}
	if strand != Forward && strand != Reverse {
		return Locus{}, &InvalidLocusError{Reason: fmt.Sprintf("strand must be + or -, got %s", strand)}
	}
	switch {
	case start <= 0:
		return Locus{}, &InvalidLocusError{Reason: fmt.Sprintf("expected start > 0 (base 1 coordinates), got %d", start)}
	case end <= 0:
		return Locus{}, &InvalidLocusError{Reason: fmt.Sprintf("expected end > 0 (base 1 coordinates), got %d", end)}
	case end < start:
		return Locus{}, &InvalidLocusError{Reason: fmt.Sprintf("expected start <= end, got start=%d end=%d", start, end)}
	}
	return Locus{contig: c, start: start, end: end, strand: strand}, nil
}

// Parse is New with a textual strand ("+", "-", "1", "-1").
func Parse(contig string, start, end int64, strand string) (Locus, error) {
	s, err := ParseStrand(strand)
	if err != nil {
		return Locus{}, err
	}
	return New(contig, start, end, s)
}

// Contig returns the normalized contig name.
func (l Locus) Contig() string { return l.contig }

// Start returns the first base of the locus.
func (l Locus) Start() int64 { return l.start }

// End returns the last base of the locus.
func (l Locus) End() int64 { return l.end }

// Strand returns Forward or Reverse.
func (l Locus) Strand() Strand { return l.strand }

// Len returns the number of bases covered, end - start + 1.
func (l Locus) Len() int64 {
	return l.end - l.start + 1
}

// String renders the locus for logs and error messages.
func (l Locus) String() string {
	return fmt.Sprintf("Locus(contig=%s, start=%d, end=%d, strand=%s)", l.contig, l.start, l.end, l.strand)
}

// OnForwardStrand reports whether the locus reads 5' to 3' along the contig.
func (l Locus) OnForwardStrand() bool { return l.strand == Forward }

// OnReverseStrand reports whether the locus is on the "-" strand.
func (l Locus) OnReverseStrand() bool { return l.strand == Reverse }

// OnContig compares against a contig name after normalization.
func (l Locus) OnContig(contig string) bool {
	c, err := NormalizeContig(contig)
	return err == nil && c == l.contig
}

// OnStrand reports whether the locus is on strand s. Unstranded never matches.
func (l Locus) OnStrand(s Strand) bool {
	return s == l.strand
}

// PositionOffset returns the 0-based offset of position p from the 5' end
// of the locus: p - start on the forward strand, end - p on the reverse.
func (l Locus) PositionOffset(p int64) (int64, error) {
	if p < l.start || p > l.end {
		return 0, &InvalidLocusError{Reason: fmt.Sprintf("position %d outside valid range %d..%d of %s", p, l.start, l.end, l)}
	}
	if l.strand == Forward {
		return p - l.start, nil
	}
	return l.end - p, nil
}

// OffsetRange maps the absolute range [a, b] to strand-relative offsets.
// The result is always ascending: endpoints are swapped on the reverse strand.
func (l Locus) OffsetRange(a, b int64) (int64, int64, error) {
	if a > b {
		return 0, 0, &InvalidLocusError{Reason: fmt.Sprintf("expected start <= end, got start=%d end=%d", a, b)}
	}
	if a < l.start || b > l.end {
		return 0, 0, &InvalidLocusError{Reason: fmt.Sprintf("range (%d, %d) falls outside %s", a, b, l)}
	}
	if l.strand == Forward {
		return a - l.start, b - l.start, nil
	}
	return l.end - b, l.end - a, nil
}

// DistanceToInterval is 0 when [a, b] overlaps the locus, otherwise the
// number of bases between the nearest endpoints.
func (l Locus) DistanceToInterval(a, b int64) int64 {
	switch {
	case l.start > b:
		return l.start - b
	case l.end < a:
		return a - l.end
	}
	return 0
}

// DistanceToLocus is DistanceToInterval for another locus, or Infinite when
// the two are on different contigs or strands.
func (l Locus) DistanceToLocus(other Locus) int64 {
	if !l.CanOverlap(other.contig, other.strand) {
		return Infinite
	}
	return l.DistanceToInterval(other.start, other.end)
}

// CanOverlap is the cheap pre-check for overlap and distance comparisons:
// same contig and, unless strand is Unstranded, the same strand.
func (l Locus) CanOverlap(contig string, strand Strand) bool {
	return l.OnContig(contig) && (strand == Unstranded || strand == l.strand)
}

// Overlaps reports whether [start, end] on contig shares at least one base
// with the locus. Both endpoints are inclusive, so 10-10 overlaps 10-10.
func (l Locus) Overlaps(contig string, start, end int64, strand Strand) bool {
	return l.CanOverlap(contig, strand) && end >= l.start && start <= l.end
}

// OverlapsLocus is Overlaps for another locus, including its strand.
func (l Locus) OverlapsLocus(other Locus) bool {
	return l.Overlaps(other.contig, other.start, other.end, other.strand)
}

// Contains reports whether [start, end] lies entirely within the locus.
func (l Locus) Contains(contig string, start, end int64, strand Strand) bool {
	return l.CanOverlap(contig, strand) && start >= l.start && end <= l.end
}

// ContainsLocus is Contains for another locus, including its strand.
func (l Locus) ContainsLocus(other Locus) bool {
	return l.Contains(other.contig, other.start, other.end, other.strand)
}
