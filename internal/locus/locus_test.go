package locus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLocus(t *testing.T, contig string, start, end int64, strand Strand) Locus {
	t.Helper()
	l, err := New(contig, start, end, strand)
	require.NoError(t, err)
	return l
}

func TestNormalizeContig(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"1", "1"},
		{"chr1", "1"},
		{"chrX", "X"},
		{"x", "X"},
		{"y", "Y"},
		{"M", "MT"},
		{"chrM", "MT"},
		{"m", "MT"},
		{"MT", "MT"},
		{"CHR_HSCHR6_MHC_COX", "CHR_HSCHR6_MHC_COX"},
		{"GL000191.1", "GL000191.1"},
	}

	for _, tt := range tests {
		got, err := NormalizeContig(tt.input)
		require.NoError(t, err, "NormalizeContig(%q)", tt.input)
		assert.Equal(t, tt.expected, got, "NormalizeContig(%q)", tt.input)
	}

	for _, bad := range []string{"", "0"} {
		_, err := NormalizeContig(bad)
		var invalid *InvalidLocusError
		assert.True(t, errors.As(err, &invalid), "NormalizeContig(%q) should fail", bad)
	}
}

func TestParseStrand(t *testing.T) {
	s, err := ParseStrand("+")
	require.NoError(t, err)
	assert.Equal(t, Forward, s)

	s, err = ParseStrand("-1")
	require.NoError(t, err)
	assert.Equal(t, Reverse, s)

	_, err = ParseStrand(".")
	assert.Error(t, err)
	_, err = ParseStrand("")
	assert.Error(t, err)

	s, err = ParseStrandFilter(".")
	require.NoError(t, err)
	assert.Equal(t, Unstranded, s)

	assert.Equal(t, "+", Forward.String())
	assert.Equal(t, "-", Reverse.String())
	assert.Equal(t, ".", Unstranded.String())
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		contig     string
		start, end int64
		strand     Strand
	}{
		{"zero start", "1", 0, 10, Forward},
		{"zero end", "1", 1, 0, Forward},
		{"end before start", "1", 20, 10, Forward},
		{"unstranded", "1", 10, 20, Unstranded},
		{"empty contig", "", 10, 20, Forward},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.contig, tt.start, tt.end, tt.strand)
			var invalid *InvalidLocusError
			require.True(t, errors.As(err, &invalid), "got %v", err)
		})
	}
}

func TestLocus_Equality(t *testing.T) {
	a := mustLocus(t, "chr1", 10, 20, Forward)
	b := mustLocus(t, "1", 10, 20, Forward)
	c := mustLocus(t, "1", 10, 20, Reverse)

	assert.Equal(t, a, b)
	assert.True(t, a == b)
	assert.False(t, a == c)
	assert.Equal(t, "Locus(contig=1, start=10, end=20, strand=+)", a.String())
}

func TestLocus_Len(t *testing.T) {
	assert.Equal(t, int64(11), mustLocus(t, "1", 10, 20, Forward).Len())
	assert.Equal(t, int64(1), mustLocus(t, "1", 10, 10, Forward).Len())
}

func TestLocus_PositionOffset(t *testing.T) {
	fwd := mustLocus(t, "1", 10, 20, Forward)
	off, err := fwd.PositionOffset(10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)
	off, err = fwd.PositionOffset(20)
	require.NoError(t, err)
	assert.Equal(t, fwd.Len()-1, off)

	rev := mustLocus(t, "1", 10, 20, Reverse)
	off, err = rev.PositionOffset(20)
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)
	off, err = rev.PositionOffset(10)
	require.NoError(t, err)
	assert.Equal(t, rev.Len()-1, off)
	off, err = rev.PositionOffset(15)
	require.NoError(t, err)
	assert.Equal(t, int64(5), off)

	var invalid *InvalidLocusError
	_, err = fwd.PositionOffset(9)
	assert.True(t, errors.As(err, &invalid), "before start")
	_, err = fwd.PositionOffset(21)
	assert.True(t, errors.As(err, &invalid), "after end")
}

func TestLocus_OffsetRange(t *testing.T) {
	fwd := mustLocus(t, "1", 100, 200, Forward)
	a, b, err := fwd.OffsetRange(110, 120)
	require.NoError(t, err)
	assert.Equal(t, [2]int64{10, 20}, [2]int64{a, b})

	rev := mustLocus(t, "1", 100, 200, Reverse)
	a, b, err = rev.OffsetRange(110, 120)
	require.NoError(t, err)
	assert.Equal(t, [2]int64{80, 90}, [2]int64{a, b})
	assert.LessOrEqual(t, a, b)

	var invalid *InvalidLocusError
	_, _, err = fwd.OffsetRange(120, 110)
	assert.True(t, errors.As(err, &invalid), "descending range")
	_, _, err = fwd.OffsetRange(90, 110)
	assert.True(t, errors.As(err, &invalid), "outside locus")
}

func TestLocus_Overlaps(t *testing.T) {
	l := mustLocus(t, "1", 10, 20, Forward)

	assert.True(t, l.Overlaps("1", 20, 20, Unstranded), "end boundary inclusive")
	assert.True(t, l.Overlaps("1", 10, 10, Unstranded), "start boundary inclusive")
	assert.True(t, l.Overlaps("chr1", 5, 10, Forward))
	assert.False(t, l.Overlaps("1", 21, 30, Unstranded))
	assert.False(t, l.Overlaps("1", 1, 9, Unstranded))
	assert.False(t, l.Overlaps("2", 10, 20, Unstranded), "different contig")
	assert.False(t, l.Overlaps("1", 10, 20, Reverse), "different strand")

	point := mustLocus(t, "1", 10, 10, Forward)
	assert.True(t, point.OverlapsLocus(point))
}

func TestLocus_Contains(t *testing.T) {
	l := mustLocus(t, "1", 10, 20, Forward)

	assert.True(t, l.Contains("1", 10, 20, Unstranded))
	assert.True(t, l.Contains("1", 12, 18, Forward))
	assert.False(t, l.Contains("1", 5, 15, Unstranded))
	assert.False(t, l.Contains("1", 12, 18, Reverse))
	assert.True(t, l.ContainsLocus(mustLocus(t, "1", 11, 11, Forward)))
	assert.False(t, l.ContainsLocus(mustLocus(t, "1", 11, 11, Reverse)))
}

func TestLocus_Distance(t *testing.T) {
	l := mustLocus(t, "1", 100, 200, Forward)

	assert.Equal(t, int64(0), l.DistanceToInterval(150, 160))
	assert.Equal(t, int64(0), l.DistanceToInterval(200, 300))
	assert.Equal(t, int64(10), l.DistanceToInterval(210, 300))
	assert.Equal(t, int64(40), l.DistanceToInterval(10, 60))

	assert.Equal(t, int64(5), l.DistanceToLocus(mustLocus(t, "1", 205, 210, Forward)))
	assert.Equal(t, Infinite, l.DistanceToLocus(mustLocus(t, "2", 150, 160, Forward)))
	assert.Equal(t, Infinite, l.DistanceToLocus(mustLocus(t, "1", 150, 160, Reverse)))
}

func TestLocus_CanOverlap(t *testing.T) {
	l := mustLocus(t, "X", 1, 5, Reverse)
	assert.True(t, l.CanOverlap("chrX", Unstranded))
	assert.True(t, l.CanOverlap("x", Reverse))
	assert.False(t, l.CanOverlap("X", Forward))
	assert.False(t, l.CanOverlap("", Unstranded))
}
