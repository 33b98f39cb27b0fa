package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-ensembl/internal/gtf"
	"github.com/inodb/vibe-ensembl/internal/locus"
)

const storeFixture = `#fixture
1	src	gene	100	1000	.	+	.	gene_id "G1"; gene_name "ABC";
1	src	transcript	100	500	.	+	.	gene_id "G1"; transcript_id "T1"; gene_name "ABC"; transcript_name "ABC-201";
1	src	exon	100	200	.	+	.	gene_id "G1"; transcript_id "T1"; exon_id "E1"; exon_number "1";
1	src	exon	400	500	.	+	.	gene_id "G1"; transcript_id "T1"; exon_id "E2"; exon_number "2";
1	src	transcript	150	1000	.	+	.	gene_id "G1"; transcript_id "T2"; gene_name "ABC"; transcript_name "ABC-202";
1	src	exon	150	300	.	+	.	gene_id "G1"; transcript_id "T2"; exon_id "E3"; exon_number "1";
1	src	exon	900	1000	.	+	.	gene_id "G1"; transcript_id "T2"; exon_id "E4"; exon_number "2";
1	src	gene	2000	3000	.	-	.	gene_id "G2"; gene_name "DUP";
1	src	transcript	2000	3000	.	-	.	gene_id "G2"; transcript_id "T3"; gene_name "DUP";
1	src	exon	2000	3000	.	-	.	gene_id "G2"; transcript_id "T3"; exon_id "E5"; exon_number "1";
chr2	src	gene	50	80	.	+	.	gene_id "G3"; gene_name "DUP";
chr2	src	transcript	50	80	.	+	.	gene_id "G3"; transcript_id "T4"; gene_name "DUP";
chr2	src	exon	50	80	.	+	.	gene_id "G3"; transcript_id "T4"; exon_id "E6"; exon_number "1";
`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	table, err := gtf.NewParser("").ParseReader(strings.NewReader(storeFixture))
	require.NoError(t, err)
	return New(table, nil)
}

func TestStore_Metadata(t *testing.T) {
	s := newTestStore(t)

	contigs, err := s.Contigs()
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, contigs)
	assert.Equal(t, []string{"gene", "transcript", "exon"}, s.Features())
	assert.True(t, s.HasColumn("exon_id"))
	assert.True(t, s.HasColumn("seqname"))
	assert.False(t, s.HasColumn("protein_id"))
	assert.Contains(t, s.Columns(), "transcript_name")
}

func TestStore_ColumnValuesAtLocus(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name     string
		query    LocusQuery
		expected []string
	}{
		{
			name:     "single position",
			query:    LocusQuery{Column: "gene_id", Feature: "gene", Contig: "1", Start: 150},
			expected: []string{"G1"},
		},
		{
			name:     "range across strands",
			query:    LocusQuery{Column: "gene_id", Feature: "gene", Contig: "1", Start: 100, End: 2500, Sorted: true},
			expected: []string{"G1", "G2"},
		},
		{
			name:     "forward strand only",
			query:    LocusQuery{Column: "gene_id", Feature: "gene", Contig: "1", Start: 100, End: 2500, Strand: locus.Forward},
			expected: []string{"G1"},
		},
		{
			name:     "inclusive endpoints",
			query:    LocusQuery{Column: "exon_id", Feature: "exon", Contig: "1", Start: 200, End: 400, Sorted: true},
			expected: []string{"E1", "E2", "E3"},
		},
		{
			name:     "strictly inside gap",
			query:    LocusQuery{Column: "exon_id", Feature: "exon", Contig: "1", Start: 201, End: 399},
			expected: []string{"E3"},
		},
		{
			name:     "contig normalized",
			query:    LocusQuery{Column: "gene_name", Feature: "gene", Contig: "chr2", Start: 60},
			expected: []string{"DUP"},
		},
		{
			name:     "distinct",
			query:    LocusQuery{Column: "gene_id", Feature: "exon", Contig: "1", Start: 100, End: 1000, Distinct: true},
			expected: []string{"G1"},
		},
		{
			name:     "not distinct",
			query:    LocusQuery{Column: "gene_id", Feature: "exon", Contig: "1", Start: 100, End: 1000},
			expected: []string{"G1", "G1", "G1", "G1"},
		},
		{
			name:     "unknown feature",
			query:    LocusQuery{Column: "gene_id", Feature: "UTR", Contig: "1", Start: 150},
			expected: []string{},
		},
		{
			name:     "empty values skipped",
			query:    LocusQuery{Column: "transcript_id", Feature: "gene", Contig: "1", Start: 150},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ColumnValuesAtLocus(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestStore_ColumnValuesAtLocus_Errors(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ColumnValuesAtLocus(LocusQuery{Column: "ccds_id", Feature: "gene", Contig: "1", Start: 1})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = s.ColumnValuesAtLocus(LocusQuery{Column: "gene_id", Feature: "gene", Contig: "1", Start: 10, End: 5})
	var invalid *locus.InvalidLocusError
	assert.True(t, errors.As(err, &invalid))
}

func TestStore_Query(t *testing.T) {
	s := newTestStore(t)

	rows, err := s.Query(Query{
		Columns:      []string{"transcript_id", "start"},
		Feature:      "transcript",
		FilterColumn: "gene_id",
		FilterValue:  "G1",
	})
	require.NoError(t, err)
	assert.Equal(t, []Row{{"T1", "100"}, {"T2", "150"}}, rows)

	rows, err = s.Query(Query{Columns: []string{"gene_id"}, Feature: "exon", Distinct: true})
	require.NoError(t, err)
	assert.Equal(t, []Row{{"G1"}, {"G2"}, {"G3"}}, rows)

	rows, err = s.Query(Query{Columns: []string{"start"}, Feature: "exon", FilterColumn: "contig", FilterValue: "1", Sorted: true})
	require.NoError(t, err)
	assert.Equal(t, []Row{{"100"}, {"150"}, {"400"}, {"900"}, {"2000"}}, rows, "numeric order")

	_, err = s.Query(Query{Columns: []string{"gene_id"}, Feature: "gene", FilterColumn: "nope", FilterValue: "x"})
	assert.ErrorIs(t, err, ErrUnknownColumn)
}

func TestStore_QueryOne(t *testing.T) {
	s := newTestStore(t)

	row, err := s.QueryOne(Query{Columns: []string{"gene_name"}, Feature: "gene", FilterColumn: "gene_id", FilterValue: "G1"})
	require.NoError(t, err)
	assert.Equal(t, Row{"ABC"}, row)

	_, err = s.QueryOne(Query{Columns: []string{"gene_id"}, Feature: "gene", FilterColumn: "gene_name", FilterValue: "DUP"})
	var ambiguous *AmbiguousResultError
	require.True(t, errors.As(err, &ambiguous), "got %v", err)
	assert.Equal(t, 2, ambiguous.Count)

	_, err = s.QueryOne(Query{Columns: []string{"gene_id"}, Feature: "gene", FilterColumn: "gene_name", FilterValue: "MISSING"})
	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound), "got %v", err)
	assert.Equal(t, "MISSING", notFound.Value)
}

func TestStore_QueryFeatureValues(t *testing.T) {
	s := newTestStore(t)

	ids, err := s.QueryFeatureValues("gene_id", "gene", FeatureValuesOptions{Contig: "2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"G3"}, ids)

	names, err := s.QueryFeatureValues("gene_name", "gene", FeatureValuesOptions{Distinct: true, Sorted: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"ABC", "DUP"}, names)

	reverse, err := s.QueryFeatureValues("transcript_id", "transcript", FeatureValuesOptions{Strand: locus.Reverse})
	require.NoError(t, err)
	assert.Equal(t, []string{"T3"}, reverse)

	onContig, err := s.QueryDistinctOnContig("transcript_id", "exon", "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2", "T3"}, onContig)
}

func TestStore_QueryLoci(t *testing.T) {
	s := newTestStore(t)

	loci, err := s.QueryLoci("gene_name", "DUP", "gene")
	require.NoError(t, err)
	require.Len(t, loci, 2)
	assert.Equal(t, "1", loci[0].Contig())
	assert.Equal(t, "2", loci[1].Contig())

	_, err = s.QueryLocus("gene_name", "DUP", "gene")
	var ambiguous *AmbiguousResultError
	assert.True(t, errors.As(err, &ambiguous))

	l, err := s.QueryLocus("gene_id", "G1", "gene")
	require.NoError(t, err)
	assert.Equal(t, int64(100), l.Start())
	assert.Equal(t, int64(1000), l.End())
	assert.True(t, l.OnForwardStrand())

	_, err = s.QueryLoci("transcript_id", "T99", "transcript")
	var notFound *NotFoundError
	assert.True(t, errors.As(err, &notFound))
}
