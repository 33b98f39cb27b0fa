package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/inodb/vibe-ensembl/internal/gtf"
	"github.com/inodb/vibe-ensembl/internal/locus"
)

// Row is one projected result row, values in the order of Query.Columns.
type Row []string

// LocusQuery selects the values of Column among Feature rows overlapping
// [Start, End] on Contig. End == 0 means a single position.
type LocusQuery struct {
	Column   string
	Feature  string
	Contig   string
	Start    int64
	End      int64
	Strand   locus.Strand // Unstranded matches both strands
	Distinct bool
	Sorted   bool
}

func (q LocusQuery) normalize() (LocusQuery, error) {
	contig, err := locus.NormalizeContig(q.Contig)
	if err != nil {
		return q, err
	}
	q.Contig = contig
	if q.End == 0 {
		q.End = q.Start
	}
	if q.Start < 1 || q.End < q.Start {
		return q, &locus.InvalidLocusError{Reason: fmt.Sprintf("query interval %d-%d", q.Start, q.End)}
	}
	return q, nil
}

// Query is a filtered projection. An empty Feature matches every feature
// and an empty FilterColumn matches every row. When Sorted is set, rows are
// ordered on the first column.
type Query struct {
	Columns      []string
	Feature      string
	FilterColumn string
	FilterValue  string
	Distinct     bool
	Sorted       bool
}

// FeatureValuesOptions narrows QueryFeatureValues.
type FeatureValuesOptions struct {
	Contig   string
	Strand   locus.Strand
	Distinct bool
	Sorted   bool
}

// Querier is the query surface shared by the in-memory store and the SQL
// database.
type Querier interface {
	ColumnValuesAtLocus(q LocusQuery) ([]string, error)
	Query(q Query) ([]Row, error)
	QueryOne(q Query) (Row, error)
	QueryFeatureValues(column, feature string, opts FeatureValuesOptions) ([]string, error)
	QueryLoci(column, value, feature string) ([]locus.Locus, error)
	QueryLocus(column, value, feature string) (locus.Locus, error)
	Contigs() ([]string, error)
	HasColumn(column string) bool
}

// LocusColumns is the projection LociFromRows expects.
var LocusColumns = []string{gtf.ColContig, gtf.ColStart, gtf.ColEnd, gtf.ColStrand}

// LociFromRows converts rows projected on LocusColumns into loci.
func LociFromRows(rows []Row) ([]locus.Locus, error) {
	loci := make([]locus.Locus, 0, len(rows))
	for _, row := range rows {
		start, err := strconv.ParseInt(row[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse start %q: %w", row[1], err)
		}
		end, err := strconv.ParseInt(row[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse end %q: %w", row[2], err)
		}
		l, err := locus.Parse(row[0], start, end, row[3])
		if err != nil {
			return nil, err
		}
		loci = append(loci, l)
	}
	return loci, nil
}

// ExactlyOne enforces a 1:1 lookup on a result set.
func ExactlyOne[T any](results []T, feature, column, value string) (T, error) {
	var zero T
	switch len(results) {
	case 0:
		return zero, &NotFoundError{Feature: feature, Column: column, Value: value}
	case 1:
		return results[0], nil
	}
	return zero, &AmbiguousResultError{Feature: feature, Column: column, Value: value, Count: len(results)}
}

// RequireSome fails with NotFoundError on an empty result set.
func RequireSome[T any](results []T, feature, column, value string) ([]T, error) {
	if len(results) == 0 {
		return nil, &NotFoundError{Feature: feature, Column: column, Value: value}
	}
	return results, nil
}

// DistinctValues removes repeated values, keeping first occurrences.
func DistinctValues(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// DistinctRows removes repeated rows, keeping first occurrences.
func DistinctRows(rows []Row) []Row {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		key := strings.Join(r, "\x00")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// SortValues sorts values in the natural order of column: numerically for
// coordinates, scores and exon numbers, lexicographically otherwise.
func SortValues(column string, values []string) {
	less := valueLess(column)
	sort.SliceStable(values, func(i, j int) bool { return less(values[i], values[j]) })
}

// SortRows orders rows on their first column.
func SortRows(column string, rows []Row) {
	less := valueLess(column)
	sort.SliceStable(rows, func(i, j int) bool {
		if len(rows[i]) == 0 || len(rows[j]) == 0 {
			return false
		}
		return less(rows[i][0], rows[j][0])
	})
}

func valueLess(column string) func(a, b string) bool {
	if !gtf.IsNumericColumn(column) {
		return func(a, b string) bool { return a < b }
	}
	return func(a, b string) bool {
		x, errA := strconv.ParseFloat(a, 64)
		y, errB := strconv.ParseFloat(b, 64)
		if errA != nil || errB != nil {
			return a < b
		}
		return x < y
	}
}
