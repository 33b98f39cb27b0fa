// Package store provides the in-memory indexed view of an annotation table.
package store

import (
	"sort"

	"go.uber.org/zap"

	"github.com/inodb/vibe-ensembl/internal/gtf"
	"github.com/inodb/vibe-ensembl/internal/locus"
)

// IdentifierColumns are indexed for exact-match lookups, each paired with
// the feature. Releases without a column simply skip its index.
var IdentifierColumns = []string{
	gtf.ColGeneID, gtf.ColGeneName,
	gtf.ColTranscriptID, gtf.ColTranscriptName,
	gtf.ColExonID, gtf.ColProteinID,
}

// partition groups rows of one feature on one contig and strand.
type partition struct {
	feature string
	contig  string
	strand  string
}

type idKey struct {
	feature string
	column  string
	value   string
}

// Store answers locus and identifier queries over an immutable table.
// It is safe for concurrent readers once built.
type Store struct {
	table *gtf.Table

	features []string
	contigs  []string

	// partitions holds record indices in table order; trees index the same rows.
	partitions map[partition][]int
	trees      map[partition]*IntervalTree
	byFeature  map[string][]int
	ids        map[idKey][]int
	indexed    map[string]bool
}

// New builds the store and its secondary indices from t. The table must not
// be modified afterwards.
func New(t *gtf.Table, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		table:      t,
		partitions: make(map[partition][]int),
		trees:      make(map[partition]*IntervalTree),
		byFeature:  make(map[string][]int),
		ids:        make(map[idKey][]int),
		indexed:    make(map[string]bool),
	}

	var idColumns []string
	for _, col := range IdentifierColumns {
		if !t.HasColumn(col) {
			logger.Debug("skipping index for absent column", zap.String("column", col))
			continue
		}
		idColumns = append(idColumns, col)
		s.indexed[col] = true
	}

	contigSeen := make(map[string]bool)
	for i := range t.Records {
		r := &t.Records[i]
		if _, ok := s.byFeature[r.Feature]; !ok {
			s.features = append(s.features, r.Feature)
		}
		s.byFeature[r.Feature] = append(s.byFeature[r.Feature], i)

		p := partition{feature: r.Feature, contig: r.Contig, strand: r.Strand}
		s.partitions[p] = append(s.partitions[p], i)

		if !contigSeen[r.Contig] {
			contigSeen[r.Contig] = true
			s.contigs = append(s.contigs, r.Contig)
		}

		for _, col := range idColumns {
			if v := r.Value(col); v != "" {
				k := idKey{feature: r.Feature, column: col, value: v}
				s.ids[k] = append(s.ids[k], i)
			}
		}
	}
	sort.Strings(s.contigs)

	span := func(row int) (int64, int64) {
		r := &t.Records[row]
		return r.Start, r.End
	}
	for p, rows := range s.partitions {
		s.trees[p] = BuildIntervalTree(rows, span)
	}

	logger.Info("built annotation store",
		zap.Int("records", t.Len()),
		zap.Int("features", len(s.features)),
		zap.Int("contigs", len(s.contigs)),
		zap.Int("partitions", len(s.partitions)),
		zap.Strings("indexed_columns", idColumns))
	return s
}

// Table returns the underlying table.
func (s *Store) Table() *gtf.Table {
	return s.table
}

// Features returns the distinct feature names in first-seen order.
func (s *Store) Features() []string {
	return s.features
}

// Contigs returns the sorted distinct contigs.
func (s *Store) Contigs() ([]string, error) {
	return s.contigs, nil
}

// Columns returns every queryable column.
func (s *Store) Columns() []string {
	return s.table.AllColumns()
}

// HasColumn reports whether column exists in this release.
func (s *Store) HasColumn(column string) bool {
	return s.table.HasColumn(column) || column == "seqname"
}

// strandsFor lists the record strands a query strand matches.
func strandsFor(s locus.Strand) []string {
	switch s {
	case locus.Forward:
		return []string{"+"}
	case locus.Reverse:
		return []string{"-"}
	}
	return []string{"+", "-", "."}
}

// ColumnValuesAtLocus returns the non-empty values of q.Column among
// q.Feature rows overlapping the query interval.
func (s *Store) ColumnValuesAtLocus(q LocusQuery) ([]string, error) {
	if !s.HasColumn(q.Column) {
		return nil, unknownColumn(q.Column)
	}
	q, err := q.normalize()
	if err != nil {
		return nil, err
	}

	var hits []int
	for _, strand := range strandsFor(q.Strand) {
		if tree, ok := s.trees[partition{feature: q.Feature, contig: q.Contig, strand: strand}]; ok {
			hits = append(hits, tree.FindRange(q.Start, q.End)...)
		}
	}
	sort.Ints(hits)

	values := s.values(q.Column, hits)
	return finishValues(q.Column, values, q.Distinct, q.Sorted), nil
}

// Query projects q.Columns from every matching row, in table order unless
// q.Sorted is set.
func (s *Store) Query(q Query) ([]Row, error) {
	for _, col := range q.Columns {
		if !s.HasColumn(col) {
			return nil, unknownColumn(col)
		}
	}
	if q.FilterColumn != "" && !s.HasColumn(q.FilterColumn) {
		return nil, unknownColumn(q.FilterColumn)
	}

	matched := s.match(q)
	rows := make([]Row, 0, len(matched))
	for _, i := range matched {
		r := &s.table.Records[i]
		row := make(Row, len(q.Columns))
		for j, col := range q.Columns {
			row[j] = r.Value(col)
		}
		rows = append(rows, row)
	}

	if q.Distinct {
		rows = DistinctRows(rows)
	}
	if q.Sorted && len(q.Columns) > 0 {
		SortRows(q.Columns[0], rows)
	}
	return rows, nil
}

// match returns the indices of rows satisfying the feature and filter.
func (s *Store) match(q Query) []int {
	if q.FilterColumn == "" {
		if q.Feature == "" {
			all := make([]int, s.table.Len())
			for i := range all {
				all[i] = i
			}
			return all
		}
		return s.byFeature[q.Feature]
	}

	if s.indexed[q.FilterColumn] && q.Feature != "" && q.FilterValue != "" {
		return s.ids[idKey{feature: q.Feature, column: q.FilterColumn, value: q.FilterValue}]
	}

	var candidates []int
	if q.Feature == "" {
		for _, f := range s.features {
			candidates = append(candidates, s.byFeature[f]...)
		}
		sort.Ints(candidates)
	} else {
		candidates = s.byFeature[q.Feature]
	}

	var matched []int
	for _, i := range candidates {
		if s.table.Records[i].Value(q.FilterColumn) == q.FilterValue {
			matched = append(matched, i)
		}
	}
	return matched
}

// QueryOne is Query for a lookup that must match exactly one row.
func (s *Store) QueryOne(q Query) (Row, error) {
	rows, err := s.Query(q)
	if err != nil {
		return nil, err
	}
	return ExactlyOne(rows, q.Feature, q.FilterColumn, q.FilterValue)
}

// QueryFeatureValues returns the non-empty values of column among feature
// rows, optionally restricted to one contig and strand.
func (s *Store) QueryFeatureValues(column, feature string, opts FeatureValuesOptions) ([]string, error) {
	if !s.HasColumn(column) {
		return nil, unknownColumn(column)
	}

	var rows []int
	if opts.Contig == "" && opts.Strand == locus.Unstranded {
		rows = s.byFeature[feature]
	} else {
		contig := opts.Contig
		if contig != "" {
			var err error
			if contig, err = locus.NormalizeContig(contig); err != nil {
				return nil, err
			}
		}
		strands := strandsFor(opts.Strand)
		for p, part := range s.partitions {
			if p.feature != feature || (contig != "" && p.contig != contig) || !containsString(strands, p.strand) {
				continue
			}
			rows = append(rows, part...)
		}
		sort.Ints(rows)
	}

	values := s.values(column, rows)
	return finishValues(column, values, opts.Distinct, opts.Sorted), nil
}

// QueryDistinctOnContig returns the sorted distinct values of column among
// feature rows on contig.
func (s *Store) QueryDistinctOnContig(column, feature, contig string) ([]string, error) {
	return s.QueryFeatureValues(column, feature, FeatureValuesOptions{Contig: contig, Distinct: true, Sorted: true})
}

// QueryLoci returns the distinct loci of feature rows where column = value.
// At least one row is required.
func (s *Store) QueryLoci(column, value, feature string) ([]locus.Locus, error) {
	rows, err := s.Query(Query{
		Columns:      LocusColumns,
		Feature:      feature,
		FilterColumn: column,
		FilterValue:  value,
		Distinct:     true,
	})
	if err != nil {
		return nil, err
	}
	if _, err := RequireSome(rows, feature, column, value); err != nil {
		return nil, err
	}
	return LociFromRows(rows)
}

// QueryLocus is QueryLoci for a key that must resolve to one locus.
func (s *Store) QueryLocus(column, value, feature string) (locus.Locus, error) {
	loci, err := s.QueryLoci(column, value, feature)
	if err != nil {
		return locus.Locus{}, err
	}
	return ExactlyOne(loci, feature, column, value)
}

func (s *Store) values(column string, rows []int) []string {
	values := make([]string, 0, len(rows))
	for _, i := range rows {
		if v := s.table.Records[i].Value(column); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func finishValues(column string, values []string, distinct, sorted bool) []string {
	if distinct {
		values = DistinctValues(values)
	}
	if sorted {
		SortValues(column, values)
	}
	return values
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

var _ Querier = (*Store)(nil)
