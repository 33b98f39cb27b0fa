package database

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/inodb/vibe-ensembl/internal/gtf"
	"github.com/inodb/vibe-ensembl/internal/locus"
	"github.com/inodb/vibe-ensembl/internal/store"
)

var _ store.Querier = (*DB)(nil)

// Features returns the feature tables in the database.
func (d *DB) Features() []string {
	return d.features
}

// Columns returns every column of the feature tables.
func (d *DB) Columns() []string {
	return d.columns
}

// HasColumn reports whether column exists in this release.
func (d *DB) HasColumn(column string) bool {
	return d.hasCol[column] || (column == "seqname" && d.hasCol[gtf.ColContig])
}

func (d *DB) hasFeature(feature string) bool {
	for _, f := range d.features {
		if f == feature {
			return true
		}
	}
	return false
}

func (d *DB) column(c string) (string, error) {
	if !d.HasColumn(c) {
		return "", fmt.Errorf("%w %q", store.ErrUnknownColumn, c)
	}
	if c == "seqname" {
		c = gtf.ColContig
	}
	return quoteIdent(c), nil
}

// ColumnValuesAtLocus returns the non-empty values of q.Column among
// q.Feature rows overlapping the query interval.
func (d *DB) ColumnValuesAtLocus(q store.LocusQuery) ([]string, error) {
	col, err := d.column(q.Column)
	if err != nil {
		return nil, err
	}
	contig, err := locus.NormalizeContig(q.Contig)
	if err != nil {
		return nil, err
	}
	end := q.End
	if end == 0 {
		end = q.Start
	}
	if q.Start < 1 || end < q.Start {
		return nil, &locus.InvalidLocusError{Reason: fmt.Sprintf("query interval %d-%d", q.Start, end)}
	}
	if !d.hasFeature(q.Feature) {
		return []string{}, nil
	}

	stmt := fmt.Sprintf(`SELECT %s FROM %s WHERE "contig" = ? AND "start" <= ? AND "end" >= ?`,
		col, quoteIdent(q.Feature))
	args := []any{contig, end, q.Start}
	if q.Strand != locus.Unstranded {
		stmt += ` AND "strand" = ?`
		args = append(args, q.Strand.String())
	}
	stmt += " ORDER BY rowid"

	values, err := d.queryValues(stmt, args...)
	if err != nil {
		return nil, err
	}
	return finishValues(q.Column, values, q.Distinct, q.Sorted), nil
}

// Query projects q.Columns from every matching row. Rows of one feature come
// back in load order; with an empty Feature the tables are read in turn.
func (d *DB) Query(q store.Query) ([]store.Row, error) {
	cols := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		col, err := d.column(c)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	var filter string
	if q.FilterColumn != "" {
		col, err := d.column(q.FilterColumn)
		if err != nil {
			return nil, err
		}
		filter = col
	}

	features := []string{q.Feature}
	if q.Feature == "" {
		features = d.features
	}

	var rows []store.Row
	for _, f := range features {
		if !d.hasFeature(f) || len(cols) == 0 {
			continue
		}
		stmt := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quoteIdent(f))
		var args []any
		if filter != "" {
			stmt += fmt.Sprintf(" WHERE %s = ?", filter)
			args = append(args, filterArg(q.FilterColumn, q.FilterValue))
		}
		stmt += " ORDER BY rowid"

		got, err := d.queryRows(stmt, len(cols), args...)
		if err != nil {
			return nil, err
		}
		rows = append(rows, got...)
	}

	if q.Distinct {
		rows = store.DistinctRows(rows)
	}
	if q.Sorted && len(q.Columns) > 0 {
		store.SortRows(q.Columns[0], rows)
	}
	if rows == nil {
		rows = []store.Row{}
	}
	return rows, nil
}

// QueryOne is Query for a lookup that must match exactly one row.
func (d *DB) QueryOne(q store.Query) (store.Row, error) {
	rows, err := d.Query(q)
	if err != nil {
		return nil, err
	}
	return store.ExactlyOne(rows, q.Feature, q.FilterColumn, q.FilterValue)
}

// QueryFeatureValues returns the non-empty values of column among feature
// rows, optionally restricted to one contig and strand.
func (d *DB) QueryFeatureValues(column, feature string, opts store.FeatureValuesOptions) ([]string, error) {
	col, err := d.column(column)
	if err != nil {
		return nil, err
	}
	if !d.hasFeature(feature) {
		return []string{}, nil
	}

	var where []string
	var args []any
	if opts.Contig != "" {
		contig, err := locus.NormalizeContig(opts.Contig)
		if err != nil {
			return nil, err
		}
		where = append(where, `"contig" = ?`)
		args = append(args, contig)
	}
	if opts.Strand != locus.Unstranded {
		where = append(where, `"strand" = ?`)
		args = append(args, opts.Strand.String())
	}

	stmt := fmt.Sprintf("SELECT %s FROM %s", col, quoteIdent(feature))
	if len(where) > 0 {
		stmt += " WHERE " + strings.Join(where, " AND ")
	}
	stmt += " ORDER BY rowid"

	values, err := d.queryValues(stmt, args...)
	if err != nil {
		return nil, err
	}
	return finishValues(column, values, opts.Distinct, opts.Sorted), nil
}

// QueryDistinctOnContig returns the sorted distinct values of column among
// feature rows on contig.
func (d *DB) QueryDistinctOnContig(column, feature, contig string) ([]string, error) {
	return d.QueryFeatureValues(column, feature, store.FeatureValuesOptions{Contig: contig, Distinct: true, Sorted: true})
}

// QueryLoci returns the distinct loci of feature rows where column = value.
// At least one row is required.
func (d *DB) QueryLoci(column, value, feature string) ([]locus.Locus, error) {
	rows, err := d.Query(store.Query{
		Columns:      store.LocusColumns,
		Feature:      feature,
		FilterColumn: column,
		FilterValue:  value,
		Distinct:     true,
	})
	if err != nil {
		return nil, err
	}
	if _, err := store.RequireSome(rows, feature, column, value); err != nil {
		return nil, err
	}
	return store.LociFromRows(rows)
}

// QueryLocus is QueryLoci for a key that must resolve to one locus.
func (d *DB) QueryLocus(column, value, feature string) (locus.Locus, error) {
	loci, err := d.QueryLoci(column, value, feature)
	if err != nil {
		return locus.Locus{}, err
	}
	return store.ExactlyOne(loci, feature, column, value)
}

// Contigs returns the sorted distinct contigs across all feature tables.
func (d *DB) Contigs() ([]string, error) {
	seen := make(map[string]bool)
	var contigs []string
	for _, f := range d.features {
		values, err := d.queryValues(fmt.Sprintf(`SELECT DISTINCT "contig" FROM %s`, quoteIdent(f)))
		if err != nil {
			return nil, err
		}
		for _, c := range values {
			if !seen[c] {
				seen[c] = true
				contigs = append(contigs, c)
			}
		}
	}
	sort.Strings(contigs)
	return contigs, nil
}

// filterArg converts a filter value to the column's SQL type.
func filterArg(column, value string) any {
	switch column {
	case gtf.ColStart, gtf.ColEnd:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	case gtf.ColScore:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return value
}

// queryValues runs a single-column query and returns its non-empty values.
func (d *DB) queryValues(stmt string, args ...any) ([]string, error) {
	rows, err := d.queryRows(stmt, 1, args...)
	if err != nil {
		return nil, err
	}
	values := make([]string, 0, len(rows))
	for _, r := range rows {
		if r[0] != "" {
			values = append(values, r[0])
		}
	}
	return values, nil
}

func (d *DB) queryRows(stmt string, width int, args ...any) ([]store.Row, error) {
	rows, err := d.db.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []store.Row
	raw := make([]any, width)
	ptrs := make([]any, width)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		row := make(store.Row, width)
		for i, v := range raw {
			row[i] = formatValue(v)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// formatValue renders a scanned SQL value the way gtf.Record.Value does.
func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}

func finishValues(column string, values []string, distinct, sorted bool) []string {
	if distinct {
		values = store.DistinctValues(values)
	}
	if sorted {
		store.SortValues(column, values)
	}
	return values
}
