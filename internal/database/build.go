package database

import (
	"context"
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"

	goduckdb "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"

	"github.com/inodb/vibe-ensembl/internal/gtf"
)

// indexGroups are the candidate secondary indices. A group is skipped when
// one of its columns is absent from the release.
var indexGroups = [][]string{
	{gtf.ColContig, gtf.ColStart, gtf.ColEnd},
	{gtf.ColContig, gtf.ColStart, gtf.ColEnd, gtf.ColStrand},
	{gtf.ColGeneName},
	{gtf.ColGeneID},
	{gtf.ColTranscriptID},
	{gtf.ColTranscriptName},
	{gtf.ColExonID},
	{gtf.ColProteinID},
	{"ccds_id"},
}

// primaryKeys maps a feature table to the column expected to be unique in it.
var primaryKeys = map[string]string{
	gtf.FeatureGene:       gtf.ColGeneID,
	gtf.FeatureTranscript: gtf.ColTranscriptID,
}

// Create loads t into the database. An existing database of the current
// version is kept unless force is set. The schema version is written only
// after every table and index exists.
func (d *DB) Create(ctx context.Context, t *gtf.Table, force bool) error {
	if d.Exists() && !force {
		d.logger.Info("database already exists", zap.String("path", d.path))
		return d.loadMetadata()
	}
	if err := d.drop(ctx); err != nil {
		return err
	}

	columns := tableColumns(t)
	features := t.Features()
	rows := make(map[string][]*gtf.Record, len(features))
	for i := range t.Records {
		r := &t.Records[i]
		rows[r.Feature] = append(rows[r.Feature], r)
	}

	for _, feature := range features {
		if err := d.createTable(ctx, feature, columns); err != nil {
			return err
		}
		if err := d.insert(ctx, feature, columns, rows[feature]); err != nil {
			return fmt.Errorf("load %s rows: %w", feature, err)
		}
		if err := d.createIndices(ctx, feature, columns); err != nil {
			return err
		}
		d.logger.Debug("loaded feature table",
			zap.String("feature", feature), zap.Int("rows", len(rows[feature])))
	}

	if _, err := d.db.ExecContext(ctx, `CREATE TABLE `+metadataTable+` (key VARCHAR PRIMARY KEY, value VARCHAR)`); err != nil {
		return fmt.Errorf("create metadata table: %w", err)
	}
	meta := [][2]string{
		{metaColumns, strings.Join(columns, ",")},
		{metaFeatures, strings.Join(features, ",")},
		{metaSecondColumn, t.SecondColumn.String()},
		{metaSchemaVersion, strconv.Itoa(SchemaVersion)},
	}
	for _, kv := range meta {
		if _, err := d.db.ExecContext(ctx, `INSERT INTO `+metadataTable+` (key, value) VALUES (?, ?)`, kv[0], kv[1]); err != nil {
			return fmt.Errorf("write metadata %s: %w", kv[0], err)
		}
	}

	d.setSchema(features, columns)
	d.logger.Info("created annotation database",
		zap.String("driver", string(d.driver)),
		zap.String("path", d.path),
		zap.Int("records", t.Len()),
		zap.Int("tables", len(features)))
	return nil
}

// drop removes the metadata first, so an interrupted rebuild never looks
// complete, then every feature table.
func (d *DB) drop(ctx context.Context) error {
	features := d.features
	if len(features) == 0 {
		// A database of another schema version still lists its tables.
		if v, err := d.metadata(metaFeatures); err == nil {
			features = splitList(v)
		}
	}
	if _, err := d.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+metadataTable); err != nil {
		return fmt.Errorf("drop metadata: %w", err)
	}
	for _, f := range features {
		if _, err := d.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+quoteIdent(f)); err != nil {
			return fmt.Errorf("drop table %s: %w", f, err)
		}
	}
	d.setSchema(nil, nil)
	return nil
}

// tableColumns returns the fixed columns followed by attribute columns that
// do not shadow a fixed one.
func tableColumns(t *gtf.Table) []string {
	cols := append([]string(nil), gtf.FixedColumns...)
	for _, c := range t.Columns {
		if !isFixedColumn(c) {
			cols = append(cols, c)
		}
	}
	return cols
}

func isFixedColumn(c string) bool {
	for _, f := range gtf.FixedColumns {
		if f == c {
			return true
		}
	}
	return false
}

func columnType(c string) string {
	switch c {
	case gtf.ColStart, gtf.ColEnd:
		return "BIGINT"
	case gtf.ColScore:
		return "DOUBLE"
	}
	return "VARCHAR"
}

func (d *DB) createTable(ctx context.Context, feature string, columns []string) error {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = quoteIdent(c) + " " + columnType(c)
	}
	if _, err := d.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(feature)); err != nil {
		return fmt.Errorf("drop table %s: %w", feature, err)
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(feature), strings.Join(defs, ", "))
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create table %s: %w", feature, err)
	}
	return nil
}

// rowValues returns the column values of r in table order.
func rowValues(r *gtf.Record, columns []string) []any {
	vals := make([]any, len(columns))
	for i, c := range columns {
		switch c {
		case gtf.ColStart:
			vals[i] = r.Start
		case gtf.ColEnd:
			vals[i] = r.End
		case gtf.ColScore:
			if r.HasScore {
				vals[i] = r.Score
			} else {
				vals[i] = nil
			}
		default:
			vals[i] = r.Value(c)
		}
	}
	return vals
}

func (d *DB) insert(ctx context.Context, feature string, columns []string, records []*gtf.Record) error {
	if d.driver == DriverDuckDB {
		return d.appendDuckDB(ctx, feature, columns, records)
	}
	return d.insertTx(ctx, feature, columns, records)
}

// appendDuckDB bulk-loads rows with the DuckDB Appender API.
func (d *DB) appendDuckDB(ctx context.Context, feature string, columns []string, records []*gtf.Record) error {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", feature)
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}

	for _, r := range records {
		vals := rowValues(r, columns)
		args := make([]driver.Value, len(vals))
		for i, v := range vals {
			args[i] = v
		}
		if err := appender.AppendRow(args...); err != nil {
			appender.Close()
			return fmt.Errorf("append row from line %d: %w", r.Line, err)
		}
	}
	return appender.Close()
}

// insertTx loads rows through one prepared statement inside a transaction.
func (d *DB) insertTx(ctx context.Context, feature string, columns []string, records []*gtf.Record) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	quoted := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
		marks[i] = "?"
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(feature), strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, rowValues(r, columns)...); err != nil {
			return fmt.Errorf("insert row from line %d: %w", r.Line, err)
		}
	}
	return tx.Commit()
}

func (d *DB) createIndices(ctx context.Context, feature string, columns []string) error {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	for _, group := range indexGroups {
		skip := false
		for _, c := range group {
			if !present[c] {
				skip = true
				break
			}
		}
		if skip {
			continue
		}

		unique := false
		if pk, ok := primaryKeys[feature]; ok && len(group) == 1 && group[0] == pk {
			var err error
			if unique, err = d.isUnique(ctx, feature, pk); err != nil {
				return err
			}
			if !unique {
				d.logger.Warn("primary key column has duplicate values, creating non-unique index",
					zap.String("feature", feature), zap.String("column", pk))
			}
		}

		if err := d.createIndex(ctx, feature, group, unique); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) isUnique(ctx context.Context, feature, column string) (bool, error) {
	var total, distinct int64
	q := fmt.Sprintf("SELECT COUNT(%[1]s), COUNT(DISTINCT %[1]s) FROM %[2]s", quoteIdent(column), quoteIdent(feature))
	if err := d.db.QueryRowContext(ctx, q).Scan(&total, &distinct); err != nil {
		return false, fmt.Errorf("check uniqueness of %s.%s: %w", feature, column, err)
	}
	return total == distinct, nil
}

func (d *DB) createIndex(ctx context.Context, feature string, columns []string, unique bool) error {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quoteIdent(c)
	}
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	name := indexName(feature, columns)
	stmt := fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, quoteIdent(name), quoteIdent(feature), strings.Join(quoted, ", "))
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create index %s: %w", name, err)
	}
	return nil
}

func indexName(feature string, columns []string) string {
	parts := []string{"idx", sanitize(feature)}
	for _, c := range columns {
		parts = append(parts, sanitize(c))
	}
	return strings.Join(parts, "_")
}

// sanitize keeps letters, digits and underscores.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, s)
}

// quoteIdent quotes an SQL identifier. Feature and attribute names come from
// the input file.
func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
