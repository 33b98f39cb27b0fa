package gtf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/inodb/vibe-ensembl/internal/locus"
)

// Parser loads an annotation table from a GTF file.
type Parser struct {
	path   string
	logger *zap.Logger
}

// NewParser creates a parser for the GTF file at path. The file may be
// gzip-compressed.
func NewParser(path string) *Parser {
	return &Parser{path: path, logger: zap.NewNop()}
}

// SetLogger sets the logger for progress messages.
func (p *Parser) SetLogger(l *zap.Logger) {
	p.logger = l
}

// Parse reads the file, expands attributes, resolves the second column and
// reconstructs missing gene and transcript rows. No table is returned on error.
func Parse(path string) (*Table, error) {
	return NewParser(path).Parse()
}

// Parse runs the full pipeline for the parser's file.
func (p *Parser) Parse() (*Table, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, fmt.Errorf("open GTF file: %w", err)
	}
	defer f.Close()

	reader, err := decompress(f)
	if err != nil {
		return nil, err
	}
	if c, ok := reader.(io.Closer); ok {
		defer c.Close()
	}

	p.logger.Info("reading GTF", zap.String("path", p.path))
	t, err := p.parse(reader)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.path, err)
	}
	return t, nil
}

// ParseReader is Parse for an already-open, uncompressed stream.
func (p *Parser) ParseReader(r io.Reader) (*Table, error) {
	return p.parse(r)
}

func (p *Parser) parse(r io.Reader) (*Table, error) {
	t, err := p.readTable(r)
	if err != nil {
		return nil, err
	}
	if err := validateRequiredColumns(t); err != nil {
		return nil, err
	}

	if !t.HasFeature(FeatureGene) {
		p.logger.Info("creating entries for missing feature", zap.String("feature", FeatureGene))
	}
	if !t.HasFeature(FeatureTranscript) {
		p.logger.Info("creating entries for missing feature", zap.String("feature", FeatureTranscript))
	}
	if err := Reconstruct(t); err != nil {
		return nil, err
	}
	if ReconstructExonIDs(t) {
		p.logger.Info("created exon_id column from transcript_id and exon_number")
	}

	p.logger.Info("parsed GTF",
		zap.Int("records", t.Len()),
		zap.Stringer("second_column", t.SecondColumn),
		zap.Strings("columns", t.Columns))
	return t, nil
}

// decompress wraps r in a gzip reader when it starts with the gzip magic bytes.
func decompress(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read GTF header: %w", err)
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip reader: %w", err)
		}
		return gz, nil
	}
	return br, nil
}

// readTable is the first pass: split lines into records, expand attributes
// and collect the distinct second-column values. The second column is
// classified only after every line has been read.
func (p *Parser) readTable(r io.Reader) (*Table, error) {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	in := newInterner()
	t := &Table{interned: true}
	seenColumn := make(map[string]bool)
	secondValues := make(secondColumnValues)
	var secondRaw []string

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")

		// Skip comments and empty lines
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rec, second, err := parseLine(line, lineNum, in)
		if err != nil {
			return nil, err
		}
		for _, key := range rec.attributeKeys() {
			if !seenColumn[key] {
				seenColumn[key] = true
				t.Columns = append(t.Columns, key)
			}
		}
		secondValues.add(second)
		secondRaw = append(secondRaw, second)
		t.Records = append(t.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}

	kind, err := classifySecondColumn(secondValues, t)
	if err != nil {
		return nil, err
	}
	applySecondColumn(t, kind, secondRaw)

	p.logger.Debug("read GTF lines",
		zap.Int("lines", lineNum),
		zap.Int("interned_strings", in.len()))
	return t, nil
}

// parseLine parses a single 9-field GTF line. It also returns the raw
// second column, whose meaning is decided later.
func parseLine(line string, lineNum int, in *interner) (Record, string, error) {
	malformed := func(reason string) error {
		return &MalformedRecordError{Line: lineNum, Text: line, Reason: reason}
	}

	fields := strings.Split(line, "\t")
	if len(fields) != 9 {
		return Record{}, "", malformed(fmt.Sprintf("expected 9 tab-separated fields, got %d", len(fields)))
	}

	contig, err := locus.NormalizeContig(fields[0])
	if err != nil {
		return Record{}, "", malformed(err.Error())
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil || start < 0 {
		return Record{}, "", malformed(fmt.Sprintf("invalid start %q", fields[3]))
	}
	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil || end < 0 {
		return Record{}, "", malformed(fmt.Sprintf("invalid end %q", fields[4]))
	}
	if start < 1 || end < start {
		return Record{}, "", malformed(fmt.Sprintf("invalid interval %d-%d", start, end))
	}

	rec := Record{
		Contig:  in.intern(contig),
		Feature: in.intern(fields[2]),
		Start:   start,
		End:     end,
		Line:    lineNum,
	}

	if fields[5] != "." {
		score, err := strconv.ParseFloat(fields[5], 64)
		if err != nil {
			return Record{}, "", malformed(fmt.Sprintf("invalid score %q", fields[5]))
		}
		rec.Score = score
		rec.HasScore = true
	}

	switch fields[6] {
	case "+", "-", ".":
		rec.Strand = in.intern(fields[6])
	default:
		return Record{}, "", malformed(fmt.Sprintf("invalid strand %q", fields[6]))
	}

	switch fields[7] {
	case "0", "1", "2", ".":
		rec.Frame = in.intern(fields[7])
	default:
		return Record{}, "", malformed(fmt.Sprintf("invalid frame %q", fields[7]))
	}

	eachAttribute(fields[8], func(key, value string) {
		rec.setAttribute(in.intern(key), in.intern(value))
	})

	return rec, in.intern(fields[1]), nil
}

// attributeKeys lists the keys this record carries a value for.
func (r *Record) attributeKeys() []string {
	var keys []string
	for _, key := range recognizedColumns {
		if *r.attributeField(key) != "" {
			keys = append(keys, key)
		}
	}
	for _, a := range r.Extra {
		keys = append(keys, a.Key)
	}
	return keys
}

// validateRequiredColumns fails before any store is built when the
// identifier columns every query depends on are absent.
func validateRequiredColumns(t *Table) error {
	for _, col := range []string{ColGeneID, ColTranscriptID} {
		if !t.HasColumn(col) {
			return &MissingRequiredColumnError{Column: col}
		}
	}
	return nil
}
