package gtf

import (
	"errors"
	"fmt"
)

// MalformedRecordError is a line with the wrong field count or an
// unparseable field. It aborts the parse.
type MalformedRecordError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed GTF record at line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// MissingRequiredColumnError reports a required attribute absent from the
// table (Line == 0) or from a row that needs it.
type MissingRequiredColumnError struct {
	Column string
	Line   int
}

func (e *MissingRequiredColumnError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("missing required column %q", e.Column)
	}
	return fmt.Sprintf("missing required column %q at line %d", e.Column, e.Line)
}

// ReconstructionError reports a group of rows that cannot be aggregated
// into one synthetic feature, e.g. a gene id spanning two contigs.
type ReconstructionError struct {
	Feature string
	ID      string
	Reason  string
}

func (e *ReconstructionError) Error() string {
	return fmt.Sprintf("reconstruct %s %s: %s", e.Feature, e.ID, e.Reason)
}

// ErrBiotypeColumnConflict is returned when the second column holds a biotype
// but both gene_biotype and transcript_biotype attributes already exist.
var ErrBiotypeColumnConflict = errors.New("second column is a biotype but gene_biotype and transcript_biotype attributes are both present")
