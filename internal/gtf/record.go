// Package gtf parses GTF annotation files into an immutable table of
// records, expanding attributes and reconstructing gene and transcript
// rows that older releases omit.
package gtf

import "strconv"

// Feature names used by reconstruction and the stores.
const (
	FeatureGene       = "gene"
	FeatureTranscript = "transcript"
	FeatureExon       = "exon"
	FeatureCDS        = "CDS"
	FeatureStartCodon = "start_codon"
	FeatureStopCodon  = "stop_codon"
	FeatureUTR        = "UTR"
)

// Fixed columns present on every record.
const (
	ColContig  = "contig"
	ColSource  = "source"
	ColFeature = "feature"
	ColStart   = "start"
	ColEnd     = "end"
	ColScore   = "score"
	ColStrand  = "strand"
	ColFrame   = "frame"
)

// Recognized attribute columns. These are materialized as Record fields;
// any other attribute key is kept in Record.Extra.
const (
	ColGeneID            = "gene_id"
	ColGeneName          = "gene_name"
	ColGeneBiotype       = "gene_biotype"
	ColTranscriptID      = "transcript_id"
	ColTranscriptName    = "transcript_name"
	ColTranscriptBiotype = "transcript_biotype"
	ColExonID            = "exon_id"
	ColExonNumber        = "exon_number"
	ColProteinID         = "protein_id"
)

// FixedColumns lists the 8 positional columns in file order (the 9th,
// the attribute string, is expanded into attribute columns).
var FixedColumns = []string{ColContig, ColSource, ColFeature, ColStart, ColEnd, ColScore, ColStrand, ColFrame}

// Attribute is one key/value pair from the attribute column.
type Attribute struct {
	Key   string
	Value string
}

// Record is one annotation row. Absent attribute values are empty strings.
type Record struct {
	Contig   string
	Source   string // empty when the second column held a biotype
	Feature  string
	Start    int64 // 1-based, inclusive
	End      int64 // 1-based, inclusive
	Score    float64
	HasScore bool   // false for "."
	Strand   string // "+", "-" or "."
	Frame    string // "0", "1", "2" or "."

	GeneID            string
	GeneName          string
	GeneBiotype       string
	TranscriptID      string
	TranscriptName    string
	TranscriptBiotype string
	ExonID            string
	ExonNumber        string
	ProteinID         string

	Extra []Attribute // unrecognized keys in file order

	// Synthetic rows were derived by aggregation and may lack optional
	// columns such as names and biotypes.
	Synthetic bool
	Line      int // source line number, 0 for synthetic rows
}

// setAttribute stores a value under key. A repeated key overwrites the
// earlier value.
func (r *Record) setAttribute(key, value string) {
	if p := r.attributeField(key); p != nil {
		*p = value
		return
	}
	for i := range r.Extra {
		if r.Extra[i].Key == key {
			r.Extra[i].Value = value
			return
		}
	}
	r.Extra = append(r.Extra, Attribute{Key: key, Value: value})
}

func (r *Record) attributeField(key string) *string {
	switch key {
	case ColGeneID:
		return &r.GeneID
	case ColGeneName:
		return &r.GeneName
	case ColGeneBiotype:
		return &r.GeneBiotype
	case ColTranscriptID:
		return &r.TranscriptID
	case ColTranscriptName:
		return &r.TranscriptName
	case ColTranscriptBiotype:
		return &r.TranscriptBiotype
	case ColExonID:
		return &r.ExonID
	case ColExonNumber:
		return &r.ExonNumber
	case ColProteinID:
		return &r.ProteinID
	}
	return nil
}

// Value returns the record's value for any column as a string: numbers are
// formatted in base 10, a missing score or attribute is "".
func (r *Record) Value(column string) string {
	switch column {
	case ColContig, "seqname":
		return r.Contig
	case ColSource:
		return r.Source
	case ColFeature:
		return r.Feature
	case ColStart:
		return strconv.FormatInt(r.Start, 10)
	case ColEnd:
		return strconv.FormatInt(r.End, 10)
	case ColScore:
		if !r.HasScore {
			return ""
		}
		return strconv.FormatFloat(r.Score, 'g', -1, 64)
	case ColStrand:
		return r.Strand
	case ColFrame:
		return r.Frame
	}
	if p := r.attributeField(column); p != nil {
		return *p
	}
	for _, a := range r.Extra {
		if a.Key == column {
			return a.Value
		}
	}
	return ""
}

// Attributes returns the non-empty attribute pairs of the record, recognized
// keys first in a fixed order, then the extras in file order.
func (r *Record) Attributes() []Attribute {
	var attrs []Attribute
	for _, key := range recognizedColumns {
		if v := *r.attributeField(key); v != "" {
			attrs = append(attrs, Attribute{Key: key, Value: v})
		}
	}
	return append(attrs, r.Extra...)
}

var recognizedColumns = []string{
	ColGeneID, ColGeneName, ColGeneBiotype,
	ColTranscriptID, ColTranscriptName, ColTranscriptBiotype,
	ColExonID, ColExonNumber, ColProteinID,
}

// IsRecognizedColumn reports whether column is materialized as a Record field.
func IsRecognizedColumn(column string) bool {
	for _, c := range recognizedColumns {
		if c == column {
			return true
		}
	}
	return false
}

// IsNumericColumn reports whether values of column sort numerically.
func IsNumericColumn(column string) bool {
	switch column {
	case ColStart, ColEnd, ColScore, ColExonNumber:
		return true
	}
	return false
}
