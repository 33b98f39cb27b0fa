package gtf

import "fmt"

// SecondColumn is the meaning assigned to the second GTF column. Depending
// on the release it holds the annotation source, the gene biotype or the
// transcript biotype.
type SecondColumn int

const (
	SecondColumnSource SecondColumn = iota
	SecondColumnGeneBiotype
	SecondColumnTranscriptBiotype
)

func (s SecondColumn) String() string {
	switch s {
	case SecondColumnSource:
		return ColSource
	case SecondColumnGeneBiotype:
		return ColGeneBiotype
	case SecondColumnTranscriptBiotype:
		return ColTranscriptBiotype
	}
	return fmt.Sprintf("SecondColumn(%d)", int(s))
}

// proteinCodingBiotype is the marker value: a column that contains it
// anywhere is a biotype column.
const proteinCodingBiotype = "protein_coding"

// secondColumnValues is the first-pass result: every distinct value seen
// in the second column.
type secondColumnValues map[string]struct{}

func (v secondColumnValues) add(s string) {
	v[s] = struct{}{}
}

// isBiotype applies the corpus-wide heuristic once over the full value set.
func (v secondColumnValues) isBiotype() bool {
	_, ok := v[proteinCodingBiotype]
	return ok
}

// classifySecondColumn decides the column meaning after a full pass.
// A biotype column is the transcript biotype when gene_biotype is already
// an attribute, otherwise the gene biotype.
func classifySecondColumn(values secondColumnValues, t *Table) (SecondColumn, error) {
	if !values.isBiotype() {
		return SecondColumnSource, nil
	}
	if !t.HasColumn(ColGeneBiotype) {
		return SecondColumnGeneBiotype, nil
	}
	if t.HasColumn(ColTranscriptBiotype) {
		return SecondColumnSource, ErrBiotypeColumnConflict
	}
	return SecondColumnTranscriptBiotype, nil
}

// applySecondColumn moves the raw second-column values into the column
// chosen by classifySecondColumn.
func applySecondColumn(t *Table, kind SecondColumn, raw []string) {
	t.SecondColumn = kind
	for i := range t.Records {
		r := &t.Records[i]
		switch kind {
		case SecondColumnSource:
			r.Source = raw[i]
		case SecondColumnGeneBiotype:
			r.GeneBiotype = raw[i]
		case SecondColumnTranscriptBiotype:
			r.TranscriptBiotype = raw[i]
		}
	}
	if kind != SecondColumnSource {
		t.addColumn(kind.String())
	}
}
