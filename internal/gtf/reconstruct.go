package gtf

import (
	"fmt"
	"sort"
	"strconv"
)

// reconstruction describes one synthesized feature level.
type reconstruction struct {
	feature string
	key     string   // grouping column
	carry   []string // columns copied from the group, if present in the table
}

var (
	geneLevel = reconstruction{
		feature: FeatureGene,
		key:     ColGeneID,
		carry:   []string{ColGeneName, ColGeneBiotype, ColProteinID},
	}
	transcriptLevel = reconstruction{
		feature: FeatureTranscript,
		key:     ColTranscriptID,
		carry: []string{
			ColGeneID, ColGeneName, ColGeneBiotype,
			ColTranscriptName, ColTranscriptBiotype, ColProteinID,
		},
	}
)

// Reconstruct appends synthetic gene and transcript rows when the table
// has none of them, as in releases that only list exons, CDS and codons.
//
// Each synthetic row spans min(start)..max(end) of the rows sharing its id
// and takes contig and strand from the first of them. Carried columns take
// the first non-empty value in row order. For protein_id this is a policy
// choice: a transcript with several CDS rows reports whichever protein id
// appears first, which is not guaranteed to be biologically meaningful.
//
// A level that already has rows is left alone, so Reconstruct is idempotent.
// The table is only modified when every level succeeds.
func Reconstruct(t *Table) error {
	var synthetic []Record
	for _, level := range []reconstruction{geneLevel, transcriptLevel} {
		if t.HasFeature(level.feature) {
			continue
		}
		rows, err := reconstructLevel(t, level)
		if err != nil {
			return err
		}
		synthetic = append(synthetic, rows...)
	}
	t.Records = append(t.Records, synthetic...)
	return nil
}

// group accumulates the aggregate of one identifier.
type group struct {
	id     string
	first  int // index of first member
	start  int64
	end    int64
	values map[string]string
}

func reconstructLevel(t *Table, level reconstruction) ([]Record, error) {
	var carry []string
	for _, col := range level.carry {
		if t.HasColumn(col) {
			carry = append(carry, col)
		}
	}

	groups := make(map[string]*group)
	for i := range t.Records {
		r := &t.Records[i]
		if r.Feature == FeatureGene || r.Feature == FeatureTranscript {
			continue
		}
		id := r.Value(level.key)
		if id == "" {
			return nil, &MissingRequiredColumnError{Column: level.key, Line: r.Line}
		}

		g, ok := groups[id]
		if !ok {
			g = &group{id: id, first: i, start: r.Start, end: r.End, values: make(map[string]string, len(carry))}
			groups[id] = g
		} else {
			head := &t.Records[g.first]
			if r.Contig != head.Contig {
				return nil, &ReconstructionError{
					Feature: level.feature, ID: id,
					Reason: fmt.Sprintf("rows on contigs %s and %s (line %d)", head.Contig, r.Contig, r.Line),
				}
			}
			if r.Strand != head.Strand {
				return nil, &ReconstructionError{
					Feature: level.feature, ID: id,
					Reason: fmt.Sprintf("rows on strands %s and %s (line %d)", head.Strand, r.Strand, r.Line),
				}
			}
			g.start = min(g.start, r.Start)
			g.end = max(g.end, r.End)
		}

		for _, col := range carry {
			if g.values[col] != "" {
				continue
			}
			if v := r.Value(col); v != "" {
				g.values[col] = v
			}
		}
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make([]Record, 0, len(ids))
	for _, id := range ids {
		g := groups[id]
		head := &t.Records[g.first]
		rec := Record{
			Contig:    head.Contig,
			Feature:   level.feature,
			Start:     g.start,
			End:       g.end,
			Strand:    head.Strand,
			Frame:     ".",
			Synthetic: true,
		}
		rec.setAttribute(level.key, id)
		for _, col := range carry {
			if v := g.values[col]; v != "" {
				rec.setAttribute(col, v)
			}
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// ReconstructExonIDs fills exon_id as "<transcript_id>.exon<exon_number>"
// for releases that predate exon identifiers. It reports whether the
// column was created.
func ReconstructExonIDs(t *Table) bool {
	if t.HasColumn(ColExonID) || !t.HasColumn(ColTranscriptID) || !t.HasColumn(ColExonNumber) {
		return false
	}
	created := false
	for i := range t.Records {
		r := &t.Records[i]
		if r.TranscriptID == "" || r.ExonNumber == "" {
			continue
		}
		n, err := strconv.Atoi(r.ExonNumber)
		if err != nil {
			continue
		}
		r.ExonID = r.TranscriptID + ".exon" + strconv.Itoa(n)
		created = true
	}
	if created {
		t.addColumn(ColExonID)
	}
	return created
}
