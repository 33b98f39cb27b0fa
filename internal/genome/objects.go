package genome

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/inodb/vibe-ensembl/internal/gtf"
	"github.com/inodb/vibe-ensembl/internal/locus"
	"github.com/inodb/vibe-ensembl/internal/store"
)

// ErrIncompleteCodon is returned when a transcript's start or stop codon
// does not cover exactly three positions.
var ErrIncompleteCodon = errors.New("codon does not span exactly 3 positions")

// Gene is one gene row.
type Gene struct {
	locus.Locus
	ID      string
	Name    string
	Biotype string

	genome *Genome
}

// Transcripts returns the transcripts of the gene in load order.
func (g Gene) Transcripts() ([]Transcript, error) {
	return g.genome.transcriptsWhere(gtf.ColGeneID, g.ID, false)
}

// Exons returns the distinct exons of every transcript of the gene.
func (g Gene) Exons() ([]Exon, error) {
	return g.genome.exonsWhere(gtf.ColGeneID, g.ID)
}

// Transcript is one transcript row.
type Transcript struct {
	locus.Locus
	ID        string
	Name      string
	Biotype   string
	GeneID    string
	GeneName  string

	// ProteinID is read from the CDS rows; empty for non-coding transcripts.
	ProteinID string

	genome *Genome
}

// Gene returns the parent gene.
func (t Transcript) Gene() (Gene, error) {
	return t.genome.GeneByID(t.GeneID)
}

// Exon is one exon of a transcript. Number is 0 when the release carries no
// exon numbers.
type Exon struct {
	locus.Locus
	ID     string
	Number int
}

// Exons returns the exons of the transcript from 5' to 3'.
func (t Transcript) Exons() ([]Exon, error) {
	q, err := t.genome.Querier()
	if err != nil {
		return nil, err
	}
	p := newProjection(q, gtf.ColExonID, gtf.ColExonNumber)
	rows, err := q.Query(store.Query{
		Columns:      p.columns,
		Feature:      gtf.FeatureExon,
		FilterColumn: gtf.ColTranscriptID,
		FilterValue:  t.ID,
	})
	if err != nil {
		return nil, err
	}

	exons := make([]Exon, 0, len(rows))
	for _, r := range rows {
		l, err := p.locus(r)
		if err != nil {
			return nil, err
		}
		e := Exon{Locus: l, ID: p.value(r, gtf.ColExonID)}
		if n := p.value(r, gtf.ColExonNumber); n != "" {
			if e.Number, err = strconv.Atoi(n); err != nil {
				return nil, fmt.Errorf("exon_number %q of transcript %s: %w", n, t.ID, err)
			}
		}
		exons = append(exons, e)
	}

	forward := t.OnForwardStrand()
	sort.SliceStable(exons, func(i, j int) bool {
		a, b := exons[i], exons[j]
		if a.Number != b.Number {
			return a.Number < b.Number
		}
		if forward {
			return a.Start() < b.Start()
		}
		return a.Start() > b.Start()
	})
	return exons, nil
}

// ExonIntervals returns the (start, end) pairs of the exons, 5' to 3'.
func (t Transcript) ExonIntervals() ([][2]int64, error) {
	exons, err := t.Exons()
	if err != nil {
		return nil, err
	}
	out := make([][2]int64, len(exons))
	for i, e := range exons {
		out[i] = [2]int64{e.Start(), e.End()}
	}
	return out, nil
}

// SplicedOffset maps a genomic position to its 0-based offset in the
// spliced transcript. Intronic positions are an error.
func (t Transcript) SplicedOffset(pos int64) (int64, error) {
	if pos < t.Start() || pos > t.End() {
		return 0, fmt.Errorf("position %d outside transcript %s (%d..%d)", pos, t.ID, t.Start(), t.End())
	}
	exons, err := t.Exons()
	if err != nil {
		return 0, err
	}

	var total int64
	for _, e := range exons {
		if pos >= e.Start() && pos <= e.End() {
			off, err := e.PositionOffset(pos)
			if err != nil {
				return 0, err
			}
			return total + off, nil
		}
		total += e.Len()
	}
	return 0, fmt.Errorf("position %d is not in any exon of transcript %s", pos, t.ID)
}

// StartCodonPositions returns the three genomic positions of the start
// codon in ascending order. A codon split by an intron has two rows.
func (t Transcript) StartCodonPositions() ([]int64, error) {
	return t.codonPositions(gtf.FeatureStartCodon)
}

// StopCodonPositions is StartCodonPositions for the stop codon.
func (t Transcript) StopCodonPositions() ([]int64, error) {
	return t.codonPositions(gtf.FeatureStopCodon)
}

// featureRanges returns the distinct (start, end) ranges of the
// transcript's rows of one feature, ordered by start.
func (t Transcript) featureRanges(feature string, required bool) ([][2]int64, error) {
	q, err := t.genome.Querier()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(store.Query{
		Columns:      []string{gtf.ColStart, gtf.ColEnd},
		Feature:      feature,
		FilterColumn: gtf.ColTranscriptID,
		FilterValue:  t.ID,
		Distinct:     true,
		Sorted:       true,
	})
	if err != nil {
		return nil, err
	}
	if required {
		if _, err := store.RequireSome(rows, feature, gtf.ColTranscriptID, t.ID); err != nil {
			return nil, err
		}
	}

	ranges := make([][2]int64, 0, len(rows))
	for _, r := range rows {
		start, err1 := strconv.ParseInt(r[0], 10, 64)
		end, err2 := strconv.ParseInt(r[1], 10, 64)
		if err := errors.Join(err1, err2); err != nil {
			return nil, fmt.Errorf("%s of transcript %s: %w", feature, t.ID, err)
		}
		ranges = append(ranges, [2]int64{start, end})
	}
	return ranges, nil
}

// CodingSequencePositionRanges returns the genomic ranges of the CDS rows,
// ordered by start. A transcript without CDS rows is a NotFoundError.
func (t Transcript) CodingSequencePositionRanges() ([][2]int64, error) {
	return t.featureRanges(gtf.FeatureCDS, true)
}

// ContainsStartCodon reports whether the transcript has start_codon rows.
func (t Transcript) ContainsStartCodon() (bool, error) {
	ranges, err := t.featureRanges(gtf.FeatureStartCodon, false)
	return len(ranges) > 0, err
}

// ContainsStopCodon reports whether the transcript has stop_codon rows.
func (t Transcript) ContainsStopCodon() (bool, error) {
	ranges, err := t.featureRanges(gtf.FeatureStopCodon, false)
	return len(ranges) > 0, err
}

func (t Transcript) codonPositions(feature string) ([]int64, error) {
	ranges, err := t.featureRanges(feature, true)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var positions []int64
	for _, r := range ranges {
		for p := r[0]; p <= r[1]; p++ {
			if !seen[p] {
				seen[p] = true
				positions = append(positions, p)
			}
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	if len(positions) != 3 {
		return nil, fmt.Errorf("%s of transcript %s has %d positions: %w", feature, t.ID, len(positions), ErrIncompleteCodon)
	}
	return positions, nil
}

// StartCodonSplicedOffsets returns the offsets of the start codon in the
// spliced transcript, ascending.
func (t Transcript) StartCodonSplicedOffsets() ([]int64, error) {
	return t.codonSplicedOffsets(gtf.FeatureStartCodon)
}

// StopCodonSplicedOffsets is StartCodonSplicedOffsets for the stop codon.
func (t Transcript) StopCodonSplicedOffsets() ([]int64, error) {
	return t.codonSplicedOffsets(gtf.FeatureStopCodon)
}

func (t Transcript) codonSplicedOffsets(feature string) ([]int64, error) {
	positions, err := t.codonPositions(feature)
	if err != nil {
		return nil, err
	}
	offsets := make([]int64, len(positions))
	for i, p := range positions {
		if offsets[i], err = t.SplicedOffset(p); err != nil {
			return nil, err
		}
	}
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })
	for i := 1; i < len(offsets); i++ {
		if offsets[i] != offsets[i-1]+1 {
			return nil, fmt.Errorf("%s of transcript %s is not contiguous in the spliced transcript: %v", feature, t.ID, offsets)
		}
	}
	return offsets, nil
}

// FirstStartCodonSplicedOffset is the spliced offset of the first base of
// the start codon.
func (t Transcript) FirstStartCodonSplicedOffset() (int64, error) {
	offsets, err := t.StartCodonSplicedOffsets()
	if err != nil {
		return 0, err
	}
	return offsets[0], nil
}

// LastStopCodonSplicedOffset is the spliced offset of the last base of the
// stop codon.
func (t Transcript) LastStopCodonSplicedOffset() (int64, error) {
	offsets, err := t.StopCodonSplicedOffsets()
	if err != nil {
		return 0, err
	}
	return offsets[len(offsets)-1], nil
}

// Complete reports whether the transcript has both a full start codon and
// a full stop codon.
func (t Transcript) Complete() bool {
	if _, err := t.StartCodonPositions(); err != nil {
		return false
	}
	_, err := t.StopCodonPositions()
	return err == nil
}

// projection is a column list for object construction. Optional columns
// missing from the release are not requested and read back as "".
type projection struct {
	columns []string
	pos     map[string]int
}

func newProjection(q store.Querier, optional ...string) projection {
	p := projection{
		columns: append([]string(nil), store.LocusColumns...),
		pos:     make(map[string]int),
	}
	for _, c := range optional {
		if q.HasColumn(c) {
			p.pos[c] = len(p.columns)
			p.columns = append(p.columns, c)
		}
	}
	return p
}

func (p projection) value(r store.Row, column string) string {
	if i, ok := p.pos[column]; ok {
		return r[i]
	}
	return ""
}

func (p projection) locus(r store.Row) (locus.Locus, error) {
	loci, err := store.LociFromRows([]store.Row{r[:len(store.LocusColumns)]})
	if err != nil {
		return locus.Locus{}, err
	}
	return loci[0], nil
}
