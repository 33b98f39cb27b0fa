package genome

import (
	"slices"

	"github.com/inodb/vibe-ensembl/internal/gtf"
	"github.com/inodb/vibe-ensembl/internal/locus"
	"github.com/inodb/vibe-ensembl/internal/memcache"
	"github.com/inodb/vibe-ensembl/internal/store"
)

// atLocus returns the distinct sorted values of column among feature rows
// overlapping [start, end] on contig. end == 0 means a single position.
func (g *Genome) atLocus(column, feature, contig string, start, end int64, strand locus.Strand) ([]string, error) {
	q, err := g.Querier()
	if err != nil {
		return nil, err
	}
	return q.ColumnValuesAtLocus(store.LocusQuery{
		Column:   column,
		Feature:  feature,
		Contig:   contig,
		Start:    start,
		End:      end,
		Strand:   strand,
		Distinct: true,
		Sorted:   true,
	})
}

// GeneIDsAtLocus returns the ids of genes overlapping the interval.
func (g *Genome) GeneIDsAtLocus(contig string, start, end int64, strand locus.Strand) ([]string, error) {
	return g.atLocus(gtf.ColGeneID, gtf.FeatureGene, contig, start, end, strand)
}

// GeneNamesAtLocus returns the names of genes overlapping the interval.
func (g *Genome) GeneNamesAtLocus(contig string, start, end int64, strand locus.Strand) ([]string, error) {
	return g.atLocus(gtf.ColGeneName, gtf.FeatureGene, contig, start, end, strand)
}

// TranscriptIDsAtLocus returns the ids of transcripts overlapping the interval.
func (g *Genome) TranscriptIDsAtLocus(contig string, start, end int64, strand locus.Strand) ([]string, error) {
	return g.atLocus(gtf.ColTranscriptID, gtf.FeatureTranscript, contig, start, end, strand)
}

// TranscriptNamesAtLocus returns the names of transcripts overlapping the
// interval.
func (g *Genome) TranscriptNamesAtLocus(contig string, start, end int64, strand locus.Strand) ([]string, error) {
	return g.atLocus(gtf.ColTranscriptName, gtf.FeatureTranscript, contig, start, end, strand)
}

// ExonIDsAtLocus returns the ids of exons overlapping the interval.
func (g *Genome) ExonIDsAtLocus(contig string, start, end int64, strand locus.Strand) ([]string, error) {
	return g.atLocus(gtf.ColExonID, gtf.FeatureExon, contig, start, end, strand)
}

// ProteinIDsAtLocus looks at CDS rows, the only ones that always carry a
// protein_id.
func (g *Genome) ProteinIDsAtLocus(contig string, start, end int64, strand locus.Strand) ([]string, error) {
	return g.atLocus(gtf.ColProteinID, gtf.FeatureCDS, contig, start, end, strand)
}

// GenesAtLocus returns the genes overlapping the interval, ordered by id.
func (g *Genome) GenesAtLocus(contig string, start, end int64, strand locus.Strand) ([]Gene, error) {
	ids, err := g.GeneIDsAtLocus(contig, start, end, strand)
	if err != nil {
		return nil, err
	}
	genes := make([]Gene, 0, len(ids))
	for _, id := range ids {
		gene, err := g.GeneByID(id)
		if err != nil {
			return nil, err
		}
		genes = append(genes, gene)
	}
	return genes, nil
}

// TranscriptsAtLocus returns the transcripts overlapping the interval,
// ordered by id.
func (g *Genome) TranscriptsAtLocus(contig string, start, end int64, strand locus.Strand) ([]Transcript, error) {
	ids, err := g.TranscriptIDsAtLocus(contig, start, end, strand)
	if err != nil {
		return nil, err
	}
	out := make([]Transcript, 0, len(ids))
	for _, id := range ids {
		t, err := g.TranscriptByID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// ExonsAtLocus returns the exons overlapping the interval, ordered by id.
func (g *Genome) ExonsAtLocus(contig string, start, end int64, strand locus.Strand) ([]Exon, error) {
	ids, err := g.ExonIDsAtLocus(contig, start, end, strand)
	if err != nil {
		return nil, err
	}
	out := make([]Exon, 0, len(ids))
	for _, id := range ids {
		e, err := g.ExonByID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// featureValues returns the distinct sorted values of column among feature
// rows through the cache. An empty contig means every contig.
func (g *Genome) featureValues(column, feature, contig string, strand locus.Strand) ([]string, error) {
	q, err := g.Querier()
	if err != nil {
		return nil, err
	}
	if contig != "" {
		if contig, err = locus.NormalizeContig(contig); err != nil {
			return nil, err
		}
	}
	key := memcache.Key{
		Base:     g.base,
		Contig:   contig,
		Feature:  feature,
		Column:   column,
		Strand:   strand,
		Distinct: true,
	}
	values, err := memcache.Get(g.cache, key, func() ([]string, error) {
		return q.QueryFeatureValues(column, feature, store.FeatureValuesOptions{
			Contig:   contig,
			Strand:   strand,
			Distinct: true,
			Sorted:   true,
		})
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(values), nil
}

// GeneIDs lists every gene id, optionally on one contig and strand.
func (g *Genome) GeneIDs(contig string, strand locus.Strand) ([]string, error) {
	return g.featureValues(gtf.ColGeneID, gtf.FeatureGene, contig, strand)
}

// GeneNames lists every gene name.
func (g *Genome) GeneNames(contig string, strand locus.Strand) ([]string, error) {
	return g.featureValues(gtf.ColGeneName, gtf.FeatureGene, contig, strand)
}

// TranscriptIDs lists every transcript id.
func (g *Genome) TranscriptIDs(contig string, strand locus.Strand) ([]string, error) {
	return g.featureValues(gtf.ColTranscriptID, gtf.FeatureTranscript, contig, strand)
}

// TranscriptNames lists every transcript name.
func (g *Genome) TranscriptNames(contig string, strand locus.Strand) ([]string, error) {
	return g.featureValues(gtf.ColTranscriptName, gtf.FeatureTranscript, contig, strand)
}

// ExonIDs lists every exon id.
func (g *Genome) ExonIDs(contig string, strand locus.Strand) ([]string, error) {
	return g.featureValues(gtf.ColExonID, gtf.FeatureExon, contig, strand)
}

// ProteinIDs lists every protein id found on CDS rows.
func (g *Genome) ProteinIDs(contig string, strand locus.Strand) ([]string, error) {
	return g.featureValues(gtf.ColProteinID, gtf.FeatureCDS, contig, strand)
}

// Contigs lists the contigs of the release in sorted order.
func (g *Genome) Contigs() ([]string, error) {
	q, err := g.Querier()
	if err != nil {
		return nil, err
	}
	contigs, err := memcache.Get(g.cache, memcache.Key{Base: g.base, Column: gtf.ColContig, Distinct: true}, q.Contigs)
	if err != nil {
		return nil, err
	}
	return slices.Clone(contigs), nil
}

// related returns the distinct sorted non-empty values of target among
// feature rows where column = value. At least one row is required, but the
// result is empty when every matching row leaves target blank.
func (g *Genome) related(feature, column, value, target string) ([]string, error) {
	q, err := g.Querier()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(store.Query{
		Columns:      []string{target},
		Feature:      feature,
		FilterColumn: column,
		FilterValue:  value,
		Distinct:     true,
		Sorted:       true,
	})
	if err != nil {
		return nil, err
	}
	if _, err := store.RequireSome(rows, feature, column, value); err != nil {
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

// relatedOne is related for a key that must map to a single value. It
// returns "" when the rows exist but carry no value for target.
func (g *Genome) relatedOne(feature, column, value, target string) (string, error) {
	values, err := g.related(feature, column, value, target)
	if err != nil {
		return "", err
	}
	if len(values) == 0 {
		return "", nil
	}
	return store.ExactlyOne(values, feature, column, value)
}

// GeneIDsOfGeneName returns every gene id carrying name. Gene names are
// not unique across contigs.
func (g *Genome) GeneIDsOfGeneName(name string) ([]string, error) {
	return g.related(gtf.FeatureGene, gtf.ColGeneName, name, gtf.ColGeneID)
}

// TranscriptIDsOfGeneID returns the transcript ids of a gene.
func (g *Genome) TranscriptIDsOfGeneID(geneID string) ([]string, error) {
	return g.related(gtf.FeatureTranscript, gtf.ColGeneID, geneID, gtf.ColTranscriptID)
}

// TranscriptIDsOfGeneName returns the transcript ids of every gene named name.
func (g *Genome) TranscriptIDsOfGeneName(name string) ([]string, error) {
	return g.related(gtf.FeatureTranscript, gtf.ColGeneName, name, gtf.ColTranscriptID)
}

// TranscriptIDsOfTranscriptName returns every transcript id carrying name.
func (g *Genome) TranscriptIDsOfTranscriptName(name string) ([]string, error) {
	return g.related(gtf.FeatureTranscript, gtf.ColTranscriptName, name, gtf.ColTranscriptID)
}

// TranscriptIDsOfExonID returns the transcripts sharing an exon.
func (g *Genome) TranscriptIDsOfExonID(exonID string) ([]string, error) {
	return g.related(gtf.FeatureExon, gtf.ColExonID, exonID, gtf.ColTranscriptID)
}

// TranscriptNamesOfGeneName returns the transcript names of every gene named
// name.
func (g *Genome) TranscriptNamesOfGeneName(name string) ([]string, error) {
	return g.related(gtf.FeatureTranscript, gtf.ColGeneName, name, gtf.ColTranscriptName)
}

// ExonIDsOfTranscriptID returns the exon ids of a transcript.
func (g *Genome) ExonIDsOfTranscriptID(transcriptID string) ([]string, error) {
	return g.related(gtf.FeatureExon, gtf.ColTranscriptID, transcriptID, gtf.ColExonID)
}

// ExonIDsOfTranscriptName returns the exon ids of every transcript named name.
func (g *Genome) ExonIDsOfTranscriptName(name string) ([]string, error) {
	return g.related(gtf.FeatureExon, gtf.ColTranscriptName, name, gtf.ColExonID)
}

// ExonIDsOfGeneID returns the exon ids of every transcript of a gene.
func (g *Genome) ExonIDsOfGeneID(geneID string) ([]string, error) {
	return g.related(gtf.FeatureExon, gtf.ColGeneID, geneID, gtf.ColExonID)
}

// ExonIDsOfGeneName returns the exon ids of every gene named name.
func (g *Genome) ExonIDsOfGeneName(name string) ([]string, error) {
	return g.related(gtf.FeatureExon, gtf.ColGeneName, name, gtf.ColExonID)
}

// GeneNameOfGeneID returns the name of a gene, or "" for an unnamed one.
func (g *Genome) GeneNameOfGeneID(geneID string) (string, error) {
	return g.relatedOne(gtf.FeatureGene, gtf.ColGeneID, geneID, gtf.ColGeneName)
}

// GeneNameOfTranscriptID returns the gene name of a transcript.
func (g *Genome) GeneNameOfTranscriptID(transcriptID string) (string, error) {
	return g.relatedOne(gtf.FeatureTranscript, gtf.ColTranscriptID, transcriptID, gtf.ColGeneName)
}

// GeneNameOfTranscriptName returns the gene name of a named transcript.
func (g *Genome) GeneNameOfTranscriptName(name string) (string, error) {
	return g.relatedOne(gtf.FeatureTranscript, gtf.ColTranscriptName, name, gtf.ColGeneName)
}

// GeneNameOfExonID returns the gene name of an exon.
func (g *Genome) GeneNameOfExonID(exonID string) (string, error) {
	return g.relatedOne(gtf.FeatureExon, gtf.ColExonID, exonID, gtf.ColGeneName)
}

// GeneIDOfTranscriptID returns the gene id of a transcript.
func (g *Genome) GeneIDOfTranscriptID(transcriptID string) (string, error) {
	return g.relatedOne(gtf.FeatureTranscript, gtf.ColTranscriptID, transcriptID, gtf.ColGeneID)
}

// GeneIDOfProteinID returns the gene id of a protein.
func (g *Genome) GeneIDOfProteinID(proteinID string) (string, error) {
	return g.relatedOne(gtf.FeatureCDS, gtf.ColProteinID, proteinID, gtf.ColGeneID)
}

// TranscriptNameOfTranscriptID returns the name of a transcript.
func (g *Genome) TranscriptNameOfTranscriptID(transcriptID string) (string, error) {
	return g.relatedOne(gtf.FeatureTranscript, gtf.ColTranscriptID, transcriptID, gtf.ColTranscriptName)
}

// TranscriptIDOfProteinID returns the transcript coding for a protein.
func (g *Genome) TranscriptIDOfProteinID(proteinID string) (string, error) {
	return g.relatedOne(gtf.FeatureCDS, gtf.ColProteinID, proteinID, gtf.ColTranscriptID)
}

// LocusOfGeneID returns the locus of a gene.
func (g *Genome) LocusOfGeneID(geneID string) (locus.Locus, error) {
	q, err := g.Querier()
	if err != nil {
		return locus.Locus{}, err
	}
	return q.QueryLocus(gtf.ColGeneID, geneID, gtf.FeatureGene)
}

// LociOfGeneName returns the loci of every gene named name.
func (g *Genome) LociOfGeneName(name string) ([]locus.Locus, error) {
	q, err := g.Querier()
	if err != nil {
		return nil, err
	}
	return q.QueryLoci(gtf.ColGeneName, name, gtf.FeatureGene)
}

// LocusOfTranscriptID returns the locus of a transcript.
func (g *Genome) LocusOfTranscriptID(transcriptID string) (locus.Locus, error) {
	q, err := g.Querier()
	if err != nil {
		return locus.Locus{}, err
	}
	return q.QueryLocus(gtf.ColTranscriptID, transcriptID, gtf.FeatureTranscript)
}

// LocusOfExonID returns the locus of an exon.
func (g *Genome) LocusOfExonID(exonID string) (locus.Locus, error) {
	q, err := g.Querier()
	if err != nil {
		return locus.Locus{}, err
	}
	return q.QueryLocus(gtf.ColExonID, exonID, gtf.FeatureExon)
}

// matchesStrand treats Unstranded as "either strand".
func matchesStrand(l locus.Locus, strand locus.Strand) bool {
	return strand == locus.Unstranded || l.OnStrand(strand)
}

// contigFilter maps an optional contig onto a query filter.
func contigFilter(contig string) (column, value string, err error) {
	if contig == "" {
		return "", "", nil
	}
	c, err := locus.NormalizeContig(contig)
	if err != nil {
		return "", "", err
	}
	return gtf.ColContig, c, nil
}

// GeneByID returns the gene with the given id.
func (g *Genome) GeneByID(id string) (Gene, error) {
	genes, err := g.genesWhere(gtf.ColGeneID, id, true)
	if err != nil {
		return Gene{}, err
	}
	return store.ExactlyOne(genes, gtf.FeatureGene, gtf.ColGeneID, id)
}

// GeneByProteinID returns the gene coding for a protein.
func (g *Genome) GeneByProteinID(proteinID string) (Gene, error) {
	id, err := g.GeneIDOfProteinID(proteinID)
	if err != nil {
		return Gene{}, err
	}
	return g.GeneByID(id)
}

// GenesByName returns every gene carrying name.
func (g *Genome) GenesByName(name string) ([]Gene, error) {
	return g.genesWhere(gtf.ColGeneName, name, true)
}

// Genes returns every gene, optionally restricted to a contig and strand.
func (g *Genome) Genes(contig string, strand locus.Strand) ([]Gene, error) {
	column, value, err := contigFilter(contig)
	if err != nil {
		return nil, err
	}
	genes, err := g.genesWhere(column, value, false)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(genes, func(gene Gene) bool {
		return !matchesStrand(gene.Locus, strand)
	}), nil
}

func (g *Genome) genesWhere(column, value string, required bool) ([]Gene, error) {
	q, err := g.Querier()
	if err != nil {
		return nil, err
	}
	p := newProjection(q, gtf.ColGeneID, gtf.ColGeneName, gtf.ColGeneBiotype)
	rows, err := q.Query(store.Query{
		Columns:      p.columns,
		Feature:      gtf.FeatureGene,
		FilterColumn: column,
		FilterValue:  value,
		Distinct:     true,
	})
	if err != nil {
		return nil, err
	}
	if required {
		if _, err := store.RequireSome(rows, gtf.FeatureGene, column, value); err != nil {
			return nil, err
		}
	}

	genes := make([]Gene, 0, len(rows))
	for _, r := range rows {
		l, err := p.locus(r)
		if err != nil {
			return nil, err
		}
		genes = append(genes, Gene{
			Locus:   l,
			ID:      p.value(r, gtf.ColGeneID),
			Name:    p.value(r, gtf.ColGeneName),
			Biotype: p.value(r, gtf.ColGeneBiotype),
			genome:  g,
		})
	}
	return genes, nil
}

// TranscriptByID returns the transcript with the given id.
func (g *Genome) TranscriptByID(id string) (Transcript, error) {
	ts, err := g.transcriptsWhere(gtf.ColTranscriptID, id, true)
	if err != nil {
		return Transcript{}, err
	}
	return store.ExactlyOne(ts, gtf.FeatureTranscript, gtf.ColTranscriptID, id)
}

// TranscriptByProteinID returns the transcript coding for a protein.
func (g *Genome) TranscriptByProteinID(proteinID string) (Transcript, error) {
	id, err := g.TranscriptIDOfProteinID(proteinID)
	if err != nil {
		return Transcript{}, err
	}
	return g.TranscriptByID(id)
}

// TranscriptsByName returns every transcript carrying name.
func (g *Genome) TranscriptsByName(name string) ([]Transcript, error) {
	return g.transcriptsWhere(gtf.ColTranscriptName, name, true)
}

// Transcripts returns every transcript, optionally restricted to a contig
// and strand.
func (g *Genome) Transcripts(contig string, strand locus.Strand) ([]Transcript, error) {
	column, value, err := contigFilter(contig)
	if err != nil {
		return nil, err
	}
	ts, err := g.transcriptsWhere(column, value, false)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(ts, func(t Transcript) bool {
		return !matchesStrand(t.Locus, strand)
	}), nil
}

func (g *Genome) transcriptsWhere(column, value string, required bool) ([]Transcript, error) {
	q, err := g.Querier()
	if err != nil {
		return nil, err
	}
	p := newProjection(q, gtf.ColTranscriptID, gtf.ColTranscriptName, gtf.ColTranscriptBiotype,
		gtf.ColGeneID, gtf.ColGeneName)
	rows, err := q.Query(store.Query{
		Columns:      p.columns,
		Feature:      gtf.FeatureTranscript,
		FilterColumn: column,
		FilterValue:  value,
		Distinct:     true,
	})
	if err != nil {
		return nil, err
	}
	if required {
		if _, err := store.RequireSome(rows, gtf.FeatureTranscript, column, value); err != nil {
			return nil, err
		}
	}

	out := make([]Transcript, 0, len(rows))
	for _, r := range rows {
		l, err := p.locus(r)
		if err != nil {
			return nil, err
		}
		out = append(out, Transcript{
			Locus:    l,
			ID:       p.value(r, gtf.ColTranscriptID),
			Name:     p.value(r, gtf.ColTranscriptName),
			Biotype:  p.value(r, gtf.ColTranscriptBiotype),
			GeneID:   p.value(r, gtf.ColGeneID),
			GeneName: p.value(r, gtf.ColGeneName),
			genome:   g,
		})
	}
	if q.HasColumn(gtf.ColProteinID) {
		if err := attachProteinIDs(q, column, value, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// attachProteinIDs sets ProteinID from the CDS rows of each transcript.
// Transcript rows of current releases carry no protein_id. A transcript
// whose CDS rows name several proteins is an AmbiguousResultError.
func attachProteinIDs(q store.Querier, column, value string, ts []Transcript) error {
	proteins := make(map[string][]string, len(ts))
	collect := func(column, value string) error {
		rows, err := q.Query(store.Query{
			Columns:      []string{gtf.ColTranscriptID, gtf.ColProteinID},
			Feature:      gtf.FeatureCDS,
			FilterColumn: column,
			FilterValue:  value,
			Distinct:     true,
		})
		if err != nil {
			return err
		}
		for _, r := range rows {
			if r[1] != "" {
				proteins[r[0]] = append(proteins[r[0]], r[1])
			}
		}
		return nil
	}

	switch column {
	case "", gtf.ColContig, gtf.ColGeneID, gtf.ColTranscriptID:
		// every CDS row carries these, so one query covers all transcripts
		if err := collect(column, value); err != nil {
			return err
		}
	default:
		done := make(map[string]bool, len(ts))
		for _, t := range ts {
			if done[t.ID] {
				continue
			}
			done[t.ID] = true
			if err := collect(gtf.ColTranscriptID, t.ID); err != nil {
				return err
			}
		}
	}

	for i := range ts {
		switch ids := proteins[ts[i].ID]; len(ids) {
		case 0:
		case 1:
			ts[i].ProteinID = ids[0]
		default:
			return &store.AmbiguousResultError{
				Feature: gtf.FeatureCDS,
				Column:  gtf.ColTranscriptID,
				Value:   ts[i].ID,
				Count:   len(ids),
			}
		}
	}
	return nil
}

// ExonByID returns the exon with the given id. An exon shared by several
// transcripts has one row per transcript, all with the same locus.
func (g *Genome) ExonByID(id string) (Exon, error) {
	q, err := g.Querier()
	if err != nil {
		return Exon{}, err
	}
	loc, err := q.QueryLocus(gtf.ColExonID, id, gtf.FeatureExon)
	if err != nil {
		return Exon{}, err
	}
	return Exon{Locus: loc, ID: id}, nil
}

// Exons returns every exon once, optionally restricted to a contig and
// strand, in load order.
func (g *Genome) Exons(contig string, strand locus.Strand) ([]Exon, error) {
	column, value, err := contigFilter(contig)
	if err != nil {
		return nil, err
	}
	exons, err := g.exonsWhere(column, value)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(exons, func(e Exon) bool {
		return !matchesStrand(e.Locus, strand)
	}), nil
}

// exonsWhere returns the distinct exons of matching rows. Exon numbers are
// per transcript and are left unset.
func (g *Genome) exonsWhere(column, value string) ([]Exon, error) {
	q, err := g.Querier()
	if err != nil {
		return nil, err
	}
	p := newProjection(q, gtf.ColExonID)
	rows, err := q.Query(store.Query{
		Columns:      p.columns,
		Feature:      gtf.FeatureExon,
		FilterColumn: column,
		FilterValue:  value,
		Distinct:     true,
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(rows))
	exons := make([]Exon, 0, len(rows))
	for _, r := range rows {
		id := p.value(r, gtf.ColExonID)
		if id != "" {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		l, err := p.locus(r)
		if err != nil {
			return nil, err
		}
		exons = append(exons, Exon{Locus: l, ID: id})
	}
	return exons, nil
}
