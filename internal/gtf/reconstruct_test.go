package gtf

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exonRecord(contig string, start, end int64, strand, gene, tx string) Record {
	return Record{
		Contig: contig, Feature: FeatureExon, Start: start, End: end,
		Strand: strand, Frame: ".", GeneID: gene, TranscriptID: tx,
	}
}

func TestReconstruct_Spans(t *testing.T) {
	table := &Table{
		Records: []Record{
			exonRecord("1", 300, 400, "+", "G1", "T2"),
			exonRecord("1", 100, 150, "+", "G1", "T1"),
			exonRecord("1", 500, 900, "+", "G1", "T1"),
		},
		Columns: []string{ColGeneID, ColTranscriptID},
	}

	require.NoError(t, Reconstruct(table))
	require.Equal(t, 6, table.Len())

	gene := findRecord(table, FeatureGene, ColGeneID, "G1")
	require.NotNil(t, gene)
	assert.Equal(t, int64(100), gene.Start)
	assert.Equal(t, int64(900), gene.End)

	// synthetic transcripts are emitted sorted by id
	assert.Equal(t, "T1", table.Records[4].TranscriptID)
	assert.Equal(t, int64(100), table.Records[4].Start)
	assert.Equal(t, int64(900), table.Records[4].End)
	assert.Equal(t, "T2", table.Records[5].TranscriptID)
	assert.Equal(t, int64(300), table.Records[5].Start)
	assert.Equal(t, "G1", table.Records[5].GeneID)
	assert.Equal(t, 0, table.Records[5].Line)
}

func TestReconstruct_Idempotent(t *testing.T) {
	table := &Table{
		Records: []Record{exonRecord("1", 100, 200, "+", "G1", "T1")},
		Columns: []string{ColGeneID, ColTranscriptID},
	}

	require.NoError(t, Reconstruct(table))
	once := append([]Record(nil), table.Records...)
	require.NoError(t, Reconstruct(table))
	assert.Equal(t, once, table.Records)
}

func TestReconstruct_ContigMismatch(t *testing.T) {
	table := &Table{
		Records: []Record{
			exonRecord("1", 100, 200, "+", "G1", "T1"),
			exonRecord("2", 300, 400, "+", "G1", "T1"),
		},
		Columns: []string{ColGeneID, ColTranscriptID},
	}

	err := Reconstruct(table)
	var rerr *ReconstructionError
	require.True(t, errors.As(err, &rerr), "got %v", err)
	assert.Equal(t, FeatureGene, rerr.Feature)
	assert.Equal(t, "G1", rerr.ID)
	assert.Equal(t, 2, table.Len(), "table untouched on error")
}

func TestReconstruct_StrandMismatch(t *testing.T) {
	table := &Table{
		Records: []Record{
			exonRecord("1", 100, 200, "+", "G1", "T1"),
			exonRecord("1", 300, 400, "-", "G2", "T1"),
		},
		Columns: []string{ColGeneID, ColTranscriptID},
	}

	err := Reconstruct(table)
	var rerr *ReconstructionError
	require.True(t, errors.As(err, &rerr), "got %v", err)
	assert.Equal(t, FeatureTranscript, rerr.Feature)
	assert.Equal(t, "T1", rerr.ID)
}

func TestReconstruct_MissingTranscriptID(t *testing.T) {
	missing := exonRecord("1", 300, 400, "+", "G1", "")
	missing.Line = 9
	table := &Table{
		Records: []Record{exonRecord("1", 100, 200, "+", "G1", "T1"), missing},
		Columns: []string{ColGeneID, ColTranscriptID},
	}

	err := Reconstruct(table)
	var merr *MissingRequiredColumnError
	require.True(t, errors.As(err, &merr), "got %v", err)
	assert.Equal(t, ColTranscriptID, merr.Column)
	assert.Equal(t, 9, merr.Line)
}

func TestReconstruct_ProteinIDFirstNonEmpty(t *testing.T) {
	cds1 := exonRecord("1", 100, 200, "+", "G1", "T1")
	cds1.Feature = FeatureCDS
	cds2 := cds1
	cds2.Start, cds2.End = 300, 400
	cds1.ProteinID = ""
	cds2.ProteinID = "P2"
	cds3 := cds2
	cds3.Start, cds3.End = 500, 600
	cds3.ProteinID = "P3"

	table := &Table{
		Records: []Record{cds1, cds2, cds3},
		Columns: []string{ColGeneID, ColTranscriptID, ColProteinID},
	}
	require.NoError(t, Reconstruct(table))

	tx := findRecord(table, FeatureTranscript, ColTranscriptID, "T1")
	require.NotNil(t, tx)
	assert.Equal(t, "P2", tx.ProteinID)
}

func TestReconstruct_CarriesOnlyPresentColumns(t *testing.T) {
	r := exonRecord("1", 100, 200, "+", "G1", "T1")
	r.GeneName = "ABC"
	table := &Table{
		Records: []Record{r},
		Columns: []string{ColGeneID, ColTranscriptID, ColGeneName},
	}
	require.NoError(t, Reconstruct(table))

	tx := findRecord(table, FeatureTranscript, ColTranscriptID, "T1")
	require.NotNil(t, tx)
	assert.Equal(t, "ABC", tx.GeneName)
	assert.Equal(t, "", tx.TranscriptName)
	assert.Equal(t, "", tx.GeneBiotype)
}

func TestReconstructExonIDs(t *testing.T) {
	withNumber := exonRecord("1", 100, 200, "+", "G1", "T1")
	withNumber.ExonNumber = "02"
	noNumber := exonRecord("1", 300, 400, "+", "G1", "T1")

	table := &Table{
		Records: []Record{withNumber, noNumber},
		Columns: []string{ColGeneID, ColTranscriptID, ColExonNumber},
	}

	assert.True(t, ReconstructExonIDs(table))
	assert.Equal(t, "T1.exon2", table.Records[0].ExonID)
	assert.Equal(t, "", table.Records[1].ExonID)
	assert.True(t, table.HasColumn(ColExonID))

	// existing column is never overwritten
	assert.False(t, ReconstructExonIDs(table))
}
