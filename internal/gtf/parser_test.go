package gtf

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unsafe"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseString(t *testing.T, content string) (*Table, error) {
	t.Helper()
	return NewParser("").ParseReader(strings.NewReader(content))
}

func findRecord(t *Table, feature, column, value string) *Record {
	for i := range t.Records {
		r := &t.Records[i]
		if r.Feature == feature && r.Value(column) == value {
			return r
		}
	}
	return nil
}

func countFeature(t *Table, feature string) int {
	n := 0
	for i := range t.Records {
		if t.Records[i].Feature == feature {
			n++
		}
	}
	return n
}

func TestParseLine(t *testing.T) {
	in := newInterner()
	line := "chr1\tensembl\tCDS\t100\t200\t0.5\t-\t2\tgene_id \"G1\"; transcript_id \"T1\"; protein_id \"P1\"; ccds_id \"CCDS1\";"

	rec, second, err := parseLine(line, 7, in)
	require.NoError(t, err)

	assert.Equal(t, "ensembl", second)
	assert.Equal(t, "1", rec.Contig)
	assert.Equal(t, "CDS", rec.Feature)
	assert.Equal(t, int64(100), rec.Start)
	assert.Equal(t, int64(200), rec.End)
	assert.True(t, rec.HasScore)
	assert.Equal(t, 0.5, rec.Score)
	assert.Equal(t, "-", rec.Strand)
	assert.Equal(t, "2", rec.Frame)
	assert.Equal(t, "G1", rec.GeneID)
	assert.Equal(t, "T1", rec.TranscriptID)
	assert.Equal(t, "P1", rec.ProteinID)
	assert.Equal(t, []Attribute{{Key: "ccds_id", Value: "CCDS1"}}, rec.Extra)
	assert.Equal(t, 7, rec.Line)
}

func TestParseLine_ScoreDot(t *testing.T) {
	rec, _, err := parseLine("1\tsrc\texon\t1\t2\t.\t+\t.\tgene_id \"G\";", 1, newInterner())
	require.NoError(t, err)
	assert.False(t, rec.HasScore, "'.' means no score, not zero")
	assert.Equal(t, "", rec.Value(ColScore))
	assert.Equal(t, ".", rec.Frame)
}

func TestParseLine_Malformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"eight fields", "1\tsrc\texon\t1\t2\t.\t+\t."},
		{"ten fields", "1\tsrc\texon\t1\t2\t.\t+\t.\tgene_id \"G\";\textra"},
		{"space separated", "1 src exon 1 2 . + . gene_id \"G\";"},
		{"bad start", "1\tsrc\texon\tabc\t2\t.\t+\t.\tgene_id \"G\";"},
		{"negative end", "1\tsrc\texon\t1\t-2\t.\t+\t.\tgene_id \"G\";"},
		{"zero start", "1\tsrc\texon\t0\t2\t.\t+\t.\tgene_id \"G\";"},
		{"end before start", "1\tsrc\texon\t10\t2\t.\t+\t.\tgene_id \"G\";"},
		{"bad score", "1\tsrc\texon\t1\t2\thigh\t+\t.\tgene_id \"G\";"},
		{"bad strand", "1\tsrc\texon\t1\t2\t.\t?\t.\tgene_id \"G\";"},
		{"bad frame", "1\tsrc\texon\t1\t2\t.\t+\t3\tgene_id \"G\";"},
		{"zero contig", "0\tsrc\texon\t1\t2\t.\t+\t.\tgene_id \"G\";"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseLine(tt.line, 42, newInterner())
			var malformed *MalformedRecordError
			require.True(t, errors.As(err, &malformed), "got %v", err)
			assert.Equal(t, 42, malformed.Line)
			assert.Equal(t, tt.line, malformed.Text)
		})
	}
}

func TestParse_MalformedLineAbortsParse(t *testing.T) {
	content := "1\tsrc\texon\t1\t2\t.\t+\t.\tgene_id \"G\"; transcript_id \"T\";\n" +
		"# comment\n" +
		"1\tsrc\texon\t1\t2\t.\t+\n"

	table, err := parseString(t, content)
	assert.Nil(t, table)
	var malformed *MalformedRecordError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, 3, malformed.Line)
}

func TestParse_Interning(t *testing.T) {
	content := "1\tsrc\texon\t1\t2\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\";\n" +
		"1\tsrc\texon\t5\t8\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\";\n"
	table, err := parseString(t, content)
	require.NoError(t, err)

	a, b := &table.Records[0], &table.Records[1]
	assert.Same(t, unsafe.StringData(a.GeneID), unsafe.StringData(b.GeneID))
	assert.Same(t, unsafe.StringData(a.Feature), unsafe.StringData(b.Feature))
}

func TestParse_EndToEndReconstruction(t *testing.T) {
	table, err := parseString(t, "1\tensembl\texon\t100\t200\t.\t+\t0\tgene_id \"G1\"; transcript_id \"T1\";\n")
	require.NoError(t, err)

	require.Equal(t, 1, countFeature(table, FeatureGene))
	require.Equal(t, 1, countFeature(table, FeatureTranscript))

	gene := findRecord(table, FeatureGene, ColGeneID, "G1")
	require.NotNil(t, gene)
	assert.Equal(t, int64(100), gene.Start)
	assert.Equal(t, int64(200), gene.End)
	assert.True(t, gene.Synthetic)

	tx := findRecord(table, FeatureTranscript, ColTranscriptID, "T1")
	require.NotNil(t, tx)
	assert.Equal(t, "G1", tx.GeneID)
	assert.Equal(t, int64(100), tx.Start)
	assert.Equal(t, int64(200), tx.End)
	assert.Equal(t, ".", tx.Frame)
	assert.False(t, tx.HasScore)
}

func TestParse_SecondColumnSource(t *testing.T) {
	content := "1\tensembl\texon\t1\t10\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\";\n" +
		"1\thavana\texon\t20\t30\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\";\n"
	table, err := parseString(t, content)
	require.NoError(t, err)

	assert.Equal(t, SecondColumnSource, table.SecondColumn)
	assert.Equal(t, "ensembl", table.Records[0].Source)
	assert.Equal(t, "havana", table.Records[1].Source)
	assert.False(t, table.HasColumn(ColGeneBiotype))
}

func TestParse_SecondColumnBiotype(t *testing.T) {
	// protein_coding only appears on the last line; the decision is global.
	content := "1\tlincRNA\texon\t1\t10\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\";\n" +
		"1\tprotein_coding\texon\t20\t30\t.\t+\t.\tgene_id \"G2\"; transcript_id \"T2\";\n"
	table, err := parseString(t, content)
	require.NoError(t, err)

	assert.Equal(t, SecondColumnGeneBiotype, table.SecondColumn)
	assert.True(t, table.HasColumn(ColGeneBiotype))
	assert.Equal(t, "lincRNA", table.Records[0].GeneBiotype)
	assert.Equal(t, "", table.Records[0].Source)

	gene := findRecord(table, FeatureGene, ColGeneID, "G2")
	require.NotNil(t, gene)
	assert.Equal(t, "protein_coding", gene.GeneBiotype)
}

func TestParse_SecondColumnTranscriptBiotype(t *testing.T) {
	content := "1\tprotein_coding\texon\t1\t10\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\"; gene_biotype \"protein_coding\";\n" +
		"1\tnonsense_mediated_decay\texon\t20\t30\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T2\"; gene_biotype \"protein_coding\";\n"
	table, err := parseString(t, content)
	require.NoError(t, err)

	assert.Equal(t, SecondColumnTranscriptBiotype, table.SecondColumn)
	assert.Equal(t, "nonsense_mediated_decay", table.Records[1].TranscriptBiotype)
	assert.Equal(t, "protein_coding", table.Records[1].GeneBiotype)

	tx := findRecord(table, FeatureTranscript, ColTranscriptID, "T2")
	require.NotNil(t, tx)
	assert.Equal(t, "nonsense_mediated_decay", tx.TranscriptBiotype)
}

func TestParse_SecondColumnConflict(t *testing.T) {
	content := "1\tprotein_coding\texon\t1\t10\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\"; gene_biotype \"a\"; transcript_biotype \"b\";\n"
	_, err := parseString(t, content)
	assert.ErrorIs(t, err, ErrBiotypeColumnConflict)
}

func TestParse_MissingRequiredColumn(t *testing.T) {
	_, err := parseString(t, "1\tsrc\texon\t1\t10\t.\t+\t.\tgene_id \"G1\";\n")
	var missing *MissingRequiredColumnError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, ColTranscriptID, missing.Column)
	assert.Equal(t, 0, missing.Line)
}

func TestParse_UnbalancedQuoteKeepsLaterKeys(t *testing.T) {
	table, err := parseString(t, "1\tsrc\texon\t1\t10\t.\t+\t.\tgene_id \"G1\"; note \"a\"b\"; transcript_id \"T1\";\n")
	require.NoError(t, err)

	exon := findRecord(table, FeatureExon, ColTranscriptID, "T1")
	require.NotNil(t, exon)
	assert.Equal(t, "G1", exon.GeneID)
	assert.Equal(t, []Attribute{{Key: "note", Value: `a"b`}}, exon.Extra)
}

func TestParse_MissingIdentifierOnRow(t *testing.T) {
	content := "1\tsrc\texon\t1\t10\t.\t+\t.\tgene_id \"G1\"; transcript_id \"T1\";\n" +
		"1\tsrc\texon\t20\t30\t.\t+\t.\tgene_id \"G1\";\n"
	_, err := parseString(t, content)
	var missing *MissingRequiredColumnError
	require.True(t, errors.As(err, &missing), "got %v", err)
	assert.Equal(t, ColTranscriptID, missing.Column)
	assert.Equal(t, 2, missing.Line)
}

func TestParseFile_Ensembl75(t *testing.T) {
	table, err := Parse("testdata/ensembl75_sample.gtf")
	require.NoError(t, err)

	assert.Equal(t, SecondColumnTranscriptBiotype, table.SecondColumn)
	assert.Equal(t, 3, countFeature(table, FeatureGene))
	assert.Equal(t, 4, countFeature(table, FeatureTranscript))
	assert.Equal(t, 18, table.Len())

	gene := findRecord(table, FeatureGene, ColGeneID, "ENSG00000223972")
	require.NotNil(t, gene)
	assert.Equal(t, int64(11869), gene.Start)
	assert.Equal(t, int64(14409), gene.End)
	assert.Equal(t, "DDX11L1", gene.GeneName)
	assert.Equal(t, "pseudogene", gene.GeneBiotype)

	tx := findRecord(table, FeatureTranscript, ColTranscriptID, "ENST00000335137")
	require.NotNil(t, tx)
	assert.Equal(t, "ENSP00000334393", tx.ProteinID)
	assert.Equal(t, "OR4F5-001", tx.TranscriptName)
	assert.Equal(t, "protein_coding", tx.TranscriptBiotype)
	assert.Equal(t, "ENSG00000186092", tx.GeneID)

	minus := findRecord(table, FeatureTranscript, ColTranscriptID, "ENST00000473358")
	require.NotNil(t, minus)
	assert.Equal(t, "-", minus.Strand)
	assert.Equal(t, int64(29554), minus.Start)
	assert.Equal(t, int64(30667), minus.End)

	// exon ids are rebuilt for releases that lack them
	assert.True(t, table.HasColumn(ColExonID))
	exon := findRecord(table, FeatureExon, ColExonID, "ENST00000456328.exon3")
	require.NotNil(t, exon)
	assert.Equal(t, int64(13221), exon.Start)
}

func TestParseFile_Gencode(t *testing.T) {
	table, err := Parse("testdata/gencode_sample.gtf")
	require.NoError(t, err)

	assert.Equal(t, SecondColumnSource, table.SecondColumn)
	assert.Equal(t, 11, table.Len(), "no rows reconstructed")
	assert.Equal(t, []string{"gene", "transcript", "exon", "CDS", "start_codon"}, table.Features())

	tx := findRecord(table, FeatureTranscript, ColTranscriptID, "ENST00000311936.8")
	require.NotNil(t, tx)
	assert.Equal(t, "12", tx.Contig)
	assert.Equal(t, "HAVANA", tx.Source)
	assert.Equal(t, "1 (assigned to previous version 7)", tx.Value("transcript_support_level"))
	assert.Equal(t, "Ensembl_canonical", tx.Value("tag"))

	mt := findRecord(table, FeatureGene, ColGeneName, "MT-ND1")
	require.NotNil(t, mt)
	assert.Equal(t, "MT", mt.Contig)
}

func TestParseFile_Gzip(t *testing.T) {
	src, err := os.ReadFile("testdata/gencode_sample.gtf")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "sample.gtf.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write(src)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	table, err := Parse(path)
	require.NoError(t, err)
	assert.Equal(t, 11, table.Len())
}

func TestParseFile_Missing(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "nope.gtf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParse_RandomLinesKeepIntervalInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	features := []string{"exon", "CDS", "start_codon", "stop_codon", "UTR"}
	strands := []string{"+", "-"}

	var b strings.Builder
	for i := 0; i < 500; i++ {
		start := rng.Int63n(1_000_000) + 1
		end := start + rng.Int63n(10_000)
		gene := fmt.Sprintf("G%d", rng.Intn(40))
		fmt.Fprintf(&b, "%d\tsrc\t%s\t%d\t%d\t.\t%s\t.\tgene_id \"%s\"; transcript_id \"%s.T%d\";\n",
			// contig and strand derive from the gene so groups stay consistent
			len(gene)%3+1, features[rng.Intn(len(features))], start, end,
			strands[len(gene)%2], gene, gene, rng.Intn(3))
	}

	table, err := parseString(t, b.String())
	require.NoError(t, err)
	for i := range table.Records {
		r := &table.Records[i]
		assert.GreaterOrEqual(t, r.Start, int64(1))
		assert.LessOrEqual(t, r.Start, r.End)
	}
}

func TestTable_Compact(t *testing.T) {
	table := &Table{Records: []Record{
		{Contig: strings.Clone("1"), GeneID: strings.Clone("G1")},
		{Contig: strings.Clone("1"), GeneID: strings.Clone("G1")},
	}}
	require.NotEqual(t, unsafe.StringData(table.Records[0].GeneID), unsafe.StringData(table.Records[1].GeneID))

	table.Compact()
	assert.Equal(t, unsafe.StringData(table.Records[0].GeneID), unsafe.StringData(table.Records[1].GeneID))
	assert.Equal(t, unsafe.StringData(table.Records[0].Contig), unsafe.StringData(table.Records[1].Contig))

	// A second call leaves the table alone.
	table.Records[1].GeneID = strings.Clone("G1")
	table.Compact()
	assert.NotEqual(t, unsafe.StringData(table.Records[0].GeneID), unsafe.StringData(table.Records[1].GeneID))
}
