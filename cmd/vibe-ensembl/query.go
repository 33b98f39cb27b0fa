package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/vibe-ensembl/internal/genome"
	"github.com/inodb/vibe-ensembl/internal/locus"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query an indexed release",
		Long: `Query genes, transcripts and exons of a release. The release is indexed
on first use, so query works without a prior index run.`,
	}
	cmd.PersistentFlags().String("gtf", "", "GTF file of the release (default: config key gtf)")
	_ = viper.BindPFlag("gtf", cmd.PersistentFlags().Lookup("gtf"))

	cmd.AddCommand(newQueryAtCmd())
	cmd.AddCommand(newQueryGeneCmd())
	cmd.AddCommand(newQueryTranscriptCmd())
	cmd.AddCommand(newQueryIDsCmd())
	cmd.AddCommand(newQueryContigsCmd())
	return cmd
}

func newQueryAtCmd() *cobra.Command {
	var (
		feature string
		strand  string
	)
	cmd := &cobra.Command{
		Use:   "at <contig:start[-end]>",
		Short: "List identifiers overlapping a region",
		Example: `  vibe-ensembl query at 17:7661779-7687538
  vibe-ensembl query at chrX:1000000 --feature transcript --strand -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			contig, start, end, err := parseRegion(args[0])
			if err != nil {
				return err
			}
			s, err := locus.ParseStrandFilter(strand)
			if err != nil {
				return err
			}
			g, err := indexedGenome(cmd.Context(), viper.GetString("gtf"))
			if err != nil {
				return err
			}
			defer g.Close()

			var query func(string, int64, int64, locus.Strand) ([]string, error)
			switch feature {
			case "gene":
				query = g.GeneIDsAtLocus
			case "gene-name":
				query = g.GeneNamesAtLocus
			case "transcript":
				query = g.TranscriptIDsAtLocus
			case "transcript-name":
				query = g.TranscriptNamesAtLocus
			case "exon":
				query = g.ExonIDsAtLocus
			case "protein":
				query = g.ProteinIDsAtLocus
			default:
				return fmt.Errorf("unknown feature %q", feature)
			}
			ids, err := query(contig, start, end, s)
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), ids)
		},
	}
	cmd.Flags().StringVar(&feature, "feature", "gene", "gene, gene-name, transcript, transcript-name, exon or protein")
	cmd.Flags().StringVar(&strand, "strand", "", "Restrict to + or - strand")
	return cmd
}

func newQueryIDsCmd() *cobra.Command {
	var (
		contig string
		strand string
	)
	cmd := &cobra.Command{
		Use:   "ids <gene|gene-name|transcript|transcript-name|exon|protein>",
		Short: "List every identifier of one kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := locus.ParseStrandFilter(strand)
			if err != nil {
				return err
			}
			g, err := indexedGenome(cmd.Context(), viper.GetString("gtf"))
			if err != nil {
				return err
			}
			defer g.Close()

			var list func(string, locus.Strand) ([]string, error)
			switch args[0] {
			case "gene":
				list = g.GeneIDs
			case "gene-name":
				list = g.GeneNames
			case "transcript":
				list = g.TranscriptIDs
			case "transcript-name":
				list = g.TranscriptNames
			case "exon":
				list = g.ExonIDs
			case "protein":
				list = g.ProteinIDs
			default:
				return fmt.Errorf("unknown identifier kind %q", args[0])
			}
			ids, err := list(contig, s)
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), ids)
		},
	}
	cmd.Flags().StringVar(&contig, "contig", "", "Restrict to one contig")
	cmd.Flags().StringVar(&strand, "strand", "", "Restrict to + or - strand")
	return cmd
}

func newQueryContigsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "contigs",
		Short: "List the contigs of the release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := indexedGenome(cmd.Context(), viper.GetString("gtf"))
			if err != nil {
				return err
			}
			defer g.Close()

			contigs, err := g.Contigs()
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), contigs)
		},
	}
}

// geneReport is the YAML rendering of a gene.
type geneReport struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name,omitempty"`
	Biotype     string   `yaml:"biotype,omitempty"`
	Locus       string   `yaml:"locus"`
	Transcripts []string `yaml:"transcripts"`
}

func newQueryGeneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gene <gene-id|gene-name>",
		Short: "Show a gene by id, or every gene with that name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := indexedGenome(cmd.Context(), viper.GetString("gtf"))
			if err != nil {
				return err
			}
			defer g.Close()

			genes, err := g.GenesByName(args[0])
			if err != nil {
				gene, idErr := g.GeneByID(args[0])
				if idErr != nil {
					return idErr
				}
				genes = []genome.Gene{gene}
			}

			reports := make([]geneReport, 0, len(genes))
			for _, gene := range genes {
				transcripts, err := gene.Transcripts()
				if err != nil {
					return err
				}
				r := geneReport{
					ID:      gene.ID,
					Name:    gene.Name,
					Biotype: gene.Biotype,
					Locus:   formatLocus(gene.Locus),
				}
				for _, t := range transcripts {
					r.Transcripts = append(r.Transcripts, t.ID)
				}
				sort.Strings(r.Transcripts)
				reports = append(reports, r)
			}
			return writeYAML(cmd.OutOrStdout(), reports)
		},
	}
}

// transcriptReport is the YAML rendering of a transcript.
type transcriptReport struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name,omitempty"`
	Biotype    string   `yaml:"biotype,omitempty"`
	Gene       string   `yaml:"gene"`
	GeneName   string   `yaml:"gene_name,omitempty"`
	ProteinID  string   `yaml:"protein_id,omitempty"`
	Locus      string   `yaml:"locus"`
	Length     int64    `yaml:"spliced_length"`
	Exons      []string `yaml:"exons"`
	StartCodon []int64  `yaml:"start_codon,flow,omitempty"`
	StopCodon  []int64  `yaml:"stop_codon,flow,omitempty"`
	Complete   bool     `yaml:"complete"`
}

func newQueryTranscriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <transcript-id>",
		Short: "Show a transcript with its exons and codons",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := indexedGenome(cmd.Context(), viper.GetString("gtf"))
			if err != nil {
				return err
			}
			defer g.Close()

			t, err := g.TranscriptByID(args[0])
			if err != nil {
				return err
			}
			exons, err := t.Exons()
			if err != nil {
				return err
			}

			r := transcriptReport{
				ID:        t.ID,
				Name:      t.Name,
				Biotype:   t.Biotype,
				Gene:      t.GeneID,
				GeneName:  t.GeneName,
				ProteinID: t.ProteinID,
				Locus:     formatLocus(t.Locus),
				Complete:  t.Complete(),
			}
			for _, e := range exons {
				r.Length += e.Len()
				r.Exons = append(r.Exons, fmt.Sprintf("%s %d-%d", e.ID, e.Start(), e.End()))
			}
			// Missing or partial codons are reported through Complete.
			r.StartCodon, _ = t.StartCodonPositions()
			r.StopCodon, _ = t.StopCodonPositions()
			return writeYAML(cmd.OutOrStdout(), r)
		},
	}
}

// parseRegion parses "contig:start" or "contig:start-end". Commas in
// positions are ignored.
func parseRegion(s string) (contig string, start, end int64, err error) {
	contig, span, ok := strings.Cut(s, ":")
	if !ok || contig == "" || span == "" {
		return "", 0, 0, fmt.Errorf("invalid region %q: expected contig:start[-end]", s)
	}
	span = strings.ReplaceAll(span, ",", "")

	from, to, hasEnd := strings.Cut(span, "-")
	if start, err = strconv.ParseInt(from, 10, 64); err != nil {
		return "", 0, 0, fmt.Errorf("invalid region start %q: %w", from, err)
	}
	end = start
	if hasEnd {
		if end, err = strconv.ParseInt(to, 10, 64); err != nil {
			return "", 0, 0, fmt.Errorf("invalid region end %q: %w", to, err)
		}
	}
	if start < 1 || end < start {
		return "", 0, 0, fmt.Errorf("invalid region %q: expected 1 <= start <= end", s)
	}
	return contig, start, end, nil
}

func formatLocus(l locus.Locus) string {
	return fmt.Sprintf("%s:%d-%d:%s", l.Contig(), l.Start(), l.End(), l.Strand())
}

func writeLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return enc.Close()
}

// writeStats prints the non-zero counters gathered from reg.
func writeStats(w io.Writer, reg prometheus.Gatherer) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			name := mf.GetName()
			for _, lp := range m.GetLabel() {
				name += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			if v := m.GetCounter().GetValue(); v != 0 {
				fmt.Fprintf(w, "  %s: %g\n", name, v)
			}
		}
	}
	return nil
}
