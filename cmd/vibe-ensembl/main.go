// Package main provides the vibe-ensembl command-line tool.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/vibe-ensembl/internal/genome"
	"github.com/inodb/vibe-ensembl/internal/locus"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "vibe-ensembl",
		Short: "Index and query GTF genome annotations",
		Long: `vibe-ensembl parses Ensembl and GENCODE GTF files into an indexed store
and answers gene, transcript and exon queries by locus or identifier.

Parsed releases are cached under cache_dir (default ~/.vibe-ensembl) and
rebuilt automatically when the GTF file changes.`,
		Example: `  vibe-ensembl index Homo_sapiens.GRCh38.110.gtf.gz
  vibe-ensembl query at 17:7661779-7687538 --gtf Homo_sapiens.GRCh38.110.gtf.gz
  vibe-ensembl query gene TP53`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				viper.Set("log.level", "debug")
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().String("cache-dir", "", "Cache directory (default ~/.vibe-ensembl)")
	root.PersistentFlags().String("driver", "", "Store backend: duckdb, sqlite or memory")
	root.PersistentFlags().String("db-path", "", "Database file (default <cache-dir>/<release>.<driver>)")
	_ = viper.BindPFlag("cache_dir", root.PersistentFlags().Lookup("cache-dir"))
	_ = viper.BindPFlag("database.driver", root.PersistentFlags().Lookup("driver"))
	_ = viper.BindPFlag("database.path", root.PersistentFlags().Lookup("db-path"))

	root.AddCommand(newIndexCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newClearCacheCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "vibe-ensembl version %s (%s) built %s\n", version, commit, date)
		},
	}
}

func newIndexCmd() *cobra.Command {
	var (
		force bool
		stats bool
	)
	cmd := &cobra.Command{
		Use:   "index <gtf-file>",
		Short: "Parse a GTF file and build its cached store",
		Long: `Parse a GTF (optionally gzipped) file, reconstruct missing gene and
transcript rows, and build the store used by query. Nothing is parsed when
an up-to-date cache already exists unless --force is given.`,
		Example: `  vibe-ensembl index Homo_sapiens.GRCh37.75.gtf.gz
  vibe-ensembl index --driver sqlite --force gencode.v46.annotation.gtf.gz`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(viper.GetString("log.level"))
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			reg := prometheus.NewRegistry()
			g, err := openGenome(args[0], logger, reg)
			if err != nil {
				return err
			}
			defer g.Close()

			if force {
				if err := g.ClearCache(); err != nil {
					return fmt.Errorf("clearing cache: %w", err)
				}
			}
			if err := g.Index(cmd.Context()); err != nil {
				return fmt.Errorf("indexing %s: %w", args[0], err)
			}

			contigs, err := g.Contigs()
			if err != nil {
				return err
			}
			genes, err := g.GeneIDs("", locus.Unstranded)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %s: %d genes on %d contigs\n", g.Name(), len(genes), len(contigs))
			if path := g.DBPath(); path != "" {
				fmt.Fprintf(out, "  Database: %s\n", path)
			}
			if stats {
				return writeStats(out, reg)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Discard cached artifacts and rebuild")
	cmd.Flags().BoolVar(&stats, "stats", false, "Print cache counters after indexing")
	return cmd
}

func newClearCacheCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache <gtf-file>",
		Short: "Delete the cached artifacts and database of a release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(viper.GetString("log.level"))
			if err != nil {
				return err
			}
			g, err := openGenome(args[0], logger, nil)
			if err != nil {
				return err
			}
			if err := g.ClearCache(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared cache for %s\n", g.Name())
			return nil
		},
	}
}

// openGenome maps the configuration onto genome.Options.
func openGenome(gtfPath string, logger *zap.Logger, reg prometheus.Registerer) (*genome.Genome, error) {
	return genome.New(genome.Options{
		GTFPath:    gtfPath,
		CacheDir:   cacheDir(),
		Driver:     viper.GetString("database.driver"),
		DBPath:     viper.GetString("database.path"),
		Logger:     logger,
		Registerer: reg,
	})
}

// indexedGenome opens and indexes the release for a query command.
func indexedGenome(ctx context.Context, gtfPath string) (*genome.Genome, error) {
	if gtfPath == "" {
		return nil, fmt.Errorf("no GTF file given; use --gtf or set one with: vibe-ensembl config set gtf <path>")
	}
	logger, err := newLogger(viper.GetString("log.level"))
	if err != nil {
		return nil, err
	}
	g, err := openGenome(gtfPath, logger, nil)
	if err != nil {
		return nil, err
	}
	if err := g.Index(ctx); err != nil {
		g.Close()
		return nil, fmt.Errorf("indexing %s: %w", gtfPath, err)
	}
	return g, nil
}

// newLogger builds a console logger on stderr at the given level.
func newLogger(level string) (*zap.Logger, error) {
	lvl := zapcore.WarnLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, fmt.Errorf("invalid log.level %q: %w", level, err)
		}
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
