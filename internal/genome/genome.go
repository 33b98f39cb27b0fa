// Package genome ties the annotation pipeline together: it parses a GTF
// release through the value cache, publishes an in-memory or SQL store, and
// answers gene, transcript and exon queries on top of it.
package genome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/inodb/vibe-ensembl/internal/database"
	"github.com/inodb/vibe-ensembl/internal/gtf"
	"github.com/inodb/vibe-ensembl/internal/memcache"
	"github.com/inodb/vibe-ensembl/internal/store"
)

// DriverMemory keeps the indexed store in process memory.
const DriverMemory = "memory"

// ErrNotIndexed is returned by queries issued before Index.
var ErrNotIndexed = errors.New("genome is not indexed")

// Options configures a Genome.
type Options struct {
	GTFPath string

	// CacheDir holds cached artifacts and the default database file.
	// Empty disables on-disk caching.
	CacheDir string

	// Driver is "memory" (default), "duckdb" or "sqlite".
	Driver string

	// DBPath overrides the database location for SQL drivers.
	DBPath string

	Logger     *zap.Logger
	Registerer prometheus.Registerer
}

// Genome is one annotation release.
type Genome struct {
	opts   Options
	base   string
	cache  *memcache.Cache
	meta   buildMeta
	logger *zap.Logger

	mu sync.RWMutex
	q  store.Querier
	db *database.DB
}

// New validates opts and prepares the cache. No file is read until Index.
func New(opts Options) (*Genome, error) {
	if opts.GTFPath == "" {
		return nil, errors.New("GTF path is required")
	}
	if opts.Driver == "" {
		opts.Driver = DriverMemory
	}
	if opts.Driver != DriverMemory {
		if _, err := database.ParseDriver(opts.Driver); err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	c, err := memcache.New(opts.CacheDir)
	if err != nil {
		return nil, err
	}
	c.SetLogger(logger)
	if opts.Registerer != nil {
		m, err := memcache.NewMetrics(opts.Registerer)
		if err != nil {
			return nil, err
		}
		c.SetMetrics(m)
	}

	base := ReleaseName(opts.GTFPath)
	g := &Genome{
		opts:   opts,
		base:   base,
		cache:  c,
		logger: logger,
	}
	switch {
	case opts.CacheDir != "":
		g.meta = buildMeta{path: memcache.Key{Base: base}.Path(opts.CacheDir) + ".meta"}
	case g.DBPath() != "":
		g.meta = buildMeta{path: g.DBPath() + ".meta"}
	}
	return g, nil
}

// ReleaseName derives the cache base name from a GTF path, e.g.
// "Homo_sapiens.GRCh38.110" for ".../Homo_sapiens.GRCh38.110.gtf.gz".
func ReleaseName(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, ".gtf")
	return name
}

// Name returns the release name used for cache artifacts.
func (g *Genome) Name() string {
	return g.base
}

// DBPath returns the database file for SQL drivers, empty for in-memory ones.
func (g *Genome) DBPath() string {
	if g.opts.Driver == DriverMemory {
		return ""
	}
	if g.opts.DBPath != "" {
		return g.opts.DBPath
	}
	if g.opts.CacheDir == "" {
		return ""
	}
	return filepath.Join(g.opts.CacheDir, g.base+"."+g.opts.Driver)
}

// Index makes the release queryable. Cached artifacts are reused when the
// GTF file is unchanged and rebuilt otherwise. Calling Index again is a no-op.
func (g *Genome) Index(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.q != nil {
		return nil
	}

	fp, err := StatFile(g.opts.GTFPath)
	if err != nil {
		return fmt.Errorf("stat GTF file: %w", err)
	}

	fresh := !g.meta.tracked() || g.meta.Valid(fp, database.SchemaVersion)
	if !fresh {
		g.logger.Info("GTF file changed or cache missing, rebuilding", zap.String("gtf", g.opts.GTFPath))
		if err := g.removeArtifacts(); err != nil {
			return err
		}
	}

	if g.opts.Driver == DriverMemory {
		t, err := g.table()
		if err != nil {
			return err
		}
		g.q = store.New(t, g.logger)
	} else {
		if err := g.openDatabase(ctx, fresh); err != nil {
			return err
		}
	}

	if g.meta.tracked() && !fresh {
		if err := g.meta.Write(fp, database.SchemaVersion); err != nil {
			return fmt.Errorf("write cache metadata: %w", err)
		}
	}
	return nil
}

// table parses the GTF file through the cache.
func (g *Genome) table() (*gtf.Table, error) {
	t, err := memcache.Get(g.cache, memcache.Key{Base: g.base}, func() (*gtf.Table, error) {
		p := gtf.NewParser(g.opts.GTFPath)
		p.SetLogger(g.logger)
		return p.Parse()
	})
	if err != nil {
		return nil, err
	}
	t.Compact()
	return t, nil
}

func (g *Genome) openDatabase(ctx context.Context, fresh bool) error {
	driver, err := database.ParseDriver(g.opts.Driver)
	if err != nil {
		return err
	}
	db, err := database.Open(driver, g.DBPath())
	if err != nil {
		return err
	}
	db.SetLogger(g.logger)

	if !fresh || !db.Exists() {
		t, err := g.table()
		if err != nil {
			db.Close()
			return err
		}
		if err := db.Create(ctx, t, true); err != nil {
			db.Close()
			return fmt.Errorf("create database: %w", err)
		}
	}
	g.db = db
	g.q = db
	return nil
}

// removeArtifacts deletes every cached artifact of this release, including
// ones written by other processes, and the database file.
func (g *Genome) removeArtifacts() error {
	if err := g.cache.Clear(); err != nil {
		return err
	}
	var matches []string
	if g.opts.CacheDir != "" {
		gobs, err := filepath.Glob(filepath.Join(g.opts.CacheDir, g.base+".expanded*.gob"))
		if err != nil {
			return err
		}
		matches = gobs
	}
	if path := g.DBPath(); path != "" {
		matches = append(matches, path, path+".wal")
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove stale artifact: %w", err)
		}
	}
	if !g.meta.tracked() {
		return nil
	}
	return g.meta.Remove()
}

// Querier returns the underlying store.
func (g *Genome) Querier() (store.Querier, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.q == nil {
		return nil, ErrNotIndexed
	}
	return g.q, nil
}

// ClearCache drops the store and deletes every cached artifact. The next
// query needs a new Index.
func (g *Genome) ClearCache() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.closeDB(); err != nil {
		return err
	}
	g.q = nil
	return g.removeArtifacts()
}

// Close releases the database connection, if any.
func (g *Genome) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.q = nil
	return g.closeDB()
}

func (g *Genome) closeDB() error {
	if g.db == nil {
		return nil
	}
	err := g.db.Close()
	g.db = nil
	return err
}
