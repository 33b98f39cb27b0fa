package memcache

import (
	"path/filepath"
	"strings"

	"github.com/inodb/vibe-ensembl/internal/locus"
)

const artifactExt = ".gob"

// Key identifies one cached value. Its file name is derived from the fields
// that are set, e.g. "GRCh38.110.expanded.contig.17.feature.gene.column.gene_id.distinct.gob".
type Key struct {
	Base     string // annotation release, usually the GTF file name without extensions
	Contig   string
	Feature  string
	Column   string
	Strand   locus.Strand
	Distinct bool
}

// String returns the artifact file name for k.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.Base)
	b.WriteString(".expanded")
	if k.Contig != "" {
		b.WriteString(".contig." + k.Contig)
	}
	if k.Feature != "" {
		b.WriteString(".feature." + k.Feature)
	}
	if k.Column != "" {
		b.WriteString(".column." + k.Column)
	}
	switch k.Strand {
	case locus.Forward:
		b.WriteString(".strand.positive")
	case locus.Reverse:
		b.WriteString(".strand.negative")
	}
	if k.Distinct {
		b.WriteString(".distinct")
	}
	b.WriteString(artifactExt)
	return b.String()
}

// Path returns the artifact location under dir.
func (k Key) Path(dir string) string {
	return filepath.Join(dir, k.String())
}
