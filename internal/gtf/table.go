package gtf

// Table owns every record of one annotation release. It is built once by
// Parse and never mutated afterwards.
type Table struct {
	Records []Record

	// Columns lists the attribute columns present anywhere in the table,
	// in the order they were first seen.
	Columns []string

	// SecondColumn records how the overloaded second GTF column was read.
	SecondColumn SecondColumn

	// interned is set by the parser and by Compact. It is not serialized.
	interned bool
}

// HasColumn reports whether column exists in this release. Fixed columns
// always exist; attribute columns exist when at least one record had them.
func (t *Table) HasColumn(column string) bool {
	for _, c := range FixedColumns {
		if c == column {
			return true
		}
	}
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}

// AllColumns returns the fixed columns followed by the attribute columns.
func (t *Table) AllColumns() []string {
	cols := make([]string, 0, len(FixedColumns)+len(t.Columns))
	cols = append(cols, FixedColumns...)
	return append(cols, t.Columns...)
}

// Features returns the distinct feature names in first-seen order.
func (t *Table) Features() []string {
	seen := make(map[string]bool)
	var features []string
	for i := range t.Records {
		f := t.Records[i].Feature
		if !seen[f] {
			seen[f] = true
			features = append(features, f)
		}
	}
	return features
}

// HasFeature reports whether any record has the given feature.
func (t *Table) HasFeature(feature string) bool {
	for i := range t.Records {
		if t.Records[i].Feature == feature {
			return true
		}
	}
	return false
}

// Len returns the number of records.
func (t *Table) Len() int {
	return len(t.Records)
}

// Compact re-interns every string in the table. Tables decoded from a
// serialized artifact hold one copy of each string per record. Compact is a
// no-op on parsed or already compacted tables, and must run before the
// table is shared.
func (t *Table) Compact() {
	if t.interned {
		return
	}
	in := newInterner()
	for i := range t.Records {
		r := &t.Records[i]
		r.Contig = in.intern(r.Contig)
		r.Source = in.intern(r.Source)
		r.Feature = in.intern(r.Feature)
		r.Strand = in.intern(r.Strand)
		r.Frame = in.intern(r.Frame)
		for _, key := range recognizedColumns {
			p := r.attributeField(key)
			*p = in.intern(*p)
		}
		for j := range r.Extra {
			r.Extra[j].Key = in.intern(r.Extra[j].Key)
			r.Extra[j].Value = in.intern(r.Extra[j].Value)
		}
	}
	t.interned = true
}

func (t *Table) addColumn(column string) {
	if !t.HasColumn(column) {
		t.Columns = append(t.Columns, column)
	}
}
