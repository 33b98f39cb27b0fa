package gtf

import "strings"

// interner deduplicates strings. Annotation files repeat the same contig,
// feature, key and identifier strings millions of times.
type interner struct {
	m map[string]string
}

func newInterner() *interner {
	return &interner{m: make(map[string]string, 1024)}
}

// intern returns the canonical copy of s. The first occurrence is cloned so
// that a substring never pins the whole input line in memory.
func (in *interner) intern(s string) string {
	if s == "" {
		return ""
	}
	if v, ok := in.m[s]; ok {
		return v
	}
	v := strings.Clone(s)
	in.m[v] = v
	return v
}

func (in *interner) len() int {
	return len(in.m)
}
