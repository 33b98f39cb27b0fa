package gtf

import (
	"strings"
	"unicode"
)

// ParseAttributes parses a GTF attribute column.
// Format: key "value"; key "value"; ...
//
// A repeated key keeps its first position and its last value. Semicolons
// glued onto a value ("PRAMEF6;" or "PRAMEF6;-201") are dropped, and free
// text after the first space of a value stays attached to it.
func ParseAttributes(attrStr string) []Attribute {
	var attrs []Attribute
	eachAttribute(attrStr, func(key, value string) {
		for i := range attrs {
			if attrs[i].Key == key {
				attrs[i].Value = value
				return
			}
		}
		attrs = append(attrs, Attribute{Key: key, Value: value})
	})
	return attrs
}

// FormatAttributes renders attributes back into key "value"; form.
func FormatAttributes(attrs []Attribute) string {
	var b strings.Builder
	for i, a := range attrs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a.Key)
		b.WriteString(` "`)
		b.WriteString(a.Value)
		b.WriteString(`";`)
	}
	return b.String()
}

// eachAttribute calls fn for every key/value pair in attrStr, in order.
func eachAttribute(attrStr string, fn func(key, value string)) {
	for _, part := range splitAttributes(attrStr) {
		part = strings.TrimSpace(part)
		// simplest entry is key, space, value
		if len(part) < 3 {
			continue
		}

		// Split on the first run of whitespace; the rest is the value.
		idx := strings.IndexFunc(part, unicode.IsSpace)
		if idx == -1 {
			continue
		}
		key := part[:idx]
		value := strings.TrimSpace(part[idx+1:])
		fn(key, cleanValue(value))
	}
}

// splitAttributes splits on semicolons outside of double quotes. A line
// with an unbalanced quote is split on every semicolon instead, so a stray
// quote cannot swallow the keys that follow it.
func splitAttributes(s string) []string {
	if strings.Count(s, `"`)%2 == 1 {
		return strings.Split(s, ";")
	}
	var parts []string
	inQuotes := false
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ';':
			if !inQuotes {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	if last < len(s) {
		parts = append(parts, s[last:])
	}
	return parts
}

// cleanValue removes surrounding quotes and stray semicolons inside a value.
func cleanValue(v string) string {
	v = strings.Trim(v, `"`)
	if strings.IndexByte(v, ';') == -1 {
		return v
	}
	v = strings.ReplaceAll(v, ";-", "-")
	return strings.TrimRight(v, ";")
}
