package domain

import (
	"sort"
	"strings"
)

// ModSet is an order-irrelevant set of modifier codes. The zero value
// is the no-mod set.
type ModSet []string

// NewModSet canonicalizes a list of mod codes: uppercased, sorted,
// deduplicated. Two sets built from the same mods in any order compare
// equal through Key.
func NewModSet(codes []string) ModSet {
	if len(codes) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(codes))
	out := make(ModSet, 0, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// Key is the canonical storage form, e.g. "DTHD". Empty for no-mod.
func (m ModSet) Key() string {
	return strings.Join(m, "")
}

// ParseModKey rebuilds a ModSet from its Key form (two-letter codes).
func ParseModKey(key string) ModSet {
	if key == "" {
		return nil
	}
	codes := make([]string, 0, len(key)/2)
	for i := 0; i+2 <= len(key); i += 2 {
		codes = append(codes, key[i:i+2])
	}
	return NewModSet(codes)
}

// Contains reports whether the set includes the code.
func (m ModSet) Contains(code string) bool {
	for _, c := range m {
		if c == code {
			return true
		}
	}
	return false
}

// ContainsAny reports whether the set includes any of the codes.
func (m ModSet) ContainsAny(codes ...string) bool {
	for _, c := range codes {
		if m.Contains(c) {
			return true
		}
	}
	return false
}

// AltersDifficulty reports whether the set changes the map's star
// rating and therefore needs mod-adjusted attributes.
func (m ModSet) AltersDifficulty() bool {
	return m.ContainsAny("DT", "NC", "HT", "DC")
}

// Equal compares two sets regardless of construction order.
func (m ModSet) Equal(other ModSet) bool {
	return m.Key() == other.Key()
}
