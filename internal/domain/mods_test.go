package domain

import "testing"

func TestNewModSetCanonicalizes(t *testing.T) {
	tests := []struct {
		name  string
		codes []string
		key   string
	}{
		{"nil", nil, ""},
		{"empty strings dropped", []string{"", " "}, ""},
		{"sorted", []string{"HD", "DT"}, "DTHD"},
		{"case folded", []string{"dt", "Hd"}, "DTHD"},
		{"deduplicated", []string{"DT", "DT", "HD"}, "DTHD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewModSet(tt.codes).Key(); got != tt.key {
				t.Errorf("Key() = %q, want %q", got, tt.key)
			}
		})
	}
}

func TestParseModKeyRoundTrip(t *testing.T) {
	original := NewModSet([]string{"HD", "DT", "MR"})
	parsed := ParseModKey(original.Key())
	if !parsed.Equal(original) {
		t.Errorf("ParseModKey(%q) = %v, want %v", original.Key(), parsed, original)
	}
	if ParseModKey("") != nil {
		t.Error("ParseModKey(empty) should be the no-mod set")
	}
}

func TestModSetEqualIgnoresOrder(t *testing.T) {
	a := NewModSet([]string{"DT", "HD"})
	b := NewModSet([]string{"HD", "DT"})
	if !a.Equal(b) {
		t.Errorf("%v and %v should compare equal", a, b)
	}
	if a.Equal(NewModSet([]string{"DT"})) {
		t.Error("different sets compare equal")
	}
}

func TestAltersDifficulty(t *testing.T) {
	tests := []struct {
		codes []string
		want  bool
	}{
		{nil, false},
		{[]string{"HD", "MR"}, false},
		{[]string{"DT"}, true},
		{[]string{"NC"}, true},
		{[]string{"HT"}, true},
		{[]string{"DC"}, true},
	}
	for _, tt := range tests {
		if got := NewModSet(tt.codes).AltersDifficulty(); got != tt.want {
			t.Errorf("AltersDifficulty(%v) = %v, want %v", tt.codes, got, tt.want)
		}
	}
}

func TestCategoryFromRankedStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Category
	}{
		{1, CategoryRanked},
		{2, CategoryRanked},
		{3, CategoryQualified},
		{4, CategoryLoved},
		{0, CategoryUnranked},
		{-2, CategoryUnranked},
	}
	for _, tt := range tests {
		if got := CategoryFromRankedStatus(tt.status); got != tt.want {
			t.Errorf("CategoryFromRankedStatus(%d) = %s, want %s", tt.status, got, tt.want)
		}
	}
}
