package remotefs

import "testing"

func TestWildcard(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.txt", "notes.txt", true},
		{"*.txt", "notes.txt.bak", true},
		{"*.txt", "notesxtxt", false},
		{"a**b", "a-long-b", true},
		{"(x)", "(x).log", true},
		{"[a]", "a", false},
		{"", "anything", true},
		{"log", "catalog.txt", true},
	}
	for _, tt := range tests {
		if got := Wildcard(tt.pattern).Match(tt.name); got != tt.want {
			t.Errorf("Wildcard(%q).Match(%q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestGlob(t *testing.T) {
	tests := []struct {
		pattern string
		name    string
		want    bool
	}{
		{"*.txt", "notes.txt", true},
		{"*.txt", "notes.txt.bak", false},
		{"data-?.csv", "data-1.csv", true},
		{"*.{json,yaml}", "cfg.yaml", true},
		{"[", "[", false},
	}
	for _, tt := range tests {
		if got := Glob(tt.pattern).Match(tt.name); got != tt.want {
			t.Errorf("Glob(%q).Match(%q) = %v, want %v", tt.pattern, tt.name, got, tt.want)
		}
	}
}

func TestMatchAll(t *testing.T) {
	if !filterOrAll(nil).Match("x") {
		t.Error("nil filter should match everything")
	}
}
