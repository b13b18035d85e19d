package core

import (
	"testing"
)

func TestFindingSetPreservesInsertionOrder(t *testing.T) {
	set := NewFindingSet()
	set.Put(ResearchFinding{Point: "Intro", GroundedText: "a"})
	set.Put(ResearchFinding{Point: "Body", GroundedText: "b"})
	set.Put(ResearchFinding{Point: "Outro", GroundedText: "c"})

	ordered := set.Ordered()
	if len(ordered) != 3 {
		t.Fatalf("Expected 3 findings, got %d", len(ordered))
	}
	want := []string{"Intro", "Body", "Outro"}
	for i, f := range ordered {
		if f.Point != want[i] {
			t.Errorf("Position %d: expected point %q, got %q", i, want[i], f.Point)
		}
	}
}

func TestFindingSetReplaceKeepsPosition(t *testing.T) {
	set := NewFindingSet()
	set.Put(ResearchFinding{Point: "A", GroundedText: "first"})
	set.Put(ResearchFinding{Point: "B", GroundedText: "second"})
	set.Put(ResearchFinding{Point: "A", GroundedText: "replaced"})

	if set.Len() != 2 {
		t.Fatalf("Expected 2 findings after replace, got %d", set.Len())
	}
	ordered := set.Ordered()
	if ordered[0].Point != "A" || ordered[0].GroundedText != "replaced" {
		t.Errorf("Expected replaced A at position 0, got %+v", ordered[0])
	}
	if f, ok := set.Get("B"); !ok || f.GroundedText != "second" {
		t.Errorf("Expected B to be retrievable, got %+v (ok=%v)", f, ok)
	}
}

func TestNilFindingSet(t *testing.T) {
	var set *FindingSet
	if set.Len() != 0 {
		t.Errorf("Expected nil set to have length 0")
	}
	if set.Ordered() != nil {
		t.Errorf("Expected nil set to have no findings")
	}
}

func TestResearchFindingIsError(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"error placeholder", ErrorResearchPrefix + " timeout", true},
		{"grounded text", "Rust adoption grew 40% in 2024.", false},
		{"empty", "", false},
		{"prefix not at start", "Note: " + ErrorResearchPrefix, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ResearchFinding{Point: "p", GroundedText: tt.text}
			if got := f.IsError(); got != tt.want {
				t.Errorf("IsError() = %v, want %v", got, tt.want)
			}
		})
	}
}
