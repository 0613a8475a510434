package domain

import (
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestNormScore(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero", 0, 0},
		{"one", 1, 1},
		{"inside", 0.42, 0.42},
		{"negative squashed", -2, 1 / (1 + math.Exp(2))},
		{"large squashed", 3, 1 / (1 + math.Exp(-3))},
		{"nan", math.NaN(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormScore(tt.in)
			if !approx(got, tt.want) {
				t.Errorf("NormScore(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("NormScore(%v) = %v out of [0,1]", tt.in, got)
			}
		})
	}
}

func TestRescore_DefaultWeights(t *testing.T) {
	s := ScoredItem{Item: Item{Category: "Супы"}, VectorScore: 0.8, LexicalScore: 0.5, RerankScore: 0}
	got := s.Rescore(DefaultWeights(), "")

	if !approx(got, 0.63) {
		t.Errorf("expected 0.63, got %v", got)
	}
	if !approx(s.Relevance(), got) {
		t.Errorf("Relevance() = %v, want %v", s.Relevance(), got)
	}
}

func TestRescore_CategoryPenalty(t *testing.T) {
	tests := []struct {
		name      string
		category  string
		requested string
		want      float64
	}{
		{"no category requested", "Супы", "", 0.63},
		{"matching substring", "Горячие супы", "суп", 0.63},
		{"case insensitive", "СУПЫ", "супы", 0.63},
		{"mismatch penalized", "Десерты", "суп", 0.63 * CategoryPenalty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ScoredItem{Item: Item{Category: tt.category}, VectorScore: 0.8, LexicalScore: 0.5}
			if got := s.Rescore(DefaultWeights(), tt.requested); !approx(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRescore_StaysInUnitInterval(t *testing.T) {
	s := ScoredItem{VectorScore: 50, LexicalScore: -50, RerankScore: math.NaN()}
	got := s.Rescore(Weights{Vector: 1, Lexical: 1, Rerank: 1}, "")
	if got < 0 || got > 1 {
		t.Fatalf("relevance %v out of [0,1]", got)
	}
}

func TestSpiceTierOf(t *testing.T) {
	cases := map[int]SpiceTier{-1: SpiceLow, 0: SpiceLow, 1: SpiceMedium, 2: SpiceHigh, 7: SpiceHigh}
	for level, want := range cases {
		if got := SpiceTierOf(level); got != want {
			t.Errorf("SpiceTierOf(%d) = %v, want %v", level, got, want)
		}
	}
}

func TestIsVeganOf(t *testing.T) {
	if IsVeganOf(0) {
		t.Error("0 must not be vegan")
	}
	if !IsVeganOf(1) {
		t.Error("1 must be vegan")
	}
}

func TestRequestedSpiceTier(t *testing.T) {
	tests := []struct {
		strength float64
		want     SpiceTier
		ok       bool
	}{
		{0, SpiceLow, false},
		{0.2, SpiceLow, true},
		{0.5, SpiceMedium, true},
		{0.8, SpiceHigh, true},
		{1, SpiceHigh, true},
	}
	for _, tt := range tests {
		q := QueryIntent{Modifiers: map[string]float64{ModSpiciness: tt.strength}}
		got, ok := q.RequestedSpiceTier()
		if got != tt.want || ok != tt.ok {
			t.Errorf("strength %v: got (%v, %v), want (%v, %v)", tt.strength, got, ok, tt.want, tt.ok)
		}
	}
}

func TestItemNormalized(t *testing.T) {
	it := Item{ID: " 7 ", Name: " Борщ "}.Normalized()
	if it.ID != "7" || it.Name != "Борщ" {
		t.Errorf("expected trimmed fields, got %+v", it)
	}
	if it.Ingredients == nil || it.Tags == nil {
		t.Error("expected empty, non-nil slices")
	}
}

func TestItemDocumentText(t *testing.T) {
	it := Item{
		Name:        "Том Ям",
		Description: "острый суп",
		Ingredients: []string{"креветки", "лемонграсс"},
		Category:    "Супы",
	}
	want := "Том Ям острый суп креветки лемонграсс Супы"
	if got := it.DocumentText(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
