package analyzer

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/transport/chat"
)

type stubCaller struct {
	out string
	err error
	got chat.Request
}

func (s *stubCaller) Call(_ context.Context, req chat.Request) (string, error) {
	s.got = req
	return s.out, s.err
}

func TestRules_Classification(t *testing.T) {
	tests := []struct {
		query string
		want  domain.QueryType
	}{
		{"борщ", domain.QueryExact},
		{"острое веганское", domain.QueryExact},
		{"хочу обед из трёх блюд", domain.QueryMenu},
		{"бизнес-ланч", domain.QueryMenu},
		{"суп и салат", domain.QueryComplex},
		{"суп + десерт", domain.QueryComplex},
		{"что-нибудь тёплое и сытное на холодный вечер", domain.QueryVague},
		// Menu wins over Complex.
		{"обед: суп и салат", domain.QueryMenu},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := NewRuleStrategy(nil).analyze(context.Background(), tt.query)
			if got.Type != tt.want {
				t.Errorf("type = %s, want %s", got.Type, tt.want)
			}
			if got.SearchPhrase == "" {
				t.Error("search phrase must never be empty")
			}
		})
	}
}

func TestRules_Modifiers(t *testing.T) {
	tests := []struct {
		query string
		want  map[string]float64
	}{
		{"острое веганское", map[string]float64{domain.ModSpiciness: 0.8, domain.ModVegan: 1}},
		{"очень острый суп", map[string]float64{domain.ModSpiciness: 1}},
		{"что-то не острое", map[string]float64{domain.ModSpiciness: 0}},
		{"недорогой обед", map[string]float64{domain.ModCheapness: 1}},
		{"блюдо без мяса", map[string]float64{domain.ModVegan: 1}},
		{"Пицца", map[string]float64{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := NewRuleStrategy(nil).analyze(context.Background(), tt.query).Modifiers
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("modifiers = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRules_ComplexSplitsComponents(t *testing.T) {
	intent := NewRuleStrategy(nil).analyze(context.Background(), "острый суп и салат без лука")

	if !intent.NeedsDecomposition || len(intent.Components) != 2 {
		t.Fatalf("expected 2 components, got %+v", intent.Components)
	}
	soup, salad := intent.Components[0], intent.Components[1]
	if soup.Name != "суп" || soup.SearchPhrase != "острый суп" || soup.Priority != 1 {
		t.Errorf("unexpected soup component: %+v", soup)
	}
	if salad.Name != "салат" || salad.SearchPhrase != "салат без лука" || salad.Priority != 2 {
		t.Errorf("unexpected salad component: %+v", salad)
	}
	if salad.Modifiers[domain.ModSpiciness] != 0.4 {
		t.Errorf("expected softened salad spice 0.4, got %v", salad.Modifiers[domain.ModSpiciness])
	}
	if soup.Modifiers[domain.ModSpiciness] != 0.8 {
		t.Errorf("expected soup spice 0.8, got %v", soup.Modifiers[domain.ModSpiciness])
	}
}

func TestRules_SingleCategory(t *testing.T) {
	if got := NewRuleStrategy(nil).analyze(context.Background(), "грибной суп").Category; got != "суп" {
		t.Errorf("expected category суп, got %q", got)
	}
	if got := NewRuleStrategy(nil).analyze(context.Background(), "острое веганское").Category; got != "" {
		t.Errorf("expected no category, got %q", got)
	}
}

func TestRules_MenuKeepsMealWord(t *testing.T) {
	intent := NewRuleStrategy(nil).analyze(context.Background(), "собери мне полноценный вкусный сбалансированный обед пожалуйста")
	if !intent.NeedsDecomposition {
		t.Error("menu requests need decomposition")
	}
	if !strings.Contains(intent.MiniContext, "обед") {
		t.Errorf("mini-context lost the meal word: %q", intent.MiniContext)
	}
}

func TestRules_EmptyText(t *testing.T) {
	intent := NewRuleStrategy(nil).analyze(context.Background(), "?!")
	if intent.SearchPhrase != genericPhrase {
		t.Errorf("expected generic phrase, got %q", intent.SearchPhrase)
	}
}

func TestModel_ParsesIntent(t *testing.T) {
	caller := &stubCaller{out: `{
		"query_type": "сложный",
		"category": null,
		"filters": {"vegan": "true", "spiciness": "высокая"},
		"search_text_for_embeddings": "острый суп и салат",
		"mini_context": "острый, суп, салат",
		"needs_decomposition": true,
		"components_needed": ["суп", {"name": "салат", "search_text": "свежий салат", "modifiers": {"spiciness_level": 0.2}}]
	}`}
	intent, err := NewModelStrategy(caller, 0).Analyze(context.Background(), "острый суп и салат")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if intent.Type != domain.QueryComplex || intent.Source != "model" {
		t.Errorf("unexpected type/source: %s/%s", intent.Type, intent.Source)
	}
	if intent.SearchPhrase != "острый суп и салат" {
		t.Errorf("legacy search text not used: %q", intent.SearchPhrase)
	}
	if !intent.VeganRequired() || intent.Modifiers[domain.ModSpiciness] != 0.8 {
		t.Errorf("unexpected modifiers: %v", intent.Modifiers)
	}
	if len(intent.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(intent.Components))
	}
	if intent.Components[0].SearchPhrase != "суп" || intent.Components[0].Count != 1 {
		t.Errorf("string component not normalized: %+v", intent.Components[0])
	}
	if intent.Components[1].SearchPhrase != "свежий салат" || intent.Components[1].Modifiers[domain.ModSpiciness] != 0.2 {
		t.Errorf("object component not parsed: %+v", intent.Components[1])
	}
	if !caller.got.ForceJSON || caller.got.Purpose != "analyze" || len(caller.got.Messages) != 2 {
		t.Errorf("unexpected request: %+v", caller.got)
	}
}

func TestModel_KeywordEvidenceMerged(t *testing.T) {
	caller := &stubCaller{out: `{"query_type":"точный","mini_context":"суп","search_text":"суп"}`}
	intent, err := NewModelStrategy(caller, 0).Analyze(context.Background(), "острое веганское")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Modifiers[domain.ModVegan] != 1 || intent.Modifiers[domain.ModSpiciness] != 0.8 {
		t.Errorf("expected text evidence in modifiers, got %v", intent.Modifiers)
	}
}

func TestModel_MalformedOutput(t *testing.T) {
	tests := map[string]string{
		"fallback sentinel": chat.FallbackSentinel("no JSON"),
		"missing query_type": `{"mini_context":"суп"}`,
		"missing mini_context": `{"query_type":"точный"}`,
		"array":              `[1,2]`,
	}
	for name, out := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := NewModelStrategy(&stubCaller{out: out}, 0).Analyze(context.Background(), "суп")
			if !errors.Is(err, domain.ErrMalformedModelOutput) {
				t.Errorf("expected ErrMalformedModelOutput, got %v", err)
			}
		})
	}
}

func TestAnalyzer_FallsBackToRules(t *testing.T) {
	failing := NewModelStrategy(&stubCaller{err: domain.NewModelCallError(domain.ModelCallTimeout, 0, context.DeadlineExceeded)}, 0)
	a := New(failing, nil, nil)

	got := a.Analyze(context.Background(), "острое веганское")
	want := New(nil, nil, nil).Analyze(context.Background(), "острое веганское")

	if got.Source != "rules" {
		t.Errorf("expected rules source, got %q", got.Source)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("fallback intent differs from rules intent:\n%+v\n%+v", got, want)
	}
}

func TestAnalyzer_MalformedFallsBackToRules(t *testing.T) {
	a := New(NewModelStrategy(&stubCaller{out: `{"oops":true}`}, 0), nil, nil)
	if got := a.Analyze(context.Background(), "суп и салат"); got.Type != domain.QueryComplex || got.Source != "rules" {
		t.Errorf("expected rule-based complex intent, got %+v", got)
	}
}

func TestAnalyzer_ModelPathShape(t *testing.T) {
	a := New(NewModelStrategy(&stubCaller{out: `{"query_type":"exact","mini_context":""}`}, 0), nil, nil)
	got := a.Analyze(context.Background(), "паста карбонара")

	if got.SearchPhrase != "паста карбонара" || got.MiniContext == "" || got.Modifiers == nil {
		t.Errorf("model intent not finalized: %+v", got)
	}
}
