package scoring

import (
	"context"
	"errors"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
	"github.com/kailas-cloud/dishfinder/internal/transport/chat"
)

func TestMain(m *testing.M) {
	metrics.RegisterPipelineMetrics()
	os.Exit(m.Run())
}

type stubCaller struct {
	out   string
	err   error
	calls int
	got   chat.Request
}

func (s *stubCaller) Call(_ context.Context, req chat.Request) (string, error) {
	s.calls++
	s.got = req
	return s.out, s.err
}

func item(id, name, category string, spice, vegan int) domain.Item {
	return domain.Item{ID: id, Name: name, Category: category, SpiceLevel: spice, IsVegan: vegan}.Normalized()
}

func runWith(intent domain.QueryIntent, results map[string][]domain.ScoredItem, taskIDs ...string) *domain.PipelineRun {
	run := domain.NewPipelineRun("q")
	run.Intent = intent
	for _, id := range taskIDs {
		run.Tasks = append(run.Tasks, domain.SearchTask{ID: id, SearchPhrase: intent.SearchPhrase})
	}
	run.Results = results
	return run
}

func names(items []domain.ScoredItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Name
	}
	return out
}

func TestLexical(t *testing.T) {
	it := domain.Item{
		Name:        "Том Ям",
		Category:    "Супы",
		Description: "Острый тайский суп с креветками",
		Ingredients: []string{"кокосовое молоко", "креветки"},
	}
	tests := []struct {
		phrase string
		want   float64
	}{
		{"суп с креветками", 1},
		{"острый суп", 1},
		{"суп с курицей", 0.5},
		{"пицца", 0},
		{"и с в", 0},
	}
	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			if got := Lexical(tt.phrase, it); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Lexical(%q) = %v, want %v", tt.phrase, got, tt.want)
			}
		})
	}
}

func TestCompareIDs(t *testing.T) {
	if compareIDs("2", "10") >= 0 {
		t.Error("numeric ids must compare numerically")
	}
	if compareIDs("b", "a") <= 0 {
		t.Error("non-numeric ids compare lexically")
	}
	if compareIDs("10", "9a") >= 0 {
		t.Error("mixed ids compare lexically")
	}
}

func TestSelect_SpicyVegan(t *testing.T) {
	intent := domain.QueryIntent{
		Type:         domain.QueryExact,
		SearchPhrase: "острое веганское",
		Modifiers:    map[string]float64{domain.ModSpiciness: 0.8, domain.ModVegan: 1},
	}
	run := runWith(intent, map[string][]domain.ScoredItem{
		"main": {
			domain.NewScoredItem(item("1", "Борщ", "Супы", 1, 0), 0.9),
			domain.NewScoredItem(item("2", "Том Ям", "Супы", 2, 1), 0.7),
		},
	}, "main")

	got := NewSelector(Config{}, nil, nil).Select(context.Background(), run, domain.Filters{}, 5)
	if len(got) != 1 || got[0].Name != "Том Ям" {
		t.Fatalf("expected only Том Ям, got %v", names(got))
	}
	if len(run.Selected) != 1 {
		t.Error("run.Selected not set")
	}
}

func TestSelect_OrderTiesAndDedupe(t *testing.T) {
	intent := domain.QueryIntent{SearchPhrase: "zzz"}
	run := runWith(intent, map[string][]domain.ScoredItem{
		"task_0": {
			domain.NewScoredItem(item("10", "A", "x", 0, 0), 0.5),
			domain.NewScoredItem(item("2", "B", "x", 0, 0), 0.5),
			domain.NewScoredItem(item("3", "C", "x", 0, 0), 0.9),
		},
		"task_1": {
			domain.NewScoredItem(item("7", "c", "x", 0, 0), 0.4),
		},
	}, "task_0", "task_1")

	got := NewSelector(Config{}, nil, nil).Select(context.Background(), run, domain.Filters{}, 10)
	want := []string{"C", "B", "A"}
	if strings.Join(names(got), ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", names(got), want)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Relevance() > got[i-1].Relevance() {
			t.Errorf("relevance not non-increasing at %d", i)
		}
	}
}

func TestSelect_CategoryPenalty(t *testing.T) {
	intent := domain.QueryIntent{SearchPhrase: "zzz", Category: "суп"}
	run := runWith(intent, map[string][]domain.ScoredItem{
		"main": {
			domain.NewScoredItem(item("1", "Цезарь", "Салаты", 0, 0), 0.9),
			domain.NewScoredItem(item("2", "Щи", "Супы", 0, 0), 0.8),
		},
	}, "main")

	got := NewSelector(Config{}, nil, nil).Select(context.Background(), run, domain.Filters{}, 2)
	if got[0].Name != "Щи" {
		t.Fatalf("penalized item ranked first: %v", names(got))
	}
	if want := 0.6 * 0.9 * domain.CategoryPenalty; math.Abs(got[1].Relevance()-want) > 1e-9 {
		t.Errorf("penalized relevance = %v, want %v", got[1].Relevance(), want)
	}
}

func TestSelect_BackfillRelaxesOnlySpice(t *testing.T) {
	intent := domain.QueryIntent{
		SearchPhrase: "очень острое",
		Modifiers:    map[string]float64{domain.ModSpiciness: 1, domain.ModVegan: 1},
	}
	run := runWith(intent, map[string][]domain.ScoredItem{
		"main": {
			domain.NewScoredItem(item("1", "Мясо чили", "Горячее", 2, 0), 0.95),
			domain.NewScoredItem(item("2", "Карри", "Горячее", 2, 1), 0.9),
			domain.NewScoredItem(item("3", "Овощное рагу", "Горячее", 0, 1), 0.8),
			domain.NewScoredItem(item("4", "Хумус", "Закуски", 1, 1), 0.7),
		},
	}, "main")

	got := NewSelector(Config{}, nil, nil).Select(context.Background(), run, domain.Filters{}, 3)
	if strings.Join(names(got), ",") != "Карри,Овощное рагу,Хумус" {
		t.Fatalf("unexpected selection: %v", names(got))
	}
	if got[0].Backfilled || !got[1].Backfilled || !got[2].Backfilled {
		t.Errorf("backfill flags wrong: %v %v %v", got[0].Backfilled, got[1].Backfilled, got[2].Backfilled)
	}
}

func TestSelect_ExplicitFilters(t *testing.T) {
	pool := func() map[string][]domain.ScoredItem {
		return map[string][]domain.ScoredItem{"main": {
			domain.NewScoredItem(item("1", "Борщ", "Супы", 1, 0), 0.9),
			domain.NewScoredItem(item("2", "Том Ям", "Супы", 2, 1), 0.8),
			domain.NewScoredItem(item("3", "Фалафель", "Закуски", 0, 1), 0.7),
		}}
	}
	yes, no, zero := true, false, 0
	tests := []struct {
		name    string
		filters domain.Filters
		want    string
	}{
		{"vegan", domain.Filters{Vegan: &yes}, "Том Ям,Фалафель"},
		{"not vegan", domain.Filters{Vegan: &no}, "Борщ"},
		{"spice max", domain.Filters{SpiceMax: &zero}, "Фалафель"},
		{"category", domain.Filters{Category: "суп"}, "Борщ,Том Ям"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := runWith(domain.QueryIntent{SearchPhrase: "zzz"}, pool(), "main")
			got := NewSelector(Config{}, nil, nil).Select(context.Background(), run, tt.filters, 5)
			if strings.Join(names(got), ",") != tt.want {
				t.Errorf("got %v, want %s", names(got), tt.want)
			}
		})
	}
}

func TestSelect_Truncates(t *testing.T) {
	run := runWith(domain.QueryIntent{SearchPhrase: "zzz"}, map[string][]domain.ScoredItem{"main": {
		domain.NewScoredItem(item("1", "A", "x", 0, 0), 0.9),
		domain.NewScoredItem(item("2", "B", "x", 0, 0), 0.8),
		domain.NewScoredItem(item("3", "C", "x", 0, 0), 0.7),
	}}, "main")

	if got := NewSelector(Config{}, nil, nil).Select(context.Background(), run, domain.Filters{}, 2); len(got) != 2 {
		t.Errorf("expected 2 items, got %d", len(got))
	}
}

func TestSelect_Empty(t *testing.T) {
	run := runWith(domain.QueryIntent{}, map[string][]domain.ScoredItem{}, "main")
	got := NewSelector(Config{}, nil, nil).Select(context.Background(), run, domain.Filters{}, 5)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil selection, got %v", got)
	}
}

func TestSelect_RerankChangesOrder(t *testing.T) {
	caller := &stubCaller{out: `[{"idx":0,"score":0},{"idx":1,"score":1},{"idx":7,"score":1}]`}
	w := domain.Weights{Vector: 0.5, Lexical: 0, Rerank: 0.5}
	run := runWith(domain.QueryIntent{SearchPhrase: "zzz"}, map[string][]domain.ScoredItem{"main": {
		domain.NewScoredItem(item("1", "A", "x", 0, 0), 0.6),
		domain.NewScoredItem(item("2", "B", "x", 0, 0), 0.5),
	}}, "main")

	got := NewSelector(Config{Weights: w}, NewReranker(caller, 0, nil), nil).Select(context.Background(), run, domain.Filters{}, 2)
	if got[0].Name != "B" || got[0].RerankScore != 1 {
		t.Errorf("rerank not applied: %+v", got)
	}
	if caller.got.Purpose != "rerank" || !caller.got.ForceJSON {
		t.Errorf("unexpected rerank request: %+v", caller.got)
	}
}

func TestReranker_FailuresSkip(t *testing.T) {
	tests := map[string]*stubCaller{
		"call error":  {err: domain.NewModelCallError(domain.ModelCallTimeout, 0, context.DeadlineExceeded)},
		"sentinel":    {out: chat.FallbackSentinel("nothing")},
		"not a list":  {out: `{"idx":0,"score":1}`},
	}
	for name, caller := range tests {
		t.Run(name, func(t *testing.T) {
			items := []domain.ScoredItem{domain.NewScoredItem(item("1", "A", "x", 0, 0), 0.5)}
			err := NewReranker(caller, 0, nil).Rerank(context.Background(), "q", items)
			if err == nil {
				t.Fatal("expected error")
			}
			if !domain.IsModelFailure(err) {
				t.Errorf("expected model failure, got %v", err)
			}
			if items[0].RerankScore != 0 {
				t.Errorf("rerank score changed on failure: %v", items[0].RerankScore)
			}
		})
	}
}

func TestReranker_ClampsScores(t *testing.T) {
	caller := &stubCaller{out: `[{"idx":0,"score":3.5},{"idx":1,"score":-1},{"idx":1}]`}
	items := []domain.ScoredItem{
		domain.NewScoredItem(item("1", "A", "x", 0, 0), 0.5),
		domain.NewScoredItem(item("2", "B", "x", 0, 0), 0.5),
	}
	if err := NewReranker(caller, 0, nil).Rerank(context.Background(), "q", items); err != nil {
		t.Fatal(err)
	}
	if items[0].RerankScore != 1 || items[1].RerankScore != 0 {
		t.Errorf("scores not clamped: %v %v", items[0].RerankScore, items[1].RerankScore)
	}
}

func TestReranker_EmptyNoCall(t *testing.T) {
	caller := &stubCaller{err: errors.New("unexpected")}
	if err := NewReranker(caller, 0, nil).Rerank(context.Background(), "q", nil); err != nil || caller.calls != 0 {
		t.Errorf("expected no call for empty input, err=%v calls=%d", err, caller.calls)
	}
}
