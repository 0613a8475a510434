package search

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
	"github.com/kailas-cloud/dishfinder/internal/transport/chat"
	"github.com/kailas-cloud/dishfinder/internal/usecase/analyzer"
	"github.com/kailas-cloud/dishfinder/internal/usecase/embedding"
	"github.com/kailas-cloud/dishfinder/internal/usecase/formatter"
	"github.com/kailas-cloud/dishfinder/internal/usecase/retrieval"
	"github.com/kailas-cloud/dishfinder/internal/usecase/scoring"
	"github.com/kailas-cloud/dishfinder/internal/vectorindex"
)

const dim = 64

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()
	os.Exit(m.Run())
}

func newService(t *testing.T, ix *vectorindex.Index, gw *chat.Gateway) *Service {
	t.Helper()
	emb := embedding.NewHashingEmbedder(dim)
	return New(
		analyzer.New(analyzer.NewModelStrategy(gw, 0), nil, nil),
		retrieval.New(emb, ix, embedding.NewPseudoEmbedder(dim), retrieval.Config{}, nil),
		scoring.NewSelector(scoring.Config{}, scoring.NewReranker(gw, 0, nil), nil),
		formatter.New(gw, 0, nil),
		nil,
	)
}

func seed(t *testing.T, items ...domain.Item) *vectorindex.Index {
	t.Helper()
	ix := vectorindex.New(nil, nil)
	emb := embedding.NewHashingEmbedder(dim)
	for _, it := range items {
		res, err := emb.Embed(context.Background(), it.DocumentText())
		if err != nil {
			t.Fatalf("embed %s: %v", it.ID, err)
		}
		if err := ix.Upsert(context.Background(), it.ID, res.Embedding, it); err != nil {
			t.Fatalf("upsert %s: %v", it.ID, err)
		}
	}
	return ix
}

func disabledGateway() *chat.Gateway {
	return chat.New(chat.Config{Enabled: false}, nil)
}

func TestSearch_SpicyVegan(t *testing.T) {
	ix := seed(t,
		domain.Item{ID: "1", Name: "Том Ям", Category: "Супы", SpiceLevel: 2, IsVegan: 1, Description: "Острый тайский суп"},
		domain.Item{ID: "2", Name: "Борщ", Category: "Супы", SpiceLevel: 1, IsVegan: 0, Description: "Свекольный суп со сметаной"},
	)

	resp := newService(t, ix, disabledGateway()).Search(context.Background(), Request{Text: "острое веганское", MaxResults: 5})

	if resp.Error != "" {
		t.Fatalf("unexpected error: %s", resp.Error)
	}
	if len(resp.RankedItems) != 1 || resp.RankedItems[0].Name != "Том Ям" {
		t.Fatalf("expected only Том Ям, got %+v", resp.RankedItems)
	}
	got := resp.RankedItems[0]
	if !got.Vegan || got.SpiceTier != "высокая" || got.Relevance < 0 || got.Relevance > 1 {
		t.Errorf("unexpected ranked item: %+v", got)
	}
	if resp.TasksCount != 1 || resp.Query != "острое веганское" || resp.RunID == "" {
		t.Errorf("unexpected response envelope: %+v", resp)
	}
}

func TestSearch_EmptyIndex(t *testing.T) {
	resp := newService(t, vectorindex.New(nil, nil), disabledGateway()).
		Search(context.Background(), Request{Text: "что-нибудь поесть"})

	if resp.RankedItems == nil || len(resp.RankedItems) != 0 {
		t.Errorf("expected empty ranked items, got %+v", resp.RankedItems)
	}
	if resp.Error != "" {
		t.Errorf("empty index is not an error: %s", resp.Error)
	}
	if resp.ElapsedMS < 0 {
		t.Errorf("elapsed_ms = %d", resp.ElapsedMS)
	}
	if !strings.Contains(resp.Answer.Summary, "что-нибудь поесть") {
		t.Errorf("summary does not reference the query: %q", resp.Answer.Summary)
	}
}

func TestSearch_GatewayAlwaysFails(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	gw := chat.New(chat.Config{Enabled: true, BaseURL: srv.URL, Model: "m", Timeout: time.Second}, nil)
	ix := seed(t,
		domain.Item{ID: "1", Name: "Грибной суп", Category: "Супы", Description: "Суп из белых грибов"},
		domain.Item{ID: "2", Name: "Тирамису", Category: "Десерты"},
	)

	resp := newService(t, ix, gw).Search(context.Background(), Request{Text: "грибной суп", MaxResults: 2})

	if resp.Error != "" {
		t.Fatalf("gateway failures must not fail the search: %s", resp.Error)
	}
	if resp.Answer.Summary == "" || !strings.Contains(resp.Answer.Summary, "грибной суп") {
		t.Errorf("summary does not reference the query: %q", resp.Answer.Summary)
	}
	if !resp.Answer.Fallback {
		t.Error("expected template answer")
	}
	if len(resp.RankedItems) == 0 || resp.RankedItems[0].Name != "Грибной суп" {
		t.Errorf("unexpected ranking: %+v", resp.RankedItems)
	}
	// analyze + rerank + two format attempts
	if got := calls.Load(); got != 4 {
		t.Errorf("expected 4 gateway calls, got %d", got)
	}
}

type panickingAnalyzer struct{}

func (panickingAnalyzer) Analyze(context.Context, string) domain.QueryIntent { panic("boom") }

func TestSearch_RecoversPanic(t *testing.T) {
	svc := New(panickingAnalyzer{}, nil, nil, nil, nil)
	resp := svc.Search(context.Background(), Request{Text: "борщ"})

	if resp.Error == "" || !strings.Contains(resp.Answer.Summary, "борщ") {
		t.Errorf("expected conversational failure, got %+v", resp)
	}
	if resp.RankedItems == nil {
		t.Error("ranked items must be an empty list")
	}
}

type failingRetriever struct{}

func (failingRetriever) Retrieve(context.Context, *domain.PipelineRun, int) error {
	return domain.ErrSnapshotUnavailable
}

func TestSearch_TotalFailure(t *testing.T) {
	svc := New(analyzer.New(nil, nil, nil), failingRetriever{}, nil, nil, nil)
	resp := svc.Search(context.Background(), Request{Text: "борщ"})

	if resp.Error == "" || len(resp.RankedItems) != 0 {
		t.Errorf("expected explicit failure, got %+v", resp)
	}
	if resp.TasksCount != 1 || resp.Intent.SearchPhrase == "" {
		t.Errorf("intent should still be reported: %+v", resp)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	resp := New(nil, nil, nil, nil, nil).Search(context.Background(), Request{Text: "   "})
	if resp.Error != ErrEmptyQuery.Error() || resp.Answer.Summary == "" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestSearch_MaxResultsClamped(t *testing.T) {
	var items []domain.Item
	for _, name := range []string{"Суп 1", "Суп 2", "Суп 3", "Суп 4", "Суп 5", "Суп 6", "Суп 7"} {
		items = append(items, domain.Item{ID: name, Name: name, Category: "Супы"})
	}
	svc := newService(t, seed(t, items...), disabledGateway())

	if resp := svc.Search(context.Background(), Request{Text: "суп"}); len(resp.RankedItems) != DefaultMaxResults {
		t.Errorf("default max results: got %d", len(resp.RankedItems))
	}
	if resp := svc.Search(context.Background(), Request{Text: "суп", MaxResults: 2}); len(resp.RankedItems) != 2 {
		t.Errorf("explicit max results: got %d", len(resp.RankedItems))
	}
}
