package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/logger"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
	"github.com/kailas-cloud/dishfinder/internal/transport/chat"
)

// ModelCaller is the gateway surface the reranker needs.
type ModelCaller interface {
	Call(ctx context.Context, req chat.Request) (string, error)
}

const rerankInstruction = `Ты кулинарный ранкер. Оцени релевантность каждого блюда запросу.
Вход: JSON массив объектов с полями idx, name, category, price, spiciness, vegan, vector_score, lexical_score.
Выход: ТОЛЬКО JSON массив объектов {"idx": int, "score": число 0..1}.`

type rerankCandidate struct {
	Idx          int     `json:"idx"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	Spiciness    string  `json:"spiciness"`
	Vegan        bool    `json:"vegan"`
	VectorScore  float64 `json:"vector_score"`
	LexicalScore float64 `json:"lexical_score"`
}

type rerankScore struct {
	Idx   *int     `json:"idx"`
	Score *float64 `json:"score"`
}

// Reranker asks the language model to score candidates.
type Reranker struct {
	caller  ModelCaller
	timeout time.Duration
	logger  *zap.Logger
}

// NewReranker creates a model reranker.
func NewReranker(caller ModelCaller, timeout time.Duration, log *zap.Logger) *Reranker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reranker{caller: caller, timeout: timeout, logger: log}
}

// Rerank sets RerankScore on items in place. On any failure the items are
// left untouched and the error is returned for logging only.
func (r *Reranker) Rerank(ctx context.Context, query string, items []domain.ScoredItem) error {
	if len(items) == 0 {
		return nil
	}

	cands := make([]rerankCandidate, len(items))
	for i := range items {
		it := &items[i]
		cands[i] = rerankCandidate{
			Idx:          i,
			Name:         it.Name,
			Category:     it.Category,
			Price:        it.Price,
			Spiciness:    domain.SpiceTierOf(it.SpiceLevel).String(),
			Vegan:        domain.IsVeganOf(it.IsVegan),
			VectorScore:  round3(it.VectorScore),
			LexicalScore: round3(it.LexicalScore),
		}
	}
	data, err := json.Marshal(cands)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}

	out, err := r.caller.Call(ctx, chat.Request{
		Messages: []openai.ChatCompletionMessage{
			chat.System(rerankInstruction),
			chat.User(fmt.Sprintf("Запрос: %q\n\nДанные: %s", query, data)),
		},
		Temperature: 0,
		ForceJSON:   true,
		Timeout:     r.timeout,
		Purpose:     "rerank",
	})
	if err != nil {
		return r.skip(ctx, fmt.Errorf("rerank call: %w", err))
	}

	scores, err := parseRerank(out)
	if err != nil {
		return r.skip(ctx, err)
	}
	for _, s := range scores {
		if *s.Idx < 0 || *s.Idx >= len(items) {
			continue
		}
		items[*s.Idx].RerankScore = min(1, max(0, *s.Score))
	}
	return nil
}

func (r *Reranker) skip(ctx context.Context, err error) error {
	metrics.PipelineFallbacksTotal.WithLabelValues("rerank").Inc()
	logger.FromContext(ctx, r.logger).Warn("rerank skipped", zap.Error(err))
	return err
}

func parseRerank(out string) ([]rerankScore, error) {
	if chat.IsFallback(out) {
		return nil, fmt.Errorf("rerank: fallback sentinel: %w", domain.ErrMalformedModelOutput)
	}
	var raw []rerankScore
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("rerank: %w: %w", domain.ErrMalformedModelOutput, err)
	}
	scores := raw[:0]
	for _, s := range raw {
		if s.Idx != nil && s.Score != nil {
			scores = append(scores, s)
		}
	}
	return scores, nil
}

func round3(x float64) float64 {
	return math.Round(x*1000) / 1000
}
