// Package formatter produces the human-readable answer for a selection.
package formatter

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/logger"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
	"github.com/kailas-cloud/dishfinder/internal/transport/chat"
)

const (
	topN = 3

	promptDescriptionRunes   = 120
	templateDescriptionRunes = 80

	templateNotes = "Используется упрощенный режим ответа"
	emptyNotes    = "Попробуйте изменить формулировку запроса"
)

// ModelCaller is the gateway surface the formatter needs.
type ModelCaller interface {
	Call(ctx context.Context, req chat.Request) (string, error)
}

const answerInstruction = `Ты кулинарный помощник. ВЕРНИ ТОЛЬКО JSON со следующей схемой:
{"summary": str, "recommendations": [{"dish_name": str, "why_recommend": str}], "total_found": int, "notes": str}
Пример: {"summary":"...","recommendations":[{"dish_name":"...","why_recommend":"..."}],"total_found":2,"notes":""}`

const retryInstruction = `Ты кулинарный помощник. ВЕРНИ СТРОГО JSON с полями "summary" и "recommendations". БЕЗ ЛИШНЕГО ТЕКСТА.`

type promptItem struct {
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	Vegan       bool    `json:"vegan"`
	Spiciness   string  `json:"spiciness"`
	Relevance   float64 `json:"relevance"`
}

// Formatter builds answers through the model when enabled and from a template otherwise.
type Formatter struct {
	caller  ModelCaller
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a formatter. A nil caller means template answers only.
func New(caller ModelCaller, timeout time.Duration, log *zap.Logger) *Formatter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Formatter{caller: caller, timeout: timeout, logger: log}
}

// Format never fails. An empty selection always gets the template answer.
func (f *Formatter) Format(ctx context.Context, query, miniContext string, items []domain.ScoredItem) domain.Answer {
	start := time.Now()
	defer func() {
		metrics.PipelineStageDuration.WithLabelValues("format").Observe(time.Since(start).Seconds())
	}()

	if len(items) == 0 {
		return Empty(query)
	}
	if f.caller == nil {
		return Template(query, items)
	}

	log := logger.FromContext(ctx, f.logger)
	data, err := json.Marshal(promptItems(items))
	if err != nil {
		log.Warn("encode prompt items", zap.Error(err))
		return Template(query, items)
	}

	attempts := []chat.Request{
		{
			Messages: []openai.ChatCompletionMessage{
				chat.System(answerInstruction),
				chat.User(fmt.Sprintf("Запрос: %s\nКонтекст: %s\nНайденные блюда: %s\n\nСформируй краткий полезный ответ в указанном JSON-формате.",
					query, miniContext, data)),
			},
			Temperature: 0.2,
			ForceJSON:   true,
			Timeout:     f.timeout,
			Purpose:     "format",
		},
		{
			Messages: []openai.ChatCompletionMessage{
				chat.System(retryInstruction),
				chat.User(fmt.Sprintf("Коротко: запрос: %s. Контекст: %s. Блюда: %s", query, miniContext, data)),
			},
			Temperature: 0,
			ForceJSON:   true,
			Timeout:     f.timeout,
			Purpose:     "format_retry",
		},
	}

	for i, req := range attempts {
		ans, err := f.attempt(ctx, req, len(items))
		if err == nil {
			return ans
		}
		log.Warn("answer attempt failed", zap.Int("attempt", i+1), zap.Error(err))
	}

	metrics.PipelineFallbacksTotal.WithLabelValues("formatter").Inc()
	return Template(query, items)
}

type rawAnswer struct {
	Summary         *string                 `json:"summary"`
	Recommendations []domain.Recommendation `json:"recommendations"`
	TotalFound      *int                    `json:"total_found"`
	Notes           string                  `json:"notes"`
}

func (f *Formatter) attempt(ctx context.Context, req chat.Request, found int) (domain.Answer, error) {
	out, err := f.caller.Call(ctx, req)
	if err != nil {
		return domain.Answer{}, err
	}
	if chat.IsFallback(out) {
		return domain.Answer{}, fmt.Errorf("fallback sentinel: %w", domain.ErrMalformedModelOutput)
	}

	var raw rawAnswer
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return domain.Answer{}, fmt.Errorf("decode answer: %w: %w", domain.ErrMalformedModelOutput, err)
	}
	if raw.Summary == nil || strings.TrimSpace(*raw.Summary) == "" {
		return domain.Answer{}, fmt.Errorf("summary is required: %w", domain.ErrMalformedModelOutput)
	}

	ans := domain.Answer{
		Summary:         strings.TrimSpace(*raw.Summary),
		Recommendations: raw.Recommendations,
		TotalFound:      found,
		Notes:           raw.Notes,
	}
	if raw.TotalFound != nil && *raw.TotalFound > 0 {
		ans.TotalFound = *raw.TotalFound
	}
	if ans.Recommendations == nil {
		ans.Recommendations = []domain.Recommendation{}
	}
	return ans, nil
}

// Template builds the deterministic answer.
func Template(query string, items []domain.ScoredItem) domain.Answer {
	if len(items) == 0 {
		return Empty(query)
	}
	recs := make([]domain.Recommendation, 0, topN)
	for i := range items[:min(topN, len(items))] {
		it := &items[i]
		why := fmt.Sprintf("%s с оценкой релевантности %.2f", it.Category, it.Relevance())
		if desc := truncate(it.Description, templateDescriptionRunes); desc != "" {
			why += ". " + desc
		}
		recs = append(recs, domain.Recommendation{DishName: it.Name, WhyRecommend: why})
	}
	return domain.Answer{
		Summary:         fmt.Sprintf("Найдено %d блюд по запросу '%s'", len(items), query),
		Recommendations: recs,
		TotalFound:      len(items),
		Notes:           templateNotes,
		Fallback:        true,
	}
}

// Empty is the answer for a query that matched nothing.
func Empty(query string) domain.Answer {
	return domain.Answer{
		Summary:         fmt.Sprintf("По запросу '%s' ничего не найдено", query),
		Recommendations: []domain.Recommendation{},
		Notes:           emptyNotes,
		Fallback:        true,
	}
}

func promptItems(items []domain.ScoredItem) []promptItem {
	out := make([]promptItem, 0, topN)
	for i := range items[:min(topN, len(items))] {
		it := &items[i]
		out = append(out, promptItem{
			Name:        it.Name,
			Category:    it.Category,
			Description: truncate(it.Description, promptDescriptionRunes),
			Vegan:       domain.IsVeganOf(it.IsVegan),
			Spiciness:   domain.SpiceTierOf(it.SpiceLevel).String(),
			Relevance:   math.Round(it.Relevance()*100) / 100,
		})
	}
	return out
}

// truncate cuts s to n runes, marking the cut with "...".
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
