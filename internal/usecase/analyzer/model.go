package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/textnorm"
	"github.com/kailas-cloud/dishfinder/internal/transport/chat"
)

// ModelCaller is the gateway surface the model strategy needs.
type ModelCaller interface {
	Call(ctx context.Context, req chat.Request) (string, error)
}

const systemInstruction = `Ты анализируешь запросы к меню ресторана. Верни ТОЛЬКО JSON без пояснений.

Поля:
 - query_type: одно из "точный", "размытый", "меню", "сложный"
 - category: категория блюда (суп, салат, десерт, напиток, закуска, основное) или null
 - filters: объект, например {"vegan": true, "spiciness": "высокая"}
 - modifiers: объект ключ -> число 0..1 (spiciness, vegan, cheapness)
 - search_text: короткая фраза для векторного поиска (2-4 слова)
 - mini_context: 3-5 ключевых слов через запятую
 - needs_decomposition: true, если нужен набор из нескольких блюд
 - components_needed: список компонентов (строка или объект {"name", "search_text", "count"})

Пример:
"острый суп" -> {"query_type":"точный","category":"суп","filters":{"vegan":false,"spiciness":"высокая"},"modifiers":{"spiciness":0.8},"search_text":"острый суп","mini_context":"острый, суп","needs_decomposition":false,"components_needed":[]}`

// ModelStrategy asks the language model for the intent.
type ModelStrategy struct {
	caller  ModelCaller
	timeout time.Duration
}

// NewModelStrategy creates the model-backed strategy.
func NewModelStrategy(caller ModelCaller, timeout time.Duration) *ModelStrategy {
	return &ModelStrategy{caller: caller, timeout: timeout}
}

// Name implements Strategy.
func (*ModelStrategy) Name() string { return "model" }

// Analyze implements Strategy. Gateway failures come back as is; unusable
// output is domain.ErrMalformedModelOutput.
func (m *ModelStrategy) Analyze(ctx context.Context, text string) (domain.QueryIntent, error) {
	out, err := m.caller.Call(ctx, chat.Request{
		Messages: []openai.ChatCompletionMessage{
			chat.System(systemInstruction),
			chat.User(fmt.Sprintf("Запрос: %q\n\nСтрого верни JSON по описанной схеме.", text)),
		},
		Temperature: 0.1,
		MaxTokens:   400,
		ForceJSON:   true,
		Timeout:     m.timeout,
		Purpose:     "analyze",
	})
	if err != nil {
		return domain.QueryIntent{}, fmt.Errorf("analyze call: %w", err)
	}

	intent, err := parseIntent(out, text)
	if err != nil {
		return domain.QueryIntent{}, err
	}
	intent.Source = m.Name()
	return intent, nil
}

type rawIntent struct {
	QueryType          *string         `json:"query_type"`
	Category           *string         `json:"category"`
	Filters            map[string]any  `json:"filters"`
	Modifiers          map[string]any  `json:"modifiers"`
	SearchText         string          `json:"search_text"`
	SearchTextLegacy   string          `json:"search_text_for_embeddings"`
	MiniContext        *string         `json:"mini_context"`
	NeedsDecomposition *bool           `json:"needs_decomposition"`
	Components         json.RawMessage `json:"components_needed"`
}

func parseIntent(out, query string) (domain.QueryIntent, error) {
	if chat.IsFallback(out) {
		return domain.QueryIntent{}, fmt.Errorf("fallback sentinel: %w", domain.ErrMalformedModelOutput)
	}

	var raw rawIntent
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return domain.QueryIntent{}, fmt.Errorf("decode intent: %w: %w", domain.ErrMalformedModelOutput, err)
	}
	if raw.QueryType == nil || raw.MiniContext == nil {
		return domain.QueryIntent{}, fmt.Errorf("query_type and mini_context are required: %w", domain.ErrMalformedModelOutput)
	}

	qt := domain.ParseQueryType(strings.ToLower(strings.TrimSpace(*raw.QueryType)))
	intent := domain.QueryIntent{
		Type:        qt,
		Modifiers:   map[string]float64{},
		MiniContext: strings.TrimSpace(*raw.MiniContext),
	}
	if raw.Category != nil {
		intent.Category = strings.ToLower(strings.TrimSpace(*raw.Category))
	}

	intent.SearchPhrase = strings.TrimSpace(raw.SearchText)
	if intent.SearchPhrase == "" {
		intent.SearchPhrase = strings.TrimSpace(raw.SearchTextLegacy)
	}
	if intent.SearchPhrase == "" {
		intent.SearchPhrase = intent.MiniContext
	}
	if intent.SearchPhrase == "" {
		intent.SearchPhrase = strings.TrimSpace(query)
	}

	applyFilters(intent.Modifiers, raw.Filters)
	for k, v := range raw.Modifiers {
		if f, ok := toFloat(v); ok {
			intent.Modifiers[canonicalModifier(k)] = clamp01(f)
		}
	}
	// Keyword evidence from the raw text beats the model's reading.
	for k, v := range extractModifiers(textnorm.Fold(query)) {
		intent.Modifiers[k] = v
	}

	intent.Components = parseComponents(raw.Components, intent.Modifiers)
	intent.NeedsDecomposition = qt == domain.QueryMenu || qt == domain.QueryComplex
	if raw.NeedsDecomposition != nil {
		intent.NeedsDecomposition = *raw.NeedsDecomposition || len(intent.Components) > 0
	}
	return intent, nil
}

func applyFilters(mods map[string]float64, filters map[string]any) {
	if v, ok := filters["vegan"]; ok {
		if b, ok := toBool(v); ok && b {
			mods[domain.ModVegan] = 1
		}
	}
	for _, key := range []string{"spiciness", "spicy", "spice"} {
		v, ok := filters[key]
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "высокая", "high", "острая", "острое":
				mods[domain.ModSpiciness] = 0.8
			case "средняя", "medium":
				mods[domain.ModSpiciness] = 0.5
			}
		case float64:
			switch domain.SpiceTierOf(int(s)) {
			case domain.SpiceHigh:
				mods[domain.ModSpiciness] = 0.8
			case domain.SpiceMedium:
				mods[domain.ModSpiciness] = 0.5
			}
		case bool:
			if s {
				mods[domain.ModSpiciness] = 0.8
			}
		}
	}
}

type rawComponent struct {
	Name          string         `json:"name"`
	ComponentType string         `json:"component_type"`
	SearchText    string         `json:"search_text"`
	SearchPhrase  string         `json:"search_phrase"`
	Suggestion    string         `json:"search_query_suggestion"`
	Description   string         `json:"description"`
	Modifiers     map[string]any `json:"modifiers"`
	Count         int            `json:"count"`
	Priority      int            `json:"priority"`
}

// parseComponents accepts a list of strings, a list of objects, a single
// object or a single string. Anything else yields no components.
func parseComponents(data json.RawMessage, global map[string]float64) []domain.ComponentSpec {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		items = []json.RawMessage{data}
	}

	specs := make([]domain.ComponentSpec, 0, len(items))
	for _, item := range items {
		var rc rawComponent
		var s string
		switch {
		case json.Unmarshal(item, &s) == nil:
			rc.Name = s
		case json.Unmarshal(item, &rc) == nil:
		default:
			continue
		}

		name := firstNonEmpty(rc.Name, rc.ComponentType, rc.Description)
		phrase := firstNonEmpty(rc.SearchText, rc.SearchPhrase, rc.Suggestion, name)
		if strings.TrimSpace(phrase) == "" {
			continue
		}

		mods := make(map[string]float64, len(global)+len(rc.Modifiers))
		for k, v := range global {
			mods[k] = v
		}
		for k, v := range rc.Modifiers {
			if f, ok := toFloat(v); ok {
				mods[canonicalModifier(k)] = clamp01(f)
			}
		}

		count := rc.Count
		if count <= 0 {
			count = 1
		}
		specs = append(specs, domain.ComponentSpec{
			Name:         strings.TrimSpace(firstNonEmpty(name, phrase)),
			SearchPhrase: strings.TrimSpace(phrase),
			Modifiers:    mods,
			Count:        count,
			Priority:     len(specs) + 1,
		})
	}
	if len(specs) == 0 {
		return nil
	}
	return specs
}

func canonicalModifier(k string) string {
	switch strings.ToLower(strings.TrimSpace(k)) {
	case "spiciness", "spiciness_level", "spicy", "острота":
		return domain.ModSpiciness
	case "vegan", "веган":
		return domain.ModVegan
	case "cheapness", "cheap", "price":
		return domain.ModCheapness
	default:
		return strings.ToLower(strings.TrimSpace(k))
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case float64:
		return x != 0, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return b, err == nil
	default:
		return false, false
	}
}

func clamp01(x float64) float64 {
	return min(1, max(0, x))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
