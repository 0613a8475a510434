// Package chat is the gateway to an OpenAI-compatible chat completions service.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/dishfinder/internal/domain"
	"github.com/kailas-cloud/dishfinder/internal/logger"
	"github.com/kailas-cloud/dishfinder/internal/metrics"
)

const (
	completionsPath = "/chat/completions"
	modelsPath      = "/models"

	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 512
)

// Config holds the gateway settings.
type Config struct {
	Enabled   bool
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	MaxTokens int
}

// Request is one chat call. Zero Timeout and MaxTokens take the gateway defaults.
type Request struct {
	Messages    []openai.ChatCompletionMessage
	Temperature float64
	MaxTokens   int
	ForceJSON   bool
	Timeout     time.Duration
	// Purpose labels metrics and logs: analyze, rerank, format.
	Purpose string
}

// System builds a system message.
func System(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: content}
}

// User builds a user message.
func User(content string) openai.ChatCompletionMessage {
	return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content}
}

// wireRequest keeps temperature on the wire even when it is zero.
type wireRequest struct {
	Model       string                         `json:"model"`
	Messages    []openai.ChatCompletionMessage `json:"messages"`
	Temperature float64                        `json:"temperature"`
	MaxTokens   int                            `json:"max_tokens"`
	Stream      bool                           `json:"stream"`
}

// Gateway sends chat requests. It never retries; callers own their fallbacks.
type Gateway struct {
	client *resty.Client
	cfg    Config
	logger *zap.Logger
}

// New creates a gateway.
func New(cfg Config, log *zap.Logger) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Gateway{client: client, cfg: cfg, logger: log}
}

// Enabled reports whether calls reach the network.
func (g *Gateway) Enabled() bool { return g.cfg.Enabled }

// Call sends req and returns the payload text. With ForceJSON the payload is
// the first JSON value found in the output, or the fallback sentinel when
// there is none. Transport failures return *domain.ModelCallError.
func (g *Gateway) Call(ctx context.Context, req Request) (string, error) {
	purpose := req.Purpose
	if purpose == "" {
		purpose = "generic"
	}
	log := logger.FromContext(ctx, g.logger).With(zap.String("purpose", purpose))

	if !g.cfg.Enabled {
		metrics.LLMRequestsTotal.WithLabelValues(purpose, "disabled").Inc()
		return "", domain.NewModelCallError(domain.ModelCallUnavailable, 0, errors.New("gateway disabled"))
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = g.cfg.Timeout
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = g.cfg.MaxTokens
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(wireRequest{
			Model:       g.cfg.Model,
			Messages:    req.Messages,
			Temperature: req.Temperature,
			MaxTokens:   maxTokens,
		}).
		Post(completionsPath)
	metrics.LLMRequestDuration.WithLabelValues(purpose).Observe(time.Since(start).Seconds())

	if err != nil {
		kind := classify(ctx, err)
		metrics.LLMRequestsTotal.WithLabelValues(purpose, string(kind)).Inc()
		log.Warn("model call failed", zap.String("kind", string(kind)), zap.Error(err))
		return "", domain.NewModelCallError(kind, 0, err)
	}
	if resp.IsError() {
		metrics.LLMRequestsTotal.WithLabelValues(purpose, string(domain.ModelCallHTTP)).Inc()
		log.Warn("model call rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("body", truncate(resp.String(), 200)))
		return "", domain.NewModelCallError(domain.ModelCallHTTP, resp.StatusCode(), errors.New(truncate(resp.String(), 200)))
	}
	metrics.LLMRequestsTotal.WithLabelValues(purpose, "success").Inc()

	text := payload(resp.Body())
	log.Debug("model call completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("chars", len(text)))

	if !req.ForceJSON {
		return text, nil
	}
	if extracted, ok := ExtractJSON(text); ok {
		return extracted, nil
	}
	log.Warn("model output has no JSON", zap.String("output", truncate(text, 200)))
	return FallbackSentinel("no JSON in model output"), nil
}

// HealthCheck lists models on the service.
func (g *Gateway) HealthCheck(ctx context.Context) error {
	if !g.cfg.Enabled {
		return domain.NewModelCallError(domain.ModelCallUnavailable, 0, errors.New("gateway disabled"))
	}
	resp, err := g.client.R().SetContext(ctx).Get(modelsPath)
	if err != nil {
		return domain.NewModelCallError(classify(ctx, err), 0, err)
	}
	if resp.IsError() {
		return domain.NewModelCallError(domain.ModelCallHTTP, resp.StatusCode(), errors.New(resp.Status()))
	}
	return nil
}

// payload unwraps choices[0].message.content from a completion envelope.
// Anything else, JSON or not, is returned verbatim.
func payload(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env openai.ChatCompletionResponse
		if err := json.Unmarshal(trimmed, &env); err == nil && len(env.Choices) > 0 {
			return env.Choices[0].Message.Content
		}
	}
	return string(trimmed)
}

func classify(ctx context.Context, err error) domain.ModelCallKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ModelCallTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ModelCallTimeout
	}
	return domain.ModelCallNetwork
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
