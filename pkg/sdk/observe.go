package dishfinder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels of dishfinder_sdk_requests_total.
const (
	outcomeOK          = "ok"
	outcomeClientError = "client_error"
	outcomeNotFound    = "not_found"
	outcomeUnavailable = "unavailable"
	outcomeCanceled    = "canceled"
	outcomeError       = "error"
)

type sdkMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func newSDKMetrics(reg prometheus.Registerer) (*sdkMetrics, error) {
	m := &sdkMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dishfinder",
			Subsystem: "sdk",
			Name:      "requests_total",
			Help:      "SDK calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dishfinder",
			Subsystem: "sdk",
			Name:      "request_duration_seconds",
			Help:      "SDK call latency including retries.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.requests); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.latency); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse lets several clients share one registerer.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("dishfinder: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("dishfinder: metric registered with type %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and counts SDK calls. Both sinks are optional.
type observer struct {
	logger  *slog.Logger
	metrics *sdkMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newSDKMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	elapsed := time.Since(start)
	outcome := outcomeOf(err)

	if o.metrics != nil {
		o.metrics.requests.WithLabelValues(op, outcome).Inc()
		o.metrics.latency.WithLabelValues(op).Observe(elapsed.Seconds())
	}
	if o.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("op", op),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", elapsed),
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs, slog.Int("status", apiErr.StatusCode), slog.String("code", apiErr.Code))
	}

	switch outcome {
	case outcomeOK:
		o.logger.LogAttrs(context.Background(), slog.LevelDebug, "dishfinder call done", attrs...)
	case outcomeNotFound, outcomeClientError, outcomeCanceled:
		o.logger.LogAttrs(context.Background(), slog.LevelInfo, "dishfinder call rejected",
			append(attrs, slog.Any("error", err))...)
	default:
		o.logger.LogAttrs(context.Background(), slog.LevelWarn, "dishfinder call failed",
			append(attrs, slog.Any("error", err))...)
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return outcomeCanceled
	case errors.Is(err, ErrItemNotFound):
		return outcomeNotFound
	case errors.Is(err, ErrUnavailable):
		return outcomeUnavailable
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrUnauthorized):
		return outcomeClientError
	default:
		return outcomeError
	}
}
