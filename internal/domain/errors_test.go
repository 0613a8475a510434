package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestModelCallError_UnwrapsToSentinel(t *testing.T) {
	err := NewModelCallError(ModelCallHTTP, 503, errors.New("upstream"))

	if !errors.Is(err, ErrModelCallFailed) {
		t.Fatal("expected errors.Is(err, ErrModelCallFailed)")
	}
	var mce *ModelCallError
	if !errors.As(fmt.Errorf("wrapped: %w", err), &mce) {
		t.Fatal("expected errors.As to find *ModelCallError")
	}
	if mce.Kind != ModelCallHTTP || mce.StatusCode != 503 {
		t.Errorf("unexpected error fields: %+v", mce)
	}
	if !strings.Contains(err.Error(), "status 503") {
		t.Errorf("expected status in message, got %q", err.Error())
	}
}

func TestModelCallError_KeepsCause(t *testing.T) {
	err := fmt.Errorf("analyze: %w", NewModelCallError(ModelCallTimeout, 0, context.DeadlineExceeded))

	if !errors.Is(err, ErrModelCallFailed) {
		t.Error("expected errors.Is(err, ErrModelCallFailed)")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected errors.Is(err, context.DeadlineExceeded)")
	}
	if errors.Is(NewModelCallError(ModelCallUnavailable, 0, nil), context.DeadlineExceeded) {
		t.Error("a call without cause must not match DeadlineExceeded")
	}
}

func TestIsModelFailure(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{NewModelCallError(ModelCallTimeout, 0, context.DeadlineExceeded), true},
		{fmt.Errorf("parse: %w", ErrMalformedModelOutput), true},
		{ErrEmbeddingUnavailable, false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := IsModelFailure(tt.err); got != tt.want {
			t.Errorf("IsModelFailure(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
