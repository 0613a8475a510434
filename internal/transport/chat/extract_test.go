package chat

import (
	"strings"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain object", `{"a":1}`, `{"a":1}`, true},
		{"prose around", "Вот ответ: {\"a\": [1, 2]} надеюсь помог", `{"a": [1, 2]}`, true},
		{"array first", `ранжирование: [{"idx":0,"score":0.9}] и {"x":1}`, `[{"idx":0,"score":0.9}]`, true},
		{"braces in strings", `{"s":"a } b { c","n":1}`, `{"s":"a } b { c","n":1}`, true},
		{"escaped quote", `{"s":"say \"}\" now"}`, `{"s":"say \"}\" now"}`, true},
		{"code fence", "```json\n{\"summary\":\"ok\"}\n```", `{"summary":"ok"}`, true},
		{"skips invalid candidate", `{not json} {"ok":true}`, `{"ok":true}`, true},
		{"valid inside invalid", `{bad {"a":1}}`, `{"a":1}`, true},
		{"valid after unclosed", `{ {"a":1}`, `{"a":1}`, true},
		{"valid after mismatch", `[{"a":1] {"b":2}`, `{"b":2}`, true},
		{"bracket inside string of unclosed", `{"s":"[1]"`, `[1]`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"no json", "просто текст", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ExtractJSON(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestExtractJSON_ManyUnclosedBrackets(t *testing.T) {
	in := strings.Repeat("[", 50000) + ` {"summary":"ok"}`
	got, ok := ExtractJSON(in)
	if !ok || got != `{"summary":"ok"}` {
		t.Errorf("got (%q, %v)", got, ok)
	}
}

func TestFallbackSentinel(t *testing.T) {
	s := FallbackSentinel("no JSON")
	if !IsFallback(s) {
		t.Errorf("expected %q to be recognized as fallback", s)
	}
	if IsFallback(`{"status":"ok"}`) || IsFallback("[]") || IsFallback("fallback") {
		t.Error("false positive fallback detection")
	}
}
