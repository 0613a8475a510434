package chat

import (
	"encoding/json"
	"strings"
)

const fallbackStatus = "fallback"

// ExtractJSON returns the first balanced JSON object or array in text that
// also parses as valid JSON. Brackets inside string literals are ignored.
//
// One scan resolves every bracket it opens outside a string literal, so
// later start positions inside an already scanned span are looked up, not
// rescanned. Only brackets that sit inside string literals cost a new scan.
func ExtractJSON(text string) (string, bool) {
	ends := make(map[int]int)
	for start := 0; start < len(text); start++ {
		c := text[start]
		if c != '{' && c != '[' {
			continue
		}
		end, seen := ends[start]
		if !seen {
			matchBrackets(text, start, ends)
			end = ends[start]
		}
		if end < 0 {
			continue
		}
		if candidate := text[start : end+1]; json.Valid([]byte(candidate)) {
			return candidate, true
		}
	}
	return "", false
}

// matchBrackets scans from the bracket at start until it closes, records in
// ends the closing index of every bracket opened on the way, and -1 for
// those that never close.
func matchBrackets(text string, start int, ends map[int]int) {
	type open struct {
		closer byte
		pos    int
	}
	stack := make([]open, 0, 8)
	inString, escaped := false, false
	unclosed := func() {
		for _, o := range stack {
			ends[o.pos] = -1
		}
	}

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, open{'}', i})
		case '[':
			stack = append(stack, open{']', i})
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1].closer != c {
				unclosed()
				return
			}
			ends[stack[len(stack)-1].pos] = i
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return
			}
		}
	}
	unclosed()
}

// FallbackSentinel is returned by a ForceJSON call whose output held no JSON.
func FallbackSentinel(message string) string {
	data, _ := json.Marshal(map[string]string{"status": fallbackStatus, "message": message})
	return string(data)
}

// IsFallback reports whether payload is the fallback sentinel.
func IsFallback(payload string) bool {
	payload = strings.TrimSpace(payload)
	if !strings.HasPrefix(payload, "{") {
		return false
	}
	var probe struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(payload), &probe); err != nil {
		return false
	}
	return probe.Status == fallbackStatus
}
