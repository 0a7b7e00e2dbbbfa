// Package parser extracts a structured JSON payload from free-form model
// output. Models wrap JSON in prose, code fences and stray whitespace; Parse
// tries a sequence of increasingly forgiving strategies and never fails hard.
package parser

import (
	"encoding/json"
	"strings"
)

// Kind discriminates the parsed value variants.
type Kind int

const (
	// Object is a JSON object.
	Object Kind = iota
	// Array is a JSON array.
	Array
	// Unparsed means no valid object or array could be recovered.
	Unparsed
)

// Value is the result of parsing a response. Exactly one of the payload
// fields is meaningful for its Kind.
type Value struct {
	Kind   Kind
	Object map[string]any
	Array  []any
	Raw    string
	Err    string
}

// Parse recovers a JSON object or array from content. Strategies are tried in
// order; the first one that yields valid JSON wins. When all fail the raw
// content is returned tagged Unparsed.
func Parse(content string) Value {
	trimmed := strings.TrimSpace(content)

	if v, ok := tryDecode(trimmed); ok {
		return v
	}
	if v, ok := fromTaggedFence(trimmed); ok {
		return v
	}
	if v, ok := fromAnyFence(trimmed); ok {
		return v
	}
	if v, ok := fromBalancedSpan(trimmed); ok {
		return v
	}
	if v, ok := fromLineScan(trimmed); ok {
		return v
	}
	if v, ok := fromNormalized(trimmed); ok {
		return v
	}
	return Value{Kind: Unparsed, Raw: content, Err: "no JSON object or array found in response"}
}

// tryDecode parses s when it is, in full, a JSON object or array.
func tryDecode(s string) (Value, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Value{}, false
	}
	switch s[0] {
	case '{':
		var obj map[string]any
		if err := json.Unmarshal([]byte(s), &obj); err == nil {
			return Value{Kind: Object, Object: obj}, true
		}
	case '[':
		var arr []any
		if err := json.Unmarshal([]byte(s), &arr); err == nil {
			return Value{Kind: Array, Array: arr}, true
		}
	}
	return Value{}, false
}

// fromTaggedFence extracts the body of a ```json fenced block.
func fromTaggedFence(s string) (Value, bool) {
	start := strings.Index(s, "```json")
	if start == -1 {
		return Value{}, false
	}
	body := s[start+len("```json"):]
	end := strings.Index(body, "```")
	if end == -1 {
		return Value{}, false
	}
	return tryDecode(body[:end])
}

// fromAnyFence extracts the first fenced block, dropping a leading language tag.
func fromAnyFence(s string) (Value, bool) {
	if strings.Count(s, "```") < 2 {
		return Value{}, false
	}
	start := strings.Index(s, "```") + 3
	end := strings.Index(s[start:], "```")
	if end == -1 {
		return Value{}, false
	}
	body := strings.TrimSpace(s[start : start+end])
	if idx := strings.IndexByte(body, '\n'); idx != -1 {
		first := strings.TrimSpace(body[:idx])
		if first != "" && !strings.ContainsAny(first, "{[") {
			body = body[idx+1:]
		}
	}
	return tryDecode(body)
}

// fromBalancedSpan finds the first '{' or '[' and walks forward counting
// brackets of the same kind until the span balances, then parses it.
func fromBalancedSpan(s string) (Value, bool) {
	start := strings.IndexAny(s, "{[")
	if start == -1 {
		return Value{}, false
	}
	open := s[start]
	var close byte = '}'
	if open == '[' {
		close = ']'
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return tryDecode(s[start : i+1])
			}
		}
	}
	return Value{}, false
}

// fromLineScan accumulates lines starting from one that opens a bracket and
// re-parses once the running bracket depth returns to zero.
func fromLineScan(s string) (Value, bool) {
	var acc []string
	inJSON := false
	depth := 0
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !inJSON {
			if !strings.HasPrefix(line, "{") && !strings.HasPrefix(line, "[") {
				continue
			}
			inJSON = true
			acc = acc[:0]
			depth = 0
		}
		acc = append(acc, line)
		depth += strings.Count(line, "{") + strings.Count(line, "[")
		depth -= strings.Count(line, "}") + strings.Count(line, "]")
		if depth <= 0 {
			if v, ok := tryDecode(strings.Join(acc, "\n")); ok {
				return v, true
			}
			inJSON = false
			acc = acc[:0]
		}
	}
	return Value{}, false
}

// fromNormalized strips fence markers, collapses all whitespace runs to
// single spaces and retries a whole-text parse.
func fromNormalized(s string) (Value, bool) {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = strings.Join(strings.Fields(s), " ")
	return tryDecode(s)
}
