// Package parser recovers a JSON object from free-form model output.
package parser

import (
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/document-extractor/internal/common"
)

// Source records which strategy produced a Result.
type Source int

const (
	SourceFenced Source = iota + 1
	SourceEmbedded
	SourceText
)

func (s Source) String() string {
	switch s {
	case SourceFenced:
		return "fenced"
	case SourceEmbedded:
		return "embedded"
	case SourceText:
		return "text"
	default:
		return "unknown"
	}
}

// Result is the parsed object. Numbers are json.Number so codes and amounts
// keep their original spelling.
type Result struct {
	Value  map[string]any
	Source Source
}

// Degraded reports that no JSON object was found and Value is {"text": raw}.
func (r Result) Degraded() bool {
	return r.Source == SourceText
}

// JSON re-encodes Value.
func (r Result) JSON() json.RawMessage {
	b, err := json.Marshal(r.Value)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

var reFence = regexp.MustCompile("(?s)```[a-zA-Z]*[ \t]*\r?\n?(.*?)```")

var errNotObject = errors.New("not a single JSON object")

// Parse never fails. It tries fenced code blocks first, then the first
// balanced {...} span that decodes, then wraps raw as {"text": raw}.
// A fence holding valid JSON that is not an object (an array of results,
// say) makes the answer degraded instead of picking one element out of it.
func Parse(raw string) Result {
	fencedOther := false
	for _, m := range reFence.FindAllStringSubmatch(raw, -1) {
		body := strings.TrimSpace(m[1])
		if v, err := decodeObject(body); err == nil {
			return Result{Value: v, Source: SourceFenced}
		}
		if json.Valid([]byte(body)) {
			fencedOther = true
		}
	}
	if fencedOther {
		return Result{Value: map[string]any{"text": raw}, Source: SourceText}
	}
	if v, ok := scanObject(raw); ok {
		return Result{Value: v, Source: SourceEmbedded}
	}
	return Result{Value: map[string]any{"text": raw}, Source: SourceText}
}

// scanObject walks every '{' in order and returns the first balanced span
// that decodes to an object. Braces inside string literals are ignored.
func scanObject(s string) (map[string]any, bool) {
	for start := strings.IndexByte(s, '{'); start >= 0; {
		if end := matchBrace(s, start); end > 0 {
			if v, err := decodeObject(s[start : end+1]); err == nil {
				return v, true
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// matchBrace returns the index of the '}' closing the '{' at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
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
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v map[string]any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Join(common.ErrParse, err)
	}
	if v == nil {
		return nil, errors.Join(common.ErrParse, errNotObject)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.Join(common.ErrParse, errNotObject)
	}
	return v, nil
}
