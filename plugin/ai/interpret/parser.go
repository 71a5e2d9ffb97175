package interpret

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/pkg/errors"

	snaperrors "github.com/hrygo/snapnote/internal/errors"
)

// Parse converts raw model text into an Interpretation.
//
// A single surrounding markdown code fence and leading/trailing whitespace are
// tolerated. Anything else that is not exactly one JSON object matching the
// schema fails with a MalformedOutput error carrying the raw text.
func Parse(raw string) (*Interpretation, error) {
	body := stripFence(raw)
	if body == "" {
		return nil, snaperrors.MalformedOutput(raw, errors.New("output is empty"))
	}
	if !strings.HasPrefix(body, "{") {
		return nil, snaperrors.MalformedOutput(raw, errors.New("output is not a JSON object"))
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var interp Interpretation
	if err := dec.Decode(&interp); err != nil {
		return nil, snaperrors.MalformedOutput(raw, errors.Wrap(err, "decode interpretation"))
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, snaperrors.MalformedOutput(raw, errors.New("unexpected data after JSON object"))
	}

	for i, todo := range interp.Todos {
		if !validDeadline(todo.Deadline) {
			return nil, snaperrors.MalformedOutput(raw, errors.Errorf("todos[%d].deadline must be a string or null", i))
		}
	}
	return &interp, nil
}

func validDeadline(v any) bool {
	switch v.(type) {
	case nil, string:
		return true
	default:
		return false
	}
}

// stripFence trims whitespace and a UTF-8 BOM, then removes one ``` or ```json fence pair.
func stripFence(raw string) string {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "\ufeff"))
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "```"), "```")
	// Drop the info string ("json", "JSON", ...) on the opening fence line.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	return strings.TrimSpace(s)
}
