package engine

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/ken0yuan/auto-ai-web/internal/action"
)

// ParseDecision extracts a decision from raw model output. The compact
// bracketed directive is tried first since the prompt asks for it; failing
// that, any JSON object embedded in the reply is scanned, the last parseable
// one winning because models tend to restate their final answer at the end.
func ParseDecision(raw string) (Decision, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Decision{}, fmt.Errorf("%w: empty reply", ErrDecisionParse)
	}

	if spec, err := action.ParseCompact(raw); err == nil {
		return decisionFromSpec(spec, rationaleAround(raw)), nil
	}

	if d, ok := parseJSONDecision(raw); ok {
		return d, nil
	}

	return Decision{}, fmt.Errorf("%w: no directive or JSON object in %q", ErrDecisionParse, clip(raw, 120))
}

func decisionFromSpec(spec action.Spec, rationale string) Decision {
	d := Decision{Action: spec, Rationale: rationale}
	if spec.Name == "done" {
		d.Done = true
		d.Message = spec.Value
	}
	return d
}

// rationaleAround keeps the prose surrounding the directive as the model's
// stated reasoning.
func rationaleAround(raw string) string {
	start := strings.IndexAny(raw, "[【")
	if start < 0 {
		return ""
	}
	end := strings.IndexAny(raw[start:], "]】")
	if end < 0 {
		return strings.TrimSpace(raw[:start])
	}
	closer := []rune(raw[start+end:])[0]
	after := raw[start+end+len(string(closer)):]
	joined := strings.TrimSpace(raw[:start]) + " " + strings.TrimSpace(after)
	return strings.TrimSpace(joined)
}

type jsonDecision struct {
	Action    string          `json:"action"`
	Target    json.RawMessage `json:"target"`
	Value     string          `json:"value"`
	Done      bool            `json:"done"`
	Message   string          `json:"message"`
	Rationale string          `json:"rationale"`
	Thought   string          `json:"thought"`
}

// parseJSONDecision scans raw for balanced {...} spans and keeps the last
// one that both parses and names an action.
func parseJSONDecision(raw string) (Decision, bool) {
	var found Decision
	ok := false
	for _, span := range jsonSpans(raw) {
		var jd jsonDecision
		if err := json.Unmarshal([]byte(span), &jd); err != nil {
			continue
		}
		if jd.Action == "" && !jd.Done {
			continue
		}
		d, err := jd.toDecision()
		if err != nil {
			continue
		}
		found, ok = d, true
	}
	return found, ok
}

func (jd jsonDecision) toDecision() (Decision, error) {
	rationale := jd.Rationale
	if rationale == "" {
		rationale = jd.Thought
	}
	if jd.Done && jd.Action == "" {
		return Decision{Done: true, Message: jd.Message, Rationale: rationale}, nil
	}

	spec := action.Spec{Name: normalizeActionName(jd.Action), Value: jd.Value}
	if len(jd.Target) > 0 {
		spec.Target = parseJSONTarget(jd.Target)
	}
	if spec.Name == "" {
		return Decision{}, fmt.Errorf("unknown action %q", jd.Action)
	}
	d := decisionFromSpec(spec, rationale)
	if jd.Message != "" {
		d.Message = jd.Message
	}
	return d, nil
}

func normalizeActionName(name string) string {
	// Reuse the directive parser's alias table by round-tripping a minimal
	// directive.
	spec, err := action.ParseCompact("[操作：" + name + "]")
	if err != nil {
		return ""
	}
	return spec.Name
}

// parseJSONTarget accepts either a bare number or a string in any of the
// directive target syntaxes.
func parseJSONTarget(raw json.RawMessage) action.Target {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return action.Target{Index: &n}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if i, err := strconv.Atoi(s); err == nil {
			return action.Target{Index: &i}
		}
		if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "xpath=") {
			return action.Target{XPath: strings.TrimPrefix(s, "xpath=")}
		}
		if strings.HasPrefix(s, "css=") {
			return action.Target{Selector: strings.TrimPrefix(s, "css=")}
		}
		if s != "" {
			return action.Target{Text: s}
		}
	}
	return action.Target{}
}

// jsonSpans returns every balanced top-level {...} substring, ignoring
// braces inside JSON strings.
func jsonSpans(s string) []string {
	var spans []string
	depth, start := 0, -1
	inString, escaped := false, false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					spans = append(spans, s[start:i+1])
					start = -1
				}
			}
		}
	}
	return spans
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
