package action

import (
	"fmt"
	"strconv"
	"strings"
)

// The compact directive format the deciding model emits:
//
//	[操作：点击，对象：3]
//	[操作：输入，对象：5，内容：夏季连衣裙]
//	[操作：完成，内容：已找到商品]
//
// Field labels and separators accept both full-width and ASCII punctuation,
// since models drift between the two.

var actionAliases = map[string]string{
	"点击":   "click",
	"输入":   "input",
	"选择":   "select_option",
	"滚动":   "scroll",
	"等待":   "wait",
	"跳转":   "navigate",
	"按键":   "press",
	"完成":   "done",
	"click":         "click",
	"input":         "input",
	"type":          "input",
	"select":        "select_option",
	"select_option": "select_option",
	"scroll":        "scroll",
	"wait":          "wait",
	"navigate":      "navigate",
	"goto":          "navigate",
	"press":         "press",
	"done":          "done",
	"finish":        "done",
}

// ParseCompact parses one compact directive into a Spec. The input may carry
// surrounding prose; only the bracketed segment is read.
func ParseCompact(s string) (Spec, error) {
	seg, err := extractBracket(s)
	if err != nil {
		return Spec{}, err
	}

	var spec Spec
	sawOp := false
	for _, field := range splitFields(seg) {
		label, value, ok := splitLabel(field)
		if !ok {
			return Spec{}, fmt.Errorf("%w: field %q has no label", ErrValidation, field)
		}
		switch label {
		case "操作", "action":
			name, ok := actionAliases[strings.ToLower(value)]
			if !ok {
				return Spec{}, fmt.Errorf("%w: unknown action %q", ErrValidation, value)
			}
			spec.Name = name
			sawOp = true
		case "对象", "target":
			spec.Target = parseTarget(value)
		case "内容", "value", "content":
			spec.Value = value
		default:
			return Spec{}, fmt.Errorf("%w: unknown field label %q", ErrValidation, label)
		}
	}
	if !sawOp {
		return Spec{}, fmt.Errorf("%w: directive has no 操作 field", ErrValidation)
	}
	return spec, nil
}

// extractBracket returns the contents of the first directive bracket,
// accepting full-width brackets as well. Nested brackets of the same kind
// are balanced, so xpath predicates like div[2] stay inside the directive
// instead of closing it early.
func extractBracket(s string) (string, error) {
	pairs := []struct{ open, close rune }{{'[', ']'}, {'【', '】'}}
	runes := []rune(s)
	for _, p := range pairs {
		start := -1
		for i, r := range runes {
			if r == p.open {
				start = i
				break
			}
		}
		if start < 0 {
			continue
		}
		depth := 0
		for i := start; i < len(runes); i++ {
			switch runes[i] {
			case p.open:
				depth++
			case p.close:
				depth--
				if depth == 0 {
					return string(runes[start+1 : i]), nil
				}
			}
		}
		return "", fmt.Errorf("%w: unterminated directive bracket", ErrValidation)
	}
	return "", fmt.Errorf("%w: no directive found in %q", ErrValidation, truncateForError(s))
}

// splitFields splits on the field separator, tolerating full-width and ASCII
// commas. Separators inside the 内容 value would break this, so splitting
// stops being greedy once a 内容 label has been seen: everything after it is
// one field.
func splitFields(s string) []string {
	var fields []string
	rest := s
	for {
		if strings.HasPrefix(strings.TrimSpace(rest), "内容") ||
			strings.HasPrefix(strings.ToLower(strings.TrimSpace(rest)), "value") ||
			strings.HasPrefix(strings.ToLower(strings.TrimSpace(rest)), "content") {
			fields = append(fields, strings.TrimSpace(rest))
			return fields
		}
		idx := strings.IndexAny(rest, "，,")
		if idx < 0 {
			if f := strings.TrimSpace(rest); f != "" {
				fields = append(fields, f)
			}
			return fields
		}
		if f := strings.TrimSpace(rest[:idx]); f != "" {
			fields = append(fields, f)
		}
		rest = rest[idx+len(string([]rune(rest[idx:])[0])):]
	}
}

func splitLabel(field string) (label, value string, ok bool) {
	idx := strings.IndexAny(field, "：:")
	if idx < 0 {
		return "", "", false
	}
	sep := string([]rune(field[idx:])[0])
	label = strings.ToLower(strings.TrimSpace(field[:idx]))
	value = strings.TrimSpace(field[idx+len(sep):])
	return label, value, true
}

// parseTarget interprets the 对象 field: a bare integer is a highlight
// index, a leading slash is an xpath, an explicit css= prefix is a selector,
// anything else is matched against visible text.
func parseTarget(s string) Target {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}
	}
	if n, err := strconv.Atoi(s); err == nil {
		return Target{Index: &n}
	}
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "xpath=") {
		return Target{XPath: strings.TrimPrefix(s, "xpath=")}
	}
	if strings.HasPrefix(s, "css=") {
		return Target{Selector: strings.TrimPrefix(s, "css=")}
	}
	return Target{Text: s}
}

func truncateForError(s string) string {
	r := []rune(s)
	if len(r) > 60 {
		return string(r[:60]) + "…"
	}
	return s
}
