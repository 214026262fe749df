// Package jsonrepair turns near-JSON produced by language models into parsed
// values and validates the tool-selection envelope.
package jsonrepair

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Fix names, in the order they are attempted.
const (
	FixStripFences     = "strip_fences"
	FixSurroundingText = "strip_surrounding_text"
	FixTrailingCommas  = "strip_trailing_commas"
	FixBareKeys        = "quote_bare_keys"
	FixSingleQuotes    = "single_to_double_quotes"
	FixPythonLiterals  = "python_literals"
	FixTrailingText    = "strip_trailing_text"
	FixUnwrapSingleKey = "unwrap_single_key"
)

const (
	defaultEnvelopeKey  = "tools_needed"
	maxErrorSnippetRune = 120
)

// Result is a successfully parsed value. Fixes lists the fixes that changed the
// input, in application order; it is empty when Repaired is false.
type Result struct {
	Value    map[string]any
	Repaired bool
	Fixes    []string
}

// Repairer parses model output. EnvelopeKey is the key the top-level object is
// expected to carry; a single-key wrapper around an object that has it is
// removed. An empty EnvelopeKey disables unwrapping.
type Repairer struct {
	EnvelopeKey string
}

// DefaultRepairer expects the tool-selection envelope.
var DefaultRepairer = Repairer{EnvelopeKey: defaultEnvelopeKey}

// Repair parses raw with DefaultRepairer.
func Repair(raw string) (Result, error) {
	return DefaultRepairer.Repair(raw)
}

type textFix struct {
	name  string
	apply func(string) string
}

var textFixes = []textFix{
	{FixStripFences, stripFences},
	{FixSurroundingText, stripSurroundingText},
	{FixTrailingCommas, outsideStrings(stripTrailingCommas)},
	{FixBareKeys, outsideStrings(quoteBareKeys)},
	{FixSingleQuotes, singleToDoubleQuotes},
	{FixPythonLiterals, outsideStrings(replacePythonLiterals)},
	{FixTrailingText, stripTrailingText},
}

// Repair parses raw directly and, failing that, applies the text fixes in order,
// reparsing after each one that changed the text.
func (r Repairer) Repair(raw string) (Result, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Result{}, &RepairError{Kind: KindSyntax, Msg: "empty response"}
	}

	fixes := make([]string, 0)
	value, err := parseObject(text)
	for _, f := range textFixes {
		if err == nil {
			break
		}
		next := strings.TrimSpace(f.apply(text))
		if next == text {
			continue
		}
		text = next
		fixes = append(fixes, f.name)
		value, err = parseObject(text)
	}
	if err != nil {
		return Result{}, &RepairError{
			Kind:  KindSyntax,
			Msg:   "unparseable response " + snippet(raw),
			Fixes: fixes,
			Err:   err,
		}
	}

	if inner, ok := r.unwrap(value); ok {
		value = inner
		fixes = append(fixes, FixUnwrapSingleKey)
	}
	return Result{Value: value, Repaired: len(fixes) > 0, Fixes: fixes}, nil
}

func (r Repairer) unwrap(v map[string]any) (map[string]any, bool) {
	if r.EnvelopeKey == "" || len(v) != 1 {
		return nil, false
	}
	if _, ok := v[r.EnvelopeKey]; ok {
		return nil, false
	}
	for _, inner := range v {
		obj, ok := inner.(map[string]any)
		if !ok {
			return nil, false
		}
		if _, ok := obj[r.EnvelopeKey]; ok {
			return obj, true
		}
	}
	return nil, false
}

type notObjectError struct{}

func (notObjectError) Error() string { return "top-level value is not an object" }

func parseObject(text string) (map[string]any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, notObjectError{}
	}
	return obj, nil
}

func snippet(s string) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) > maxErrorSnippetRune {
		return string(r[:maxErrorSnippetRune]) + "..."
	}
	return string(r)
}

// stripFences keeps the body of the first markdown code fence.
func stripFences(s string) string {
	start := strings.Index(s, "```")
	if start == -1 {
		return s
	}
	body := s[start+3:]
	if nl := strings.IndexByte(body, '\n'); nl != -1 && !strings.ContainsAny(body[:nl], "{[") {
		body = body[nl+1:]
	}
	if end := strings.Index(body, "```"); end != -1 {
		body = body[:end]
	}
	return body
}

// stripSurroundingText drops prose before the first '{' and after the last '}'.
func stripSurroundingText(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

// stripTrailingText keeps the first complete JSON value that starts at the
// first '{' and drops whatever follows it, braces included.
func stripTrailingText(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return s
	}
	dec := json.NewDecoder(strings.NewReader(s[start:]))
	var v json.RawMessage
	if err := dec.Decode(&v); err != nil {
		return s
	}
	return s[start : start+int(dec.InputOffset())]
}

var (
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
	bareKey       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_\-]*)(\s*:)`)
	pythonLiteral = regexp.MustCompile(`\b(True|False|None)\b`)
)

func stripTrailingCommas(code string) string {
	return trailingComma.ReplaceAllString(code, "$1")
}

func quoteBareKeys(code string) string {
	return bareKey.ReplaceAllString(code, `$1"$2"$3`)
}

func replacePythonLiterals(code string) string {
	return pythonLiteral.ReplaceAllStringFunc(code, func(m string) string {
		switch m {
		case "True":
			return "true"
		case "False":
			return "false"
		}
		return "null"
	})
}

// segment is a run of text that is either a quoted string literal (including
// its quotes) or code between literals.
type segment struct {
	text  string
	quote byte
}

func splitSegments(s string) []segment {
	out := make([]segment, 0)
	start := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote == 0 {
			if c == '"' || c == '\'' {
				if i > start {
					out = append(out, segment{text: s[start:i]})
				}
				start = i
				quote = c
			}
			continue
		}
		if c == '\\' {
			i++
			continue
		}
		if c == quote {
			out = append(out, segment{text: s[start : i+1], quote: quote})
			start = i + 1
			quote = 0
		}
	}
	if start < len(s) {
		out = append(out, segment{text: s[start:], quote: quote})
	}
	return out
}

// outsideStrings lifts a code rewrite so it never touches string literals.
// Code segments are rejoined around a placeholder so patterns can see the
// punctuation on both sides of a literal.
func outsideStrings(fn func(string) string) func(string) string {
	return func(s string) string {
		segs := splitSegments(s)
		const mark = "\x00"
		var code strings.Builder
		literals := make([]string, 0)
		for _, seg := range segs {
			if seg.quote == 0 {
				code.WriteString(seg.text)
				continue
			}
			code.WriteString(mark)
			literals = append(literals, seg.text)
		}
		rewritten := fn(code.String())
		parts := strings.Split(rewritten, mark)
		if len(parts) != len(literals)+1 {
			return s
		}
		var b strings.Builder
		for i, p := range parts {
			b.WriteString(p)
			if i < len(literals) {
				b.WriteString(literals[i])
			}
		}
		return b.String()
	}
}

// singleToDoubleQuotes rewrites single-quoted literals as JSON strings.
func singleToDoubleQuotes(s string) string {
	var b strings.Builder
	for _, seg := range splitSegments(s) {
		if seg.quote != '\'' || len(seg.text) < 2 || seg.text[len(seg.text)-1] != '\'' {
			b.WriteString(seg.text)
			continue
		}
		inner := seg.text[1 : len(seg.text)-1]
		inner = strings.ReplaceAll(inner, `\'`, `'`)
		inner = strings.ReplaceAll(inner, `"`, `\"`)
		b.WriteByte('"')
		b.WriteString(inner)
		b.WriteByte('"')
	}
	return b.String()
}
