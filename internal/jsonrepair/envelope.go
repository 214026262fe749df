package jsonrepair

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ToolEntry is one well-formed element of tools_needed. Confidence is nil when
// the model did not give one.
type ToolEntry struct {
	Tool       string
	Intention  string
	Confidence *float64
}

// Envelope is the validated tool-selection response.
type Envelope struct {
	Tools   []ToolEntry
	Dropped int
}

var (
	envelopeSchema = mustSchema(map[string]any{
		"type":     "object",
		"required": []any{"tools_needed"},
		"properties": map[string]any{
			"tools_needed": map[string]any{"type": "array"},
		},
	})

	entrySchema = mustSchema(map[string]any{
		"type":     "object",
		"required": []any{"tool"},
		"properties": map[string]any{
			"tool":       map[string]any{"type": "string", "minLength": 1},
			"intention":  map[string]any{"type": []any{"string", "null"}},
			"confidence": map[string]any{"type": []any{"number", "string", "null"}},
		},
	})
)

func mustSchema(schema map[string]any) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("jsonrepair: invalid schema: %v", err))
	}
	return s
}

// ValidateToolsNeeded checks the envelope and returns its well-formed entries.
// A missing or non-array tools_needed is a KindSchema error; malformed entries
// are dropped and counted.
func ValidateToolsNeeded(value map[string]any) (Envelope, error) {
	result, err := envelopeSchema.Validate(gojsonschema.NewGoLoader(value))
	if err != nil {
		return Envelope{}, &RepairError{Kind: KindSchema, Msg: "validation error", Err: err}
	}
	if !result.Valid() {
		return Envelope{}, &RepairError{Kind: KindSchema, Msg: describe(result.Errors())}
	}

	raw, _ := value["tools_needed"].([]any)
	env := Envelope{Tools: make([]ToolEntry, 0, len(raw))}
	for _, item := range raw {
		entry, ok := validEntry(item)
		if !ok {
			env.Dropped++
			continue
		}
		env.Tools = append(env.Tools, entry)
	}
	return env, nil
}

func validEntry(item any) (ToolEntry, bool) {
	obj, ok := item.(map[string]any)
	if !ok {
		return ToolEntry{}, false
	}
	result, err := entrySchema.Validate(gojsonschema.NewGoLoader(obj))
	if err != nil || !result.Valid() {
		return ToolEntry{}, false
	}
	entry := ToolEntry{Tool: strings.TrimSpace(obj["tool"].(string))}
	if s, ok := obj["intention"].(string); ok {
		entry.Intention = strings.TrimSpace(s)
	}
	switch c := obj["confidence"].(type) {
	case float64:
		entry.Confidence = &c
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(c), 64); err == nil {
			entry.Confidence = &f
		}
	}
	return entry, true
}

func describe(errs []gojsonschema.ResultError) string {
	msgs := make([]string, len(errs))
	for i, desc := range errs {
		msgs[i] = desc.String()
	}
	return "envelope validation failed: " + strings.Join(msgs, "; ")
}
