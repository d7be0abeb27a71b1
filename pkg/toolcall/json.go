package toolcall

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FromJSON decodes JSON-mode model output.
//
// Two shapes are accepted:
//  1. Flat: {"name": "...", "arguments": {...}}
//  2. Nested: [{"function": {"name": "...", "arguments": {...}}}], where a
//     single object is treated as a one-element array.
//
// Unlike FromXML this is strict: invalid JSON or an incomplete element fails
// the whole decode.
func (p *Processor) FromJSON(text string) ([]ToolCall, error) {
	parsed, err := parseJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	if obj, ok := parsed.(*object); ok && obj.Has("name") && obj.Has("arguments") {
		call, err := p.flatCall(obj)
		if err != nil {
			return nil, err
		}
		p.decoded("json", ConventionFlatJSON, 1)
		return []ToolCall{call}, nil
	}

	elements, ok := parsed.([]any)
	if !ok {
		elements = []any{parsed}
	}

	calls := make([]ToolCall, 0, len(elements))
	for i, element := range elements {
		call, err := p.nestedCall(i, element)
		if err != nil {
			return nil, fmt.Errorf("tool call %d: %w", i, err)
		}
		calls = append(calls, call)
	}

	p.decoded("json", ConventionNestedJSON, len(calls))
	return calls, nil
}

func (p *Processor) flatCall(obj *object) (ToolCall, error) {
	nameValue, _ := obj.Get("name")
	name, ok := nameValue.(string)
	if !ok {
		return ToolCall{}, fmt.Errorf("name must be a string: %w", ErrInvalidField)
	}

	argsValue, _ := obj.Get("arguments")
	args, err := argumentsText(argsValue)
	if err != nil {
		return ToolCall{}, fmt.Errorf("arguments: %w", err)
	}
	return p.newCall(0, name, args), nil
}

func (p *Processor) nestedCall(index int, element any) (ToolCall, error) {
	call, ok := element.(*object)
	if !ok {
		return ToolCall{}, fmt.Errorf("element must be an object: %w", ErrInvalidField)
	}

	fnValue, ok := call.Get("function")
	if !ok {
		return ToolCall{}, fmt.Errorf("function: %w", ErrMissingField)
	}
	fn, ok := fnValue.(*object)
	if !ok {
		return ToolCall{}, fmt.Errorf("function must be an object: %w", ErrInvalidField)
	}

	nameValue, ok := fn.Get("name")
	if !ok {
		return ToolCall{}, fmt.Errorf("function.name: %w", ErrMissingField)
	}
	name, ok := nameValue.(string)
	if !ok {
		return ToolCall{}, fmt.Errorf("function.name must be a string: %w", ErrInvalidField)
	}

	argsValue, ok := fn.Get("arguments")
	if !ok {
		return ToolCall{}, fmt.Errorf("function.arguments: %w", ErrMissingField)
	}
	// The nested shape always re-serializes, strings included.
	args, err := marshalCanonical(argsValue)
	if err != nil {
		return ToolCall{}, fmt.Errorf("function.arguments: %w", err)
	}

	out := p.newCall(index, name, args)
	if idValue, ok := call.Get("id"); ok {
		if id, ok := idValue.(string); ok && id != "" {
			out.ID = id
		}
	}
	return out, nil
}

// argumentsText passes strings through and serializes everything else.
func argumentsText(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return marshalCanonical(v)
}

// Dump converts each valid record to a plain mapping. Invalid records are
// logged and left out; the rest of the batch is unaffected.
func (p *Processor) Dump(calls []ToolCall) []map[string]any {
	dumped := make([]map[string]any, 0, len(calls))
	for i, call := range calls {
		if err := call.Validate(); err != nil {
			p.drop("dump", i, err)
			continue
		}
		dumped = append(dumped, call.toMap())
	}
	return dumped
}

func (tc ToolCall) toMap() map[string]any {
	typ := tc.Type
	if typ == "" {
		typ = TypeFunction
	}
	return map[string]any{
		"id":   tc.ID,
		"type": typ,
		"function": map[string]any{
			"name":      tc.Function.Name,
			"arguments": tc.Function.Arguments,
		},
	}
}

// ToJSON renders calls as a JSON array indented by two spaces. An empty
// input renders as the empty string, not "[]".
func (p *Processor) ToJSON(calls []ToolCall) (string, error) {
	if len(calls) == 0 {
		return "", nil
	}

	dumped := p.Dump(calls)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(dumped); err != nil {
		return "", fmt.Errorf("failed to encode tool calls: %w", err)
	}

	p.encoded("json", "", len(dumped))
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
