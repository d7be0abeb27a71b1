// Package toolcall converts model-emitted tool calls between their JSON and
// XML textual dialects and one canonical record type.
package toolcall

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TypeFunction is the only tool call type.
const TypeFunction = "function"

var (
	// ErrInvalidJSON is returned when JSON-mode input is not a single JSON value.
	ErrInvalidJSON = errors.New("invalid tool call JSON")
	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidField is returned when a field has the wrong JSON type.
	ErrInvalidField = errors.New("invalid field")
	// ErrNotObject is returned when arguments do not decode to a JSON object.
	ErrNotObject = errors.New("arguments are not a JSON object")
)

// ToolCall is the canonical tool call record
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction represents the function part of a tool call.
// Arguments always holds JSON text.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Validate checks that the record can be dumped or rendered.
func (tc ToolCall) Validate() error {
	if tc.Function.Name == "" {
		return fmt.Errorf("function.name: %w", ErrMissingField)
	}
	if tc.Function.Arguments != "" && !json.Valid([]byte(tc.Function.Arguments)) {
		return fmt.Errorf("function.arguments: %w", ErrInvalidJSON)
	}
	return nil
}

// Dialect selects the XML convention ToXML renders.
type Dialect string

const (
	// DialectClaude renders <invoke name="..."><parameter name="...">.
	DialectClaude Dialect = "claude"
	// DialectQwen renders <tool_call><function=...><parameter=...>.
	DialectQwen Dialect = "qwen"
)

// ParseDialect maps a selector to a Dialect. Only the exact string "qwen"
// selects DialectQwen; anything else, including "QWEN" or "", selects
// DialectClaude.
func ParseDialect(s string) Dialect {
	if Dialect(s) == DialectQwen {
		return DialectQwen
	}
	return DialectClaude
}

// Convention names the structural pattern a decode committed to.
type Convention string

const (
	ConventionNone           Convention = "none"
	ConventionFlatJSON       Convention = "flat_json"
	ConventionNestedJSON     Convention = "nested_json"
	ConventionEmbeddedJSON   Convention = "embedded_json"
	ConventionTaggedFunction Convention = "tagged_function"
	ConventionInvoke         Convention = "invoke"
)
