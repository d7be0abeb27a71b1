package toolcall

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// <tool_call>{"name": "...", "arguments": {...}}</tool_call>
	embeddedJSONPattern = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)

	// <tool_call><function=name><parameter=arg>value</parameter></function></tool_call>
	taggedFunctionPattern  = regexp.MustCompile(`(?s)<tool_call>\s*<function=([^>]+)>(.*?)</function>\s*</tool_call>`)
	taggedParameterPattern = regexp.MustCompile(`(?s)<parameter=([^>]+)>(.*?)</parameter>`)

	// <invoke name="tool"><parameter name="arg">value</parameter></invoke>
	invokePattern          = regexp.MustCompile(`(?s)<invoke name="([^"]+)">(.*?)</invoke>`)
	invokeParameterPattern = regexp.MustCompile(`(?s)<parameter name="([^"]+)">(.*?)</parameter>`)
)

// xmlMatcher is one XML convention. Matchers run in priority order and the
// first one that matches anything decodes the whole input.
type xmlMatcher struct {
	convention Convention
	pattern    *regexp.Regexp
	decode     func(p *Processor, matches [][]string) []ToolCall
}

var xmlMatchers = []xmlMatcher{
	{
		convention: ConventionEmbeddedJSON,
		pattern:    embeddedJSONPattern,
		decode:     (*Processor).decodeEmbeddedJSON,
	},
	{
		convention: ConventionTaggedFunction,
		pattern:    taggedFunctionPattern,
		decode: func(p *Processor, matches [][]string) []ToolCall {
			return p.decodeParameterBlocks(ConventionTaggedFunction, matches, taggedParameterPattern)
		},
	},
	{
		convention: ConventionInvoke,
		pattern:    invokePattern,
		decode: func(p *Processor, matches [][]string) []ToolCall {
			return p.decodeParameterBlocks(ConventionInvoke, matches, invokeParameterPattern)
		},
	},
}

// DetectConvention returns the convention FromXML would use for text, or
// ConventionNone when no convention matches.
func DetectConvention(text string) Convention {
	for _, m := range xmlMatchers {
		if m.pattern.MatchString(text) {
			return m.convention
		}
	}
	return ConventionNone
}

// FromXML decodes tool calls from XML-mode model output. It never fails:
// text without tool calls yields an empty slice, and malformed blocks are
// logged and skipped.
func (p *Processor) FromXML(text string) []ToolCall {
	for _, m := range xmlMatchers {
		matches := m.pattern.FindAllStringSubmatch(text, -1)
		if len(matches) == 0 {
			continue
		}
		calls := m.decode(p, matches)
		p.decoded("xml", m.convention, len(calls))
		return calls
	}

	p.decoded("xml", ConventionNone, 0)
	return []ToolCall{}
}

func (p *Processor) decodeEmbeddedJSON(matches [][]string) []ToolCall {
	calls := make([]ToolCall, 0, len(matches))
	for i, match := range matches {
		call, err := p.embeddedCall(len(calls), match[1])
		if err != nil {
			p.drop(string(ConventionEmbeddedJSON), i, err)
			continue
		}
		calls = append(calls, call)
	}
	return calls
}

func (p *Processor) embeddedCall(index int, payload string) (ToolCall, error) {
	parsed, err := parseJSON(payload)
	if err != nil {
		return ToolCall{}, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	obj, ok := parsed.(*object)
	if !ok {
		return ToolCall{}, fmt.Errorf("payload must be an object: %w", ErrInvalidField)
	}

	nameValue, ok := obj.Get("name")
	if !ok {
		return ToolCall{}, fmt.Errorf("name: %w", ErrMissingField)
	}
	name, ok := nameValue.(string)
	if !ok || name == "" {
		return ToolCall{}, fmt.Errorf("name must be a non-empty string: %w", ErrInvalidField)
	}

	args := "{}"
	if argsValue, ok := obj.Get("arguments"); ok {
		if args, err = argumentsText(argsValue); err != nil {
			return ToolCall{}, fmt.Errorf("arguments: %w", err)
		}
	}
	return p.newCall(index, name, args), nil
}

// decodeParameterBlocks handles the two conventions whose matches capture a
// tool name and a body of parameter tags.
func (p *Processor) decodeParameterBlocks(convention Convention, matches [][]string, paramPattern *regexp.Regexp) []ToolCall {
	calls := make([]ToolCall, 0, len(matches))
	for i, match := range matches {
		name := match[1]

		params := newObject()
		for _, param := range paramPattern.FindAllStringSubmatch(match[2], -1) {
			params.Set(param[1], coerceValue(param[2]))
		}

		args, err := marshalCanonical(params)
		if err != nil {
			p.drop(string(convention), i, err)
			continue
		}
		calls = append(calls, p.newCall(len(calls), name, args))
	}
	return calls
}

// parameter is one rendered argument.
type parameter struct {
	name  string
	value string
}

// parameters parses the arguments back into ordered name/value pairs.
// String values are kept verbatim, other values are serialized.
func (tc ToolCall) parameters() ([]parameter, error) {
	parsed, err := parseJSON(tc.Function.Arguments)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}
	obj, ok := parsed.(*object)
	if !ok {
		return nil, ErrNotObject
	}

	params := make([]parameter, 0, obj.Len())
	for _, key := range obj.Keys() {
		value, _ := obj.Get(key)
		rendered, ok := value.(string)
		if !ok {
			if rendered, err = marshalCanonical(value); err != nil {
				return nil, fmt.Errorf("parameter %q: %w", key, err)
			}
		}
		params = append(params, parameter{name: key, value: rendered})
	}
	return params, nil
}

// ToXML renders calls in the given dialect. Unknown dialects render as
// DialectClaude. A call whose arguments are not a JSON object is logged and
// skipped.
func (p *Processor) ToXML(calls []ToolCall, dialect Dialect) string {
	if len(calls) == 0 {
		return ""
	}

	dialect = ParseDialect(string(dialect))

	parts := make([]string, 0, len(calls))
	for i, call := range calls {
		params, err := call.parameters()
		if err != nil {
			p.drop("xml_encode", i, err)
			continue
		}

		if dialect == DialectQwen {
			parts = append(parts, renderQwen(call.Function.Name, params))
		} else {
			parts = append(parts, renderClaude(call.Function.Name, params))
		}
	}

	p.encoded("xml", string(dialect), len(parts))
	return strings.Join(parts, "\n")
}

func renderClaude(name string, params []parameter) string {
	lines := make([]string, 0, len(params)+2)
	lines = append(lines, fmt.Sprintf(`<invoke name="%s">`, name))
	for _, param := range params {
		lines = append(lines, fmt.Sprintf(`<parameter name="%s">%s</parameter>`, param.name, param.value))
	}
	lines = append(lines, "</invoke>")
	return strings.Join(lines, "\n")
}

func renderQwen(name string, params []parameter) string {
	lines := make([]string, 0, 3*len(params)+4)
	lines = append(lines, "<tool_call>", "<function="+name+">")
	for _, param := range params {
		lines = append(lines, "<parameter="+param.name+">", param.value, "</parameter>")
	}
	lines = append(lines, "</function>", "</tool_call>")
	return strings.Join(lines, "\n")
}
