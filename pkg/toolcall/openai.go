package toolcall

import (
	openai "github.com/sashabaranov/go-openai"
)

// ToOpenAI converts canonical records to OpenAI chat completion tool calls.
func ToOpenAI(calls []ToolCall) []openai.ToolCall {
	out := make([]openai.ToolCall, 0, len(calls))
	for i, call := range calls {
		index := i
		out = append(out, openai.ToolCall{
			Index: &index,
			ID:    call.ID,
			Type:  openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	return out
}

// FromOpenAI converts OpenAI tool calls to canonical records.
func FromOpenAI(calls []openai.ToolCall) []ToolCall {
	out := make([]ToolCall, 0, len(calls))
	for _, call := range calls {
		typ := string(call.Type)
		if typ == "" {
			typ = TypeFunction
		}
		out = append(out, ToolCall{
			ID:   call.ID,
			Type: typ,
			Function: ToolCallFunction{
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			},
		})
	}
	return out
}
