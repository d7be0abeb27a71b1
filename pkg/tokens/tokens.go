// Package tokens counts the tokens of rendered tool call text.
package tokens

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

const defaultEncoding = "cl100k_base"

// Counter counts tokens in text
type Counter interface {
	CountTokens(text string) int
}

// TiktokenCounter provides accurate token counting using tiktoken
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter creates a new tiktoken-based counter
func NewTiktokenCounter(model string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encodingForModel(model))
	if err != nil {
		enc, err = tiktoken.GetEncoding(defaultEncoding)
		if err != nil {
			return nil, err
		}
	}

	return &TiktokenCounter{encoding: enc}, nil
}

// encodingForModel returns the appropriate encoding for a model.
// Claude and Qwen have no public tiktoken encoding; cl100k_base is the
// closest approximation.
func encodingForModel(model string) string {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "o200k_base"
	default:
		return defaultEncoding
	}
}

// CountTokens returns the exact token count for text
func (tc *TiktokenCounter) CountTokens(text string) int {
	if tc.encoding == nil {
		return EstimateTokens(text)
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// Estimator counts tokens with EstimateTokens
type Estimator struct{}

// CountTokens returns the estimated token count for text
func (Estimator) CountTokens(text string) int {
	return EstimateTokens(text)
}

// EstimateTokens provides a rough estimate of token count for text:
// about one token per four characters, and at least one for non-empty text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	tokenEstimate := len(text) / 4
	if tokenEstimate == 0 {
		tokenEstimate = 1
	}
	return tokenEstimate
}

// NewCounter returns a tiktoken counter for model, or an Estimator when no
// encoding can be loaded (tiktoken fetches encodings over the network on
// first use).
func NewCounter(model string, logger *zap.Logger) Counter {
	counter, err := NewTiktokenCounter(model)
	if err != nil {
		if logger != nil {
			logger.Warn("failed to load tiktoken encoding, using estimation",
				zap.String("model", model),
				zap.Error(err),
			)
		}
		return Estimator{}
	}
	return counter
}
