package toolcall

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder receives counts from a Processor. pkg/metrics provides the
// Prometheus implementation.
type Recorder interface {
	RecordDecode(source string, convention string, calls int)
	RecordEncode(target string, dialect string, calls int)
	RecordDrop(stage string)
}

// IDGenerator returns the ID of the index-th tool call produced by a decode.
type IDGenerator func(index int) string

// Processor decodes and encodes tool calls. It holds only configuration set
// at construction and is safe for concurrent use.
type Processor struct {
	logger   *zap.Logger
	newID    IDGenerator
	recorder Recorder
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger used for dropped-unit warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithIDGenerator replaces the random ID generator.
func WithIDGenerator(gen IDGenerator) Option {
	return func(p *Processor) {
		if gen != nil {
			p.newID = gen
		}
	}
}

// WithRecorder attaches a Recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Processor) {
		p.recorder = r
	}
}

// NewProcessor creates a new Processor. Without options it logs nowhere and
// generates random IDs.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{
		logger: zap.NewNop(),
		newID:  RandomIDs,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RandomIDs generates "call_" followed by 24 hex characters.
func RandomIDs(int) string {
	return "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// SequentialIDs generates call_a, call_b, ... call_z, call_a1, ...
func SequentialIDs(index int) string {
	letter := 'a' + rune(index%26)
	num := index / 26
	if num == 0 {
		return fmt.Sprintf("call_%c", letter)
	}
	return fmt.Sprintf("call_%c%d", letter, num)
}

func (p *Processor) newCall(index int, name, arguments string) ToolCall {
	return ToolCall{
		ID:   p.newID(index),
		Type: TypeFunction,
		Function: ToolCallFunction{
			Name:      name,
			Arguments: arguments,
		},
	}
}

func (p *Processor) drop(stage string, index int, err error) {
	p.logger.Warn("dropping tool call",
		zap.String("stage", stage),
		zap.Int("index", index),
		zap.Error(err),
	)
	if p.recorder != nil {
		p.recorder.RecordDrop(stage)
	}
}

func (p *Processor) decoded(source string, convention Convention, calls int) {
	p.logger.Debug("decoded tool calls",
		zap.String("source", source),
		zap.String("convention", string(convention)),
		zap.Int("count", calls),
	)
	if p.recorder != nil {
		p.recorder.RecordDecode(source, string(convention), calls)
	}
}

func (p *Processor) encoded(target string, dialect string, calls int) {
	if p.recorder != nil {
		p.recorder.RecordEncode(target, dialect, calls)
	}
}

// FromJSON decodes JSON-mode text with a processor logging to zap.L().
func FromJSON(text string) ([]ToolCall, error) {
	return defaultProcessor().FromJSON(text)
}

// FromXML decodes XML-mode text with a processor logging to zap.L().
func FromXML(text string) []ToolCall {
	return defaultProcessor().FromXML(text)
}

// Dump converts calls to mappings with a processor logging to zap.L().
func Dump(calls []ToolCall) []map[string]any {
	return defaultProcessor().Dump(calls)
}

// ToJSON renders calls as indented JSON with a processor logging to zap.L().
func ToJSON(calls []ToolCall) (string, error) {
	return defaultProcessor().ToJSON(calls)
}

// ToXML renders calls in dialect with a processor logging to zap.L().
func ToXML(calls []ToolCall, dialect Dialect) string {
	return defaultProcessor().ToXML(calls, dialect)
}

// defaultProcessor is built per call so that zap.ReplaceGlobals applies.
func defaultProcessor() *Processor {
	return NewProcessor(WithLogger(zap.L()))
}
