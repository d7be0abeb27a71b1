package toolcall_test

import (
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/efortin/vllm-toolcall/pkg/toolcall"
)

// fakeRecorder implements toolcall.Recorder for testing
type fakeRecorder struct {
	mu      sync.Mutex
	decodes map[string]int
	encodes map[string]int
	drops   map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		decodes: map[string]int{},
		encodes: map[string]int{},
		drops:   map[string]int{},
	}
}

func (r *fakeRecorder) RecordDecode(source, convention string, calls int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decodes[source+"/"+convention] += calls
}

func (r *fakeRecorder) RecordEncode(target, dialect string, calls int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encodes[target+"/"+dialect] += calls
}

func (r *fakeRecorder) RecordDrop(stage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drops[stage]++
}

var _ = Describe("Processor", func() {
	var (
		processor *toolcall.Processor
		recorder  *fakeRecorder
	)

	BeforeEach(func() {
		recorder = newFakeRecorder()
		processor = toolcall.NewProcessor(
			toolcall.WithRecorder(recorder),
			toolcall.WithIDGenerator(toolcall.SequentialIDs),
		)
	})

	Context("Recording", func() {
		It("should record decoded calls per convention", func() {
			processor.FromXML(`<invoke name="a"></invoke><invoke name="b"></invoke>`)
			_, err := processor.FromJSON(`{"name": "f", "arguments": {}}`)
			Expect(err).NotTo(HaveOccurred())

			Expect(recorder.decodes).To(HaveKeyWithValue("xml/invoke", 2))
			Expect(recorder.decodes).To(HaveKeyWithValue("json/flat_json", 1))
		})

		It("should record drops by stage", func() {
			processor.FromXML(`<tool_call>{broken}</tool_call>`)
			processor.Dump([]toolcall.ToolCall{{}})

			Expect(recorder.drops).To(HaveKeyWithValue("embedded_json", 1))
			Expect(recorder.drops).To(HaveKeyWithValue("dump", 1))
		})

		It("should record encodes with the resolved dialect", func() {
			calls := []toolcall.ToolCall{{Function: toolcall.ToolCallFunction{Name: "f", Arguments: `{}`}}}
			processor.ToXML(calls, "unknown")
			processor.ToXML(calls, toolcall.DialectQwen)

			Expect(recorder.encodes).To(HaveKeyWithValue("xml/claude", 1))
			Expect(recorder.encodes).To(HaveKeyWithValue("xml/qwen", 1))
		})
	})

	Context("Dialect selection", func() {
		It("should default to claude", func() {
			Expect(toolcall.ParseDialect("")).To(Equal(toolcall.DialectClaude))
			Expect(toolcall.ParseDialect("mistral")).To(Equal(toolcall.DialectClaude))
			Expect(toolcall.ParseDialect("qwen")).To(Equal(toolcall.DialectQwen))
			Expect(toolcall.ParseDialect("QWEN")).To(Equal(toolcall.DialectClaude))
			Expect(toolcall.ParseDialect(" qwen ")).To(Equal(toolcall.DialectClaude))
		})
	})

	Context("Package-level helpers", func() {
		It("should log through the global zap logger", func() {
			core, logs := observer.New(zapcore.WarnLevel)
			restore := zap.ReplaceGlobals(zap.New(core))
			defer restore()

			calls := toolcall.FromXML(`<tool_call>{"name": "x", "arguments": }</tool_call>`)
			Expect(calls).To(BeEmpty())
			Expect(logs.Len()).To(Equal(1))
		})

		It("should round trip through JSON helpers", func() {
			calls, err := toolcall.FromJSON(`{"name": "f", "arguments": {"k": "v"}}`)
			Expect(err).NotTo(HaveOccurred())

			out, err := toolcall.ToJSON(calls)
			Expect(err).NotTo(HaveOccurred())

			again, err := toolcall.FromJSON(out)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(HaveLen(1))
			Expect(again[0].ID).To(Equal(calls[0].ID))
			Expect(again[0].Function.Name).To(Equal("f"))
			// nested decoding re-serializes the arguments string
			Expect(again[0].Function.Arguments).To(Equal(`"{\"k\": \"v\"}"`))
		})

		It("should render XML through the helper", func() {
			calls := toolcall.FromXML(`<tool_call>{"name": "f", "arguments": {"k": "v"}}</tool_call>`)
			Expect(toolcall.ToXML(calls, toolcall.DialectClaude)).To(Equal(
				"<invoke name=\"f\">\n<parameter name=\"k\">v</parameter>\n</invoke>"))
			Expect(toolcall.Dump(calls)).To(HaveLen(1))
		})
	})

	Context("OpenAI conversion", func() {
		It("should convert both ways", func() {
			calls := processor.FromXML(`<invoke name="a"><parameter name="x">1</parameter></invoke><invoke name="b"></invoke>`)

			converted := toolcall.ToOpenAI(calls)
			Expect(converted).To(HaveLen(2))
			Expect(*converted[1].Index).To(Equal(1))
			Expect(converted[0].Type).To(Equal(openai.ToolTypeFunction))
			Expect(converted[0].ID).To(Equal("call_a"))
			Expect(converted[0].Function.Arguments).To(Equal(`{"x": 1}`))

			Expect(toolcall.FromOpenAI(converted)).To(Equal(calls))
		})

		It("should default the type", func() {
			back := toolcall.FromOpenAI([]openai.ToolCall{{ID: "x", Function: openai.FunctionCall{Name: "f", Arguments: "{}"}}})
			Expect(back[0].Type).To(Equal(toolcall.TypeFunction))
		})
	})

	Context("Concurrency", func() {
		It("should be safe to share between goroutines", func() {
			input := `<tool_call>
<function=f>
<parameter=n>
7
</parameter>
</function>
</tool_call>`

			var wg sync.WaitGroup
			results := make([][]toolcall.ToolCall, 16)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					defer GinkgoRecover()
					results[i] = processor.FromXML(input)
				}(i)
			}
			wg.Wait()

			for _, calls := range results {
				Expect(calls).To(HaveLen(1))
				Expect(calls[0].Function.Arguments).To(Equal(`{"n": 7}`))
			}
		})
	})
})
