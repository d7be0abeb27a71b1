package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/efortin/vllm-toolcall/pkg/server"
	"github.com/efortin/vllm-toolcall/pkg/tokens"
)

func post(handler http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func errorType(w *httptest.ResponseRecorder) string {
	var body struct {
		Error struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	Expect(json.Unmarshal(w.Body.Bytes(), &body)).To(Succeed())
	return body.Error.Type
}

var _ = Describe("Server", func() {
	var (
		config  *server.Config
		handler http.Handler
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		config = server.DefaultConfig()
	})

	JustBeforeEach(func() {
		srv, err := server.New(config, nil, tokens.Estimator{})
		Expect(err).NotTo(HaveOccurred())
		handler = srv.Handler()
	})

	Describe("New", func() {
		It("should reject an invalid config", func() {
			bad := server.DefaultConfig()
			bad.Port = ""
			_, err := server.New(bad, nil, nil)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("HealthHandler", func() {
		It("should return OK", func() {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(Equal("OK"))
		})
	})

	Describe("Metrics endpoint", func() {
		It("should expose conversion metrics", func() {
			post(handler, "/v1/tool_calls/decode", `{"mode": "xml", "text": "<invoke name=\"f\"></invoke>"}`)

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring("toolcall_decode_total"))
		})
	})

	Describe("DecodeHandler", func() {
		Context("with XML input", func() {
			It("should return OpenAI tool calls and the convention", func() {
				body := `{"mode": "xml", "text": "<tool_call>\n<function=search>\n<parameter=q>\ngo\n</parameter>\n</function>\n</tool_call>"}`
				w := post(handler, "/v1/tool_calls/decode", body)
				Expect(w.Code).To(Equal(http.StatusOK))

				var resp server.DecodeResponse
				Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp.Convention).To(Equal("tagged_function"))
				Expect(resp.ToolCalls).To(HaveLen(1))
				Expect(resp.ToolCalls[0].Function.Name).To(Equal("search"))
				Expect(resp.ToolCalls[0].Function.Arguments).To(Equal(`{"q": "go"}`))
				Expect(string(resp.ToolCalls[0].Type)).To(Equal("function"))
			})

			It("should return an empty list when nothing matches", func() {
				w := post(handler, "/v1/tool_calls/decode", `{"mode": "xml", "text": "plain answer"}`)
				Expect(w.Code).To(Equal(http.StatusOK))
				Expect(w.Body.String()).To(ContainSubstring(`"tool_calls":[]`))
				Expect(w.Body.String()).To(ContainSubstring(`"convention":"none"`))
			})
		})

		Context("with JSON input", func() {
			It("should decode the flat shape", func() {
				w := post(handler, "/v1/tool_calls/decode", `{"mode": "json", "text": "{\"name\": \"f\", \"arguments\": {\"a\": 1}}"}`)
				Expect(w.Code).To(Equal(http.StatusOK))

				var resp server.DecodeResponse
				Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp.ToolCalls).To(HaveLen(1))
				Expect(resp.ToolCalls[0].Function.Arguments).To(Equal(`{"a": 1}`))
			})

			It("should reject malformed JSON", func() {
				w := post(handler, "/v1/tool_calls/decode", `{"mode": "json", "text": "{oops"}`)
				Expect(w.Code).To(Equal(http.StatusBadRequest))
				Expect(errorType(w)).To(Equal("decode_failed"))
			})
		})

		Context("with deeply nested input", func() {
			deep := strings.Repeat("[", 3_000_000)

			It("should reject it in JSON mode", func() {
				w := post(handler, "/v1/tool_calls/decode", `{"mode": "json", "text": "`+deep+`"}`)
				Expect(w.Code).To(Equal(http.StatusBadRequest))
				Expect(errorType(w)).To(Equal("decode_failed"))
			})

			It("should keep it as a string parameter in XML mode", func() {
				text := `<invoke name=\"f\"><parameter name=\"x\">` + deep + `</parameter></invoke>`
				w := post(handler, "/v1/tool_calls/decode", `{"mode": "xml", "text": "`+text+`"}`)
				Expect(w.Code).To(Equal(http.StatusOK))

				var resp server.DecodeResponse
				Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp.ToolCalls).To(HaveLen(1))
				Expect(resp.ToolCalls[0].Function.Name).To(Equal("f"))
			})
		})

		It("should reject an unknown mode", func() {
			w := post(handler, "/v1/tool_calls/decode", `{"mode": "yaml", "text": ""}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(errorType(w)).To(Equal("invalid_mode"))
		})

		It("should reject a body that is not JSON", func() {
			w := post(handler, "/v1/tool_calls/decode", `not json`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(errorType(w)).To(Equal("invalid_request"))
		})

		Context("with a small body limit", func() {
			BeforeEach(func() {
				config.MaxBodyBytes = 16
			})

			It("should reject large bodies", func() {
				w := post(handler, "/v1/tool_calls/decode", `{"mode": "xml", "text": "`+strings.Repeat("x", 64)+`"}`)
				Expect(w.Code).To(Equal(http.StatusRequestEntityTooLarge))
				Expect(errorType(w)).To(Equal("request_too_large"))
			})
		})
	})

	Describe("EncodeHandler", func() {
		const calls = `[{"id": "call_a", "type": "function", "function": {"name": "f", "arguments": "{\"k\": \"v\", \"n\": 2}"}}]`

		It("should render claude XML by default", func() {
			w := post(handler, "/v1/tool_calls/encode", `{"format": "xml", "tool_calls": `+calls+`}`)
			Expect(w.Code).To(Equal(http.StatusOK))

			var resp server.EncodeResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Dialect).To(Equal("claude"))
			Expect(resp.Output).To(Equal("<invoke name=\"f\">\n<parameter name=\"k\">v</parameter>\n<parameter name=\"n\">2</parameter>\n</invoke>"))
			Expect(resp.Tokens).To(Equal(tokens.EstimateTokens(resp.Output)))
		})

		It("should render qwen XML on request", func() {
			w := post(handler, "/v1/tool_calls/encode", `{"format": "xml", "dialect": "qwen", "tool_calls": `+calls+`}`)
			Expect(w.Code).To(Equal(http.StatusOK))

			var resp server.EncodeResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Dialect).To(Equal("qwen"))
			Expect(resp.Output).To(HavePrefix("<tool_call>\n<function=f>\n<parameter=k>\nv\n</parameter>"))
		})

		Context("with qwen as the configured default", func() {
			BeforeEach(func() {
				config.DefaultDialect = "qwen"
			})

			It("should use the configured dialect", func() {
				w := post(handler, "/v1/tool_calls/encode", `{"format": "xml", "tool_calls": `+calls+`}`)

				var resp server.EncodeResponse
				Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
				Expect(resp.Dialect).To(Equal("qwen"))
			})
		})

		It("should render indented JSON", func() {
			w := post(handler, "/v1/tool_calls/encode", `{"format": "json", "tool_calls": `+calls+`}`)
			Expect(w.Code).To(Equal(http.StatusOK))

			var resp server.EncodeResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Output).To(HavePrefix("[\n  {\n"))
			Expect(resp.Output).To(ContainSubstring(`"name": "f"`))
		})

		It("should return empty output for no calls", func() {
			w := post(handler, "/v1/tool_calls/encode", `{"format": "json", "tool_calls": []}`)
			Expect(w.Code).To(Equal(http.StatusOK))

			var resp server.EncodeResponse
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp.Output).To(BeEmpty())
			Expect(resp.Tokens).To(BeZero())
		})

		It("should reject an unknown format", func() {
			w := post(handler, "/v1/tool_calls/encode", `{"format": "yaml", "tool_calls": []}`)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(errorType(w)).To(Equal("invalid_format"))
		})
	})
})
