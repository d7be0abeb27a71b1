package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/efortin/vllm-toolcall/pkg/toolcall"
)

// Decode and encode modes
const (
	ModeJSON = "json"
	ModeXML  = "xml"
)

// DecodeRequest is the body of POST /v1/tool_calls/decode
type DecodeRequest struct {
	Mode string `json:"mode"`
	Text string `json:"text"`
}

// DecodeResponse is returned by a successful decode
type DecodeResponse struct {
	Convention string            `json:"convention,omitempty"`
	ToolCalls  []openai.ToolCall `json:"tool_calls"`
}

// EncodeRequest is the body of POST /v1/tool_calls/encode
type EncodeRequest struct {
	Format    string            `json:"format"`
	Dialect   string            `json:"dialect,omitempty"`
	ToolCalls []openai.ToolCall `json:"tool_calls"`
}

// EncodeResponse is returned by a successful encode
type EncodeResponse struct {
	Output  string `json:"output"`
	Dialect string `json:"dialect,omitempty"`
	Tokens  int    `json:"tokens"`
}

// DecodeHandler converts model output into OpenAI tool calls
func (s *Server) DecodeHandler(c *gin.Context) {
	var req DecodeRequest
	if !s.bind(c, &req) {
		return
	}

	var resp DecodeResponse
	switch req.Mode {
	case ModeJSON:
		calls, err := s.processor.FromJSON(req.Text)
		if err != nil {
			s.logger.Info("json decode failed", zap.Error(err))
			respondError(c, http.StatusBadRequest, "decode_failed", err)
			return
		}
		resp.ToolCalls = toolcall.ToOpenAI(calls)
	case ModeXML:
		resp.Convention = string(toolcall.DetectConvention(req.Text))
		resp.ToolCalls = toolcall.ToOpenAI(s.processor.FromXML(req.Text))
	default:
		respondError(c, http.StatusBadRequest, "invalid_mode",
			fmt.Errorf("mode must be %q or %q, got %q", ModeJSON, ModeXML, req.Mode))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// EncodeHandler renders OpenAI tool calls in a model dialect
func (s *Server) EncodeHandler(c *gin.Context) {
	var req EncodeRequest
	if !s.bind(c, &req) {
		return
	}

	calls := toolcall.FromOpenAI(req.ToolCalls)

	var resp EncodeResponse
	switch req.Format {
	case ModeJSON:
		out, err := s.processor.ToJSON(calls)
		if err != nil {
			s.logger.Error("json encode failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "encode_failed", err)
			return
		}
		resp.Output = out
	case ModeXML:
		dialect := req.Dialect
		if dialect == "" {
			dialect = s.config.DefaultDialect
		}
		resp.Dialect = string(toolcall.ParseDialect(dialect))
		resp.Output = s.processor.ToXML(calls, toolcall.Dialect(dialect))
	default:
		respondError(c, http.StatusBadRequest, "invalid_format",
			fmt.Errorf("format must be %q or %q, got %q", ModeJSON, ModeXML, req.Format))
		return
	}

	resp.Tokens = s.counter.CountTokens(resp.Output)
	c.JSON(http.StatusOK, resp)
}

// HealthHandler handles health check requests
func (s *Server) HealthHandler(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) bind(c *gin.Context, req any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.MaxBodyBytes)

	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "request_too_large", err)
			return false
		}
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return false
	}
	return true
}

func respondError(c *gin.Context, status int, errType string, err error) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"message": err.Error(),
			"type":    errType,
		},
	})
}
