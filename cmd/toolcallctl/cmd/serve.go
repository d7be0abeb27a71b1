package cmd

import (
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/efortin/vllm-toolcall/pkg/server"
	"github.com/efortin/vllm-toolcall/pkg/tokens"
)

var (
	configPath     string
	port           string
	defaultDialect string
	tokenizerModel string
	maxBodyBytes   int64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tool call conversion API",
	Long: `Start the HTTP server exposing the codec.

Endpoints:
- POST /v1/tool_calls/decode  model output -> OpenAI tool calls
- POST /v1/tool_calls/encode  OpenAI tool calls -> JSON or XML text
- GET  /health
- GET  /metrics               Prometheus metrics

Configuration precedence: defaults, --config YAML file, TOOLCALL_*
environment variables, flags.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, err := loadServeConfig(cmd)
		if err != nil {
			return err
		}

		logLevel = config.LogLevel
		logDevelopment = config.LogDevelopment
		logger := newLogger()
		defer logger.Sync() //nolint:errcheck

		srv, err := server.New(config, logger, tokens.NewCounter(config.TokenizerModel, logger))
		if err != nil {
			return err
		}

		logger.Info("starting toolcall server",
			zap.String("port", config.Port),
			zap.String("default_dialect", config.DefaultDialect),
			zap.String("tokenizer_model", config.TokenizerModel),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx)
	},
}

// loadServeConfig layers defaults, the config file, the environment and
// explicitly set flags, in that order.
func loadServeConfig(cmd *cobra.Command) (*server.Config, error) {
	config := server.DefaultConfig()

	if configPath != "" {
		if err := config.LoadConfigFile(configPath); err != nil {
			return nil, err
		}
	}

	config.Port = getEnvOrDefault("TOOLCALL_PORT", config.Port)
	config.DefaultDialect = getEnvOrDefault("TOOLCALL_DEFAULT_DIALECT", config.DefaultDialect)
	config.TokenizerModel = getEnvOrDefault("TOOLCALL_TOKENIZER_MODEL", config.TokenizerModel)
	config.LogLevel = getEnvOrDefault("TOOLCALL_LOG_LEVEL", config.LogLevel)
	if v := os.Getenv("TOOLCALL_LOG_DEV"); v != "" {
		config.LogDevelopment = v == "true"
	}
	if v := os.Getenv("TOOLCALL_MAX_BODY_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}
		config.MaxBodyBytes = n
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		config.Port = port
	}
	if flags.Changed("default-dialect") {
		config.DefaultDialect = defaultDialect
	}
	if flags.Changed("tokenizer-model") {
		config.TokenizerModel = tokenizerModel
	}
	if flags.Changed("max-body-bytes") {
		config.MaxBodyBytes = maxBodyBytes
	}
	if flags.Changed("log-level") {
		config.LogLevel = logLevel
	}
	if flags.Changed("log-dev") {
		config.LogDevelopment = logDevelopment
	}

	return config, config.Validate()
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := server.DefaultConfig()
	serveCmd.Flags().StringVar(&configPath, "config", os.Getenv("TOOLCALL_CONFIG"), "Path to a YAML config file")
	serveCmd.Flags().StringVar(&port, "port", defaults.Port, "HTTP server port")
	serveCmd.Flags().StringVar(&defaultDialect, "default-dialect", defaults.DefaultDialect, "XML dialect used when a request names none (claude or qwen)")
	serveCmd.Flags().StringVar(&tokenizerModel, "tokenizer-model", defaults.TokenizerModel, "Model name used to pick the tiktoken encoding")
	serveCmd.Flags().Int64Var(&maxBodyBytes, "max-body-bytes", defaults.MaxBodyBytes, "Maximum request body size")
}
