package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/efortin/vllm-toolcall/pkg/logging"
)

var (
	logLevel       string
	logDevelopment bool
)

var rootCmd = &cobra.Command{
	Use:   "toolcallctl",
	Short: "Convert LLM tool calls between JSON and XML dialects",
	Long: `toolcallctl normalizes the tool calls language models emit, as JSON
arrays, flat JSON objects, <tool_call> blocks, <function=...> tags or
<invoke> tags, into one canonical form, and renders that form back into
the claude or qwen XML dialects.

It runs as a one-shot converter (decode, encode) or as an HTTP service
(serve).`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the build information reported by the version command
func SetVersion(version, commit, date string) {
	rootCmd.Version = fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", getEnvOrDefault("TOOLCALL_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logDevelopment, "log-dev", os.Getenv("TOOLCALL_LOG_DEV") == "true", "Human-readable log output")
}

func newLogger() *zap.Logger {
	return logging.NewOrNop(logging.Options{Level: logLevel, Development: logDevelopment})
}

// readInput reads the named file, or stdin when path is empty or "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
