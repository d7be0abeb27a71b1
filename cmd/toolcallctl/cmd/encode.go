package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/efortin/vllm-toolcall/pkg/toolcall"
)

var (
	encodeFormat  string
	encodeDialect string
	encodeFile    string
)

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Render canonical tool calls in a model dialect",
	Long: `Read a JSON array of canonical tool calls (the output of decode) from
stdin (or --file) and render it as indented JSON or as claude/qwen XML.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readInput(cmd, encodeFile)
		if err != nil {
			return err
		}

		var calls []toolcall.ToolCall
		if strings.TrimSpace(input) != "" {
			if err := json.Unmarshal([]byte(input), &calls); err != nil {
				return fmt.Errorf("failed to parse tool calls: %w", err)
			}
		}

		logger := newLogger()
		defer logger.Sync() //nolint:errcheck
		processor := toolcall.NewProcessor(toolcall.WithLogger(logger))

		var out string
		switch encodeFormat {
		case "json":
			if out, err = processor.ToJSON(calls); err != nil {
				return err
			}
		case "xml":
			out = processor.ToXML(calls, toolcall.ParseDialect(encodeDialect))
		default:
			return fmt.Errorf("unknown format %q: must be json or xml", encodeFormat)
		}

		if out != "" {
			fmt.Fprintln(cmd.OutOrStdout(), out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)

	encodeCmd.Flags().StringVar(&encodeFormat, "format", "xml", "Output format (json or xml)")
	encodeCmd.Flags().StringVar(&encodeDialect, "dialect", getEnvOrDefault("TOOLCALL_DEFAULT_DIALECT", "claude"), "XML dialect (claude or qwen)")
	encodeCmd.Flags().StringVarP(&encodeFile, "file", "f", "", "Read input from file instead of stdin")
}
