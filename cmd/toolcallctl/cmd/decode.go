package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/efortin/vllm-toolcall/pkg/toolcall"
)

var (
	decodeMode string
	decodeFile string
)

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode tool calls from model output",
	Long: `Read model output from stdin (or --file) and print the tool calls it
contains as an indented JSON array of canonical records.

Modes:
- json: a flat {"name", "arguments"} object or a [{"function": ...}] array
- xml:  <tool_call>{json}</tool_call>, <function=...> or <invoke name=...> tags`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, err := readInput(cmd, decodeFile)
		if err != nil {
			return err
		}

		logger := newLogger()
		defer logger.Sync() //nolint:errcheck
		processor := toolcall.NewProcessor(toolcall.WithLogger(logger))

		var calls []toolcall.ToolCall
		switch decodeMode {
		case "json":
			calls, err = processor.FromJSON(input)
			if err != nil {
				return err
			}
		case "xml":
			calls = processor.FromXML(input)
		default:
			return fmt.Errorf("unknown mode %q: must be json or xml", decodeMode)
		}

		out, err := processor.ToJSON(calls)
		if err != nil {
			return err
		}
		// Flat string arguments and empty names pass decode but fail Dump.
		if dumped := len(toolcall.NewProcessor().Dump(calls)); dumped < len(calls) {
			fmt.Fprintf(cmd.ErrOrStderr(), "dropped %d of %d decoded tool calls that failed validation\n",
				len(calls)-dumped, len(calls))
		}
		if out != "" {
			fmt.Fprintln(cmd.OutOrStdout(), out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decodeCmd)

	decodeCmd.Flags().StringVar(&decodeMode, "mode", "xml", "Input mode (json or xml)")
	decodeCmd.Flags().StringVarP(&decodeFile, "file", "f", "", "Read input from file instead of stdin")
}
