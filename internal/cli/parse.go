package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/subtext/internal/transcript"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a transcript and print its messages as JSON",
	Long: `Parse a transcript and print the format, messages and participants as
indented JSON. Reads stdin when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		parsed, err := parseTranscript(text)
		if err != nil {
			return err
		}
		return printJSON(cmd, parsed)
	},
}

func init() {
	rootCmd.AddCommand(parseCmd)
}

// parseTranscript wraps transcript.Parse with the messages people see.
func parseTranscript(text string) (*transcript.ParsedConversation, error) {
	parsed, err := transcript.Parse(text)
	switch {
	case errors.Is(err, transcript.ErrEmptyText):
		return nil, fmt.Errorf("please paste some text to parse: %w", err)
	case errors.Is(err, transcript.ErrNoMessagesFound):
		return nil, fmt.Errorf("no messages could be extracted from the text: %w", err)
	case err != nil:
		return nil, err
	}
	return parsed, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
