package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/subtext/internal/anthropic"
	"github.com/MikeSquared-Agency/subtext/internal/config"
	"github.com/MikeSquared-Agency/subtext/internal/extractor"
	"github.com/MikeSquared-Agency/subtext/internal/processor"
	"github.com/MikeSquared-Agency/subtext/internal/safety"
)

var analyzeUser string

// newGenerator builds the flag generator from configuration. Tests replace it.
var newGenerator = func(cfg config.Config, logger *slog.Logger) (safety.FlagGenerator, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for analyze")
	}
	llm := anthropic.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, anthropic.WithTimeout(cfg.AnalysisTimeout))
	return extractor.New(llm, logger), nil
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Parse a transcript and run the safety classifier",
	Long: `Parse a transcript, mark the messages sent by --user as your own, and run
the safety classifier. Your own messages are never flagged.

Examples:
  subtextctl analyze chat.txt --user Sam
  pbpaste | subtextctl analyze --user "Sam K"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeUser, "user", "", "sender name that identifies you in the transcript")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	logger := newLogger(cmd)

	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	parsed, err := parseTranscript(text)
	if err != nil {
		return err
	}

	if analyzeUser != "" && !parsed.HasParticipant(analyzeUser) {
		logger.Warn("user not among participants", "participants", len(parsed.Participants))
	}

	gen, err := newGenerator(cfg, logger)
	if err != nil {
		return err
	}

	classifier := safety.NewClassifier(gen, logger)
	analysis, err := classifier.Analyze(cmd.Context(), processor.Label(parsed.Messages, analyzeUser))
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	return printJSON(cmd, analysis)
}
