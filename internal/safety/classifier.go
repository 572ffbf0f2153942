package safety

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// FlagGenerator is the external pattern detector. It receives every message,
// user messages included.
type FlagGenerator interface {
	GenerateSafetyFlags(ctx context.Context, messages []Message) ([]RiskFlag, error)
}

// FlagGeneratorFunc adapts a function to FlagGenerator.
type FlagGeneratorFunc func(ctx context.Context, messages []Message) ([]RiskFlag, error)

func (f FlagGeneratorFunc) GenerateSafetyFlags(ctx context.Context, messages []Message) ([]RiskFlag, error) {
	return f(ctx, messages)
}

// Classifier combines the hard-rule tables with a FlagGenerator. It holds no
// per-conversation state and is safe for concurrent use.
type Classifier struct {
	generator FlagGenerator
	logger    *slog.Logger
}

func NewClassifier(generator FlagGenerator, logger *slog.Logger) *Classifier {
	return &Classifier{generator: generator, logger: logger}
}

// Analyze runs the hard-rule scan and the generator, then aggregates and
// scores the combined flags. A generator failure or a cancelled context
// aborts the analysis; no partial result is returned.
func (c *Classifier) Analyze(ctx context.Context, messages []Message) (*Analysis, error) {
	g, gctx := errgroup.WithContext(ctx)

	var external []RiskFlag
	g.Go(func() error {
		flags, err := c.generator.GenerateSafetyFlags(gctx, messages)
		if err != nil {
			return fmt.Errorf("generate safety flags: %w", err)
		}
		external = flags
		return nil
	})

	local := ScanHardRules(messages)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	flags := Aggregate(append(local, external...))
	analysis := &Analysis{
		Flags:            flags,
		OverallRisk:      OverallRisk(flags),
		Recommendations:  Recommendations(flags),
		SupportResources: SupportResources(flags),
	}

	c.logger.Debug("safety analysis complete",
		"messages", len(messages),
		"rule_flags", len(local),
		"generator_flags", len(external),
		"flags", len(flags),
		"overall_risk", analysis.OverallRisk.String(),
	)

	return analysis, nil
}
