package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/subtext/internal/hermes"
	"github.com/MikeSquared-Agency/subtext/internal/metrics"
	"github.com/MikeSquared-Agency/subtext/internal/safety"
	"github.com/MikeSquared-Agency/subtext/internal/transcript"
)

// Analyzer runs the safety classifier.
type Analyzer interface {
	Analyze(ctx context.Context, messages []safety.Message) (*safety.Analysis, error)
}

// AnalysisWriter persists analysis outcomes.
type AnalysisWriter interface {
	WriteAnalysis(ctx context.Context, conversationRef string, a *safety.Analysis) (uuid.UUID, error)
}

// Publisher emits events.
type Publisher interface {
	Publish(subject string, data any) error
}

// Processor turns submitted transcripts into published safety analyses.
type Processor struct {
	analyzer Analyzer
	writer   AnalysisWriter // optional
	pub      Publisher
	metrics  *metrics.Metrics
	timeout  time.Duration
	logger   *slog.Logger
}

func New(a Analyzer, w AnalysisWriter, pub Publisher, m *metrics.Metrics, timeout time.Duration, logger *slog.Logger) *Processor {
	return &Processor{
		analyzer: a,
		writer:   w,
		pub:      pub,
		metrics:  m,
		timeout:  timeout,
		logger:   logger,
	}
}

// HandleTranscriptSubmitted is the NATS handler for subtext.transcript.submitted.
func (p *Processor) HandleTranscriptSubmitted(subject string, data []byte) {
	var evt hermes.TranscriptSubmitted
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse transcript event", "error", err)
		return
	}

	ctx := context.Background()
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if _, err := p.Process(ctx, evt); err != nil {
		p.logger.Error("transcript processing failed",
			"conversation_ref", evt.ConversationRef,
			"error", err,
		)
	}
}

// Process parses, labels and analyzes one transcript, stores the outcome
// when a writer is configured and publishes the summary. Nothing is
// published when parsing or analysis fails.
func (p *Processor) Process(ctx context.Context, evt hermes.TranscriptSubmitted) (*hermes.SafetyAnalyzed, error) {
	parsed, err := transcript.Parse(evt.Text)
	if err != nil {
		var perr *transcript.Error
		outcome := "error"
		if errors.As(err, &perr) {
			outcome = perr.Kind.String()
		}
		p.metrics.ObserveParse(string(transcript.DetectFormat(evt.Text)), outcome)
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	p.metrics.ObserveParse(string(parsed.Format), "ok")

	p.logger.Info("processing transcript",
		"conversation_ref", evt.ConversationRef,
		"format", parsed.Format,
		"messages", len(parsed.Messages),
		"participants", len(parsed.Participants),
		"user_found", parsed.HasParticipant(evt.UserSender),
	)

	start := time.Now()
	analysis, err := p.analyzer.Analyze(ctx, Label(parsed.Messages, evt.UserSender))
	if err != nil {
		p.metrics.ObserveCollaboratorFailure()
		return nil, fmt.Errorf("analyze: %w", err)
	}
	p.metrics.ObserveAnalysis(analysis, time.Since(start).Seconds())

	summary := &hermes.SafetyAnalyzed{
		ConversationRef: evt.ConversationRef,
		Format:          string(parsed.Format),
		MessageCount:    len(parsed.Messages),
		OverallRisk:     analysis.OverallRisk.String(),
		FlagTypes:       analysis.FlagTypes(),
		ResourcesShown:  len(analysis.SupportResources) > 0,
		Timestamp:       time.Now().UTC(),
	}

	if p.writer != nil {
		id, err := p.writer.WriteAnalysis(ctx, evt.ConversationRef, analysis)
		if err != nil {
			// The analysis itself is valid; publish it without an id.
			p.logger.Error("persistence failed", "conversation_ref", evt.ConversationRef, "error", err)
		} else {
			summary.AnalysisID = id.String()
		}
	}

	p.publish(hermes.SubjectSafetyAnalyzed, summary)
	if analysis.OverallRisk == safety.RiskHigh {
		p.publish(hermes.SubjectSafetyHighRisk, summary)
	}

	p.logger.Info("transcript analyzed",
		"conversation_ref", evt.ConversationRef,
		"overall_risk", summary.OverallRisk,
		"flags", len(analysis.Flags),
	)

	return summary, nil
}

func (p *Processor) publish(subject string, evt *hermes.SafetyAnalyzed) {
	if p.pub == nil {
		return
	}
	if err := p.pub.Publish(subject, evt); err != nil {
		p.logger.Error("failed to publish", "subject", subject, "error", err)
	}
}
