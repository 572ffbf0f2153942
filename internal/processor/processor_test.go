package processor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/MikeSquared-Agency/subtext/internal/hermes"
	"github.com/MikeSquared-Agency/subtext/internal/metrics"
	"github.com/MikeSquared-Agency/subtext/internal/safety"
	"github.com/MikeSquared-Agency/subtext/internal/transcript"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type published struct {
	subject string
	event   *hermes.SafetyAnalyzed
}

type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (f *fakePublisher) Publish(subject string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{subject: subject, event: data.(*hermes.SafetyAnalyzed)})
	return nil
}

type fakeWriter struct {
	id    uuid.UUID
	err   error
	refs  []string
	saved []*safety.Analysis
}

func (f *fakeWriter) WriteAnalysis(ctx context.Context, ref string, a *safety.Analysis) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.refs = append(f.refs, ref)
	f.saved = append(f.saved, a)
	return f.id, nil
}

func classifier(gen safety.FlagGenerator) *safety.Classifier {
	if gen == nil {
		gen = safety.FlagGeneratorFunc(func(ctx context.Context, _ []safety.Message) ([]safety.RiskFlag, error) {
			return nil, nil
		})
	}
	return safety.NewClassifier(gen, discardLogger())
}

func TestProcess_HighRiskPublishesTwice(t *testing.T) {
	pub := &fakePublisher{}
	writer := &fakeWriter{id: uuid.New()}
	p := New(classifier(nil), writer, pub, nil, 0, discardLogger())

	summary, err := p.Process(context.Background(), hermes.TranscriptSubmitted{
		ConversationRef: "conv-1",
		UserSender:      "Sam",
		Text:            "Alex: If you loved me you would stay\nSam: I need time\nAlex: ok",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if summary.OverallRisk != "high" || !summary.ResourcesShown {
		t.Errorf("unexpected summary %+v", summary)
	}
	if summary.AnalysisID != writer.id.String() {
		t.Errorf("expected analysis id %s, got %q", writer.id, summary.AnalysisID)
	}
	if summary.Format != "Manual" || summary.MessageCount != 3 {
		t.Errorf("unexpected format/count %s/%d", summary.Format, summary.MessageCount)
	}
	if len(writer.refs) != 1 || writer.refs[0] != "conv-1" {
		t.Errorf("unexpected writes %v", writer.refs)
	}

	if len(pub.events) != 2 {
		t.Fatalf("expected 2 published events, got %d", len(pub.events))
	}
	if pub.events[0].subject != hermes.SubjectSafetyAnalyzed || pub.events[1].subject != hermes.SubjectSafetyHighRisk {
		t.Errorf("unexpected subjects %s, %s", pub.events[0].subject, pub.events[1].subject)
	}
}

func TestProcess_UserMessagesExcluded(t *testing.T) {
	pub := &fakePublisher{}
	p := New(classifier(nil), nil, pub, nil, 0, discardLogger())

	// Only Sam (the user) uses flagged phrases.
	summary, err := p.Process(context.Background(), hermes.TranscriptSubmitted{
		ConversationRef: "conv-2",
		UserSender:      "  sam ",
		Text:            "Sam: You're crazy, watch your back\nAlex: Want to grab dinner?",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.OverallRisk != "none" || len(summary.FlagTypes) != 0 {
		t.Errorf("user messages should not be flagged: %+v", summary)
	}
	if len(pub.events) != 1 || pub.events[0].subject != hermes.SubjectSafetyAnalyzed {
		t.Errorf("expected a single analyzed event, got %+v", pub.events)
	}
}

func TestProcess_ParseErrorPublishesNothing(t *testing.T) {
	pub := &fakePublisher{}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := New(classifier(nil), nil, pub, m, 0, discardLogger())

	_, err := p.Process(context.Background(), hermes.TranscriptSubmitted{ConversationRef: "conv-3", Text: "   "})
	if !errors.Is(err, transcript.ErrEmptyText) {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Errorf("expected nothing published, got %d", len(pub.events))
	}

	n, err := testutil.GatherAndCount(reg, "subtext_transcript_parse_total")
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if n != 1 {
		t.Errorf("expected one parse series, got %d", n)
	}
}

func TestProcess_AnalyzerErrorPublishesNothing(t *testing.T) {
	pub := &fakePublisher{}
	writer := &fakeWriter{id: uuid.New()}
	boom := errors.New("model down")
	gen := safety.FlagGeneratorFunc(func(ctx context.Context, _ []safety.Message) ([]safety.RiskFlag, error) {
		return nil, boom
	})
	p := New(classifier(gen), writer, pub, nil, 0, discardLogger())

	_, err := p.Process(context.Background(), hermes.TranscriptSubmitted{ConversationRef: "conv-4", Text: "Alex: you owe me"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected generator error, got %v", err)
	}
	if len(pub.events) != 0 || len(writer.saved) != 0 {
		t.Errorf("expected no side effects, got %d events, %d writes", len(pub.events), len(writer.saved))
	}
}

func TestProcess_WriteFailureStillPublishes(t *testing.T) {
	pub := &fakePublisher{}
	writer := &fakeWriter{err: errors.New("db down")}
	p := New(classifier(nil), writer, pub, nil, 0, discardLogger())

	summary, err := p.Process(context.Background(), hermes.TranscriptSubmitted{ConversationRef: "conv-5", Text: "Alex: hello\nSam: hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.AnalysisID != "" {
		t.Errorf("expected empty analysis id, got %q", summary.AnalysisID)
	}
	if len(pub.events) != 1 {
		t.Errorf("expected 1 event, got %d", len(pub.events))
	}
}

func TestHandleTranscriptSubmitted(t *testing.T) {
	pub := &fakePublisher{}
	p := New(classifier(nil), nil, pub, nil, 0, discardLogger())

	data, _ := json.Marshal(hermes.TranscriptSubmitted{
		ConversationRef: "conv-6",
		UserSender:      "Sam",
		Text:            "[12/25/24, 10:30:45] Alex: You're overreacting\n[12/25/24, 10:31:00] Sam: ok",
	})
	p.HandleTranscriptSubmitted(hermes.SubjectTranscriptSubmitted, data)

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	evt := pub.events[0].event
	if evt.Format != "iMessage" || evt.OverallRisk != "medium" {
		t.Errorf("unexpected event %+v", evt)
	}
}

func TestHandleTranscriptSubmitted_BadJSON(t *testing.T) {
	pub := &fakePublisher{}
	p := New(classifier(nil), nil, pub, nil, 0, discardLogger())

	p.HandleTranscriptSubmitted(hermes.SubjectTranscriptSubmitted, []byte("{not json"))
	if len(pub.events) != 0 {
		t.Errorf("expected nothing published")
	}
}
