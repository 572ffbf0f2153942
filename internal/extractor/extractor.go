package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/subtext/internal/anthropic"
	"github.com/MikeSquared-Agency/subtext/internal/safety"
)

// ErrInvalidResponse means the model reply contained no JSON object.
var ErrInvalidResponse = errors.New("invalid model response")

const (
	maxTokens  = 2048
	retryDelay = time.Second
)

type completer interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (string, error)
}

// Extractor asks the model for safety flags. It implements
// safety.FlagGenerator.
type Extractor struct {
	llm        completer
	logger     *slog.Logger
	retryDelay time.Duration
}

func New(llm completer, logger *slog.Logger) *Extractor {
	return &Extractor{llm: llm, logger: logger, retryDelay: retryDelay}
}

type llmFlag struct {
	Type        string   `json:"type"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
	Evidence    []string `json:"evidence"`
}

type llmResponse struct {
	Flags []llmFlag `json:"flags"`
}

// GenerateSafetyFlags renders the last messages of the conversation into the
// safety prompt and decodes the flags from the reply.
func (e *Extractor) GenerateSafetyFlags(ctx context.Context, messages []safety.Message) ([]safety.RiskFlag, error) {
	prompt := fmt.Sprintf(safetyUserPrompt, renderConversation(messages))

	e.logger.Info("requesting safety flags", "messages", len(messages))

	raw, err := e.complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm safety flags: %w", err)
	}

	flags, err := decodeFlags(raw)
	if err != nil {
		// Only the size is logged; replies quote the conversation.
		e.logger.Error("failed to parse safety response", "error", err, "response_len", len(raw))
		return nil, err
	}

	e.logger.Info("safety flags received", "flags", len(flags))
	return flags, nil
}

// complete sends the prompt, retrying once after a rate limit or server
// error.
func (e *Extractor) complete(ctx context.Context, prompt string) (string, error) {
	messages := []anthropic.Message{{Role: "user", Content: prompt}}

	raw, err := e.llm.Complete(ctx, systemPrompt, messages, maxTokens)
	var apiErr *anthropic.APIError
	if err == nil || !errors.As(err, &apiErr) || !apiErr.Retryable() {
		return raw, err
	}

	e.logger.Warn("model request failed, retrying", "status", apiErr.StatusCode)
	timer := time.NewTimer(e.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return "", err
	case <-timer.C:
	}
	return e.llm.Complete(ctx, systemPrompt, messages, maxTokens)
}

// renderConversation formats the trailing window as "[Sender]: text" lines,
// with the user shown as "Me".
func renderConversation(messages []safety.Message) string {
	if len(messages) > contextWindow {
		messages = messages[len(messages)-contextWindow:]
	}

	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		speaker := m.Sender
		switch {
		case m.IsFromUser:
			speaker = "Me"
		case speaker == "":
			speaker = "Them"
		}
		lines = append(lines, "["+speaker+"]: "+m.Text)
	}
	return strings.Join(lines, "\n")
}

// extractJSON returns the span from the first '{' to the last '}'.
func extractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return "", false
	}
	return raw[start : end+1], true
}

func decodeFlags(raw string) ([]safety.RiskFlag, error) {
	body, ok := extractJSON(raw)
	if !ok {
		return nil, ErrInvalidResponse
	}

	var resp llmResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil, fmt.Errorf("parse safety flags: %w", err)
	}

	flags := make([]safety.RiskFlag, 0, len(resp.Flags))
	for i, f := range resp.Flags {
		riskType := strings.ToLower(strings.TrimSpace(f.Type))
		if riskType == "" {
			return nil, fmt.Errorf("parse safety flags: flag %d has no type", i)
		}
		severity := safety.Severity(strings.ToLower(strings.TrimSpace(f.Severity)))
		if !severity.Valid() {
			return nil, fmt.Errorf("parse safety flags: flag %d has unknown severity %q", i, f.Severity)
		}
		evidence := f.Evidence
		if evidence == nil {
			evidence = []string{}
		}
		flags = append(flags, safety.RiskFlag{
			Type:        safety.RiskType(riskType),
			Severity:    severity,
			Description: f.Description,
			Evidence:    evidence,
		})
	}
	return flags, nil
}
