package transcript

import (
	"regexp"
	"strings"
	"time"
)

// headerFormat describes a format whose messages start with a
// "timestamp + sender" header line. The pattern captures
// (timestamp, sender, text).
type headerFormat struct {
	pattern *regexp.Regexp
	layouts []string // tried in order, first success wins
}

var (
	iMessageHeader = headerFormat{
		pattern: regexp.MustCompile(`(?s)\[([^\]]+)\]\s*([^:]+):\s*(.*)`),
		layouts: []string{"1/2/06, 15:04:05", "01/02/06, 15:04:05", "1/2/2006, 15:04:05"},
	}
	whatsAppHeader = headerFormat{
		pattern: regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{2,4}, \d{1,2}:\d{2})\s*-\s*([^:]+):\s*(.*)`),
		layouts: []string{"1/2/06, 15:04", "01/02/06, 15:04", "1/2/2006, 15:04"},
	}
	telegramHeader = headerFormat{
		pattern: regexp.MustCompile(`\[(\d{2}:\d{2}, \d{2}\.\d{2}\.\d{4})\]\s*([^:]+):\s*(.*)`),
		layouts: []string{"15:04, 02.01.2006"},
	}
)

// strategy turns the lines of a transcript into messages.
type strategy func(lines []string) []ParsedMessage

func strategyFor(f Format) strategy {
	switch f {
	case FormatIMessage:
		return iMessageHeader.parse
	case FormatWhatsApp:
		return whatsAppHeader.parse
	case FormatTelegram:
		return telegramHeader.parse
	default:
		// Unknown text falls back to the manual strategy rather than failing.
		return parseManual
	}
}

// Parse detects the transcript format and extracts its messages in source
// order. It returns ErrEmptyText for blank input and ErrNoMessagesFound when
// nothing could be extracted.
func Parse(text string) (*ParsedConversation, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyText
	}

	format := DetectFormat(trimmed)
	messages := strategyFor(format)(splitLines(trimmed))
	if len(messages) == 0 {
		return nil, ErrNoMessagesFound
	}

	return &ParsedConversation{
		Format:       format,
		Messages:     messages,
		Participants: participants(messages),
		DetectedAt:   time.Now().UTC(),
	}, nil
}

// pending is the message being accumulated while continuation lines arrive.
type pending struct {
	stamp  string
	sender string
	text   strings.Builder
}

func (h headerFormat) parse(lines []string) []ParsedMessage {
	var (
		msgs    []ParsedMessage
		current *pending
	)

	flush := func() {
		if current == nil {
			return
		}
		msgs = append(msgs, newMessage(current.text.String(), current.sender, parseTimestamp(current.stamp, h.layouts)))
		current = nil
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if m := h.pattern.FindStringSubmatch(line); m != nil {
			flush()
			current = &pending{stamp: m[1], sender: strings.TrimSpace(m[2])}
			current.text.WriteString(m[3])
			continue
		}

		// Lines before the first header cannot be attributed and are dropped.
		if current != nil {
			current.text.WriteByte('\n')
			current.text.WriteString(line)
		}
	}
	flush()

	return msgs
}

// parseManual handles "Name: message" transcripts. Every line becomes its own
// message; lines without a usable sender prefix are attributed to the most
// recent sender.
func parseManual(lines []string) []ParsedMessage {
	var msgs []ParsedMessage
	lastSender := ""

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if sender, text, ok := splitSenderLine(line); ok {
			lastSender = sender
			msgs = append(msgs, newMessage(text, sender, nil))
			continue
		}

		sender := lastSender
		if sender == "" {
			sender = "Unknown"
		}
		msgs = append(msgs, newMessage(line, sender, nil))
	}

	return msgs
}

func parseTimestamp(s string, layouts []string) *time.Time {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t
		}
	}
	return nil
}

func participants(msgs []ParsedMessage) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range msgs {
		if seen[m.Sender] {
			continue
		}
		seen[m.Sender] = true
		out = append(out, m.Sender)
	}
	return out
}
