package transcript

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Format identifies which export layout a pasted transcript uses.
type Format string

const (
	FormatIMessage Format = "iMessage"
	FormatWhatsApp Format = "WhatsApp"
	FormatTelegram Format = "Telegram"
	FormatManual   Format = "Manual"
	FormatUnknown  Format = "Unknown"
)

// ParsedMessage is one recognized utterance from a transcript.
type ParsedMessage struct {
	ID        uuid.UUID  `json:"id"`
	Text      string     `json:"text"`
	Sender    string     `json:"sender"`              // every strategy assigns one; a blank header name stays ""
	Timestamp *time.Time `json:"timestamp,omitempty"` // nil when the format has no time or it failed to parse
	// IsFromUser is always false at parse time; callers label the user's messages.
	IsFromUser bool `json:"is_from_user"`
}

// ParsedConversation is the result of a successful Parse.
type ParsedConversation struct {
	Format       Format          `json:"format"`
	Messages     []ParsedMessage `json:"messages"`
	Participants []string        `json:"participants"` // distinct senders including "", first-seen order
	DetectedAt   time.Time       `json:"detected_at"`
}

// HasParticipant reports whether name sent at least one message. Names are
// compared trimmed and case-insensitively; a blank name never matches.
func (c *ParsedConversation) HasParticipant(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, p := range c.Participants {
		if strings.EqualFold(p, name) {
			return true
		}
	}
	return false
}

func newMessage(text, sender string, ts *time.Time) ParsedMessage {
	return ParsedMessage{
		ID:        uuid.New(),
		Text:      text,
		Sender:    sender,
		Timestamp: ts,
	}
}
