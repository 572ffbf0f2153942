package processor

import (
	"strings"

	"github.com/MikeSquared-Agency/subtext/internal/safety"
	"github.com/MikeSquared-Agency/subtext/internal/transcript"
)

// Label converts parsed messages into classifier input, marking messages
// whose sender matches userSender (trimmed, case-insensitive) as the user's.
// An empty userSender marks nothing.
func Label(messages []transcript.ParsedMessage, userSender string) []safety.Message {
	user := strings.TrimSpace(userSender)

	out := make([]safety.Message, len(messages))
	for i, m := range messages {
		out[i] = safety.Message{
			Text:       m.Text,
			Sender:     m.Sender,
			Timestamp:  m.Timestamp,
			IsFromUser: user != "" && strings.EqualFold(strings.TrimSpace(m.Sender), user),
		}
	}
	return out
}
