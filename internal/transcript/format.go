package transcript

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// maxSenderLen bounds the "Name:" prefix of a manual line. Longer prefixes are
// treated as ordinary sentences that happen to contain a colon.
const maxSenderLen = 50

// Shape checks run in order; the first match wins. iMessage and WhatsApp headers
// also look like "Name: message" lines, so the manual heuristic runs last.
var (
	iMessageShape = regexp.MustCompile(`\[\d{1,2}/\d{1,2}/\d{2,4}, \d{1,2}:\d{2}:\d{2}\]`)
	whatsAppShape = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}, \d{1,2}:\d{2}\s*-\s*[^:]+:`)
	telegramShape = regexp.MustCompile(`\[\d{2}:\d{2}, \d{2}\.\d{2}\.\d{4}\]`)
)

// DetectFormat classifies raw transcript text. It never fails; text that
// matches nothing is FormatUnknown.
func DetectFormat(text string) Format {
	switch {
	case iMessageShape.MatchString(text):
		return FormatIMessage
	case whatsAppShape.MatchString(text):
		return FormatWhatsApp
	case telegramShape.MatchString(text):
		return FormatTelegram
	}

	lines := splitLines(text)
	senderShaped := 0
	for _, line := range lines {
		if _, _, ok := splitSenderLine(strings.TrimSpace(line)); ok {
			senderShaped++
		}
	}
	if senderShaped > len(lines)/2 {
		return FormatManual
	}
	return FormatUnknown
}

// splitSenderLine splits a trimmed "Name: message" line on its first colon.
func splitSenderLine(line string) (sender, text string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	sender = strings.TrimSpace(line[:idx])
	text = strings.TrimSpace(line[idx+1:])
	n := utf8.RuneCountInString(sender)
	if n == 0 || n >= maxSenderLen || text == "" {
		return "", "", false
	}
	return sender, text, true
}

// splitLines breaks text on any line terminator and drops empty lines.
// Whitespace-only lines are kept; callers trim.
func splitLines(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case '\n', '\r', '\v', '\f', '\u0085', '\u2028', '\u2029':
			return true
		}
		return false
	})
}
