package adapters

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

const ChannelWeb = "web"

// NormalizeWebMessage converts a raw WebSocket text message into a MessageEnvelope
// for the given identity. Whitespace runs collapse to one space.
func NormalizeWebMessage(identity, sessionID, text, language string) models.MessageEnvelope {
	return models.MessageEnvelope{
		MessageID: uuid.New().String(),
		SessionID: sessionID,
		Channel:   ChannelWeb,
		UserID:    identity,
		Timestamp: time.Now().UTC(),
		Content: models.MessageContent{
			Type: "text",
			Text: strings.Join(strings.Fields(text), " "),
		},
		Metadata: models.MessageMetadata{
			Language:     strings.ToLower(strings.TrimSpace(language)),
			PlatformData: map[string]interface{}{},
		},
	}
}

// NormalizeIdentity reduces an Indian mobile number to its ten digits so the same
// phone maps to one conversation however it was typed. Anything that is not a
// phone number is returned trimmed.
func NormalizeIdentity(raw string) string {
	raw = strings.TrimSpace(raw)
	digits := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsDigit(r):
			return r
		case r == ' ' || r == '-' || r == '+' || r == '(' || r == ')':
			return -1
		}
		return 'x'
	}, raw)
	if digits == "" || strings.ContainsRune(digits, 'x') {
		return raw
	}
	switch {
	case len(digits) == 12 && strings.HasPrefix(digits, "91"):
		digits = digits[2:]
	case len(digits) == 11 && strings.HasPrefix(digits, "0"):
		digits = digits[1:]
	}
	if len(digits) == 10 && strings.ContainsRune("6789", rune(digits[0])) {
		return digits
	}
	return raw
}
