package dialogue

import (
	"strings"
	"unicode"
)

// Event is something the host hands to the controller.
type Event interface {
	event()
}

// Start opens the conversation. Flow "onboarding" starts the profile setup;
// anything else lands on the main menu.
type Start struct {
	Flow string
}

// Text is free text typed by the client.
type Text struct {
	Body string
}

// Button is a quick reply. Trigger names the button, Value carries the
// discrete choice it stands for (an entity type, a case id, ...). Label is
// what the client saw on the button, if the host knows it.
type Button struct {
	Trigger string
	Value   string
	Label   string
}

// Display is the text logged for the button press.
func (b Button) Display() string {
	for _, s := range []string{b.Label, b.Value, b.Trigger} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// UploadComplete is sent by the host once the external upload UI reports
// that the document was stored.
type UploadComplete struct{}

func (Start) event()          {}
func (Text) event()           {}
func (Button) event()         {}
func (UploadComplete) event() {}

// NormalizeTrigger lower-cases a trigger and strips everything that is not
// a letter, digit or space, so "📄 Upload Document" becomes "upload document".
func NormalizeTrigger(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '-' || r == '_':
			space = true
		}
	}
	return b.String()
}
