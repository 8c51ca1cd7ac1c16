// Package assistant hosts dialogue sessions for the client widget over HTTP
// and WebSocket.
package assistant

import (
	"github.com/ashureev/deskmate/internal/dialogue"
)

// OpenRequest starts a session. Flow is "" or "onboarding".
type OpenRequest struct {
	Flow string `json:"flow"`
}

// TextRequest carries free text typed by the client.
type TextRequest struct {
	Text string `json:"text"`
}

// ActionRequest is a quick-reply press.
type ActionRequest struct {
	Trigger string `json:"trigger"`
	Value   string `json:"value,omitempty"`
	Label   string `json:"label,omitempty"`
}

// SessionView is the wire form of a session snapshot.
type SessionView struct {
	SessionID   string                `json:"session_id"`
	State       string                `json:"state"`
	InputActive bool                  `json:"input_active"`
	Composing   bool                  `json:"composing"`
	Buttons     []dialogue.QuickReply `json:"buttons"`
	Data        dialogue.SessionData  `json:"data,omitempty"`
	Messages    []*MessageView        `json:"messages,omitempty"`
}

var knownFlows = map[string]bool{
	"":           true,
	"onboarding": true,
}

// sessionView converts a controller snapshot. Messages with a sequence
// number at or below since are left out; since < 0 omits messages entirely.
func sessionView(id string, v dialogue.View, since int64) *SessionView {
	out := &SessionView{
		SessionID:   id,
		InputActive: v.InputActive,
		Composing:   v.Composing,
		Buttons:     v.Buttons,
		Data:        v.Data,
	}
	if v.State != nil {
		out.State = v.State.Tag()
	}
	if out.Buttons == nil {
		out.Buttons = []dialogue.QuickReply{}
	}
	if since < 0 {
		return out
	}
	for _, m := range v.Messages {
		if m.Seq > since {
			out.Messages = append(out.Messages, messageView(m))
		}
	}
	return out
}
