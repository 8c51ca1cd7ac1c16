package assistant

import (
	"sync"
	"time"

	"github.com/ashureev/deskmate/internal/dialogue"
	"github.com/ashureev/deskmate/internal/domain"
)

// Frame types pushed to the widget.
const (
	FrameMessage   = "message"
	FrameView      = "view"
	FrameComposing = "composing"
	FrameDirective = "directive"
	FrameClosed    = "closed"
)

// Directive actions the widget must perform.
const (
	ActionOpenUpload     = "open_upload"
	ActionOpenCalendar   = "open_calendar"
	ActionRefreshProfile = "refresh_profile"
)

// Frame is one JSON message on the push stream.
type Frame struct {
	Type      string       `json:"type"`
	Message   *MessageView `json:"message,omitempty"`
	View      *SessionView `json:"view,omitempty"`
	Composing *bool        `json:"composing,omitempty"`
	Directive *Directive   `json:"directive,omitempty"`
}

// Directive asks the host UI to do something outside the chat.
type Directive struct {
	Action     string         `json:"action"`
	CaseID     string         `json:"case_id,omitempty"`
	CategoryID string         `json:"category_id,omitempty"`
	URL        string         `json:"url,omitempty"`
	Profile    *domain.Client `json:"profile,omitempty"`
}

// MessageView is the wire form of a logged message.
type MessageView struct {
	Seq       int64            `json:"seq"`
	Sender    dialogue.Sender  `json:"sender"`
	Content   dialogue.Content `json:"content"`
	State     string           `json:"state"`
	CreatedAt time.Time        `json:"created_at"`
}

func messageView(m dialogue.Message) *MessageView {
	return &MessageView{
		Seq:       m.Seq,
		Sender:    m.Sender,
		Content:   m.Content,
		State:     m.OriginTag(),
		CreatedAt: m.CreatedAt,
	}
}

const subscriberBuffer = 64

// stream fans frames out to the session's connected sockets. A subscriber
// that falls behind is dropped; the widget reconnects and replays from its
// last seen sequence number.
type stream struct {
	mu     sync.Mutex
	subs   map[int]chan Frame
	nextID int
	closed bool
}

func newStream() *stream {
	return &stream{subs: make(map[int]chan Frame)}
}

// subscribe registers a receiver. The returned channel is closed when the
// subscriber is dropped or the stream closes.
func (s *stream) subscribe() (int, <-chan Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, nil, false
	}
	s.nextID++
	ch := make(chan Frame, subscriberBuffer)
	s.subs[s.nextID] = ch
	return s.nextID, ch, true
}

func (s *stream) unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// connected reports whether any socket is listening.
func (s *stream) connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs) > 0
}

// broadcast never blocks.
func (s *stream) broadcast(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subs {
		select {
		case ch <- f:
		default:
			delete(s.subs, id)
			close(ch)
		}
	}
}

func (s *stream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		select {
		case ch <- Frame{Type: FrameClosed}:
		default:
		}
		delete(s.subs, id)
		close(ch)
	}
}
