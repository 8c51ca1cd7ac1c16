package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/deskmate/internal/dialogue"
	"github.com/ashureev/deskmate/internal/observability"
	"github.com/ashureev/deskmate/internal/store"
	"github.com/google/uuid"
)

// ErrUnknownFlow is returned when a session is opened with an unsupported flow.
var ErrUnknownFlow = errors.New("unknown flow")

// HubConfig tunes the sessions a Hub creates. Zero Delays make every reply
// immediate.
type HubConfig struct {
	Delays      dialogue.Delays
	Table       *dialogue.Table
	Interceptor *dialogue.Interceptor
	Metrics     dialogue.Metrics
	CallTimeout time.Duration
	IdleTTL     time.Duration
}

// Session is one live conversation with the widget.
type Session struct {
	ID        string
	ClientID  string
	CreatedAt time.Time

	ctrl       *dialogue.Controller
	stream     *stream
	lastActive atomic.Int64
	log        ConversationLogger
}

func (s *Session) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

// LastActive returns the time of the last client request.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Snapshot returns the current controller view.
func (s *Session) Snapshot() dialogue.View {
	return s.ctrl.Snapshot()
}

// Send forwards an event to the session's controller.
func (s *Session) Send(ctx context.Context, ev dialogue.Event) error {
	return s.ctrl.Send(ctx, ev)
}

// listen runs on the controller goroutine and must not block.
func (s *Session) listen(u dialogue.Update) {
	switch u.Kind {
	case dialogue.UpdateMessage:
		s.stream.broadcast(Frame{Type: FrameMessage, Message: messageView(u.Message)})
		direction, eventType := "inbound", "assistant_message"
		if u.Message.Sender == dialogue.SenderUser {
			direction, eventType = "outbound", "user_message"
		}
		s.log.Log(ConversationLogEvent{
			ClientID:   s.ClientID,
			SessionID:  s.ID,
			Channel:    "dialogue",
			Direction:  direction,
			EventType:  eventType,
			State:      u.Message.OriginTag(),
			ContentRaw: messageText(u.Message.Content),
			Meta:       map[string]any{"seq": u.Message.Seq},
		})
	case dialogue.UpdateView:
		s.stream.broadcast(Frame{Type: FrameView, View: sessionView(s.ID, u.View, -1)})
	case dialogue.UpdateComposing:
		composing := u.Composing
		s.stream.broadcast(Frame{Type: FrameComposing, Composing: &composing})
	case dialogue.UpdateState:
		s.log.Log(ConversationLogEvent{
			ClientID:  s.ClientID,
			SessionID: s.ID,
			Channel:   "dialogue",
			Direction: "internal",
			EventType: "state_change",
			State:     u.State.Tag(),
		})
	}
}

func messageText(c dialogue.Content) string {
	if c.Block == nil {
		return c.Text
	}
	text := c.Text
	for _, it := range c.Block.Items {
		text += "\n- " + it.Label
	}
	return text
}

// Hub owns the live sessions. Each session has its own controller; sessions
// idle for longer than the configured TTL are torn down by the sweeper.
type Hub struct {
	repo    store.Repository
	shared  dialogue.Gateways
	cfg     HubConfig
	convLog ConversationLogger
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	draining sync.WaitGroup
}

// NewHub creates a hub. shared carries the gateways common to every session;
// the profile, document and calendar gateways are bound per session.
func NewHub(repo store.Repository, shared dialogue.Gateways, cfg HubConfig, convLog ConversationLogger, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if convLog == nil {
		convLog = noopConversationLogger{}
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	return &Hub{
		repo:     repo,
		shared:   shared,
		cfg:      cfg,
		convLog:  convLog,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Open creates a session for clientID and starts the requested flow.
func (h *Hub) Open(ctx context.Context, clientID, displayName, flow string) (*Session, error) {
	if !knownFlows[flow] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFlow, flow)
	}

	now := h.now()
	s := &Session{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		CreatedAt: now,
		stream:    newStream(),
		log:       h.convLog,
	}
	s.touch(now)

	gw := h.shared
	gw.Profiles = profileGateway{repo: h.repo, session: s}
	gw.Documents = uploadGateway{session: s}
	gw.Calendar = calendarGateway{session: s}

	opts := []dialogue.Option{
		dialogue.WithLogger(h.logger.With("session_id", s.ID)),
		dialogue.WithListener(s.listen),
		dialogue.WithDelays(h.cfg.Delays),
	}
	if h.cfg.Table != nil {
		opts = append(opts, dialogue.WithTable(h.cfg.Table))
	}
	if h.cfg.Interceptor != nil {
		opts = append(opts, dialogue.WithInterceptor(h.cfg.Interceptor))
	}
	if h.cfg.Metrics != nil {
		opts = append(opts, dialogue.WithMetrics(h.cfg.Metrics))
	}
	if h.cfg.CallTimeout > 0 {
		opts = append(opts, dialogue.WithCallTimeout(h.cfg.CallTimeout))
	}
	if displayName != "" {
		opts = append(opts, dialogue.WithSessionData(dialogue.SessionData{dialogue.KeyDisplayName: displayName}))
	}
	s.ctrl = dialogue.New(clientID, gw, opts...)

	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	observability.SessionOpened()
	h.logger.Info("Assistant session opened", "session_id", s.ID, "client_id", clientID, "flow", flow)

	if err := s.Send(ctx, dialogue.Start{Flow: flow}); err != nil {
		h.Close(s.ID)
		return nil, fmt.Errorf("start session: %w", err)
	}
	return s, nil
}

// Get returns the session if it exists and belongs to clientID.
func (h *Hub) Get(sessionID, clientID string) (*Session, bool) {
	h.mu.RLock()
	s, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok || s.ClientID != clientID {
		return nil, false
	}
	s.touch(h.now())
	return s, true
}

// Len returns the number of live sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close tears a session down. It reports whether the session existed.
func (h *Hub) Close(sessionID string) bool {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()
	if !ok {
		return false
	}
	h.teardown(s)
	return true
}

func (h *Hub) teardown(s *Session) {
	s.ctrl.Close()
	s.stream.close()
	observability.SessionClosed()

	h.draining.Add(1)
	go func() {
		defer h.draining.Done()
		s.ctrl.Wait()
	}()
	h.logger.Info("Assistant session closed", "session_id", s.ID, "client_id", s.ClientID)
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were closed.
func (h *Hub) Sweep() int {
	cutoff := h.now().Add(-h.cfg.IdleTTL)

	h.mu.Lock()
	var expired []*Session
	for id, s := range h.sessions {
		if s.LastActive().Before(cutoff) {
			expired = append(expired, s)
			delete(h.sessions, id)
		}
	}
	h.mu.Unlock()

	for _, s := range expired {
		h.teardown(s)
	}
	if len(expired) > 0 {
		h.logger.Info("Idle sweeper closed sessions", "count", len(expired))
	}
	return len(expired)
}

// StartSweeper runs Sweep periodically until ctx is done.
func (h *Hub) StartSweeper(ctx context.Context) {
	interval := h.cfg.IdleTTL / 2
	if interval > time.Minute {
		interval = time.Minute
	}
	if interval <= 0 {
		interval = h.cfg.IdleTTL
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		h.logger.Info("Idle sweeper started", "interval", interval, "ttl", h.cfg.IdleTTL)
		for {
			select {
			case <-ticker.C:
				h.Sweep()
			case <-ctx.Done():
				h.logger.Info("Idle sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Shutdown closes every session and waits for in-flight gateway calls to
// return or ctx to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	all := make([]*Session, 0, len(h.sessions))
	for id, s := range h.sessions {
		all = append(all, s)
		delete(h.sessions, id)
	}
	h.mu.Unlock()

	for _, s := range all {
		h.teardown(s)
	}

	done := make(chan struct{})
	go func() {
		h.draining.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// lastSeq returns the sequence number of the newest logged message.
func (s *Session) lastSeq() int64 {
	msgs := s.ctrl.Snapshot().Messages
	if len(msgs) == 0 {
		return 0
	}
	return msgs[len(msgs)-1].Seq
}
