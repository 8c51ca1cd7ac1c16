package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

func parseSeq(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// HandleStream handles GET /api/assistant/sessions/{sessionID}/ws. The widget
// passes last_seq when reconnecting; messages after it are replayed before
// live frames.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	lastSeq := parseSeq(r.URL.Query().Get("last_seq"))

	patterns := h.originPatterns
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: patterns})
	if err != nil {
		h.logger.Warn("websocket accept failed", "session_id", s.ID, "error", err)
		return
	}
	defer ws.CloseNow()

	// Subscribe before taking the snapshot so nothing falls between the two;
	// duplicates are filtered by sequence number below.
	subID, frames, ok := s.stream.subscribe()
	if !ok {
		_ = ws.Close(websocket.StatusNormalClosure, "session closed")
		return
	}
	defer s.stream.unsubscribe(subID)

	ctx := ws.CloseRead(r.Context())
	h.logger.Info("Assistant stream connected", "session_id", s.ID, "last_seq", lastSeq)

	snap := s.Snapshot()
	for _, m := range snap.Messages {
		if m.Seq <= lastSeq {
			continue
		}
		if err := writeFrame(ctx, ws, Frame{Type: FrameMessage, Message: messageView(m)}); err != nil {
			return
		}
		lastSeq = m.Seq
	}
	if err := writeFrame(ctx, ws, Frame{Type: FrameView, View: sessionView(s.ID, snap, -1)}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Assistant stream disconnected", "session_id", s.ID)
			return
		case <-ping.C:
			pingCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := ws.Ping(pingCtx)
			cancel()
			if err != nil {
				h.logger.Debug("websocket ping failed", "session_id", s.ID, "error", err)
				return
			}
		case f, open := <-frames:
			if !open {
				// Dropped for falling behind; the widget reconnects with last_seq.
				_ = ws.Close(websocket.StatusTryAgainLater, "stream lagging")
				return
			}
			if f.Type == FrameClosed {
				_ = writeFrame(ctx, ws, f)
				_ = ws.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			if f.Type == FrameMessage {
				if f.Message.Seq <= lastSeq {
					continue
				}
				lastSeq = f.Message.Seq
			}
			if err := writeFrame(ctx, ws, f); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.logger.Debug("websocket write failed", "session_id", s.ID, "error", err)
				}
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, ws *websocket.Conn, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
