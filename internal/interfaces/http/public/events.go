package public

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sngm3741/cafe-club/api/internal/interfaces/http/common"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

const (
	eventBuffer    = 16
	eventWriteWait = 10 * time.Second
	eventPongWait  = 60 * time.Second
	eventPingEvery = eventPongWait * 9 / 10
)

// authEventsHandler streams the session's auth state over a websocket. The
// first message is the current state; later ones follow sign-in and sign-out
// in order. A client that falls behind is disconnected.
func (h *Handler) authEventsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
		if sessionID == "" || h.sessions == nil {
			common.WriteError(h.logger, w, http.StatusBadRequest, "session is required")
			return
		}
		sess := h.sessions.Get(sessionID)

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn("auth events upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		h.subscribers.AuthSubscriberOpened()
		defer h.subscribers.AuthSubscriberClosed()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		events := make(chan *domain.User, eventBuffer)
		unsubscribe := sess.OnAuthStateChange(ctx, func(user *domain.User) {
			select {
			case events <- user:
			default:
				cancel()
			}
		})
		defer unsubscribe()

		go h.drainClient(conn, cancel)

		ticker := time.NewTicker(eventPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(eventWriteWait))
				return
			case user := <-events:
				_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
				if err := conn.WriteJSON(authEventResponse{User: toUserResponse(user)}); err != nil {
					h.logger.Debug("auth event write failed", zap.String("session", sessionID), zap.Error(err))
					return
				}
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}
}

// drainClient reads until the peer goes away so control frames are handled.
func (h *Handler) drainClient(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(eventPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
