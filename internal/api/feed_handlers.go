package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/eventchat/internal/discover"
	"github.com/onnwee/eventchat/internal/middleware"
)

// Feed connection keepalive.
const (
	feedPongWait   = 60 * time.Second
	feedPingPeriod = feedPongWait * 9 / 10
)

// FeedHandlers upgrades feed subscriptions to WebSocket connections.
type FeedHandlers struct {
	broadcaster *discover.Broadcaster
	upgrader    websocket.Upgrader
}

// NewFeedHandlers creates feed handlers. Browser origins are checked
// against allowedOrigins; with none configured, only same-origin and
// non-browser clients may connect.
func NewFeedHandlers(broadcaster *discover.Broadcaster, allowedOrigins []string) *FeedHandlers {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &FeedHandlers{
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed[origin] {
					return true
				}
				return sameOrigin(r, origin)
			},
		},
	}
}

func sameOrigin(r *http.Request, origin string) bool {
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// Subscribe handles GET /events/feed - streams the authenticated user's
// recommended feed, re-ranked whenever events change.
func (h *FeedHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		WriteError(w, ctx, http.StatusUnauthorized, ErrCodeAuthFailed, "Authentication required")
		return
	}

	params, err := parseDiscoverParams(r.URL.Query())
	if err != nil {
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeValidation, validationMessage(err))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.WarnContext(ctx, "failed to upgrade websocket connection", "error", err)
		return
	}

	requestID := middleware.GetRequestID(ctx)
	h.broadcaster.Subscribe(ctx, userID, conn, params.coord, params.limit)
	slog.InfoContext(ctx, "feed client subscribed", "user_id", userID, "request_id", requestID)

	done := make(chan struct{})
	defer func() {
		close(done)
		h.broadcaster.Unsubscribe(conn)
		_ = conn.Close()
		slog.InfoContext(ctx, "feed client unsubscribed", "user_id", userID, "request_id", requestID)
	}()

	go h.keepalive(conn, done)

	// Clients don't send messages; reading detects disconnects and
	// processes pongs.
	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.WarnContext(ctx, "feed connection closed unexpectedly", "error", err, "user_id", userID)
			}
			return
		}
	}
}

// keepalive pings the client until done closes.
func (h *FeedHandlers) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}
}
