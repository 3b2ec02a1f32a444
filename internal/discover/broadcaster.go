package discover

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/onnwee/eventchat/internal/geo"
	"github.com/onnwee/eventchat/internal/ranking"
)

// MessageTypeRecommendations tags a FeedMessage carrying a fresh feed.
const MessageTypeRecommendations = "recommendations"

// writeTimeout bounds a single WebSocket write.
const writeTimeout = 10 * time.Second

// FeedMessage is pushed to feed subscribers.
type FeedMessage struct {
	Type        string    `json:"type"`
	Events      []Result  `json:"events"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Recommender is the part of Service the broadcaster needs.
type Recommender interface {
	Recommend(ctx context.Context, userID string, coord *geo.Coordinate) ([]ranking.Scored, error)
}

// feedConn is one subscribed connection. Writes are serialised by mu.
type feedConn struct {
	conn   *websocket.Conn
	userID string
	coord  *geo.Coordinate
	limit  int

	mu sync.Mutex
}

// Broadcaster manages feed WebSocket connections and pushes re-ranked
// recommendations to them whenever the event corpus changes.
type Broadcaster struct {
	recommender Recommender
	metrics     *Metrics
	logger      *slog.Logger

	mu          sync.RWMutex
	connections map[string]map[*websocket.Conn]*feedConn // userID -> connections
}

// NewBroadcaster creates a Broadcaster. metrics may be nil.
func NewBroadcaster(recommender Recommender, metrics *Metrics, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		recommender: recommender,
		metrics:     metrics,
		logger:      logger,
		connections: make(map[string]map[*websocket.Conn]*feedConn),
	}
}

// Subscribe registers conn for userID and sends it the current feed.
func (b *Broadcaster) Subscribe(ctx context.Context, userID string, conn *websocket.Conn, coord *geo.Coordinate, limit int) {
	fc := &feedConn{conn: conn, userID: userID, coord: coord, limit: limit}

	b.mu.Lock()
	if b.connections[userID] == nil {
		b.connections[userID] = make(map[*websocket.Conn]*feedConn)
	}
	b.connections[userID][conn] = fc
	b.mu.Unlock()

	b.metrics.IncFeedConnections()
	b.push(ctx, fc)
}

// Unsubscribe removes conn.
func (b *Broadcaster) Unsubscribe(conn *websocket.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for userID, conns := range b.connections {
		if _, ok := conns[conn]; !ok {
			continue
		}
		delete(conns, conn)
		b.metrics.DecFeedConnections()
		if len(conns) == 0 {
			delete(b.connections, userID)
		}
	}
}

// ConnectionCount returns the number of open connections for userID.
func (b *Broadcaster) ConnectionCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.connections[userID])
}

// Run pushes a fresh feed to every connection each time changes fires.
// It returns when ctx ends or changes closes.
func (b *Broadcaster) Run(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			b.Refresh(ctx)
		}
	}
}

// Refresh pushes a fresh feed to every connection.
func (b *Broadcaster) Refresh(ctx context.Context) {
	b.mu.RLock()
	var conns []*feedConn
	for _, byConn := range b.connections {
		for _, fc := range byConn {
			conns = append(conns, fc)
		}
	}
	b.mu.RUnlock()

	for _, fc := range conns {
		if ctx.Err() != nil {
			return
		}
		b.push(ctx, fc)
	}
}

func (b *Broadcaster) push(ctx context.Context, fc *feedConn) {
	scored, err := b.recommender.Recommend(ctx, fc.userID, fc.coord)
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to rank feed", "user_id", fc.userID, "error", err)
		b.metrics.IncFeedPushes("error")
		return
	}

	data, err := json.Marshal(FeedMessage{
		Type:        MessageTypeRecommendations,
		Events:      Page(scored, fc.coord, fc.limit),
		GeneratedAt: time.Now().UTC(),
	})
	if err != nil {
		b.logger.ErrorContext(ctx, "failed to marshal feed message", "error", err)
		b.metrics.IncFeedPushes("error")
		return
	}

	fc.mu.Lock()
	defer fc.mu.Unlock()

	_ = fc.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := fc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// Connection is cleaned up when the reader sees the disconnect.
		b.logger.WarnContext(ctx, "failed to send feed to websocket client",
			"error", err,
			"user_id", fc.userID,
		)
		b.metrics.IncFeedPushes("error")
		return
	}
	b.metrics.IncFeedPushes("ok")
}
