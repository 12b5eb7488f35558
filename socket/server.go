package socket

import (
	"context"
	"net/http"

	socketio "github.com/googollee/go-socket.io"
	"go.uber.org/zap"

	"synapse_server/models"
	"synapse_server/services"
)

// Hub is the realtime notification channel. Clients subscribe with their
// user ID and receive match lifecycle events in-app, alongside the email
// channel. Implements services.Notifier.
type Hub struct {
	server *socketio.Server
	logger *zap.Logger
}

// NewHub initializes the Socket.IO server and its event handlers.
func NewHub(logger *zap.Logger) *Hub {
	server := socketio.NewServer(nil)
	h := &Hub{server: server, logger: logger}

	server.OnConnect("/", func(c socketio.Conn) error {
		logger.Debug("socket connected", zap.String("socketId", c.ID()))
		return nil
	})

	server.OnEvent("/", "subscribe", func(c socketio.Conn, userID string) {
		if userID == "" {
			logger.Warn("subscribe without user id", zap.String("socketId", c.ID()))
			return
		}
		c.Join(userRoom(userID))
		logger.Debug("socket subscribed",
			zap.String("socketId", c.ID()), zap.String("userId", userID))
	})

	server.OnError("/", func(c socketio.Conn, err error) {
		logger.Warn("socket error", zap.Error(err))
	})

	server.OnDisconnect("/", func(c socketio.Conn, reason string) {
		logger.Debug("socket disconnected",
			zap.String("socketId", c.ID()), zap.String("reason", reason))
	})

	return h
}

// Run serves socket connections until Close.
func (h *Hub) Run() error {
	return h.server.Serve()
}

func (h *Hub) Close() error {
	return h.server.Close()
}

// Handler mounts the hub on an HTTP router under /socket.io/.
func (h *Hub) Handler() http.Handler {
	return h.server
}

// SendMatchNotification broadcasts the pending match to the matched user's
// room. Always succeeds: an offline user simply misses the broadcast, the
// email channel covers them.
func (h *Hub) SendMatchNotification(_ context.Context, match *models.Match) services.NotificationResult {
	h.server.BroadcastToRoom("/", userRoom(match.MatchedUserID), "matchNotified", matchPayload(match))
	return services.NotificationResult{Success: true}
}

// SendConnectionEmail broadcasts the acceptance to the matched user's room.
func (h *Hub) SendConnectionEmail(_ context.Context, match *models.Match) services.NotificationResult {
	h.server.BroadcastToRoom("/", userRoom(match.MatchedUserID), "matchAccepted", matchPayload(match))
	return services.NotificationResult{Success: true}
}

func userRoom(userID string) string {
	return "user:" + userID
}

func matchPayload(match *models.Match) map[string]interface{} {
	return map[string]interface{}{
		"matchId":   match.ID,
		"requestId": match.RequestID,
		"status":    match.Status,
		"score":     match.Score,
		"expiresAt": match.ExpiresAt,
	}
}
