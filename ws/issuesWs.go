package ws

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"civichero-be/notify"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RefetchMessage tells a client its issue list is stale.
type RefetchMessage struct {
	Type    string `json:"type"`
	Cause   string `json:"cause"`
	IssueID string `json:"issueId,omitempty"`
}

// IssueHub fans change-feed events out to connected websocket clients.
type IssueHub struct {
	feed     notify.Feed
	logger   *zap.Logger
	origins  map[string]struct{}
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
}

// NewIssueHub accepts sockets from the API's own origin and from origins.
func NewIssueHub(feed notify.Feed, origins []string, logger *zap.Logger) *IssueHub {
	h := &IssueHub{
		feed:    feed,
		logger:  logger,
		origins: make(map[string]struct{}, len(origins)),
		clients: make(map[*websocket.Conn]struct{}),
	}
	for _, o := range origins {
		h.origins[strings.ToLower(strings.TrimRight(o, "/"))] = struct{}{}
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *IssueHub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	_, ok := h.origins[strings.ToLower(origin)]
	return ok
}

// Run forwards events until ctx is done, then disconnects every client.
func (h *IssueHub) Run(ctx context.Context) error {
	events, err := h.feed.Subscribe(ctx)
	if err != nil {
		return err
	}
	for ev := range events {
		h.broadcast(RefetchMessage{Type: "refetch", Cause: ev.Type, IssueID: ev.IssueID})
	}
	h.closeAll()
	return nil
}

func (h *IssueHub) broadcast(msg RefetchMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("ws write error", zap.Error(err))
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *IssueHub) register(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *IssueHub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}

func (h *IssueHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

// Clients is the number of connected subscribers.
func (h *IssueHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// HandleWebSocket upgrades GET /ws/issues. Clients only listen; anything
// they send is discarded.
func (h *IssueHub) HandleWebSocket(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("ws upgrade error", zap.Error(err))
		return
	}
	h.register(conn)
	go h.readLoop(conn)
}

func (h *IssueHub) readLoop(conn *websocket.Conn) {
	defer h.unregister(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
