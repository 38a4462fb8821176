package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/docpolish/docpolish/internal/document"
	"github.com/docpolish/docpolish/internal/events"
)

const (
	wsWriteWait      = 10 * time.Second
	wsSendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the REST API is already open to any origin, the push channel follows
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsFrame is the envelope written to connected clients.
type wsFrame struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	EventID string `json:"event_id,omitempty"`
	document.Event
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans lifecycle events out to every connected websocket. Slow consumers
// are disconnected rather than allowed to stall the broadcast; they recover by
// reconnecting and re-fetching the document list.
type Hub struct {
	logger *log.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.New(log.Writer(), "[WS] ", log.LstdFlags)
	}
	return &Hub{
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Broadcast pushes one lifecycle envelope to all connected clients. It is
// registered as a bus subscriber; non-lifecycle event types are ignored.
func (h *Hub) Broadcast(env events.Envelope) {
	if env.EventType != events.EventTypeDocumentUpdate {
		return
	}
	var ev document.Event
	if err := json.Unmarshal(env.Data, &ev); err != nil {
		h.logger.Printf("warn: drop malformed lifecycle event %s: %v", env.EventID, err)
		return
	}
	payload, err := json.Marshal(wsFrame{
		Type:    "document_update",
		EventID: env.EventID,
		Event:   ev,
	})
	if err != nil {
		h.logger.Printf("warn: encode frame for %s: %v", ev.DocumentID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		select {
		case cl.send <- payload:
		default:
			h.logger.Printf("client %s too slow, dropping connection", cl.conn.RemoteAddr())
			delete(h.clients, cl)
			close(cl.send)
		}
	}
}

// Close disconnects all clients. Used during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
}

func (h *Hub) register(cl *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[cl] = struct{}{}
	return true
}

func (h *Hub) unregister(cl *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
	}
}

// serveWS upgrades the connection, acknowledges it, and streams lifecycle
// frames until the peer disconnects.
func (s *Server) serveWS(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	cl := &wsClient{conn: conn, send: make(chan []byte, wsSendBufferSize)}
	if !s.hub.register(cl) {
		conn.Close()
		return nil
	}
	s.logger.Printf("websocket client connected: %s", conn.RemoteAddr())

	ack, _ := json.Marshal(wsFrame{Type: "connected", Message: "Connected to document update stream"})
	cl.send <- ack

	go cl.writePump()
	cl.readPump(s.hub, s.logger)
	return nil
}

// writePump serialises all writes for one connection. It exits when the send
// channel is closed by the hub.
func (cl *wsClient) writePump() {
	defer cl.conn.Close()
	for payload := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	cl.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}

// readPump discards inbound messages; its job is detecting disconnects.
func (cl *wsClient) readPump(hub *Hub, logger *log.Logger) {
	defer hub.unregister(cl)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Printf("websocket client %s read error: %v", cl.conn.RemoteAddr(), err)
			}
			return
		}
	}
}
