package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsSendBuffer   = 64
	wsWriteTimeout = 5 * time.Second
)

// Hub pushes published domain events to every connected websocket client.
// It is a messaging.Publisher.
type Hub struct {
	clients map[uuid.UUID]*wsClient

	mu       sync.RWMutex
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

type wsClient struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// NewHub creates an empty hub.
func NewHub(log logrus.FieldLogger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*wsClient),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.WithField("component", "ws"),
	}
}

// Publish sends data as JSON to every client. Clients whose buffer is full
// miss the message.
func (h *Hub) Publish(ctx context.Context, subject string, data interface{}) error {
	msg, err := json.Marshal(data)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.send <- msg:
		case <-client.done:
		default:
			h.log.WithField("client_id", client.id).Warn("websocket client too slow, dropping event")
		}
	}
	return nil
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[uuid.UUID]*wsClient)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) serveWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	client := &wsClient{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[client.id] = client
	h.mu.Unlock()
	h.log.WithField("client_id", client.id).Debug("websocket client connected")

	go h.readPump(client)
	go h.writePump(client)
}

// readPump discards client messages and unregisters the client once the
// connection fails.
func (h *Hub) readPump(client *wsClient) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, client.id)
		h.mu.Unlock()
		client.close()
	}()

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(client *wsClient) {
	for {
		select {
		case msg := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				client.close()
				return
			}
		case <-client.done:
			return
		}
	}
}
