// Package progress provides the WebSocket hub that fans task progress out
// to connected browser clients.
package progress

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/kimhsiao/photosync/internal/logging"
	"github.com/kimhsiao/photosync/internal/models"
	"github.com/kimhsiao/photosync/internal/uuid"
)

var subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "photosync_progress_subscribers",
	Help: "Number of connected progress subscribers",
})

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The API is bearer-token guarded; progress events carry no secrets.
		return true
	},
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendBufr = 64
)

// Envelope is the message shape delivered to subscribers. Type and status
// are the lowercase task tokens.
type Envelope struct {
	TaskID   string `json:"taskId"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Total    int    `json:"total"`
	Message  string `json:"message,omitempty"`
}

// Client is one subscriber connection.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	hub  *Hub
}

// Hub maintains subscriber connections and broadcasts task progress to all
// of them. Delivery is best-effort: a subscriber that cannot keep up is
// dropped, and messages are never replayed to late joiners.
type Hub struct {
	clients    map[string]*Client
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *logrus.Entry
}

// NewHub creates a hub and starts its dispatch loop.
func NewHub() *Hub {
	h := &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        logging.WithComponent("progress"),
	}
	go h.run()
	return h
}

// run owns the client map; all membership changes and sends go through it.
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client.id] = client
			subscribersGauge.Set(float64(len(h.clients)))
			h.log.WithField("client", client.id).Debug("subscriber connected")

		case client := <-h.unregister:
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
				subscribersGauge.Set(float64(len(h.clients)))
				h.log.WithField("client", client.id).Debug("subscriber disconnected")
			}

		case message := <-h.broadcast:
			for id, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Send buffer full: drop the subscriber rather than
					// block the dispatch loop.
					delete(h.clients, id)
					close(client.send)
					subscribersGauge.Set(float64(len(h.clients)))
					h.log.WithField("client", id).Warn("subscriber too slow, dropped")
				}
			}

		case <-h.done:
			for id, client := range h.clients {
				delete(h.clients, id)
				close(client.send)
			}
			subscribersGauge.Set(0)
			return
		}
	}
}

// Close stops the dispatch loop and disconnects all subscribers.
func (h *Hub) Close() {
	close(h.done)
}

// NotifyTask publishes the task's current state. It never blocks: when the
// broadcast buffer is full the update is dropped and logged, and the caller
// proceeds.
func (h *Hub) NotifyTask(task *models.Task, message string) {
	env := Envelope{
		TaskID:   task.ID.String(),
		Type:     string(task.Kind),
		Status:   string(task.Status),
		Progress: task.Done(),
		Total:    task.Total,
		Message:  message,
	}
	data, err := json.Marshal(env)
	if err != nil {
		h.log.WithError(err).Error("failed to encode progress envelope")
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.log.WithField("task", env.TaskID).Warn("broadcast buffer full, update dropped")
	}
}

// ServeWS upgrades an HTTP request into a subscriber connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	client := &Client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, clientSendBufr),
		hub:  h,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// writePump forwards hub messages to the connection and keeps it alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pings/pongs and close frames are
// processed; a read error means the subscriber is gone.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
