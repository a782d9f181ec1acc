package screen

import (
	"encoding/json"
	log "log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

// Hub fans events out to every connected page and feeds their commands to
// the handler. A client whose buffer is full misses events instead of
// stalling the others.
type Hub struct {
	handle   func(Command) Reply
	upgrader ws.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	id   string
	conn *ws.Conn
	send chan []byte
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

func NewHub() *Hub {
	return &Hub{
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[*client]struct{}),
	}
}

// SetHandler wires the command handler. It must be called before serving.
func (h *Hub) SetHandler(handle func(Command) Reply) {
	h.handle = handle
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Publish(ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Error("encode event", "type", ev.Type, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.offer(c, msg, ev.Type)
	}
}

func (h *Hub) offer(c *client, msg []byte, kind string) {
	select {
	case c.send <- msg:
	default:
		if kind != "frame" {
			log.Debug("client too slow, dropping event", "client", c.id, "type", kind)
		}
	}
}

func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	log.Info("screen connected", "client", c.id, "remote", r.RemoteAddr)

	go h.writePump(c)

	if h.handle != nil {
		h.reply(c, h.handle(Command{Cmd: "status"}))
	}
	h.readPump(c)
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		c.close()
		log.Info("screen disconnected", "client", c.id)
	}()

	c.conn.SetReadLimit(64 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if !isClosed(err) {
				log.Debug("websocket read failed", "client", c.id, "err", err)
			}
			return
		}

		var cmd Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			h.sendTo(c, Event{Type: "error", Error: "malformed command"})
			continue
		}
		if h.handle == nil {
			continue
		}
		h.reply(c, h.handle(cmd))
	}
}

// reply answers the sender only; state changes reach everyone as events.
func (h *Hub) reply(c *client, r Reply) {
	if !r.OK {
		h.sendTo(c, Event{Type: "error", View: r.View, Error: r.Error})
		return
	}
	h.sendTo(c, Event{Type: "view", View: r.View, Quick: r.Quick})
	if r.Snapshot != nil {
		h.sendTo(c, Event{Type: "snapshot", Snapshot: r.Snapshot})
	}
}

func (h *Hub) sendTo(c *client, ev Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		log.Error("encode event", "type", ev.Type, "err", err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.offer(c, msg, ev.Type)
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(ws.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(ws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

func isClosed(err error) bool {
	return ws.IsCloseError(err,
		ws.CloseNormalClosure,
		ws.CloseGoingAway,
		ws.CloseAbnormalClosure)
}
