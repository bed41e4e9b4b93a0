package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"nguctl/internal/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     originAllowed,
}

// request is a control message sent by a WebSocket client.
type request struct {
	ID     string          `json:"id"`
	Action string          `json:"action"`
	Params json.RawMessage `json:"params,omitempty"`
}

// event is pushed to every client for each frame written to the pipe.
type event struct {
	Type    string `json:"type"`
	Op      string `json:"op"`
	Command string `json:"command"`
	Time    int64  `json:"time"`
}

// hub tracks WebSocket clients and fans out command events
type hub struct {
	server  *Server
	mu      sync.Mutex
	clients map[*wsClient]bool
}

type wsClient struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
	ip   string
}

func newHub(s *Server) *hub {
	return &hub{
		server:  s,
		clients: make(map[*wsClient]bool),
	}
}

// publishCommand runs under the channel lock and must never block.
func (h *hub) publishCommand(cmd protocol.Command) {
	data, err := json.Marshal(event{
		Type:    "command",
		Op:      cmd.Op.String(),
		Command: cmd.String(),
		Time:    time.Now().UnixMilli(),
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.server.log.Warnf("WS: Dropping slow client %s", c.ip)
			h.removeLocked(c)
		}
	}
}

// deliver queues data for c unless c is already gone.
func (h *hub) deliver(c *wsClient, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		h.removeLocked(c)
	}
}

func (h *hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *hub) removeLocked(c *wsClient) {
	if h.clients[c] {
		delete(h.clients, c)
		close(c.send)
		h.server.log.Debugf("WS: Client %s left, %d remaining", c.ip, len(h.clients))
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
}

func (h *hub) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.server.log.WithError(err).Warn("WS: Upgrade failed")
		return
	}

	c := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
		ip:   r.RemoteAddr,
	}
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.server.log.Infof("WS: Client connected from %s, %d total", c.ip, n)

	go c.writePump()
	go c.readPump()
}

// readPump handles requests in arrival order, so one client's actions reach
// the pipe in the order they were sent.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxBodyBytes)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.server.log.WithError(err).Warn("WS: Read error")
			}
			return
		}
		c.hub.deliver(c, c.handleMessage(message))
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) handleMessage(data []byte) []byte {
	var req request
	resp := response{}
	if err := json.Unmarshal(data, &req); err != nil {
		resp.Error = "invalid message: " + err.Error()
		return mustMarshal(resp)
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	resp.ID = req.ID

	act, ok := c.hub.server.actions[req.Action]
	if !ok {
		resp.Error = "unknown action " + req.Action
		return mustMarshal(resp)
	}

	result, err := act(req.Params)
	if err != nil {
		c.hub.server.log.WithError(err).WithField("op", req.ID).Warnf("WS: %s failed", req.Action)
		resp.Error = err.Error()
		return mustMarshal(resp)
	}
	resp.OK = true
	resp.Result = result
	return mustMarshal(resp)
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
