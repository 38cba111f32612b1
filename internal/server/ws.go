package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/ayusman/tinsel/internal/control"
	"github.com/ayusman/tinsel/internal/scene"
	"github.com/ayusman/tinsel/internal/spatial"
	"github.com/ayusman/tinsel/internal/telemetry"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Controller is the part of a session scene clients drive.
type Controller interface {
	State() *control.State
	SetMode(mode control.Mode) error
	Click(x, y float64) (string, bool)
	Drag(dx float64)
	SetDispersion(v float64)
	SetCamera(cam spatial.Camera)
}

// SceneHub broadcasts rendered frames to websocket clients. It implements
// scene.Renderer, so Render is called from the render tick and never blocks:
// a client whose buffer is full misses frames until it catches up.
type SceneHub struct {
	metrics *telemetry.Metrics

	mu      sync.Mutex
	clients map[*sceneClient]struct{}
}

// NewSceneHub creates an empty hub.
func NewSceneHub(metrics *telemetry.Metrics) *SceneHub {
	return &SceneHub{
		metrics: metrics,
		clients: make(map[*sceneClient]struct{}),
	}
}

// ClientCount returns the number of connected clients.
func (h *SceneHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Render sends frame to every client.
func (h *SceneHub) Render(frame scene.Frame) {
	if h.ClientCount() == 0 {
		return
	}

	data, err := json.Marshal(serverMessage{Type: "frame", Frame: &frame})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode scene frame")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			c.dropped++
			if c.dropped%100 == 1 {
				log.Debug().Str("remote", c.remote).Int("dropped", c.dropped).Msg("scene client falling behind")
			}
		}
	}
}

func (h *SceneHub) add(c *sceneClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SceneClients(context.Background(), 1)
	log.Info().Str("remote", c.remote).Int("clients", count).Msg("scene client connected")
}

func (h *SceneHub) remove(c *sceneClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SceneClients(context.Background(), -1)
	log.Info().Str("remote", c.remote).Int("clients", count).Msg("scene client disconnected")
}

// clientMessage is a pointer or camera update from the browser.
type clientMessage struct {
	Type string `json:"type"`

	// click
	X float64 `json:"x"`
	Y float64 `json:"y"`
	// drag
	DX float64 `json:"dx"`
	// dispersion
	Value float64 `json:"value"`
	// mode
	Mode string `json:"mode"`
	// camera
	Position *[3]float64 `json:"position"`
	Rotation *[4]float64 `json:"rotation"` // x, y, z, w
	FovY     float64     `json:"fovY"`
	Aspect   float64     `json:"aspect"`
}

type serverMessage struct {
	Type      string       `json:"type"`
	Frame     *scene.Frame `json:"frame,omitempty"`
	FocusedID *string      `json:"focusedId,omitempty"`
	Mode      string       `json:"mode,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// SceneHandler upgrades /api/scene connections and feeds client input to a
// Controller.
type SceneHandler struct {
	hub     *SceneHub
	session Controller
}

// NewSceneHandler creates a SceneHandler.
func NewSceneHandler(hub *SceneHub, session Controller) *SceneHandler {
	return &SceneHandler{hub: hub, session: session}
}

type sceneClient struct {
	conn    *websocket.Conn
	send    chan []byte
	remote  string
	dropped int // guarded by SceneHub.mu
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *SceneHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade error")
		return
	}

	c := &sceneClient{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		remote: r.RemoteAddr,
	}
	h.hub.add(c)

	go c.writePump()
	h.readPump(c)
}

// readPump applies client messages until the connection closes.
func (h *SceneHandler) readPump(c *sceneClient) {
	defer func() {
		h.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("remote", c.remote).Msg("scene read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if reply := h.apply(msg); reply != nil {
			data, err := json.Marshal(reply)
			if err != nil {
				continue
			}
			h.hub.mu.Lock()
			if _, ok := h.hub.clients[c]; ok {
				select {
				case c.send <- data:
				default:
				}
			}
			h.hub.mu.Unlock()
		}
	}
}

// apply performs one client message and returns the reply, if any.
func (h *SceneHandler) apply(msg clientMessage) *serverMessage {
	switch msg.Type {
	case "click":
		id, ok := h.session.Click(msg.X, msg.Y)
		if !ok {
			return nil
		}
		return &serverMessage{Type: "focus", FocusedID: &id}
	case "drag":
		h.session.Drag(msg.DX)
	case "dispersion":
		h.session.SetDispersion(msg.Value)
	case "camera":
		h.session.SetCamera(cameraFrom(msg))
	case "mode":
		mode, err := control.ParseMode(msg.Mode)
		if err != nil {
			return &serverMessage{Type: "error", Error: err.Error()}
		}
		if err := h.session.SetMode(mode); err != nil {
			return &serverMessage{Type: "error", Error: err.Error(), Mode: h.session.State().Mode().String()}
		}
		return &serverMessage{Type: "mode", Mode: mode.String()}
	default:
		return &serverMessage{Type: "error", Error: "unknown message type " + msg.Type}
	}
	return nil
}

func cameraFrom(msg clientMessage) spatial.Camera {
	cam := spatial.DefaultCamera()
	if msg.Position != nil {
		cam.Position = mgl64.Vec3(*msg.Position)
	}
	if msg.Rotation != nil {
		r := *msg.Rotation
		cam.Rotation = mgl64.Quat{W: r[3], V: mgl64.Vec3{r[0], r[1], r[2]}}.Normalize()
	}
	if msg.FovY > 0 {
		cam.FovY = msg.FovY
	}
	if msg.Aspect > 0 {
		cam.Aspect = msg.Aspect
	}
	return cam
}

// writePump is the only writer to the connection.
func (c *sceneClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
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
