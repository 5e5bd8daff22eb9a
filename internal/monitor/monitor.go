// Package monitor streams frames and controller state to websocket clients.
// It plugs into the pipeline as one more strip driver, so the daemon tees
// the composited output to hardware and browser simultaneously.
package monitor

import (
	"encoding/base64"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/example/underglow/internal/color"
	"github.com/example/underglow/internal/underglow"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type frameMsg struct {
	Type    string `json:"type"`
	FrameID uint64 `json:"frameId"`
	Pixels  int    `json:"pixels"`
	RGB     string `json:"rgb"` // base64 packed RGB bytes
}

type stateMsg struct {
	Type  string             `json:"type"`
	State underglow.Snapshot `json:"state"`
}

// Monitor fans frames out to connected websocket clients, throttled so a
// browser never sees more than ~20 frames a second regardless of tick rate.
type Monitor struct {
	log      zerolog.Logger
	snapshot func() underglow.Snapshot
	limiter  *rate.Limiter

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	frameID uint64
	rgb     []byte
}

func New(snapshot func() underglow.Snapshot, log zerolog.Logger) *Monitor {
	return &Monitor{
		log:      log,
		snapshot: snapshot,
		limiter:  rate.NewLimiter(rate.Every(50*time.Millisecond), 1),
		clients:  map[*websocket.Conn]bool{},
	}
}

// Write implements strip.Driver; each accepted frame is broadcast as JSON.
func (m *Monitor) Write(buf []color.RGB) error {
	if !m.limiter.Allow() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.clients) == 0 {
		return nil
	}

	if cap(m.rgb) < len(buf)*3 {
		m.rgb = make([]byte, len(buf)*3)
	}
	m.rgb = m.rgb[:len(buf)*3]
	for i, px := range buf {
		m.rgb[i*3+0] = px.R
		m.rgb[i*3+1] = px.G
		m.rgb[i*3+2] = px.B
	}
	m.frameID++

	msg := frameMsg{
		Type:    "frame",
		FrameID: m.frameID,
		Pixels:  len(buf),
		RGB:     base64.StdEncoding.EncodeToString(m.rgb),
	}
	for c := range m.clients {
		if err := c.WriteJSON(msg); err != nil {
			c.Close()
			delete(m.clients, c)
		}
	}
	return nil
}

// BroadcastState pushes a state snapshot to every client; the daemon calls
// it after each command.
func (m *Monitor) BroadcastState() {
	msg := stateMsg{Type: "state", State: m.snapshot()}
	m.mu.Lock()
	defer m.mu.Unlock()
	for c := range m.clients {
		if err := c.WriteJSON(msg); err != nil {
			c.Close()
			delete(m.clients, c)
		}
	}
}

// ServeHTTP upgrades the connection and registers the client.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	m.mu.Lock()
	m.clients[conn] = true
	m.mu.Unlock()
	m.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("monitor client connected")

	// greet with the current state
	if err := conn.WriteJSON(stateMsg{Type: "state", State: m.snapshot()}); err != nil {
		m.drop(conn)
		return
	}

	// clients only listen; the read loop just detects disconnects
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				m.drop(conn)
				return
			}
		}
	}()
}

func (m *Monitor) drop(conn *websocket.Conn) {
	m.mu.Lock()
	if m.clients[conn] {
		conn.Close()
		delete(m.clients, conn)
	}
	m.mu.Unlock()
}
