// ABOUTME: WebSocket mirror engine that broadcasts frames to remote viewers
// ABOUTME: Viewers handshake on /visual and then receive preset, size and frame messages
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/internal/protocol"
	"github.com/visual-lock/visuallock/internal/render"
	"github.com/visual-lock/visuallock/pkg/audio"
)

// Path is the WebSocket endpoint viewers connect to
const Path = "/visual"

const (
	sendBuffer    = 64
	writeDeadline = 10 * time.Second
	helloTimeout  = 5 * time.Second
	pingInterval  = 30 * time.Second
)

// ErrNotStarted is returned by Addr before Start
var ErrNotStarted = errors.New("remote engine not started")

// Config holds the mirror server settings
type Config struct {
	// Addr is the listen address, e.g. ":8928"
	Addr string
	// Name is reported in server/hello
	Name string
}

type viewer struct {
	id       string
	name     string
	conn     *websocket.Conn
	sendChan chan interface{}
}

// Engine implements render.Engine by mirroring calls to viewers
type Engine struct {
	config   Config
	serverID string
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	viewers map[string]*viewer
	preset  *protocol.PresetLoad
	size    *protocol.RendererSize
	seq     uint64

	listener   net.Listener
	httpServer *http.Server
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

var _ render.Engine = (*Engine)(nil)

// New creates a mirror engine; call Start to accept viewers
func New(config Config) *Engine {
	if config.Name == "" {
		config.Name = "VISUAL LOCK"
	}
	return &Engine{
		config:   config,
		serverID: uuid.New().String(),
		upgrader: websocket.Upgrader{
			// Viewers are local network tools, not browsers with ambient credentials
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		viewers: make(map[string]*viewer),
	}
}

// ServerID returns the id sent in server/hello
func (e *Engine) ServerID() string {
	return e.serverID
}

// Handler serves the WebSocket endpoint
func (e *Engine) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(Path, e.handleWebSocket)
	return mux
}

// Start listens on the configured address and serves viewers
func (e *Engine) Start() error {
	ln, err := net.Listen("tcp", e.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", e.config.Addr, err)
	}
	e.mu.Lock()
	e.listener = ln
	e.httpServer = &http.Server{Handler: e.Handler(), ReadHeaderTimeout: 10 * time.Second}
	srv := e.httpServer
	e.mu.Unlock()

	logger.Info("Visual mirror listening", logger.String("addr", ln.Addr().String()), logger.String("server_id", e.serverID))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("Visual mirror stopped", logger.ErrorField(err))
		}
	}()
	return nil
}

// Addr returns the bound listen address
func (e *Engine) Addr() (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.listener == nil {
		return "", ErrNotStarted
	}
	return e.listener.Addr().String(), nil
}

// Stop disconnects viewers and shuts the server down
func (e *Engine) Stop() error {
	var err error
	e.stopOnce.Do(func() {
		e.mu.Lock()
		srv := e.httpServer
		for _, v := range e.viewers {
			v.conn.Close()
		}
		e.mu.Unlock()

		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = srv.Shutdown(ctx)
		}
		e.wg.Wait()
	})
	return err
}

// Viewers returns the number of connected viewers
func (e *Engine) Viewers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.viewers)
}

// LoadPreset broadcasts preset/load and remembers it for late joiners
func (e *Engine) LoadPreset(p render.Preset, blend time.Duration) {
	msg := &protocol.PresetLoad{Name: p.Name, BlendMS: blend.Milliseconds()}
	e.mu.Lock()
	e.preset = msg
	e.mu.Unlock()
	e.broadcast(protocol.TypePresetLoad, *msg)
}

// SetRendererSize broadcasts renderer/size
func (e *Engine) SetRendererSize(width, height int) {
	msg := &protocol.RendererSize{Width: width, Height: height}
	e.mu.Lock()
	e.size = msg
	e.mu.Unlock()
	e.broadcast(protocol.TypeRendererSize, *msg)
}

// Render broadcasts a frame; slow viewers drop frames
func (e *Engine) Render(bands audio.BandEnergies) {
	e.mu.Lock()
	e.seq++
	frame := protocol.Frame{Seq: e.seq, Sub: bands.Sub, Bass: bands.Bass, Mid: bands.Mid, High: bands.High}
	e.mu.Unlock()
	e.broadcast(protocol.TypeFrame, frame)
}

func (e *Engine) broadcast(msgType string, payload interface{}) {
	msg := protocol.Message{Type: msgType, Payload: payload}
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, v := range e.viewers {
		select {
		case v.sendChan <- msg:
		default:
			logger.Debug("Viewer send buffer full, dropping", logger.String("viewer", v.name), logger.String("type", msgType))
		}
	}
}

func (e *Engine) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", logger.ErrorField(err))
		return
	}
	logger.Debug("New viewer connection", logger.String("remote", r.RemoteAddr))
	e.handleConnection(conn)
}

func (e *Engine) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		logger.Debug("Error reading hello", logger.ErrorField(err))
		return
	}
	conn.SetReadDeadline(time.Time{})

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Type != protocol.TypeClientHello {
		writeError(conn, "bad_handshake", "expected client/hello")
		return
	}
	var hello protocol.ClientHello
	if err := env.Decode(&hello); err != nil || hello.ClientID == "" {
		writeError(conn, "bad_handshake", "client/hello requires client_id")
		return
	}

	v := &viewer{
		id:       hello.ClientID,
		name:     hello.Name,
		conn:     conn,
		sendChan: make(chan interface{}, sendBuffer),
	}

	// Queue hello and current state before registering so broadcasts land after them
	v.sendChan <- protocol.Message{Type: protocol.TypeServerHello, Payload: protocol.ServerHello{
		ServerID: e.serverID,
		Name:     e.config.Name,
		Version:  protocol.Version,
	}}

	e.mu.Lock()
	if _, exists := e.viewers[v.id]; exists {
		e.mu.Unlock()
		writeError(conn, "duplicate_client_id", "Client ID already connected")
		return
	}
	if e.size != nil {
		v.sendChan <- protocol.Message{Type: protocol.TypeRendererSize, Payload: *e.size}
	}
	if e.preset != nil {
		v.sendChan <- protocol.Message{Type: protocol.TypePresetLoad, Payload: *e.preset}
	}
	e.viewers[v.id] = v
	e.mu.Unlock()

	logger.Info("Viewer connected", logger.String("name", v.name), logger.String("client_id", v.id))

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.viewerWriter(v)
	}()

	defer func() {
		e.mu.Lock()
		delete(e.viewers, v.id)
		e.mu.Unlock()
		close(v.sendChan)
		<-done
		logger.Info("Viewer disconnected", logger.String("name", v.name))
	}()

	// Viewers have nothing to say after the handshake; reading surfaces the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("Viewer read error", logger.ErrorField(err))
			}
			return
		}
	}
}

func (e *Engine) viewerWriter(v *viewer) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-v.sendChan:
			if !ok {
				return
			}
			v.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := v.conn.WriteJSON(msg); err != nil {
				logger.Debug("Viewer write failed", logger.ErrorField(err))
				v.conn.Close()
				drain(v.sendChan)
				return
			}
		case <-ticker.C:
			if err := v.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				v.conn.Close()
				drain(v.sendChan)
				return
			}
		}
	}
}

// drain discards queued messages until the channel is closed
func drain(ch chan interface{}) {
	for range ch {
	}
}

func writeError(conn *websocket.Conn, code, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	conn.WriteJSON(protocol.Message{Type: protocol.TypeServerError, Payload: protocol.ServerError{Error: code, Message: message}})
}
