// ABOUTME: WebSocket viewer client for the visual mirror
// ABOUTME: Handles connection, handshake, and message routing
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/visual-lock/visuallock/internal/logger"
	"github.com/visual-lock/visuallock/internal/protocol"
)

// Config holds client configuration
type Config struct {
	ServerAddr string
	ClientID   string
	Name       string
}

// Client is a connected mirror viewer
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Message channels
	Frames  chan protocol.Frame
	Presets chan protocol.PresetLoad
	Sizes   chan protocol.RendererSize

	// State
	server    protocol.ServerHello
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:  config,
		Frames:  make(chan protocol.Frame, 64),
		Presets: make(chan protocol.PresetLoad, 8),
		Sizes:   make(chan protocol.RendererSize, 8),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Connect dials the mirror and performs the handshake
func (c *Client) Connect(ctx context.Context) error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: "/visual"}
	logger.Debug("Connecting to mirror", logger.String("url", u.String()))

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return nil
}

// Server returns the server/hello received during the handshake
func (c *Client) Server() protocol.ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID: c.config.ClientID,
		Name:     c.config.Name,
		Version:  protocol.Version,
	}
	if err := c.sendJSON(protocol.Message{Type: protocol.TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}

	switch env.Type {
	case protocol.TypeServerHello:
	case protocol.TypeServerError:
		var e protocol.ServerError
		env.Decode(&e)
		return fmt.Errorf("server rejected hello: %s", e.Message)
	default:
		return fmt.Errorf("expected server/hello, got %s", env.Type)
	}

	var server protocol.ServerHello
	if err := env.Decode(&server); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}
	c.mu.Lock()
	c.server = server
	c.mu.Unlock()

	logger.Debug("Handshake complete", logger.String("server_id", server.ServerID))
	return nil
}

func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteJSON(msg)
}

func (c *Client) readMessages() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			logger.Debug("Mirror read error", logger.ErrorField(err))
			return
		}
		c.handleJSONMessage(data)
	}
}

func (c *Client) handleJSONMessage(data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Debug("Failed to parse mirror message", logger.ErrorField(err))
		return
	}

	switch env.Type {
	case protocol.TypeFrame:
		var f protocol.Frame
		if env.Decode(&f) != nil {
			return
		}
		// Frames are droppable, a stale one is worth nothing
		select {
		case c.Frames <- f:
		default:
		}

	case protocol.TypePresetLoad:
		var p protocol.PresetLoad
		if env.Decode(&p) != nil {
			return
		}
		select {
		case c.Presets <- p:
		case <-c.ctx.Done():
		}

	case protocol.TypeRendererSize:
		var s protocol.RendererSize
		if env.Decode(&s) != nil {
			return
		}
		select {
		case c.Sizes <- s:
		case <-c.ctx.Done():
		}

	default:
		logger.Debug("Unknown message type", logger.String("type", env.Type))
	}
}

// Done is closed when the connection ends
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
