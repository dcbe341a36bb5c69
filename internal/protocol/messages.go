// ABOUTME: Wire messages for the visual mirror WebSocket
// ABOUTME: Every message is a JSON envelope with a type and a payload
package protocol

import "encoding/json"

// Version of the mirror protocol
const Version = 1

// Message types
const (
	TypeClientHello  = "client/hello"
	TypeServerHello  = "server/hello"
	TypeServerError  = "server/error"
	TypeFrame        = "frame"
	TypePresetLoad   = "preset/load"
	TypeRendererSize = "renderer/size"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Envelope is a received message whose payload is decoded by type
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into out
func (e Envelope) Decode(out interface{}) error {
	return json.Unmarshal(e.Payload, out)
}

// ClientHello is sent by viewers to initiate the handshake
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerHello is the response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerError rejects a viewer before closing the socket
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Frame carries one tick of band energies
type Frame struct {
	Seq  uint64  `json:"seq"`
	Sub  float64 `json:"sub"`
	Bass float64 `json:"bass"`
	Mid  float64 `json:"mid"`
	High float64 `json:"high"`
}

// PresetLoad announces a preset switch
type PresetLoad struct {
	Name    string `json:"name"`
	BlendMS int64  `json:"blend_ms"`
}

// RendererSize announces the drawing surface
type RendererSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}
