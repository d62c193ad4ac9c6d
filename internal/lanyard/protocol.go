package lanyard

import "encoding/json"

// Relay opcodes.
const (
	OpEvent      = 0
	OpHello      = 1
	OpInitialize = 2
	OpHeartbeat  = 3
)

// Event names pushed with OpEvent.
const (
	EventInitState      = "INIT_STATE"
	EventPresenceUpdate = "PRESENCE_UPDATE"
)

// frame is the envelope of every socket message.
type frame struct {
	Op  int             `json:"op"`
	Seq int             `json:"seq,omitempty"`
	T   string          `json:"t,omitempty"`
	D   json.RawMessage `json:"d,omitempty"`
}

type helloData struct {
	HeartbeatInterval int `json:"heartbeat_interval"`
}

type initializeData struct {
	SubscribeToID string `json:"subscribe_to_id"`
}

type outgoing struct {
	Op int `json:"op"`
	D  any `json:"d,omitempty"`
}

// restResponse is the body of GET /v1/users/:id.
type restResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
