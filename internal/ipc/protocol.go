// Package ipc carries the latest FPS snapshot across the process boundary:
// a single-instance local pipe on which the server writes exactly one JSON
// message per accepted connection. Each client connect is one poll.
package ipc

import (
	"encoding/json"
	"io"
)

// DefaultPipeName is the well-known endpoint. The server side attaches a
// security descriptor that keeps it readable by unprivileged local clients.
const DefaultPipeName = `\\.\pipe\fpsmon-v1`

// maxMessageSize bounds a single wire message. Real payloads stay well under
// 1 KB; the limit only guards the client against a misbehaving peer.
const maxMessageSize = 4096

// GameState is the optional per-process metadata block of a snapshot.
type GameState struct {
	PID               uint32 `json:"pid"`
	Name              string `json:"name"`
	DXVersion         uint32 `json:"dx_version"`
	HasFSO            bool   `json:"has_fso"`
	CompatibleTopmost bool   `json:"is_compatible_topmost"`
}

// Snapshot is the wire form of one published measurement. GameState is nil
// when no qualifying process is active.
type Snapshot struct {
	FPS       float64    `json:"fps"`
	GameState *GameState `json:"game_state,omitempty"`
}

// encodeSnapshot renders the single message written per connection.
func encodeSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// decodeSnapshot reads one message from r until EOF and parses it.
func decodeSnapshot(r io.Reader) (Snapshot, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxMessageSize))
	if err != nil {
		return Snapshot{}, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}
