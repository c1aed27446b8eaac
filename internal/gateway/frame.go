package gateway

import "encoding/json"

// Frame is the wire format in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope is what the adapter publishes to peer processes.
type Envelope struct {
	Node   string          `json:"node"`
	Global bool            `json:"global,omitempty"`
	Room   string          `json:"room,omitempty"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func (e Envelope) scope() Scope {
	return Scope{global: e.Global, room: e.Room}
}

// Scope selects the recipients of a broadcast. The zero Scope and Room("")
// address nobody.
type Scope struct {
	global bool
	room   string
}

// Global addresses every connection on every process.
var Global = Scope{global: true}

// Room addresses the connections that joined name.
func Room(name string) Scope {
	return Scope{room: name}
}

func (s Scope) String() string {
	if s.global {
		return "global"
	}
	return "room:" + s.room
}

func encodeFrame(event string, data json.RawMessage) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Data: data})
}
