package stream

import (
	"encoding/json"

	"backend-pathgreen/internal/fleet"
)

const (
	TypeInitialState   = "initial_state"
	TypeEmissionUpdate = "emission_update"
	TypeAlert          = "alert"
	TypeChat           = "chat"
	TypeChatResponse   = "chat_response"
	TypePing           = "ping"
	TypePong           = "pong"
	TypeError          = "error"
)

// Envelope is the wire frame for every server to client message.
type Envelope struct {
	Type string          `json:"type"`
	Seq  uint64          `json:"seq,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type InitialState struct {
	Vehicles []fleet.EmissionRecord `json:"vehicles"`
	Alerts   []fleet.Alert          `json:"alerts"`
}

// ClientMessage is every client to server frame.
type ClientMessage struct {
	Type  string `json:"type"`
	Query string `json:"query,omitempty"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// Message is one encoded frame queued for a client.
type Message struct {
	Type    string
	Seq     uint64
	Payload []byte
}

func Encode(typ string, seq uint64, data any) (Message, error) {
	env := Envelope{Type: typ, Seq: seq}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Message{}, err
		}
		env.Data = raw
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: typ, Seq: seq, Payload: payload}, nil
}

func initialStateFrom(snap fleet.Snapshot) InitialState {
	return InitialState{Vehicles: snap.Vehicles, Alerts: snap.Alerts}
}
