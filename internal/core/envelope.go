package core

import (
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

const (
	TypeJoin      MessageType = "join"
	TypeOffer     MessageType = "offer"
	TypeAnswer    MessageType = "answer"
	TypeCandidate MessageType = "candidate"
	TypeChat      MessageType = "chat"
)

// Known reports whether t is one of the types clients are expected to send.
// Unknown types are still relayed.
func (t MessageType) Known() bool {
	switch t {
	case TypeJoin, TypeOffer, TypeAnswer, TypeCandidate, TypeChat:
		return true
	}
	return false
}

var ErrMalformedPayload = errors.New("malformed payload")

// Envelope is an inbound message with its discriminator decoded.
// Everything except the type (and the peer id of a join) stays opaque in Raw.
type Envelope struct {
	Type   MessageType
	PeerID json.RawMessage
	Raw    Frame
}

type joinAnnounce struct {
	Type MessageType     `json:"type"`
	ID   json.RawMessage `json:"id"`
}

func ParseEnvelope(raw Frame) (Envelope, error) {
	var head struct {
		Type json.RawMessage `json:"type"`
		Name json.RawMessage `json:"name"`
		ID   json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	var typ string
	if err := json.Unmarshal(head.Type, &typ); err != nil || typ == "" {
		return Envelope{}, fmt.Errorf("%w: missing type", ErrMalformedPayload)
	}

	env := Envelope{Type: MessageType(typ), Raw: raw}
	if env.Type == TypeJoin {
		env.PeerID = pickPeerID(head.Name, head.ID)
	}
	return env, nil
}

// name wins over id; a missing or null value falls through.
func pickPeerID(candidates ...json.RawMessage) json.RawMessage {
	for _, c := range candidates {
		if len(c) > 0 && string(c) != "null" {
			return c
		}
	}
	return nil
}

// Outbound returns the frame peers receive for this envelope.
func (e Envelope) Outbound() (Frame, error) {
	if e.Type != TypeJoin {
		return e.Raw, nil
	}
	b, err := json.Marshal(joinAnnounce{Type: TypeJoin, ID: e.PeerID})
	if err != nil {
		return nil, fmt.Errorf("encode join announce: %w", err)
	}
	return b, nil
}

// DisplayName is the declared peer id as plain text, for logs and member listings.
func (e Envelope) DisplayName() string {
	if len(e.PeerID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(e.PeerID, &s); err == nil {
		return s
	}
	return string(e.PeerID)
}
