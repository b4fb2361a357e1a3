package talkie

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// Message is one of PresenceMessage, VoiceMessage or TextMessage.
type Message interface {
	Kind() MessageKind
	Sender() string
	Validate() error
}

// PresenceMessage is the heartbeat each participant publishes.
type PresenceMessage struct {
	ParticipantID  string       `json:"participantId"`
	DisplayName    string       `json:"displayName"`
	IsTransmitting bool         `json:"isTransmitting"`
	LastSeenAt     time.Time    `json:"lastSeenAt"`
	Coordinates    *Coordinates `json:"coordinates,omitempty"`
}

func (m *PresenceMessage) Kind() MessageKind { return KindPresence }
func (m *PresenceMessage) Sender() string    { return m.ParticipantID }

func (m *PresenceMessage) Validate() error {
	if m.ParticipantID == "" {
		return NewInvalidMessageError("presence without participantId")
	}
	if c := m.Coordinates; c != nil {
		if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.Abs(c.Lat) > 90 || math.Abs(c.Lng) > 180 {
			return NewInvalidMessageError("presence coordinates out of range").AddDetail("participant_id", m.ParticipantID)
		}
	}
	return nil
}

// VoiceMessage carries one encoded audio chunk.
type VoiceMessage struct {
	SenderID string `json:"senderId"`
	Payload  string `json:"payload"`
}

func (m *VoiceMessage) Kind() MessageKind { return KindVoice }
func (m *VoiceMessage) Sender() string    { return m.SenderID }

func (m *VoiceMessage) Validate() error {
	if m.SenderID == "" {
		return NewInvalidMessageError("voice without senderId")
	}
	if m.Payload == "" {
		return NewInvalidMessageError("voice without payload").AddDetail("sender_id", m.SenderID)
	}
	return nil
}

// TextMessage is a short typed message for the channel log.
type TextMessage struct {
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	Text       string `json:"text"`
}

func (m *TextMessage) Kind() MessageKind { return KindText }
func (m *TextMessage) Sender() string    { return m.SenderID }

func (m *TextMessage) Validate() error {
	if m.SenderID == "" {
		return NewInvalidMessageError("text without senderId")
	}
	if m.Text == "" {
		return NewInvalidMessageError("empty text").AddDetail("sender_id", m.SenderID)
	}
	return nil
}

// DecodeMessage parses payload as the variant for kind and validates it.
func DecodeMessage(kind MessageKind, payload []byte) (Message, error) {
	var msg Message
	switch kind {
	case KindPresence:
		msg = &PresenceMessage{}
	case KindVoice:
		msg = &VoiceMessage{}
	case KindText:
		msg = &TextMessage{}
	default:
		return nil, NewInvalidMessageError("message on unknown topic")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(msg); err != nil {
		return nil, Wrapf(err, ErrCodeInvalidMessage, "malformed %s message", kind)
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

// EncodeMessage marshals msg after validating it.
func EncodeMessage(msg Message) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}
