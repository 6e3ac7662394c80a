package relay

import (
	"encoding/json"
	"fmt"
)

// Event and message type discriminators used by the upstream platform.
const (
	EventTypeMessage = "message"

	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeVideo = "video"
	MessageTypeAudio = "audio"
	MessageTypeFile  = "file"
)

// Envelope is a webhook callback body: the bot the callback is addressed to
// plus a batch of events.
type Envelope struct {
	Destination string  `json:"destination"`
	Events      []Event `json:"events"`
}

// Event is a single webhook event. Only message events carry a Message.
type Event struct {
	Type       string  `json:"type"`
	ReplyToken string  `json:"replyToken,omitempty"`
	Timestamp  int64   `json:"timestamp,omitempty"`
	Mode       string  `json:"mode,omitempty"`
	Source     Source  `json:"source,omitempty"`
	Message    Message `json:"message,omitempty"`
}

// Source identifies where an event originated.
type Source struct {
	Type    string `json:"type,omitempty"`
	UserID  string `json:"userId,omitempty"`
	GroupID string `json:"groupId,omitempty"`
	RoomID  string `json:"roomId,omitempty"`
}

// Message is the payload of a message event.
type Message struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// IsMedia reports whether the message carries binary content that has to be
// fetched from the platform's content endpoint.
func (m Message) IsMedia() bool {
	switch m.Type {
	case MessageTypeImage, MessageTypeVideo, MessageTypeAudio, MessageTypeFile:
		return true
	}
	return false
}

// Delivery pairs the verbatim request body with its parsed view. Destinations
// always receive Raw; routing decisions read Envelope.
type Delivery struct {
	Raw       []byte
	Signature string
	Envelope  Envelope
}

// ParseEnvelope decodes a webhook callback body.
func ParseEnvelope(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}
