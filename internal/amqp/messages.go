package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PostsChangedMessage announces that the event list changed. It carries
// no records: consumers read the current list from storage.
type PostsChangedMessage struct {
	MessageID string    `json:"message_id"`
	Action    string    `json:"action"`
	ID        *int      `json:"id,omitempty"`
	Version   uint64    `json:"version"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewPostsChangedMessage stamps a message with a fresh id and the current time.
// id is nil for actions that do not target a single record.
func NewPostsChangedMessage(action string, id *int, version uint64, count int) *PostsChangedMessage {
	return &PostsChangedMessage{
		MessageID: uuid.NewString(),
		Action:    action,
		ID:        id,
		Version:   version,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *PostsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PostsChangedMessageFromJSON decodes and sanity-checks a message
func PostsChangedMessageFromJSON(data []byte) (*PostsChangedMessage, error) {
	var msg PostsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Action == "" {
		return nil, fmt.Errorf("message %q has no action", msg.MessageID)
	}
	return &msg, nil
}
