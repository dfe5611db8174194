package amqp

import (
	"encoding/json"
	"time"
)

// SchemaVersion is bumped whenever ChangeMessage changes shape.
const SchemaVersion = 1

// Entity kinds.
const (
	KindCategory = "category"
	KindSection  = "section"
)

// Operations.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// ChangeMessage announces a committed mutation. It only carries identifiers;
// consumers read the current record from storage.
type ChangeMessage struct {
	Kind      string    `json:"kind"`
	Op        string    `json:"op"`
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Version   int       `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeMessage(kind, op, id, ownerID string) *ChangeMessage {
	return &ChangeMessage{
		Kind:      kind,
		Op:        op,
		ID:        id,
		OwnerID:   ownerID,
		Version:   SchemaVersion,
		Timestamp: time.Now(),
	}
}

func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
