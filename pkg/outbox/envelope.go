package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	SellerID   string `json:"sellerId,omitempty"`
	CustomerID string `json:"customerId,omitempty"`
}

// PayloadEnvelope is what outbox_events.payload holds and what subscribers
// receive as the message body. It repeats the routing columns so a message is
// readable without its attributes.
type PayloadEnvelope struct {
	Version       int                       `json:"version"`
	EventID       string                    `json:"eventId"`
	EventType     enums.OutboxEventType     `json:"eventType,omitempty"`
	AggregateType enums.OutboxAggregateType `json:"aggregateType,omitempty"`
	AggregateID   string                    `json:"aggregateId,omitempty"`
	OccurredAt    time.Time                 `json:"occurredAt"`
	Actor         *ActorRef                 `json:"actor,omitempty"`
	Data          json.RawMessage           `json:"data"`
}

// DecodeEnvelope parses a stored payload and rejects envelopes without an
// event id, since subscribers deduplicate on it.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return envelope, fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.EventID == "" {
		return envelope, errors.New("envelope missing event id")
	}
	return envelope, nil
}
