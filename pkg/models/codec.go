package models

import (
	"encoding/json"
	"fmt"
)

// MaxMessageSize is the largest payload accepted from the bus.
const MaxMessageSize = 64 * 1024

// Encode validates and serializes a message into its JSON wire form.
func Encode(message Message) ([]byte, error) {
	if err := message.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to encode invalid %s message: %w", message.MessageType(), err)
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", message.MessageType(), err)
	}
	return payload, nil
}

// Decode deserializes and validates a payload received from the bus.
// Oversized, malformed and out-of-schema payloads all return an error,
// and callers are expected to drop them.
func Decode[T any, PT interface {
	*T
	Message
}](payload []byte) (T, error) {
	var message T
	if len(payload) > MaxMessageSize {
		return message, fmt.Errorf("payload of %d bytes exceeds the maximum of %d bytes", len(payload), MaxMessageSize)
	}
	if err := json.Unmarshal(payload, &message); err != nil {
		return message, fmt.Errorf("malformed payload: %w", err)
	}
	if err := PT(&message).Validate(); err != nil {
		return message, fmt.Errorf("invalid payload: %w", err)
	}
	return message, nil
}
