// Package intent defines the built-in form intents, their wire codec and the
// handlers that turn them into form state transitions.
package intent

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/tbxark/formstate/types"
)

const (
	TypeValidate = "validate"
	TypeReset    = "reset"
	TypeUpdate   = "update"
	TypeInsert   = "insert"
	TypeRemove   = "remove"
	TypeReorder  = "reorder"
)

// DefaultFieldName is the reserved submission field carrying a serialized intent.
const DefaultFieldName = "__intent__"

// Serialize encodes an intent as "type" or "type/<json payload>".
func Serialize(in types.Intent) (string, error) {
	if in.Payload == nil {
		return in.Type, nil
	}
	payload, err := sonic.MarshalString(in.Payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s payload: %w", in.Type, err)
	}
	return in.Type + "/" + payload, nil
}

// Deserialize is the inverse of Serialize. A payload that is not valid JSON is
// kept as the raw string.
func Deserialize(token string) types.Intent {
	typ, raw, found := strings.Cut(token, "/")
	if !found {
		return types.Intent{Type: token}
	}
	var payload any
	if err := sonic.UnmarshalString(raw, &payload); err != nil {
		return types.Intent{Type: typ, Payload: raw}
	}
	return types.Intent{Type: typ, Payload: payload}
}

// decodePayload coerces a loosely typed payload (as produced by Deserialize)
// into T by a JSON round trip.
func decodePayload[T any](payload any) (T, error) {
	var out T
	if typed, ok := payload.(T); ok {
		return typed, nil
	}
	data, err := sonic.Marshal(payload)
	if err != nil {
		return out, err
	}
	if err := sonic.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}
