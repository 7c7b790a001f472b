package connector

import (
	"encoding/json"
	"fmt"
)

// EncodePayload converts a publish message to wire bytes.
//
// []byte, json.RawMessage and string are sent as-is; nil is an empty
// payload; anything else is JSON encoded.
func EncodePayload(message any) ([]byte, error) {
	switch m := message.(type) {
	case nil:
		return nil, nil
	case []byte:
		return m, nil
	case json.RawMessage:
		return m, nil
	case string:
		return []byte(m), nil
	}

	data, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPayloadEncoding, err)
	}
	return data, nil
}
