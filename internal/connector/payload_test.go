package connector

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEncodePayload(t *testing.T) {
	type reading struct {
		Sensor string  `json:"sensor"`
		Value  float64 `json:"value"`
	}

	tests := []struct {
		name    string
		message any
		want    string
		wantErr error
	}{
		{"nil", nil, "", nil},
		{"bytes", []byte{0x01, 0x02}, "\x01\x02", nil},
		{"string", "hello", "hello", nil},
		{"string not quoted", `{"a":1}`, `{"a":1}`, nil},
		{"raw json", json.RawMessage(`{"a":1}`), `{"a":1}`, nil},
		{"map", map[string]any{"key": "value"}, `{"key":"value"}`, nil},
		{"struct", reading{Sensor: "kitchen", Value: 21.5}, `{"sensor":"kitchen","value":21.5}`, nil},
		{"number", 42, "42", nil},
		{"bool", true, "true", nil},
		{"channel", make(chan int), "", ErrPayloadEncoding},
		{"function", func() {}, "", ErrPayloadEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodePayload(tt.message)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("EncodePayload() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("EncodePayload() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("EncodePayload() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	states := map[State]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateReconnecting: "reconnecting",
		StateExhausted:    "exhausted",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", state, got, want)
		}
	}
}
