package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want FrameKind
	}{
		{"request", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, FrameRequest},
		{"notification", `{"jsonrpc":"2.0","method":"notifications/initialized"}`, FrameNotification},
		{"response result", `{"jsonrpc":"2.0","id":1,"result":{}}`, FrameResponse},
		{"response error", `{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"x"}}`, FrameResponse},
		{"unknown", `{"jsonrpc":"2.0"}`, FrameUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Classify([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifyIDPreservation(t *testing.T) {
	raw := []byte(`{"jsonrpc":"2.0","id":"abc-123","method":"ping"}`)
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		t.Fatal(err)
	}
	if string(req.ID) != `"abc-123"` {
		t.Errorf("ID = %s, want literal quoted string preserved", req.ID)
	}
}
