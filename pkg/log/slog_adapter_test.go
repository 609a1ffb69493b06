package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func captureSlog(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output %q: %v", buf.String(), err)
	}
	return entry
}

func TestSlogAdapterLogsMessageEvent(t *testing.T) {
	entry := captureSlog(t, Event{
		Timestamp:   time.Now(),
		SessionID:   "session-1",
		Direction:   DirectionIn,
		Layer:       LayerAccess,
		Category:    CategoryMessage,
		ObjectPath:  "/mesh_client/ele00",
		Source:      0x00BD,
		Destination: "0xC000",
		Message: &MessageEvent{
			Opcode:   "0x52",
			KeyIndex: 1,
			Size:     4,
			Method:   "MessageReceived",
		},
	})

	want := map[string]any{
		"msg":        "protocol",
		"session_id": "session-1",
		"direction":  "IN",
		"layer":      "ACCESS",
		"category":   "MESSAGE",
		"path":       "/mesh_client/ele00",
		"src":        "0x00BD",
		"dst":        "0xC000",
		"opcode":     "0x52",
		"key_index":  float64(1),
		"size":       float64(4),
		"method":     "MessageReceived",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("%s: got %v, want %v", k, entry[k], v)
		}
	}
}

func TestSlogAdapterLogsCallEvent(t *testing.T) {
	entry := captureSlog(t, Event{
		Layer:    LayerBus,
		Category: CategoryCall,
		Call: &CallEvent{
			Interface: "org.bluez.mesh.Provisioner1",
			Method:    "RequestProvData",
			Args:      "count=1",
		},
	})

	if entry["interface"] != "org.bluez.mesh.Provisioner1" {
		t.Errorf("interface: got %v", entry["interface"])
	}
	if entry["args"] != "count=1" {
		t.Errorf("args: got %v", entry["args"])
	}
}

func TestSlogAdapterLogsStateAndError(t *testing.T) {
	entry := captureSlog(t, Event{
		Category: CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityApplication,
			OldState: "REGISTERED",
			NewState: "UNREGISTERED",
			Reason:   "released",
		},
	})
	if entry["entity"] != "APPLICATION" || entry["reason"] != "released" {
		t.Errorf("unexpected state entry %v", entry)
	}

	entry = captureSlog(t, Event{
		Category: CategoryError,
		Error: &ErrorEventData{
			Layer:   LayerBus,
			Message: "delivery timed out",
			Name:    "org.bluez.Error.InProgress",
			Context: "MessageReceived",
		},
	})
	if entry["error_name"] != "org.bluez.Error.InProgress" || entry["error_layer"] != "BUS" {
		t.Errorf("unexpected error entry %v", entry)
	}
}

func TestSlogAdapterSkipsEmptyOptionalFields(t *testing.T) {
	entry := captureSlog(t, Event{Category: CategoryMessage, Message: &MessageEvent{Opcode: "0x52"}})

	for _, k := range []string{"path", "src", "dst", "model", "method", "delivery"} {
		if _, ok := entry[k]; ok {
			t.Errorf("unexpected field %s", k)
		}
	}
}
