package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestWithHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", false)

	WithComponent(WithAppType(WithOperation(logger, "connect"), "ZOOM_MEETING"), "service").Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json log line: %v", err)
	}
	for key, want := range map[string]string{
		KeyOperation: "connect",
		KeyAppType:   "ZOOM_MEETING",
		KeyComponent: "service",
	} {
		if entry[key] != want {
			t.Errorf("%s = %v, want %q", key, entry[key], want)
		}
	}
}

func TestNewLevels(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "text", false).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug line logged without debug enabled: %q", buf.String())
	}

	New(&buf, "text", true).Debug("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("debug line missing: %q", buf.String())
	}
}

func TestAttrs(t *testing.T) {
	tests := []struct {
		name    string
		attr    slog.Attr
		wantKey string
		wantVal string
	}{
		{"operation", Operation("op"), KeyOperation, "op"},
		{"app type", AppType("OUTLOOK_CALENDAR"), KeyAppType, "OUTLOOK_CALENDAR"},
		{"provider", Provider("MICROSOFT"), KeyProvider, "MICROSOFT"},
		{"flow state", FlowState("TOKEN_EXCHANGED"), KeyFlowState, "TOKEN_EXCHANGED"},
		{"tool", Tool("integration_list"), KeyTool, "integration_list"},
		{"status", Status(StatusSuccess), KeyStatus, "success"},
		{"error", Err(errors.New("boom")), KeyError, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.attr.Key != tt.wantKey {
				t.Errorf("key = %q, want %q", tt.attr.Key, tt.wantKey)
			}
			if tt.attr.Value.String() != tt.wantVal {
				t.Errorf("value = %q, want %q", tt.attr.Value.String(), tt.wantVal)
			}
		})
	}
}

func TestErrNil(t *testing.T) {
	attr := Err(nil)
	if attr.Key != "" {
		t.Errorf("Err(nil) key = %q, want empty", attr.Key)
	}
}

func TestAnonymizeUser(t *testing.T) {
	if got := AnonymizeUser(""); got != "" {
		t.Errorf("AnonymizeUser(\"\") = %q", got)
	}
	a := AnonymizeUser("user-123")
	if !strings.HasPrefix(a, "user:") || len(a) != len("user:")+16 {
		t.Errorf("unexpected hash format %q", a)
	}
	if a != AnonymizeUser("user-123") {
		t.Error("hash must be stable")
	}
	if strings.Contains(a, "123") && strings.Contains(a, "user-123") {
		t.Error("hash leaks input")
	}
	if UserHash("user-123").Value.String() != a {
		t.Error("UserHash must use AnonymizeUser")
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken(""); got != "<empty>" {
		t.Errorf("SanitizeToken(\"\") = %q", got)
	}
	got := SanitizeToken("ya29.abcdef")
	if got != "[token:11 chars]" {
		t.Errorf("SanitizeToken = %q", got)
	}
}
