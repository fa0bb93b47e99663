package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyAppType   = "app_type"
	KeyProvider  = "provider"
	KeyUserHash  = "user_hash"
	KeyFlowState = "flow_state"
	KeyDuration  = "duration"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTool      = "tool"
	KeyComponent = "component"
)

// Status values for consistent logging.
// Duplicated in instrumentation, which imports this package.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// New builds the process logger. format is "json" or "text".
func New(w io.Writer, format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithAppType returns a logger with the app type attribute set.
func WithAppType[T ~string](logger *slog.Logger, appType T) *slog.Logger {
	return logger.With(slog.String(KeyAppType, string(appType)))
}

// WithComponent returns a logger with the component attribute set.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String(KeyComponent, component))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// AppType returns a slog attribute for the app type.
func AppType[T ~string](appType T) slog.Attr {
	return slog.String(KeyAppType, string(appType))
}

// Provider returns a slog attribute for the OAuth provider.
func Provider[T ~string](provider T) slog.Attr {
	return slog.String(KeyProvider, string(provider))
}

// FlowState returns a slog attribute for the OAuth flow state.
func FlowState[T ~string](state T) slog.Attr {
	return slog.String(KeyFlowState, string(state))
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Err returns a slog attribute for an error.
// A nil err yields an empty group, which slog omits.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeUser returns a stable hash of a user identifier.
func AnonymizeUser(userID string) string {
	if userID == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(userID))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized user identifier.
func UserHash(userID string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeUser(userID))
}

// SanitizeToken masks a token. Only its length is kept; even a JWT header prefix
// leaks information.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
