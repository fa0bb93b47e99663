package common

import (
	"context"
	"errors"
	"strings"

	"github.com/teemow/calconnect/internal/server"
)

// ErrNoUser is returned when a tool call cannot be attributed to a user.
var ErrNoUser = errors.New("no user: set the X-User-ID header or pass user_id")

// GetUserFromArgs resolves the user a tool call acts for.
//
// Priority order:
//  1. User id from context (set from the X-User-ID header on HTTP transports)
//  2. Explicit "user_id" argument
//  3. The server's default user (stdio sessions)
func GetUserFromArgs(ctx context.Context, args map[string]any, sc *server.ServerContext) (string, error) {
	if id, ok := server.UserIDFromContext(ctx); ok {
		return id, nil
	}
	if id, ok := args["user_id"].(string); ok && strings.TrimSpace(id) != "" {
		return strings.TrimSpace(id), nil
	}
	if sc != nil && sc.DefaultUserID() != "" {
		return sc.DefaultUserID(), nil
	}
	return "", ErrNoUser
}

// StringList reads a list argument given either as a JSON array of strings or
// as a comma separated string. Blank entries are dropped. ok is false when the
// argument is absent.
func StringList(args map[string]any, key string) (values []string, ok bool) {
	raw, present := args[key]
	if !present || raw == nil {
		return nil, false
	}
	values = []string{}
	switch v := raw.(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				values = append(values, p)
			}
		}
	case []any:
		for _, item := range v {
			if s, isStr := item.(string); isStr && strings.TrimSpace(s) != "" {
				values = append(values, strings.TrimSpace(s))
			}
		}
	case []string:
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				values = append(values, strings.TrimSpace(s))
			}
		}
	default:
		return nil, false
	}
	return values, true
}
