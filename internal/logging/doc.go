// Package logging provides structured logging helpers for calconnect.
//
// All components log through log/slog. This package keeps attribute names
// consistent and makes sure user identifiers and OAuth tokens never reach log
// output in clear text.
//
// # Usage
//
//	logger := logging.WithAppType(slog.Default(), integration.AppZoomMeeting)
//	logger.Info("token refreshed",
//	    logging.UserHash(userID),
//	    logging.Status(logging.StatusSuccess))
//
// # Security Considerations
//
//   - User identifiers are hashed, which still allows correlation
//   - Tokens are never logged, only their length via SanitizeToken
package logging
