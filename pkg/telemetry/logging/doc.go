// Package logging builds the slog.Logger used throughout interpose.
//
// # Formats
//
//   - json: slog's JSON handler, the default for services
//   - text: slog's key=value text handler
//   - console: colorized output through github.com/lmittmann/tint
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:      "debug",
//	    Format:     "console",
//	    RedactKeys: []string{"args"},
//	})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
// Attributes named in RedactKeys are replaced with "[REDACTED]" before any
// handler formats them.
package logging
