// ABOUTME: User-facing message sink for non-fatal notices from the loader and presets
// ABOUTME: LogNotifier routes messages to zerolog, NopNotifier discards them

package domain

import "github.com/rs/zerolog"

// Notifier surfaces informational messages to the user.
type Notifier interface {
	ShortMessage(msg string)
	LongMessage(msg string)
}

// LogNotifier writes messages to a logger.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier returns a notifier backed by logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// ShortMessage logs at info level.
func (n *LogNotifier) ShortMessage(msg string) {
	n.logger.Info().Msg(msg)
}

// LongMessage logs at warn level.
func (n *LogNotifier) LongMessage(msg string) {
	n.logger.Warn().Msg(msg)
}

// NopNotifier drops every message.
type NopNotifier struct{}

func (NopNotifier) ShortMessage(string) {}
func (NopNotifier) LongMessage(string)  {}
