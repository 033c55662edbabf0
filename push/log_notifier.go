package push

import (
	"circle-hub/domain"
	"context"
	"log/slog"
)

// LogNotifier only logs the notifications. It is used when no broker is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, tokens []string, alert domain.EmergencyAlert) error {
	l.log.Info("Push notification (no broker configured)",
		"alert_id", alert.ID, "user_id", alert.SenderID, "kind", alert.Kind, "devices", len(tokens))
	return nil
}
