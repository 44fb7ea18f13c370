package notify

import (
	"context"

	"github.com/dmitrijs2005/aiwallpaper/internal/logging"
)

// LogSender only logs deliveries. It is used when no SMTP host is configured.
// The code itself is never logged.
type LogSender struct {
	log logging.Logger
}

func NewLogSender(log logging.Logger) *LogSender {
	return &LogSender{log: log.With("module", "notify")}
}

func (s *LogSender) Send(ctx context.Context, m Message) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.log.Info(ctx, "email delivery skipped, no smtp host configured", "kind", string(m.Kind), "to", m.To)
	return nil
}
