package transport

import (
	"context"

	"github.com/rs/zerolog"

	"whatsapp-ai-bridge/internal/domain/ports/adapter"
	"whatsapp-ai-bridge/internal/infra/logging"
)

var _ adapter.TransportNotifier = (*NoopNotifier)(nil)

// NoopNotifier logs replies instead of delivering them. Used in dev and when
// clients rely purely on polling.
type NoopNotifier struct {
	log *zerolog.Logger
	dev bool
}

func NewNoopNotifier(log *zerolog.Logger, dev bool) *NoopNotifier {
	return &NoopNotifier{log: log, dev: dev}
}

func (n *NoopNotifier) Notify(ctx context.Context, conversationID, text string) error {
	logging.With(ctx, n.log).Info().
		Str("conv_id", conversationID).
		Str("text", logging.Redact(text, n.dev)).
		Msg("noop notify")
	return nil
}
