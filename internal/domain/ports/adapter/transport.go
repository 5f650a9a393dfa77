package adapter

import "context"

// TransportNotifier hands a finished reply back to the messaging transport.
// The transport itself (WhatsApp bridge, webhook, ...) lives outside this
// service; delivery failures are logged, never propagated into the queue.
type TransportNotifier interface {
	Notify(ctx context.Context, conversationID, text string) error
}
