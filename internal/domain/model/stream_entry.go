package model

import "time"

// StreamEntry is one record of a conversation's ordered log. The entry ID is
// assigned by the log itself and is monotonically increasing within a
// conversation; acknowledgment order follows entry order.
type StreamEntry struct {
	ID             string
	ConversationID string
	JobID          string
}

// PendingClaim describes a claimed-but-unacknowledged entry, as reported by
// the log's pending set.
type PendingClaim struct {
	EntryID    string
	Consumer   string
	Idle       time.Duration
	RetryCount int64
}

// HistoryMessage is one persisted exchange line. Conversation history is a
// collaborator concern; the queue core only appends to it.
type HistoryMessage struct {
	ID             string
	ConversationID string
	Role           string // user | assistant
	Content        string
	SenderJID      string
	SenderName     string
	CreatedAt      time.Time
}
