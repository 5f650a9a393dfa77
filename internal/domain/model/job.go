package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusError      JobStatus = "error"
)

// Terminal reports whether no further status transitions may occur.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// CanTransitionTo enforces the monotonic walk
// pending -> processing -> {complete|error}.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusComplete || next == JobStatusError
	case JobStatusProcessing:
		return next == JobStatusComplete || next == JobStatusError
	default:
		return false
	}
}

// Payload is the unit of work carried by a Job. It is opaque to the queue
// core; the worker hands it to the generation adapter untouched.
type Payload struct {
	Text             string `json:"text"`
	ConversationType string `json:"conversation_type,omitempty"` // private | group
	SenderJID        string `json:"sender_jid,omitempty"`
	SenderName       string `json:"sender_name,omitempty"`
	HasImage         bool   `json:"has_image,omitempty"`
	ImageMimetype    string `json:"image_mimetype,omitempty"`
	DocumentName     string `json:"document_name,omitempty"`
}

// HistoryText is how the payload appears when persisted as conversation
// history: group messages are prefixed with the sender, attachments become
// markers.
func (p Payload) HistoryText() string {
	text := p.Text
	switch {
	case p.HasImage && text != "":
		text = "[Image: " + text + "]"
	case p.HasImage:
		text = "[Image]"
	case p.DocumentName != "" && text != "":
		text = "[Document: " + p.DocumentName + "] - " + text
	case p.DocumentName != "":
		text = "[Document: " + p.DocumentName + "]"
	}
	if p.SenderName != "" {
		return p.SenderName + ": " + text
	}
	return text
}

// ResponseChunk is one fragment of generated output, appended while the job
// is processing.
type ResponseChunk struct {
	Index     int       `json:"index"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Job is one enqueued unit of work. The ledger record expires a bounded time
// after the status turns terminal.
type Job struct {
	ID             string          `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Status         JobStatus       `json:"status"`
	Payload        Payload         `json:"payload"`
	Chunks         []ResponseChunk `json:"-"`
	ErrorDetail    string          `json:"error_detail,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func NewJob(conversationID string, payload Payload) *Job {
	now := time.Now()
	return &Job{
		ID:             ulid.Make().String(),
		ConversationID: conversationID,
		Status:         JobStatusPending,
		Payload:        payload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ResponseText joins the accumulated chunks in order.
func (j *Job) ResponseText() string {
	var out []byte
	for _, c := range j.Chunks {
		out = append(out, c.Content...)
	}
	return string(out)
}
