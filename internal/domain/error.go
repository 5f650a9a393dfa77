package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrEnqueueFailed means one of the two durable writes behind Submit failed
	// and the enqueue as a whole was rolled back. Callers may retry.
	ErrEnqueueFailed = errors.New("enqueue failed")

	// ErrClaimConflict is internal: another consumer holds the next entry of a
	// conversation. Workers that hit it simply look for other work.
	ErrClaimConflict = errors.New("entry already claimed")

	// ErrNoEntry means a conversation's log has no claimable entry right now.
	ErrNoEntry = errors.New("no claimable entry")

	// ErrStatusConflict means a job-status write would move the status
	// backwards. Job status only ever walks pending -> processing -> terminal.
	ErrStatusConflict = errors.New("job status transition not allowed")

	// ErrPollTimeout is caller-local: the poll wall-clock bound elapsed while
	// the job was still running. The job itself is unaffected.
	ErrPollTimeout = errors.New("poll timeout")

	// ErrConversationBusy means another process holds the conversation lock.
	ErrConversationBusy = errors.New("conversation is locked by another worker")

	ErrRateLimited = errors.New("rate limited")
)
