package sync

import (
	"context"

	"github.com/obi-nwosu/fieldsync/internal/domain"
)

// AckStatus is the server's answer to a submission delivery.
type AckStatus string

const (
	// AckQueued means the server accepted the submission for processing.
	AckQueued AckStatus = "queued"
	// AckDuplicate means the server has already accepted a submission with
	// this id. Both acks count as sync success on the client.
	AckDuplicate AckStatus = "duplicate"
)

// SubmitAck is the acknowledgment returned by Transport.Submit.
type SubmitAck struct {
	ID     string    `json:"id"`
	Status AckStatus `json:"status"`
}

// Outcome is one submission's server-side processing state as reported by
// the batch status lookup.
type Outcome struct {
	Processed       bool   `json:"processed"`
	ProcessingError string `json:"processing_error,omitempty"`
}

// Transport is the network collaborator the sync manager calls. Both
// operations may fail, time out, or succeed; the manager treats any error as
// transient unless the observed error text carries a permanent marker.
type Transport interface {
	// Submit delivers one queued submission and returns the server ack.
	Submit(ctx context.Context, sub *domain.QueuedSubmission) (*SubmitAck, error)
	// StatusOf looks up the processing outcome of previously accepted
	// submissions. Ids unknown to the server are absent from the result.
	StatusOf(ctx context.Context, ids []string) (map[string]Outcome, error)
}

// Connectivity reports whether the device currently has a network path. The
// sync manager consults it before a pass and between polling rounds.
type Connectivity interface {
	Online() bool
}
