package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubmissionKind names the form a submission came from.
type SubmissionKind string

const (
	KindVolunteer   SubmissionKind = "volunteer"
	KindDonation    SubmissionKind = "donation"
	KindHelpRequest SubmissionKind = "help_request"
	KindUpload      SubmissionKind = "upload"
)

// SubmissionStatus is the outcome of forwarding a submission.
type SubmissionStatus string

const (
	// StatusAccepted means the backend acknowledged the submission.
	StatusAccepted SubmissionStatus = "accepted"
	// StatusRejected means the form failed validation or the backend refused it.
	StatusRejected SubmissionStatus = "rejected"
	// StatusFailed means the backend could not be reached or answered garbage.
	StatusFailed SubmissionStatus = "failed"
)

// Submission is one journaled forwarding attempt. It records the outcome,
// not the form contents.
type Submission struct {
	ID        uuid.UUID        `json:"id"`
	Kind      SubmissionKind   `json:"kind"`
	Status    SubmissionStatus `json:"status"`
	RemoteID  string           `json:"remote_id,omitempty"`
	Detail    string           `json:"detail,omitempty"`
	GeoSource string           `json:"geo_source,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// NewSubmission stamps a journal entry with a time-ordered ID.
func NewSubmission(kind SubmissionKind, status SubmissionStatus) Submission {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Submission{ID: id, Kind: kind, Status: status, CreatedAt: Now()}
}

// SubmissionJournal stores submission outcomes.
type SubmissionJournal interface {
	Record(ctx context.Context, s Submission) error
	Recent(ctx context.Context, limit int) ([]Submission, error)
}

// Ack is what a submitter is told after a successful forward.
type Ack struct {
	ID       string `json:"id"`
	Message  string `json:"message"`
	FileURL  string `json:"file_url,omitempty"`
	Location string `json:"location,omitempty"`
}
