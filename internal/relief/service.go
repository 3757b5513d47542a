// Package relief forwards the volunteer, donation and help request forms and
// the help request attachments to the relief backend.
package relief

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/couchcryptid/sahayata-dashboard/internal/adapter/backend"
	"github.com/couchcryptid/sahayata-dashboard/internal/domain"
	"github.com/couchcryptid/sahayata-dashboard/internal/observability"
)

// Backend is the subset of the relief API the forms use.
type Backend interface {
	RegisterVolunteer(ctx context.Context, payload domain.VolunteerPayload) (string, error)
	SubmitDonation(ctx context.Context, form domain.DonationForm) (string, error)
	SubmitHelpRequest(ctx context.Context, payload domain.HelpRequestPayload) (string, error)
	GetUploadURL(ctx context.Context, fileName, fileType string) (backend.UploadTarget, error)
	PutFile(ctx context.Context, uploadURL, contentType string, content io.Reader, size int64) error
}

// EventPublisher announces journaled submissions.
type EventPublisher interface {
	PublishSubmission(ctx context.Context, s domain.Submission) error
}

// Failure is a submission that was not accepted. Message is the text shown to
// the submitter; Err carries the cause.
type Failure struct {
	Kind    domain.SubmissionKind
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Invalid reports whether the submission was refused before reaching the backend.
func (f *Failure) Invalid() bool { return errors.Is(f.Err, domain.ErrInvalidForm) }

// Service validates, enriches and forwards form submissions.
type Service struct {
	backend   Backend
	geocoder  domain.Geocoder
	journal   domain.SubmissionJournal
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithGeocoder fills missing form locations before forwarding.
func WithGeocoder(g domain.Geocoder) Option {
	return func(s *Service) { s.geocoder = g }
}

// WithJournal records every submission outcome.
func WithJournal(j domain.SubmissionJournal) Option {
	return func(s *Service) { s.journal = j }
}

// WithPublisher publishes every journaled outcome.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// NewService creates a Service forwarding to b.
func NewService(b Backend, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Service {
	s := &Service{backend: b, logger: logger, metrics: metrics}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterVolunteer forwards a volunteer registration.
func (s *Service) RegisterVolunteer(ctx context.Context, form domain.VolunteerForm) (domain.Ack, error) {
	if err := form.Validate(); err != nil {
		return domain.Ack{}, s.reject(ctx, domain.KindVolunteer, err)
	}

	loc := domain.EnrichWithGeocoding(ctx, form.Location(), s.geocoder, s.logger)
	form = form.WithLocation(loc)

	id, err := s.backend.RegisterVolunteer(ctx, form.Payload())
	if err != nil {
		var remote *backend.RemoteError
		msg := "Something went wrong submitting the volunteer form."
		if errors.As(err, &remote) {
			detail := remote.Message
			if detail == "" {
				detail = "Something went wrong"
			}
			msg = "Error: " + detail
		}
		return domain.Ack{}, s.fail(ctx, domain.KindVolunteer, err, msg, loc.Source)
	}

	s.accept(ctx, domain.KindVolunteer, id, "", loc.Source)
	return domain.Ack{ID: id, Message: "Volunteer registered! ID: " + id, Location: loc.Place}, nil
}

// SubmitDonation forwards a donation.
func (s *Service) SubmitDonation(ctx context.Context, form domain.DonationForm) (domain.Ack, error) {
	if err := form.Validate(); err != nil {
		return domain.Ack{}, s.reject(ctx, domain.KindDonation, err)
	}

	id, err := s.backend.SubmitDonation(ctx, form)
	if err != nil {
		msg := "Something went wrong. Please try again later."
		var remote *backend.RemoteError
		if errors.As(err, &remote) {
			msg = "Failed to submit donation. Check console for details."
		}
		return domain.Ack{}, s.fail(ctx, domain.KindDonation, err, msg, "")
	}

	s.accept(ctx, domain.KindDonation, id, "", "")
	return domain.Ack{ID: id, Message: "Donation submitted successfully!"}, nil
}

// SubmitHelpRequest forwards an emergency help request.
func (s *Service) SubmitHelpRequest(ctx context.Context, form domain.HelpRequestForm) (domain.Ack, error) {
	if err := form.Validate(); err != nil {
		return domain.Ack{}, s.reject(ctx, domain.KindHelpRequest, err)
	}

	loc := domain.EnrichWithGeocoding(ctx, form.Location(), s.geocoder, s.logger)
	form = form.WithLocation(loc)

	id, err := s.backend.SubmitHelpRequest(ctx, form.Payload())
	if err != nil {
		var remote *backend.RemoteError
		msg := "Network / Server Error: " + err.Error()
		if errors.As(err, &remote) {
			detail := remote.Message
			if detail == "" {
				detail = fmt.Sprintf("status %d", remote.StatusCode)
			}
			msg = "Submit Failed: " + detail
		}
		return domain.Ack{}, s.fail(ctx, domain.KindHelpRequest, err, msg, loc.Source)
	}

	s.accept(ctx, domain.KindHelpRequest, id, form.PriorityLevel, loc.Source)
	return domain.Ack{ID: id, Message: "Request Submitted! ID: " + id, Location: loc.Place}, nil
}

// Recent returns the latest journaled submissions, or an empty list when no
// journal is configured.
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.Submission, error) {
	if s.journal == nil {
		return []domain.Submission{}, nil
	}
	return s.journal.Recent(ctx, limit)
}

// reject journals a submission refused by validation.
func (s *Service) reject(ctx context.Context, kind domain.SubmissionKind, err error) error {
	sub := domain.NewSubmission(kind, domain.StatusRejected)
	sub.Detail = err.Error()
	s.record(ctx, sub)
	return &Failure{Kind: kind, Message: err.Error(), Err: err}
}

// fail journals a submission the backend refused or never answered.
func (s *Service) fail(ctx context.Context, kind domain.SubmissionKind, err error, msg, geoSource string) error {
	status := domain.StatusFailed
	var remote *backend.RemoteError
	if errors.As(err, &remote) {
		status = domain.StatusRejected
	}
	s.logger.Warn("submission not accepted", "kind", kind, "status", status, "error", err)

	sub := domain.NewSubmission(kind, status)
	sub.Detail = err.Error()
	sub.GeoSource = geoSource
	s.record(ctx, sub)
	return &Failure{Kind: kind, Message: msg, Err: err}
}

func (s *Service) accept(ctx context.Context, kind domain.SubmissionKind, remoteID, detail, geoSource string) {
	s.logger.Info("submission accepted", "kind", kind, "remote_id", remoteID)

	sub := domain.NewSubmission(kind, domain.StatusAccepted)
	sub.RemoteID = remoteID
	sub.Detail = detail
	sub.GeoSource = geoSource
	s.record(ctx, sub)
}

// record journals and publishes an outcome. Neither step can fail the
// submission itself.
func (s *Service) record(ctx context.Context, sub domain.Submission) {
	s.metrics.Submissions.WithLabelValues(string(sub.Kind), string(sub.Status)).Inc()

	if s.journal != nil {
		if err := s.journal.Record(ctx, sub); err != nil {
			s.logger.Error("journal write failed", "id", sub.ID, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishSubmission(ctx, sub); err != nil {
			s.logger.Warn("submission event not published", "id", sub.ID, "error", err)
		}
	}
}
