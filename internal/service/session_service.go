package service

import (
	"context"
	"io"
	"mime/multipart"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/guard-forms/internal/dto"
	"github.com/noah-isme/guard-forms/internal/notify"
	"github.com/noah-isme/guard-forms/internal/session"
	"github.com/noah-isme/guard-forms/internal/submit"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

type sessionManager interface {
	Open(ctx context.Context, formID string, entityID *int64) (*session.FormSession, error)
	Get(ctx context.Context, id string) (*session.FormSession, error)
	Handle(ctx context.Context, id string, event session.Event) (*session.FormSession, error)
	Close(ctx context.Context, id string) error
	AddAttachment(ctx context.Context, id string, up session.Upload) (*session.FormSession, session.StagedAttachment, error)
	RemoveAttachment(ctx context.Context, id, localID string) (*session.FormSession, error)
}

type submitter interface {
	Submit(ctx context.Context, sessionID string, values map[string]string, n notify.Notifier) (*submit.Outcome, error)
}

// SessionService drives open modals and their submissions.
type SessionService struct {
	sessions sessionManager
	pipeline submitter
	validate *validator.Validate
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewSessionService builds the session service. metrics may be nil.
func NewSessionService(sessions sessionManager, pipeline submitter, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *SessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{sessions: sessions, pipeline: pipeline, validate: validate, metrics: metrics, logger: logger}
}

// Open shows a modal.
func (s *SessionService) Open(ctx context.Context, req dto.OpenSessionRequest) (*session.FormSession, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session request")
	}
	fs, err := s.sessions.Open(ctx, req.Form, req.EntityID)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveSessionOpened(req.Form)
	return fs, nil
}

// Get returns a session.
func (s *SessionService) Get(ctx context.Context, id string) (*session.FormSession, error) {
	return s.sessions.Get(ctx, id)
}

// Event dispatches a lifecycle event by name.
func (s *SessionService) Event(ctx context.Context, id, name string) (*session.FormSession, error) {
	ev, err := session.ParseEvent(name)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return s.sessions.Handle(ctx, id, ev)
}

// Close hides the modal for good.
func (s *SessionService) Close(ctx context.Context, id string) error {
	return s.sessions.Close(ctx, id)
}

// AddAttachment stages an uploaded file.
func (s *SessionService) AddAttachment(ctx context.Context, id string, header *multipart.FileHeader) (*session.FormSession, *session.StagedAttachment, error) {
	if header == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	f, err := header.Open()
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "cannot read uploaded file")
	}
	defer f.Close()
	return s.stage(ctx, id, header.Filename, header.Header.Get("Content-Type"), header.Size, f)
}

func (s *SessionService) stage(ctx context.Context, id, name, contentType string, size int64, body io.Reader) (*session.FormSession, *session.StagedAttachment, error) {
	fs, att, err := s.sessions.AddAttachment(ctx, id, session.Upload{
		Name:        name,
		ContentType: contentType,
		Size:        size,
		Body:        body,
	})
	if err != nil {
		return nil, nil, err
	}
	return fs, &att, nil
}

// RemoveAttachment drops a staged file or deletes a persisted one.
func (s *SessionService) RemoveAttachment(ctx context.Context, id, localID string) (*session.FormSession, error) {
	return s.sessions.RemoveAttachment(ctx, id, localID)
}

// Submit runs the pipeline and returns the notifications it raised, also
// when it fails.
func (s *SessionService) Submit(ctx context.Context, id string, req dto.SubmitRequest) (*submit.Outcome, []notify.Notification, error) {
	fs, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	collector := notify.NewCollector()
	outcome, err := s.pipeline.Submit(ctx, id, req.Values, notify.Multi{collector, notify.NewLogger(s.logger)})
	s.record(fs.FormID, outcome, err)
	return outcome, collector.Items(), err
}

func (s *SessionService) record(form string, outcome *submit.Outcome, err error) {
	switch {
	case err != nil:
		if appErrors.FromError(err).Code == appErrors.ErrInProgress.Code {
			return
		}
		s.metrics.ObserveSubmission(form, OutcomeFailed)
	case outcome == nil:
	case outcome.OK:
		s.metrics.ObserveSubmission(form, OutcomeSuccess)
	case outcome.Report != nil && !outcome.Report.Valid:
		s.metrics.ObserveSubmission(form, OutcomeInvalid)
	default:
		s.metrics.ObserveSubmission(form, OutcomeRejected)
	}
	if outcome != nil {
		for _, u := range outcome.Uploads {
			s.metrics.ObserveUpload(u.OK)
		}
	}
}
