// Package submit runs a validated form through its upstream writes.
package submit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/guard-forms/internal/forms"
	"github.com/noah-isme/guard-forms/internal/models"
	"github.com/noah-isme/guard-forms/internal/notify"
	"github.com/noah-isme/guard-forms/internal/session"
	"github.com/noah-isme/guard-forms/internal/upstream"
	"github.com/noah-isme/guard-forms/internal/validation"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

const (
	msgFixErrors   = "Пожалуйста, исправьте ошибки в форме"
	msgSendFailed  = "Произошла ошибка при отправке формы"
	msgUploadError = "Ошибка загрузки файла %s: %s"
	uploadWorkers  = 4
)

// State is the position of a submission in its state machine.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateSubmitting State = "submitting"
	StateClosing    State = "closing"
)

// Upstream is the write side of the backend client.
type Upstream interface {
	PostJSON(ctx context.Context, path string, body interface{}) (*upstream.Result, error)
	Patch(ctx context.Context, path string, body interface{}) (*upstream.Result, error)
	PostMultipart(ctx context.Context, path string, form upstream.Multipart) (*upstream.Result, error)
	PostForm(ctx context.Context, path string, fields map[string]interface{}) (*upstream.Result, error)
}

// Sessions is what the pipeline needs from the session manager.
type Sessions interface {
	Get(ctx context.Context, id string) (*session.FormSession, error)
	Definition(formID string) (*forms.Definition, error)
	SetValues(ctx context.Context, id string, values map[string]string) (*session.FormSession, error)
	BeginSubmit(ctx context.Context, id string) (*session.FormSession, error)
	EndSubmit(ctx context.Context, id string) error
	Close(ctx context.Context, id string) error
	OpenBlob(key string) (io.ReadCloser, error)
}

// Refresher reloads the views that show the written entity.
type Refresher interface {
	Refresh(ctx context.Context, views []string)
}

// Selection drops a removed entity from the console views that selected it
// and returns the ids of the views it changed.
type Selection interface {
	Deselect(kind string, id int64) []string
}

// UploadResult reports one chained attachment upload.
type UploadResult struct {
	LocalID string `json:"local_id"`
	Name    string `json:"name"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// Outcome is what a submission ended with.
type Outcome struct {
	State      State              `json:"state"`
	OK         bool               `json:"ok"`
	Report     *forms.Report      `json:"report,omitempty"`
	ScrollTo   string             `json:"scroll_to,omitempty"`
	Result     *upstream.Result   `json:"result,omitempty"`
	Uploads    []UploadResult     `json:"uploads,omitempty"`
	Download   *upstream.Download `json:"download,omitempty"`
	Refreshed  []string           `json:"refreshed,omitempty"`
	Deselected []string           `json:"deselected,omitempty"`
	Closed     bool               `json:"closed"`
}

// Pipeline validates, sends and finalizes form submissions.
type Pipeline struct {
	sessions  Sessions
	upstream  Upstream
	refresher Refresher
	selection Selection
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPipeline wires a pipeline. validate must have the validation tags
// registered; a fresh validator is built when nil.
func NewPipeline(sessions Sessions, client Upstream, refresher Refresher, selection Selection, validate *validator.Validate, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		sessions:  sessions,
		upstream:  client,
		refresher: refresher,
		selection: selection,
		validate:  validate,
		logger:    logger,
		now:       time.Now,
	}
	if p.validate == nil {
		p.validate = validator.New()
		if err := validation.RegisterTags(p.validate, func() time.Time { return p.now() }); err != nil {
			logger.Warn("register validation tags", zap.Error(err))
		}
	}
	return p
}

// Submit runs the session's form with values merged over its current state.
// Invalid input and upstream rejections end in StateIdle with notifications;
// transport failures are returned as errors after notifying.
func (p *Pipeline) Submit(ctx context.Context, sessionID string, values map[string]string, n notify.Notifier) (*Outcome, error) {
	if n == nil {
		n = notify.Multi{}
	}
	s, err := p.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	def, err := p.sessions.Definition(s.FormID)
	if err != nil {
		return nil, err
	}
	if len(values) > 0 {
		if s, err = p.sessions.SetValues(ctx, sessionID, values); err != nil {
			return nil, err
		}
	}

	report := def.Validate(s.Values, p.now())
	if !report.Valid {
		n.Notify(ctx, notify.Error(msgFixErrors))
		p.logger.Debug("form invalid", zap.String("form", def.ID), zap.String("first_invalid", report.FirstInvalid))
		return &Outcome{State: StateIdle, Report: &report, ScrollTo: report.FirstInvalid}, nil
	}

	s, err = p.sessions.BeginSubmit(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// once issued, writes outlive the caller: a dropped client must not
	// abort a write the backend may already have committed
	wctx := context.WithoutCancel(ctx)
	closed := false
	defer func() {
		if closed {
			return
		}
		if err := p.sessions.EndSubmit(wctx, sessionID); err != nil {
			p.logger.Warn("reset submitting flag", zap.String("session_id", sessionID), zap.Error(err))
		}
	}()

	payload := def.Payload(report)
	if def.Submit.EntityKey != "" && s.EntityID != nil {
		payload[def.Submit.EntityKey] = *s.EntityID
	}
	if err := p.checkPayload(def, payload); err != nil {
		n.Notify(ctx, notify.Error(def.Submit.ErrorMessage))
		return nil, err
	}

	for _, step := range def.Submit.Before {
		if !validation.IsChecked(report.Values[step.When]) || skipped(s, step) {
			continue
		}
		res, err := p.send(wctx, step.Method, s.EntityPath(step.Endpoint), map[string]interface{}{})
		if err != nil {
			n.Notify(ctx, notify.Error(transportMessage(err)))
			return nil, err
		}
		if !res.OK() {
			n.Notify(ctx, notify.Error(res.RejectionMessage(def.Submit.ErrorMessage)))
			return &Outcome{State: StateIdle, Result: res}, nil
		}
		n.Notify(ctx, notify.Info(res.SuccessMessage("")))
	}

	res, err := p.send(wctx, def.Submit.Method, s.EntityPath(def.Submit.Endpoint), payload)
	if err != nil {
		n.Notify(ctx, notify.Error(transportMessage(err)))
		p.logger.Warn("form submission failed", zap.String("form", def.ID), zap.Error(err))
		return nil, err
	}
	if !res.OK() {
		n.Notify(ctx, notify.Error(res.RejectionMessage(def.Submit.ErrorMessage)))
		p.logger.Info("form rejected", zap.String("form", def.ID), zap.Int("status", res.HTTPStatus))
		return &Outcome{State: StateIdle, Result: res}, nil
	}

	out := &Outcome{State: StateClosing, OK: true, Result: res, Download: res.Download}
	out.Uploads = p.uploadStaged(wctx, def, s, res, n)

	if p.selection != nil && def.Submit.Deselect != "" && s.EntityID != nil {
		out.Deselected = p.selection.Deselect(def.Submit.Deselect, *s.EntityID)
	}

	if p.refresher != nil && len(def.Submit.Refresh) > 0 {
		p.refresher.Refresh(wctx, def.Submit.Refresh)
		out.Refreshed = append([]string(nil), def.Submit.Refresh...)
	}
	n.Notify(ctx, notify.Success(res.SuccessMessage(def.Submit.SuccessMessage)))

	if err := p.sessions.Close(wctx, sessionID); err != nil {
		p.logger.Warn("close form session", zap.String("session_id", sessionID), zap.Error(err))
	} else {
		closed = true
		out.Closed = true
	}
	p.logger.Info("form submitted", zap.String("form", def.ID), zap.Int64("id", res.ID), zap.Int("uploads", len(out.Uploads)))
	return out, nil
}

func (p *Pipeline) checkPayload(def *forms.Definition, payload map[string]interface{}) error {
	if !models.KnownPayload(def.Submit.Payload) {
		return nil
	}
	typed, err := models.DecodePayload(def.Submit.Payload, payload)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "payload does not match its schema")
	}
	if err := p.validate.Struct(typed); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field())
			}
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "payload rejected: "+strings.Join(fields, ", "))
		}
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "payload rejected")
	}
	return nil
}

func (p *Pipeline) send(ctx context.Context, method forms.Method, path string, payload map[string]interface{}) (*upstream.Result, error) {
	switch method {
	case forms.MethodPatch:
		return p.upstream.Patch(ctx, path, payload)
	case forms.MethodPostMultipart:
		return p.upstream.PostMultipart(ctx, path, upstream.Multipart{Fields: payload})
	case forms.MethodPostForm:
		return p.upstream.PostForm(ctx, path, payload)
	default:
		return p.upstream.PostJSON(ctx, path, payload)
	}
}

// uploadStaged sends every staged file in parallel once the entity exists.
// Failures are reported one by one and nothing is rolled back.
func (p *Pipeline) uploadStaged(ctx context.Context, def *forms.Definition, s *session.FormSession, res *upstream.Result, n notify.Notifier) []UploadResult {
	staged := s.Staged()
	if def.Attachments == nil || len(staged) == 0 {
		return nil
	}
	objectID := res.ID
	if objectID == 0 && s.EntityID != nil && def.Submit.EntityKey == "" {
		objectID = *s.EntityID
	}
	results := make([]UploadResult, len(staged))
	if objectID == 0 {
		for i, att := range staged {
			results[i] = UploadResult{LocalID: att.LocalID, Name: att.Name, Error: "backend returned no id"}
			n.Notify(ctx, notify.Error(fmt.Sprintf(msgUploadError, att.Name, results[i].Error)))
		}
		return results
	}

	var g errgroup.Group
	g.SetLimit(uploadWorkers)
	for i, att := range staged {
		g.Go(func() error {
			results[i] = p.uploadOne(ctx, def.Attachments, objectID, att)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		if !r.OK {
			n.Notify(ctx, notify.Error(fmt.Sprintf(msgUploadError, r.Name, r.Error)))
		}
	}
	return results
}

func (p *Pipeline) uploadOne(ctx context.Context, cfg *forms.Uploads, objectID int64, att session.StagedAttachment) UploadResult {
	out := UploadResult{LocalID: att.LocalID, Name: att.Name}
	res, err := p.upstream.PostMultipart(ctx, cfg.Endpoint, upstream.Multipart{
		Fields: map[string]interface{}{
			"file_type": cfg.FileType,
			"object_id": objectID,
		},
		Files: []upstream.FilePart{{
			Field:       "file",
			Name:        att.Name,
			ContentType: att.ContentType,
			Open:        func() (io.ReadCloser, error) { return p.sessions.OpenBlob(att.BlobKey) },
		}},
	})
	switch {
	case err != nil:
		out.Error = transportMessage(err)
	case !res.OK():
		out.Error = res.RejectionMessage("файл отклонён")
	default:
		out.OK = true
	}
	if !out.OK {
		p.logger.Warn("attachment upload failed", zap.String("name", att.Name), zap.Int64("object_id", objectID), zap.String("error", out.Error))
	}
	return out
}

func skipped(s *session.FormSession, step forms.Step) bool {
	if step.SkipIf == "" || s.Snapshot == nil {
		return false
	}
	v, _ := s.Snapshot.Entity[step.SkipIf].(bool)
	return v
}

func transportMessage(err error) string {
	if errors.Is(err, appErrors.ErrTimeout) {
		return appErrors.ErrTimeout.Message
	}
	if appErr := appErrors.FromError(err); appErr != nil && !errors.Is(err, appErrors.ErrNetwork) && !errors.Is(err, appErrors.ErrInternal) {
		return appErr.Message
	}
	return msgSendFailed
}
