package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/guard-forms/internal/forms"
	"github.com/noah-isme/guard-forms/internal/upstream"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
	"github.com/noah-isme/guard-forms/pkg/jobs"
	"github.com/noah-isme/guard-forms/pkg/storage"
)

// JobPurge deletes staged blobs that will never be uploaded.
const JobPurge = "attachments.purge"

const msgFileDeleteFailed = "Ошибка удаления файла"

// PurgePayload lists the blobs of one session to delete. Dir removes the
// whole session directory.
type PurgePayload struct {
	SessionID string
	Keys      []string
	Dir       bool
}

// Upstream is the subset of the backend client sessions need.
type Upstream interface {
	Get(ctx context.Context, path string) (map[string]interface{}, error)
	PostJSON(ctx context.Context, path string, body interface{}) (*upstream.Result, error)
}

// Purger accepts background purge jobs.
type Purger interface {
	Enqueue(job jobs.Job) error
}

// Limits bound what may be staged.
type Limits struct {
	MaxFileSize  int64
	AllowedMIMEs []string
}

// Upload is a file offered for staging.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Manager drives form sessions through their lifecycle.
type Manager struct {
	forms    *forms.Registry
	store    Store
	upstream Upstream
	blobs    *storage.LocalStorage
	purger   Purger
	limits   Limits
	logger   *zap.Logger
	now      func() time.Time

	locks sync.Map
}

// NewManager wires a session manager. purger may be nil, in which case blobs
// are deleted inline.
func NewManager(registry *forms.Registry, store Store, client Upstream, blobs *storage.LocalStorage, purger Purger, limits Limits, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		forms:    registry,
		store:    store,
		upstream: client,
		blobs:    blobs,
		purger:   purger,
		limits:   limits,
		logger:   logger,
		now:      time.Now,
	}
}

// OpenBlob opens a staged file for the upload phase.
func (m *Manager) OpenBlob(key string) (io.ReadCloser, error) {
	return m.blobs.Open(key)
}

// Definition resolves the form of a session.
func (m *Manager) Definition(formID string) (*forms.Definition, error) {
	def, ok := m.forms.Get(formID)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("form %s not found", formID))
	}
	return def, nil
}

// Open creates a session and runs show and shown on it.
func (m *Manager) Open(ctx context.Context, formID string, entityID *int64) (*FormSession, error) {
	def, err := m.Definition(formID)
	if err != nil {
		return nil, err
	}
	if entityID == nil && (def.NeedsPreload() || def.Submit.EntityKey != "" || strings.Contains(def.Submit.Endpoint, "{id}")) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("form %s needs an entity id", formID))
	}
	now := m.now().UTC()
	s := &FormSession{
		ID:          uuid.NewString(),
		FormID:      formID,
		EntityID:    entityID,
		Attachments: []StagedAttachment{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	m.logger.Info("form session opened", zap.String("session_id", s.ID), zap.String("form", formID))
	opened, err := m.Handle(ctx, s.ID, EventShow)
	if err == nil {
		opened, err = m.Handle(ctx, s.ID, EventShown)
	}
	if err != nil {
		// the caller never learns the id, so nothing could close it later
		m.discard(context.WithoutCancel(ctx), s.ID)
		return nil, err
	}
	return opened, nil
}

func (m *Manager) discard(ctx context.Context, id string) {
	if err := m.store.Delete(ctx, id); err != nil {
		m.logger.Warn("discard form session", zap.String("session_id", id), zap.Error(err))
	}
	m.purge(id, nil, true)
	m.locks.Delete(id)
}

// Get returns the current state of a session.
func (m *Manager) Get(ctx context.Context, id string) (*FormSession, error) {
	return m.store.Get(ctx, id)
}

// Handle applies one lifecycle event.
func (m *Manager) Handle(ctx context.Context, id string, event Event) (*FormSession, error) {
	switch event {
	case EventShow:
		var stale []string
		s, err := m.mutate(ctx, id, func(s *FormSession, def *forms.Definition) error {
			stale = blobKeys(s.Staged())
			s.Values = def.Defaults()
			s.Attachments = []StagedAttachment{}
			s.Snapshot = nil
			s.Ready = !def.NeedsPreload()
			s.Closed = false
			s.IsSubmitting = false
			s.Generation++
			return nil
		})
		if err == nil {
			m.purge(id, stale, false)
		}
		return s, err
	case EventShown:
		return m.preload(ctx, id)
	case EventHide:
		s, err := m.store.Get(ctx, id)
		if err == nil {
			m.logger.Debug("form hiding", zap.String("session_id", id), zap.String("form", s.FormID))
		}
		return s, err
	case EventHidden:
		var stale []string
		s, err := m.mutate(ctx, id, func(s *FormSession, _ *forms.Definition) error {
			stale = blobKeys(s.Staged())
			s.Snapshot = nil
			s.Attachments = []StagedAttachment{}
			s.Values = nil
			s.Ready = false
			s.Closed = true
			s.IsSubmitting = false
			return nil
		})
		if err == nil {
			m.purge(id, stale, false)
		}
		return s, err
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown lifecycle event %q", event))
	}
}

// Close runs hide and hidden and forgets the session.
func (m *Manager) Close(ctx context.Context, id string) error {
	if _, err := m.Handle(ctx, id, EventHide); err != nil {
		return err
	}
	if _, err := m.Handle(ctx, id, EventHidden); err != nil {
		return err
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.purge(id, nil, true)
	m.locks.Delete(id)
	return nil
}

// preload loads the entity and its persisted files. A show issued while the
// read is in flight wins: the stale result is dropped with SUPERSEDED.
func (m *Manager) preload(ctx context.Context, id string) (*FormSession, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	def, err := m.Definition(s.FormID)
	if err != nil {
		return nil, err
	}
	if !def.NeedsPreload() {
		return m.mutate(ctx, id, func(s *FormSession, _ *forms.Definition) error {
			s.Ready = true
			return nil
		})
	}
	generation := s.Generation

	body, err := m.upstream.Get(ctx, s.EntityPath(def.Preload.DetailPath))
	if err != nil {
		m.logger.Warn("form preload failed", zap.String("session_id", id), zap.String("form", s.FormID), zap.Error(err))
		return nil, err
	}
	entity, err := upstream.DecodeEntity(body, def.Preload.Unwrap)
	if err != nil {
		return nil, err
	}
	files := upstream.DecodeFiles(entity)
	if def.Preload.AttachmentsPath != "" {
		listed, err := m.upstream.Get(ctx, s.EntityPath(def.Preload.AttachmentsPath))
		if err != nil {
			return nil, err
		}
		files = upstream.DecodeFiles(listed)
	}

	return m.mutate(ctx, id, func(s *FormSession, def *forms.Definition) error {
		if s.Generation != generation || s.Closed {
			return appErrors.Clone(appErrors.ErrSuperseded, "form was reopened while loading")
		}
		s.Snapshot = &Snapshot{Entity: entity, Files: files, LoadedAt: m.now().UTC()}
		s.Values = def.Prefill(entity)
		s.Attachments = append(persisted(files), s.Staged()...)
		s.Ready = true
		return nil
	})
}

// SetValues merges values into the session.
func (m *Manager) SetValues(ctx context.Context, id string, values map[string]string) (*FormSession, error) {
	return m.mutate(ctx, id, func(s *FormSession, _ *forms.Definition) error {
		if s.Values == nil {
			s.Values = make(map[string]string, len(values))
		}
		for k, v := range values {
			s.Values[k] = v
		}
		return nil
	})
}

// AddAttachment stages a file. Files are always appended, never deduplicated.
func (m *Manager) AddAttachment(ctx context.Context, id string, up Upload) (*FormSession, StagedAttachment, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, StagedAttachment{}, err
	}
	def, err := m.Definition(s.FormID)
	if err != nil {
		return nil, StagedAttachment{}, err
	}
	if def.Attachments == nil {
		return nil, StagedAttachment{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("form %s does not accept attachments", def.ID))
	}
	if s.Closed {
		return nil, StagedAttachment{}, appErrors.Clone(appErrors.ErrConflict, "form session is closed")
	}
	if m.limits.MaxFileSize > 0 && up.Size > m.limits.MaxFileSize {
		return nil, StagedAttachment{}, appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("%s exceeds %s", up.Name, FormatFileSize(m.limits.MaxFileSize)))
	}
	contentType := normalizeMIME(up.ContentType)
	if !m.allowed(contentType) {
		return nil, StagedAttachment{}, appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("%s: type %s not allowed", up.Name, contentType))
	}

	localID := uuid.NewString()
	key := path.Join(id, localID)
	size, err := m.blobs.SaveStream(key, up.Body, m.limits.MaxFileSize)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, StagedAttachment{}, appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("%s exceeds %s", up.Name, FormatFileSize(m.limits.MaxFileSize)))
		}
		return nil, StagedAttachment{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stage attachment")
	}

	att := StagedAttachment{
		LocalID:     localID,
		Name:        up.Name,
		DisplayName: SafeName(up.Name),
		Size:        size,
		SizeLabel:   FormatFileSize(size),
		ContentType: contentType,
		BlobKey:     key,
		IsNew:       true,
	}
	updated, err := m.mutate(ctx, id, func(s *FormSession, _ *forms.Definition) error {
		if s.Closed {
			return appErrors.Clone(appErrors.ErrConflict, "form session is closed")
		}
		s.Attachments = append(s.Attachments, att)
		return nil
	})
	if err != nil {
		_ = m.blobs.Delete(key)
		return nil, StagedAttachment{}, err
	}
	m.logger.Info("attachment staged",
		zap.String("session_id", id),
		zap.String("local_id", localID),
		zap.Int64("size", size),
	)
	return updated, att, nil
}

// RemoveAttachment drops a staged file or deletes a persisted one upstream
// right away and reloads the file list.
func (m *Manager) RemoveAttachment(ctx context.Context, id, localID string) (*FormSession, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	def, err := m.Definition(s.FormID)
	if err != nil {
		return nil, err
	}
	var target *StagedAttachment
	for i := range s.Attachments {
		if s.Attachments[i].LocalID == localID {
			target = &s.Attachments[i]
			break
		}
	}
	if target == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
	}

	if target.IsNew {
		key := target.BlobKey
		updated, err := m.mutate(ctx, id, func(s *FormSession, _ *forms.Definition) error {
			s.Attachments = without(s.Attachments, localID)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if err := m.blobs.Delete(key); err != nil {
			m.logger.Warn("staged blob delete failed", zap.String("key", key), zap.Error(err))
		}
		return updated, nil
	}

	if def.Attachments == nil || def.Attachments.DeletePath == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "form cannot delete persisted files")
	}
	res, err := m.upstream.PostJSON(ctx, def.Attachments.DeletePath, map[string]interface{}{"file_id": target.RemoteID})
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, appErrors.Clone(appErrors.ErrRejected, res.RejectionMessage(msgFileDeleteFailed))
	}

	files, refreshed := m.refreshFiles(ctx, s, def)
	return m.mutate(ctx, id, func(s *FormSession, _ *forms.Definition) error {
		if !refreshed {
			s.Attachments = without(s.Attachments, localID)
			if s.Snapshot != nil {
				s.Snapshot.Files = withoutRemote(s.Snapshot.Files, target.RemoteID)
			}
			return nil
		}
		if s.Snapshot != nil {
			s.Snapshot.Files = files
		}
		s.Attachments = append(persisted(files), s.Staged()...)
		return nil
	})
}

func (m *Manager) refreshFiles(ctx context.Context, s *FormSession, def *forms.Definition) ([]upstream.RemoteFile, bool) {
	if def.Preload == nil || s.EntityID == nil {
		return nil, false
	}
	if def.Preload.AttachmentsPath != "" {
		body, err := m.upstream.Get(ctx, s.EntityPath(def.Preload.AttachmentsPath))
		if err != nil {
			m.logger.Warn("file list refresh failed", zap.String("session_id", s.ID), zap.Error(err))
			return nil, false
		}
		return upstream.DecodeFiles(body), true
	}
	body, err := m.upstream.Get(ctx, s.EntityPath(def.Preload.DetailPath))
	if err != nil {
		m.logger.Warn("entity refresh failed", zap.String("session_id", s.ID), zap.Error(err))
		return nil, false
	}
	entity, err := upstream.DecodeEntity(body, def.Preload.Unwrap)
	if err != nil {
		return nil, false
	}
	return upstream.DecodeFiles(entity), true
}

// BeginSubmit marks the session busy. A second submission while busy, or one
// before the preload finished, is refused.
func (m *Manager) BeginSubmit(ctx context.Context, id string) (*FormSession, error) {
	return m.mutate(ctx, id, func(s *FormSession, _ *forms.Definition) error {
		switch {
		case s.Closed:
			return appErrors.Clone(appErrors.ErrConflict, "form session is closed")
		case !s.Ready:
			return appErrors.ErrNotReady
		case s.IsSubmitting:
			return appErrors.ErrInProgress
		}
		s.IsSubmitting = true
		return nil
	})
}

// EndSubmit clears the busy flag.
func (m *Manager) EndSubmit(ctx context.Context, id string) error {
	_, err := m.mutate(ctx, id, func(s *FormSession, _ *forms.Definition) error {
		s.IsSubmitting = false
		return nil
	})
	return err
}

// PurgeJob is the queue handler for JobPurge.
func (m *Manager) PurgeJob(_ context.Context, job jobs.Job) error {
	p, ok := job.Payload.(PurgePayload)
	if !ok {
		return fmt.Errorf("purge job %s has payload %T", job.ID, job.Payload)
	}
	for _, key := range p.Keys {
		if err := m.blobs.Delete(key); err != nil {
			return err
		}
	}
	if p.Dir {
		return m.blobs.DeleteDir(p.SessionID)
	}
	return nil
}

// SweepStaging removes staged blobs older than retention.
func (m *Manager) SweepStaging(retention time.Duration) (int, error) {
	deleted, err := m.blobs.CleanupOlderThan(retention)
	if err != nil {
		return 0, err
	}
	if len(deleted) > 0 {
		m.logger.Info("stale staged attachments removed", zap.Int("count", len(deleted)))
	}
	return len(deleted), nil
}

// Expired purges the staging directories of sessions the store dropped
// after their TTL.
func (m *Manager) Expired(ids []string) {
	for _, id := range ids {
		m.purge(id, nil, true)
		m.locks.Delete(id)
	}
}

func (m *Manager) purge(sessionID string, keys []string, dir bool) {
	if len(keys) == 0 && !dir {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Type: JobPurge, Payload: PurgePayload{SessionID: sessionID, Keys: keys, Dir: dir}}
	if m.purger != nil {
		err := m.purger.Enqueue(job)
		if err == nil {
			return
		}
		m.logger.Warn("purge enqueue failed, deleting inline", zap.String("session_id", sessionID), zap.Error(err))
	}
	if err := m.PurgeJob(context.Background(), job); err != nil {
		m.logger.Warn("inline purge failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

func (m *Manager) mutate(ctx context.Context, id string, fn func(*FormSession, *forms.Definition) error) (*FormSession, error) {
	unlock := m.lock(id)
	defer unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	def, err := m.Definition(s.FormID)
	if err != nil {
		return nil, err
	}
	if err := fn(s, def); err != nil {
		return nil, err
	}
	s.UpdatedAt = m.now().UTC()
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) lock(id string) func() {
	v, _ := m.locks.LoadOrStore(id, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (m *Manager) allowed(contentType string) bool {
	if len(m.limits.AllowedMIMEs) == 0 {
		return true
	}
	for _, a := range m.limits.AllowedMIMEs {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == contentType {
			return true
		}
		if strings.HasSuffix(a, "/*") && strings.HasPrefix(contentType, strings.TrimSuffix(a, "*")) {
			return true
		}
	}
	return false
}

func normalizeMIME(raw string) string {
	mt, _, err := mime.ParseMediaType(raw)
	if err != nil || mt == "" {
		return "application/octet-stream"
	}
	return strings.ToLower(mt)
}

func persisted(files []upstream.RemoteFile) []StagedAttachment {
	out := make([]StagedAttachment, 0, len(files))
	for _, f := range files {
		out = append(out, StagedAttachment{
			LocalID:     fmt.Sprintf("remote-%d", f.ID),
			Name:        f.Name,
			DisplayName: SafeName(f.Name),
			SizeLabel:   f.Size,
			RemoteID:    f.ID,
		})
	}
	return out
}

func blobKeys(list []StagedAttachment) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		if a.BlobKey != "" {
			out = append(out, a.BlobKey)
		}
	}
	return out
}

func without(list []StagedAttachment, localID string) []StagedAttachment {
	out := make([]StagedAttachment, 0, len(list))
	for _, a := range list {
		if a.LocalID != localID {
			out = append(out, a)
		}
	}
	return out
}

func withoutRemote(list []upstream.RemoteFile, id int64) []upstream.RemoteFile {
	out := make([]upstream.RemoteFile, 0, len(list))
	for _, f := range list {
		if f.ID != id {
			out = append(out, f)
		}
	}
	return out
}
