// Package session keeps the per-modal state of an open admin form: the
// preloaded entity, staged attachments and the submit guard.
package session

import (
	"fmt"
	"time"

	"github.com/noah-isme/guard-forms/internal/upstream"
)

// Event is a modal lifecycle notification.
type Event string

const (
	EventShow   Event = "show"
	EventShown  Event = "shown"
	EventHide   Event = "hide"
	EventHidden Event = "hidden"
)

// ParseEvent accepts only the four lifecycle events.
func ParseEvent(raw string) (Event, error) {
	switch e := Event(raw); e {
	case EventShow, EventShown, EventHide, EventHidden:
		return e, nil
	}
	return "", fmt.Errorf("unknown lifecycle event %q", raw)
}

// Snapshot is the entity as loaded when the modal was shown.
type Snapshot struct {
	Entity   map[string]interface{} `json:"entity"`
	Files    []upstream.RemoteFile  `json:"files,omitempty"`
	LoadedAt time.Time              `json:"loaded_at"`
}

// StagedAttachment is a file shown in the modal's list. New files live in
// the staging store until submission; persisted ones belong to the backend.
type StagedAttachment struct {
	LocalID     string `json:"local_id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Size        int64  `json:"size"`
	SizeLabel   string `json:"size_label"`
	ContentType string `json:"content_type,omitempty"`
	BlobKey     string `json:"blob_key,omitempty"`
	RemoteID    int64  `json:"remote_id,omitempty"`
	IsNew       bool   `json:"is_new"`
}

// FormSession is the state of one open modal.
type FormSession struct {
	ID           string             `json:"id"`
	FormID       string             `json:"form_id"`
	EntityID     *int64             `json:"entity_id,omitempty"`
	Snapshot     *Snapshot          `json:"snapshot,omitempty"`
	Attachments  []StagedAttachment `json:"attachments"`
	Values       map[string]string  `json:"values"`
	IsSubmitting bool               `json:"is_submitting"`
	Ready        bool               `json:"ready"`
	Closed       bool               `json:"closed"`
	Generation   int                `json:"generation"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Staged returns the attachments still waiting for upload.
func (s *FormSession) Staged() []StagedAttachment {
	out := make([]StagedAttachment, 0, len(s.Attachments))
	for _, a := range s.Attachments {
		if a.IsNew {
			out = append(out, a)
		}
	}
	return out
}

// EntityPath substitutes the entity id into a path template.
func (s *FormSession) EntityPath(template string) string {
	return ExpandPath(template, s.EntityID)
}

// ExpandPath replaces {id} in template.
func ExpandPath(template string, id *int64) string {
	if id == nil {
		return template
	}
	return replaceID(template, *id)
}

func (s *FormSession) clone() *FormSession {
	out := *s
	if s.EntityID != nil {
		id := *s.EntityID
		out.EntityID = &id
	}
	if s.Snapshot != nil {
		snap := *s.Snapshot
		snap.Entity = make(map[string]interface{}, len(s.Snapshot.Entity))
		for k, v := range s.Snapshot.Entity {
			snap.Entity[k] = v
		}
		snap.Files = append([]upstream.RemoteFile(nil), s.Snapshot.Files...)
		out.Snapshot = &snap
	}
	out.Attachments = append([]StagedAttachment(nil), s.Attachments...)
	if s.Values != nil {
		out.Values = make(map[string]string, len(s.Values))
		for k, v := range s.Values {
			out.Values[k] = v
		}
	}
	return &out
}
