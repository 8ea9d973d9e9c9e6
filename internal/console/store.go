// Package console owns the state shared by the admin console views: which
// entity each view has selected and the filter each view shows. State only
// changes through the commands below.
package console

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/guard-forms/internal/listing"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

// View is the state of one console view.
type View struct {
	ID        string              `json:"id"`
	Kind      string              `json:"kind"`
	Filter    listing.FilterState `json:"filter"`
	Selected  *int64              `json:"selected,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// Change is the result of a command.
type Change struct {
	View View `json:"view"`
	// Refetch is set when the filter changed and the list must be reloaded.
	Refetch bool `json:"refetch"`
}

// Command mutates one view.
type Command interface {
	view() string
	apply(v *View) (refetch bool, err error)
}

// Store serializes commands against the console state.
type Store struct {
	mu    sync.Mutex
	views map[string]*View
	now   func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{views: make(map[string]*View), now: time.Now}
}

// Dispatch applies cmds in order and reports the resulting view. Either all
// commands apply or none do.
func (s *Store) Dispatch(cmds ...Command) (Change, error) {
	if len(cmds) == 0 {
		return Change{}, appErrors.Clone(appErrors.ErrValidation, "no command")
	}
	id := cmds[0].view()
	for _, cmd := range cmds[1:] {
		if cmd.view() != id {
			return Change{}, appErrors.Clone(appErrors.ErrValidation, "commands target different views")
		}
	}
	if strings.TrimSpace(id) == "" {
		return Change{}, appErrors.Clone(appErrors.ErrValidation, "view is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.views[id]
	draft := View{ID: id}
	if ok {
		draft = current.copy()
	}
	refetch := !ok
	for _, cmd := range cmds {
		changed, err := cmd.apply(&draft)
		if err != nil {
			return Change{}, err
		}
		refetch = refetch || changed
	}
	if draft.Kind == "" {
		return Change{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("view %q is not attached to a list", id))
	}
	if err := draft.Filter.Validate(draft.Kind); err != nil {
		return Change{}, err
	}
	draft.UpdatedAt = s.now()
	s.views[id] = &draft
	return Change{View: draft.copy(), Refetch: refetch}, nil
}

// View returns a copy of the view state.
func (s *Store) View(id string) (View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[id]
	if !ok {
		return View{}, false
	}
	return v.copy(), true
}

// ViewsOf lists the filters of every view showing kind.
func (s *Store) ViewsOf(kind string) map[string]listing.FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]listing.FilterState)
	for id, v := range s.views {
		if v.Kind == kind {
			out[id] = v.Filter
		}
	}
	return out
}

// Deselect clears the selection of every view of kind that selected id and
// returns the ids of those views in name order.
func (s *Store) Deselect(kind string, id int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0)
	for viewID, v := range s.views {
		if v.Kind != kind || v.Selected == nil || *v.Selected != id {
			continue
		}
		v.Selected = nil
		v.UpdatedAt = s.now()
		out = append(out, viewID)
	}
	sort.Strings(out)
	return out
}

// Forget drops a view and reports whether it existed.
func (s *Store) Forget(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.views[id]
	delete(s.views, id)
	return ok
}

func (v *View) copy() View {
	out := *v
	if v.Selected != nil {
		id := *v.Selected
		out.Selected = &id
	}
	return out
}
