package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/guard-forms/internal/forms"
	"github.com/noah-isme/guard-forms/internal/models"
	"github.com/noah-isme/guard-forms/internal/upstream"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

const (
	usersPath           = "/admin/users/"
	employeesPath       = "/worker/filter/"
	employeesSearchPath = "/worker/search/"
)

// Upstream is the part of the backend client lists need.
type Upstream interface {
	Get(ctx context.Context, path string) (map[string]interface{}, error)
	PostJSON(ctx context.Context, path string, body interface{}) (*upstream.Result, error)
}

// Views reports which views currently show a list kind and with what filter.
type Views interface {
	ViewsOf(kind string) map[string]FilterState
}

// Page is one rendered list.
type Page struct {
	Kind      string               `json:"kind"`
	View      string               `json:"view,omitempty"`
	Ticket    Ticket               `json:"ticket"`
	Filter    FilterState          `json:"filter"`
	Users     []models.UserAccount `json:"users,omitempty"`
	Employees []models.Employee    `json:"employees,omitempty"`
	Labels    []string             `json:"labels"`
	Empty     string               `json:"empty,omitempty"`
}

// Len is the number of rows on the page.
func (p *Page) Len() int {
	return len(p.Users) + len(p.Employees)
}

// Service fetches lists.
type Service struct {
	upstream Upstream
	views    Views
	guards   Guards
	logger   *zap.Logger

	mu     sync.RWMutex
	latest map[string]*Page
}

// NewService builds a list service. views may be nil.
func NewService(client Upstream, views Views, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{upstream: client, views: views, logger: logger, latest: make(map[string]*Page)}
}

// Fetch loads a list for view. A fetch overtaken by a newer one for the same
// view fails with SUPERSEDED and its page is never stored.
func (s *Service) Fetch(ctx context.Context, view, kind string, filter FilterState) (*Page, error) {
	filter = filter.Normalize(kind)
	if err := filter.Validate(kind); err != nil {
		return nil, err
	}
	guard := s.guards.For(view + "/" + kind)
	ticket, gctx := guard.Begin(ctx)
	defer guard.Done(ticket)

	page, err := s.load(gctx, kind, filter)
	if err != nil {
		if !guard.Current(ticket) || errors.Is(err, appErrors.ErrSuperseded) {
			return nil, appErrors.Clone(appErrors.ErrSuperseded, "list request replaced by a newer one")
		}
		return nil, err
	}
	page.View = view
	page.Ticket = ticket

	if !guard.Commit(ticket, func() { s.store(view, kind, page) }) {
		s.logger.Debug("stale list response dropped", zap.String("view", view), zap.String("kind", kind), zap.Uint64("ticket", uint64(ticket)))
		return nil, appErrors.Clone(appErrors.ErrSuperseded, "list request replaced by a newer one")
	}
	return page, nil
}

// Load fetches a list outside any view, for exports.
func (s *Service) Load(ctx context.Context, kind string, filter FilterState) (*Page, error) {
	filter = filter.Normalize(kind)
	if err := filter.Validate(kind); err != nil {
		return nil, err
	}
	return s.load(ctx, kind, filter)
}

// Latest returns the last committed page of a view.
func (s *Service) Latest(view, kind string) (*Page, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.latest[view+"/"+kind]
	return p, ok
}

// Refresh re-fetches every view showing one of the list kinds in views.
// Other names are entity views the client reloads on its own.
func (s *Service) Refresh(ctx context.Context, views []string) {
	if s.views == nil {
		return
	}
	for _, kind := range views {
		if !ValidKind(kind) {
			continue
		}
		for view, filter := range s.views.ViewsOf(kind) {
			if _, err := s.Fetch(ctx, view, kind, filter); err != nil && !errors.Is(err, appErrors.ErrSuperseded) {
				s.logger.Warn("list refresh failed", zap.String("view", view), zap.String("kind", kind), zap.Error(err))
			}
		}
	}
}

// Forget drops the pages of a closed view and cancels its fetches.
func (s *Service) Forget(view string) {
	for _, kind := range []string{KindUsers, KindEmployees} {
		s.guards.Drop(view + "/" + kind)
	}
	s.mu.Lock()
	for _, kind := range []string{KindUsers, KindEmployees} {
		delete(s.latest, view+"/"+kind)
	}
	s.mu.Unlock()
}

func (s *Service) store(view, kind string, page *Page) {
	s.mu.Lock()
	s.latest[view+"/"+kind] = page
	s.mu.Unlock()
}

func (s *Service) load(ctx context.Context, kind string, filter FilterState) (*Page, error) {
	page := &Page{Kind: kind, Filter: filter, Labels: []string{}}
	switch kind {
	case KindUsers:
		body, err := s.upstream.Get(ctx, usersPath+"?"+filter.Query(kind).Encode())
		if err != nil {
			return nil, err
		}
		if err := decodeList(body, "users", &page.Users); err != nil {
			return nil, err
		}
		for _, u := range page.Users {
			page.Labels = append(page.Labels, u.DisplayName())
		}
	case KindEmployees:
		var body map[string]interface{}
		if filter.Search != "" {
			res, err := s.upstream.PostJSON(ctx, employeesSearchPath, map[string]string{"query": filter.Search})
			if err != nil {
				return nil, err
			}
			if !res.OK() {
				return nil, appErrors.Clone(appErrors.ErrRejected, res.RejectionMessage("Ошибка поиска сотрудников"))
			}
			body = res.Body
		} else {
			var err error
			if body, err = s.upstream.Get(ctx, employeesPath+"?"+filter.Query(kind).Encode()); err != nil {
				return nil, err
			}
		}
		if err := decodeList(body, "employees", &page.Employees); err != nil {
			return nil, err
		}
		if filter.Search != "" {
			page.Employees = filterByGender(page.Employees, filter.Gender)
		}
		sortEmployees(page.Employees, filter.Sort)
		for _, e := range page.Employees {
			page.Labels = append(page.Labels, forms.Initials(e.FIO))
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown list %q", kind))
	}
	if page.Len() == 0 {
		page.Empty = EmptyMessage(kind, filter.Search)
	}
	return page, nil
}

func decodeList(body map[string]interface{}, key string, out interface{}) error {
	raw, ok := body[key]
	if !ok || raw == nil {
		return nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnexpectedResponse.Code, appErrors.ErrUnexpectedResponse.Status, "encode list")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return appErrors.Wrap(err, appErrors.ErrUnexpectedResponse.Code, appErrors.ErrUnexpectedResponse.Status, fmt.Sprintf("%s is not a list", key))
	}
	return nil
}
