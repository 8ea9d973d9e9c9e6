package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/guard-forms/internal/console"
	"github.com/noah-isme/guard-forms/internal/dto"
	"github.com/noah-isme/guard-forms/internal/listing"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

const defaultView = "default"

// ListResult is a list page together with the view that asked for it.
type ListResult struct {
	View console.View  `json:"view"`
	Page *listing.Page `json:"page"`
}

// ListService drives console views and their lists.
type ListService struct {
	console  *console.Store
	lists    *listing.Service
	exporter *listing.Exporter
	validate *validator.Validate
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewListService builds the list service. metrics may be nil.
func NewListService(store *console.Store, lists *listing.Service, exporter *listing.Exporter, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger) *ListService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListService{console: store, lists: lists, exporter: exporter, validate: validate, metrics: metrics, logger: logger}
}

// Fetch applies the query to the view and reloads the list when its filter
// changed. A fetch overtaken by a newer one fails with SUPERSEDED.
func (s *ListService) Fetch(ctx context.Context, kind string, q dto.ListQuery) (*ListResult, error) {
	if err := s.validate.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid list query")
	}
	view := viewID(q.View)
	change, err := s.console.Dispatch(commands(view, kind, q)...)
	if err != nil {
		return nil, err
	}
	if !change.Refetch && !q.Refresh {
		if page, ok := s.lists.Latest(view, kind); ok {
			return &ListResult{View: change.View, Page: page}, nil
		}
	}

	page, err := s.lists.Fetch(ctx, view, kind, change.View.Filter)
	switch {
	case errors.Is(err, appErrors.ErrSuperseded):
		s.metrics.ObserveListFetch(kind, "superseded")
		return nil, err
	case err != nil:
		s.metrics.ObserveListFetch(kind, "error")
		return nil, err
	}
	s.metrics.ObserveListFetch(kind, "ok")
	return &ListResult{View: change.View, Page: page}, nil
}

// Select marks the entity the view's forms act on.
func (s *ListService) Select(kind, view string, id int64) (console.View, error) {
	view = viewID(view)
	change, err := s.console.Dispatch(console.AttachView{View: view, Kind: kind}, console.SelectEntity{View: view, ID: id})
	if err != nil {
		return console.View{}, err
	}
	return change.View, nil
}

// ClearSelection drops the selected entity of a view.
func (s *ListService) ClearSelection(kind, view string) (console.View, error) {
	view = viewID(view)
	change, err := s.console.Dispatch(console.AttachView{View: view, Kind: kind}, console.ClearSelection{View: view})
	if err != nil {
		return console.View{}, err
	}
	return change.View, nil
}

// CloseView forgets a view once its console tab is gone, so later refreshes
// skip it.
func (s *ListService) CloseView(view string) error {
	if view == "" {
		return appErrors.Clone(appErrors.ErrValidation, "view is required")
	}
	s.lists.Forget(view)
	if !s.console.Forget(view) {
		return appErrors.Clone(appErrors.ErrNotFound, "view not found")
	}
	return nil
}

// Export renders a list. The view's filter is the base; explicit query
// parameters override it without touching the view.
func (s *ListService) Export(ctx context.Context, kind string, q dto.ExportQuery) (*listing.File, error) {
	if err := s.validate.Struct(q); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	if !listing.ValidKind(kind) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "unknown list")
	}
	filter := listing.FilterState{}
	if v, ok := s.console.View(viewID(q.View)); ok && v.Kind == kind {
		filter = v.Filter
	}
	overlay(&filter, q.ListQuery)
	file, err := s.exporter.Export(ctx, kind, filter, q.Format)
	if err != nil {
		return nil, err
	}
	s.logger.Info("list exported", zap.String("kind", kind), zap.String("format", q.Format), zap.Int("bytes", len(file.Data)))
	return file, nil
}

func commands(view, kind string, q dto.ListQuery) []console.Command {
	cmds := []console.Command{console.AttachView{View: view, Kind: kind}}
	if q.Search != nil {
		cmds = append(cmds, console.SetSearch{View: view, Value: *q.Search})
	}
	if q.Role != nil {
		cmds = append(cmds, console.SetRole{View: view, Value: *q.Role})
	}
	if q.Status != nil {
		cmds = append(cmds, console.SetStatus{View: view, Value: *q.Status})
	}
	if q.Gender != nil {
		cmds = append(cmds, console.SetGender{View: view, Value: *q.Gender})
	}
	if q.Sort != nil {
		cmds = append(cmds, console.SetSort{View: view, Value: *q.Sort})
	}
	return cmds
}

func overlay(f *listing.FilterState, q dto.ListQuery) {
	if q.Search != nil {
		f.Search = *q.Search
	}
	if q.Role != nil {
		f.Role = *q.Role
	}
	if q.Status != nil {
		f.Status = *q.Status
	}
	if q.Gender != nil {
		f.Gender = *q.Gender
	}
	if q.Sort != nil {
		f.Sort = *q.Sort
	}
}

func viewID(view string) string {
	if view == "" {
		return defaultView
	}
	return view
}
