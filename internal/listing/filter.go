// Package listing fetches the user and employee lists behind the admin
// consoles, drops stale responses and exports what is shown.
package listing

import (
	"fmt"
	"net/url"
	"strings"

	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

// List kinds.
const (
	KindUsers     = "users"
	KindEmployees = "employees"
)

// FilterState is the full filter of one list view. Every change re-fetches
// with all of it.
type FilterState struct {
	Search string `form:"search" json:"search"`
	Role   string `form:"role" json:"role,omitempty"`
	Status string `form:"status" json:"status,omitempty"`
	Gender string `form:"gender" json:"gender,omitempty"`
	Sort   string `form:"sort" json:"sort"`
}

var allowed = map[string]map[string][]string{
	KindUsers: {
		"role":   {"", "a", "admin", "user"},
		"status": {"", "a", "active", "inactive"},
		"gender": {""},
	},
	KindEmployees: {
		"role":   {""},
		"status": {"", "a", "e", "ne", "n"},
		"gender": {"", "M", "F"},
	},
}

// ValidKind reports whether kind names a list.
func ValidKind(kind string) bool {
	_, ok := allowed[kind]
	return ok
}

// Normalize trims the filter and fills the default sort of kind.
func (f FilterState) Normalize(kind string) FilterState {
	f.Search = strings.TrimSpace(f.Search)
	f.Sort = strings.ToLower(strings.TrimSpace(f.Sort))
	if f.Sort == "" {
		f.Sort = defaultSort(kind)
	}
	if kind == KindEmployees && f.Status == "n" {
		f.Status = "ne"
	}
	return f
}

// Validate rejects options the list of kind does not understand.
func (f FilterState) Validate(kind string) error {
	opts, ok := allowed[kind]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("unknown list %q", kind))
	}
	if f.Sort != "" && f.Sort != "asc" && f.Sort != "desc" {
		return appErrors.Clone(appErrors.ErrValidation, "sort must be asc or desc")
	}
	checks := map[string]string{"role": f.Role, "status": f.Status, "gender": f.Gender}
	for name, value := range checks {
		if !contains(opts[name], value) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s %q is not supported for %s", name, value, kind))
		}
	}
	return nil
}

// Query renders the filter the way the backend list endpoint of kind reads it.
func (f FilterState) Query(kind string) url.Values {
	f = f.Normalize(kind)
	q := url.Values{}
	switch kind {
	case KindUsers:
		q.Set("search", f.Search)
		q.Set("role", f.Role)
		q.Set("status", f.Status)
		q.Set("sort", f.Sort)
	case KindEmployees:
		if f.Gender != "" {
			q.Set("gender", f.Gender)
		}
		if f.Status != "" {
			q.Set("is_edu", f.Status)
		}
		q.Set("order", f.Sort)
	}
	return q
}

// EmptyMessage is shown when a list comes back empty.
func EmptyMessage(kind, search string) string {
	searching := strings.TrimSpace(search) != ""
	switch kind {
	case KindUsers:
		if searching {
			return "Пользователи не найдены"
		}
		return "Нет пользователей"
	case KindEmployees:
		if searching {
			return "Сотрудники не найдены"
		}
		return "Нет сотрудников"
	}
	return ""
}

func defaultSort(kind string) string {
	if kind == KindUsers {
		return "desc"
	}
	return "asc"
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
