package listing

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/guard-forms/internal/upstream"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

type fakeUpstream struct {
	mu    sync.Mutex
	gets  []string
	posts []interface{}
	get   func(ctx context.Context, path string) (map[string]interface{}, error)
	post  func(path string, body interface{}) (*upstream.Result, error)
}

func (f *fakeUpstream) Get(ctx context.Context, path string) (map[string]interface{}, error) {
	f.mu.Lock()
	f.gets = append(f.gets, path)
	f.mu.Unlock()
	return f.get(ctx, path)
}

func (f *fakeUpstream) PostJSON(_ context.Context, path string, body interface{}) (*upstream.Result, error) {
	f.mu.Lock()
	f.posts = append(f.posts, body)
	f.mu.Unlock()
	return f.post(path, body)
}

type staticViews map[string]map[string]FilterState

func (v staticViews) ViewsOf(kind string) map[string]FilterState { return v[kind] }

func users(list ...map[string]interface{}) map[string]interface{} {
	items := make([]interface{}, 0, len(list))
	for _, u := range list {
		items = append(items, u)
	}
	return map[string]interface{}{"users": items}
}

func TestFilterQuery(t *testing.T) {
	q := FilterState{Search: "  ivan ", Role: "admin"}.Query(KindUsers)
	assert.Equal(t, url.Values{"search": {"ivan"}, "role": {"admin"}, "status": {""}, "sort": {"desc"}}, q)

	q = FilterState{Gender: "F", Status: "e", Sort: "DESC"}.Query(KindEmployees)
	assert.Equal(t, url.Values{"gender": {"F"}, "is_edu": {"e"}, "order": {"desc"}}, q)

	for _, status := range []string{"ne", "n"} {
		f := FilterState{Status: status}
		require.NoError(t, f.Validate(KindEmployees), status)
		assert.Equal(t, "ne", f.Query(KindEmployees).Get("is_edu"), status)
	}
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, FilterState{Role: "user", Status: "inactive"}.Validate(KindUsers))
	assert.Error(t, FilterState{Gender: "M"}.Validate(KindUsers))
	assert.Error(t, FilterState{Sort: "up"}.Validate(KindEmployees))
	err := FilterState{}.Validate("grades")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestEmptyMessages(t *testing.T) {
	assert.Equal(t, "Нет пользователей", EmptyMessage(KindUsers, " "))
	assert.Equal(t, "Пользователи не найдены", EmptyMessage(KindUsers, "x"))
	assert.Equal(t, "Нет сотрудников", EmptyMessage(KindEmployees, ""))
	assert.Equal(t, "Сотрудники не найдены", EmptyMessage(KindEmployees, "x"))
}

func TestFetchUsersBuildsLabels(t *testing.T) {
	client := &fakeUpstream{get: func(_ context.Context, path string) (map[string]interface{}, error) {
		return users(
			map[string]interface{}{"id": 1, "username": "admin", "first_name": "", "last_name": ""},
			map[string]interface{}{"id": 2, "username": "ivanov", "first_name": "иван петрович", "last_name": "иванов"},
		), nil
	}}
	svc := NewService(client, nil, nil)

	page, err := svc.Fetch(context.Background(), "v1", KindUsers, FilterState{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin", "Иванов И.П."}, page.Labels)
	assert.Empty(t, page.Empty)
	assert.Equal(t, "/admin/users/?role=&search=&sort=desc&status=", client.gets[0])

	latest, ok := svc.Latest("v1", KindUsers)
	require.True(t, ok)
	assert.Equal(t, page, latest)
}

func TestFetchEmptyListMessage(t *testing.T) {
	client := &fakeUpstream{get: func(context.Context, string) (map[string]interface{}, error) {
		return map[string]interface{}{"users": []interface{}{}}, nil
	}}
	page, err := NewService(client, nil, nil).Fetch(context.Background(), "v", KindUsers, FilterState{Search: "zzz"})
	require.NoError(t, err)
	assert.Equal(t, "Пользователи не найдены", page.Empty)
}

func TestEmployeeSearchUsesSearchEndpoint(t *testing.T) {
	client := &fakeUpstream{post: func(path string, body interface{}) (*upstream.Result, error) {
		assert.Equal(t, "/worker/search/", path)
		return upstream.ParseResult([]byte(`{"status":"SUCCESS","employees":[
			{"id":1,"FIO":"Сидорова Анна Петровна","gender":"Женский"},
			{"id":2,"FIO":"Абрамов Олег Ильич","gender":"Мужской"},
			{"id":3,"FIO":"Андреева Вера Юрьевна","gender":"Женский"}]}`))
	}}
	page, err := NewService(client, nil, nil).Fetch(context.Background(), "v", KindEmployees, FilterState{Search: "ова", Gender: "F"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"query": "ова"}, client.posts[0])
	assert.Equal(t, []string{"Андреева В. Ю.", "Сидорова А. П."}, page.Labels)
}

func TestFetchDropsSupersededResponse(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	client := &fakeUpstream{get: func(ctx context.Context, path string) (map[string]interface{}, error) {
		started <- struct{}{}
		if strings.Contains(path, "search=old") {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return users(map[string]interface{}{"id": 1, "username": "old"}), nil
		}
		return users(map[string]interface{}{"id": 2, "username": "new"}), nil
	}}
	svc := NewService(client, nil, nil)

	errs := make(chan error, 1)
	go func() {
		_, err := svc.Fetch(context.Background(), "v", KindUsers, FilterState{Search: "old"})
		errs <- err
	}()
	<-started

	page, err := svc.Fetch(context.Background(), "v", KindUsers, FilterState{Search: "new"})
	require.NoError(t, err)
	close(release)

	err = <-errs
	assert.True(t, errors.Is(err, appErrors.ErrSuperseded))
	latest, _ := svc.Latest("v", KindUsers)
	assert.Equal(t, page, latest)
	assert.Equal(t, "new", latest.Users[0].Username)
}

func TestGuardCommitOnlyCurrent(t *testing.T) {
	var g Guard
	first, firstCtx := g.Begin(context.Background())
	second, _ := g.Begin(context.Background())

	assert.Error(t, firstCtx.Err())
	assert.False(t, g.Commit(first, func() { t.Fatal("stale render") }))
	rendered := false
	assert.True(t, g.Commit(second, func() { rendered = true }))
	assert.True(t, rendered)
}

func TestRefreshRefetchesOpenViews(t *testing.T) {
	client := &fakeUpstream{get: func(context.Context, string) (map[string]interface{}, error) {
		return map[string]interface{}{"status": "SUCCESS", "employees": []interface{}{}}, nil
	}}
	views := staticViews{KindEmployees: {"console": {Gender: "M"}}}
	svc := NewService(client, views, nil)

	svc.Refresh(context.Background(), []string{"employees", "medical_exams"})
	require.Len(t, client.gets, 1)
	assert.Equal(t, "/worker/filter/?gender=M&order=asc", client.gets[0])
	page, ok := svc.Latest("console", KindEmployees)
	require.True(t, ok)
	assert.Equal(t, "Нет сотрудников", page.Empty)
}

func TestExportFormats(t *testing.T) {
	client := &fakeUpstream{get: func(context.Context, string) (map[string]interface{}, error) {
		return users(map[string]interface{}{"id": 7, "username": "petrov", "email": "p@example.com", "first_name": "Пётр", "last_name": "Петров"}), nil
	}}
	exp := NewExporter(NewService(client, nil, nil), "")

	csv, err := exp.Export(context.Background(), KindUsers, FilterState{}, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "ID,Логин,Email,Фамилия,Имя\n7,petrov,p@example.com,Петров,Пётр\n", string(csv.Data))
	assert.True(t, strings.HasSuffix(csv.Name, ".csv"))

	xlsx, err := exp.Export(context.Background(), KindUsers, FilterState{}, FormatXLSX)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(xlsx.Data), "PK"))

	_, err = exp.Export(context.Background(), KindUsers, FilterState{}, "doc")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
