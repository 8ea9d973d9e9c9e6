package submit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/guard-forms/internal/forms"
	"github.com/noah-isme/guard-forms/internal/notify"
	"github.com/noah-isme/guard-forms/internal/session"
	"github.com/noah-isme/guard-forms/internal/upstream"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
	"github.com/noah-isme/guard-forms/pkg/storage"
)

type call struct {
	Method string
	Path   string
	Body   interface{}
	Form   upstream.Multipart
}

type fakeBackend struct {
	mu      sync.Mutex
	gets    map[string]map[string]interface{}
	replies map[string]func(call) (*upstream.Result, error)
	calls   []call
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		gets:    map[string]map[string]interface{}{},
		replies: map[string]func(call) (*upstream.Result, error){},
	}
}

func (f *fakeBackend) record(ctx context.Context, c call) (*upstream.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrSuperseded.Code, appErrors.ErrSuperseded.Status, appErrors.ErrSuperseded.Message)
	}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	reply := f.replies[c.Path]
	f.mu.Unlock()
	if reply != nil {
		return reply(c)
	}
	return &upstream.Result{Status: "SUCCESS", ID: 42}, nil
}

func (f *fakeBackend) Get(_ context.Context, path string) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.gets[path]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "not found")
	}
	return body, nil
}

func (f *fakeBackend) PostJSON(ctx context.Context, path string, body interface{}) (*upstream.Result, error) {
	return f.record(ctx, call{Method: "POST", Path: path, Body: body})
}

func (f *fakeBackend) Patch(ctx context.Context, path string, body interface{}) (*upstream.Result, error) {
	return f.record(ctx, call{Method: "PATCH", Path: path, Body: body})
}

func (f *fakeBackend) PostForm(ctx context.Context, path string, fields map[string]interface{}) (*upstream.Result, error) {
	return f.record(ctx, call{Method: "FORM", Path: path, Body: fields})
}

func (f *fakeBackend) PostMultipart(ctx context.Context, path string, form upstream.Multipart) (*upstream.Result, error) {
	for _, file := range form.Files {
		rc, err := file.Open()
		if err != nil {
			return nil, err
		}
		_, _ = io.ReadAll(rc)
		_ = rc.Close()
	}
	return f.record(ctx, call{Method: "MULTIPART", Path: path, Form: form})
}

func (f *fakeBackend) paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Method+" "+c.Path)
	}
	return out
}

type recordingRefresher struct {
	views      []string
	deselected []string
}

func (r *recordingRefresher) Refresh(_ context.Context, views []string) {
	r.views = append(r.views, views...)
}

func (r *recordingRefresher) Deselect(kind string, id int64) []string {
	r.deselected = append(r.deselected, fmt.Sprintf("%s/%d", kind, id))
	return []string{"console"}
}

var today = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T, backend *fakeBackend) (*Pipeline, *session.Manager, *recordingRefresher) {
	t.Helper()
	reg, err := forms.NewRegistry("", nil)
	require.NoError(t, err)
	blobs, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	manager := session.NewManager(reg, session.NewMemoryStore(time.Hour), backend, blobs, nil, session.Limits{MaxFileSize: 1 << 20}, nil)
	refresher := &recordingRefresher{}
	p := NewPipeline(manager, backend, refresher, refresher, nil, nil)
	p.now = func() time.Time { return today }
	return p, manager, refresher
}

func validEmployee() map[string]string {
	return map[string]string{
		"FIO":      "иванов иван иванович",
		"gender":   "M",
		"birthday": "01.05.1990",
		"position": "Инженер",
		"status":   "W",
	}
}

func TestSubmitInvalidFormStaysIdle(t *testing.T) {
	backend := newFakeBackend()
	p, manager, _ := setup(t, backend)
	s, err := manager.Open(context.Background(), "employee_add", nil)
	require.NoError(t, err)

	values := validEmployee()
	values["FIO"] = "Ivanov"
	values["position"] = ""
	collector := notify.NewCollector()

	out, err := p.Submit(context.Background(), s.ID, values, collector)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, out.State)
	assert.False(t, out.OK)
	assert.Equal(t, "FIO", out.ScrollTo)
	assert.Len(t, out.Report.Invalid(), 2)
	assert.Equal(t, []notify.Notification{notify.Error("Пожалуйста, исправьте ошибки в форме")}, collector.Items())
	assert.Empty(t, backend.paths())

	current, err := manager.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.False(t, current.IsSubmitting)
}

func TestSubmitSuccessClosesSession(t *testing.T) {
	backend := newFakeBackend()
	p, manager, refresher := setup(t, backend)
	s, err := manager.Open(context.Background(), "employee_add", nil)
	require.NoError(t, err)
	collector := notify.NewCollector()

	out, err := p.Submit(context.Background(), s.ID, validEmployee(), collector)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, StateClosing, out.State)
	assert.True(t, out.Closed)
	assert.Equal(t, []string{"employees"}, refresher.views)
	assert.Equal(t, []string{"POST /worker/add/"}, backend.paths())

	body := backend.calls[0].Body.(map[string]interface{})
	assert.Equal(t, "Иванов Иван Иванович", body["FIO"])
	assert.Equal(t, "1990-05-01", body["birthday"])
	assert.Equal(t, false, body["is_edu"])
	assert.Equal(t, []notify.Notification{notify.Success("Сотрудник успешно добавлен")}, collector.Items())

	_, err = manager.Get(context.Background(), s.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestSubmitRejectionKeepsFormOpen(t *testing.T) {
	backend := newFakeBackend()
	backend.replies["/worker/add/"] = func(call) (*upstream.Result, error) {
		return upstream.ParseResult([]byte(`{"status":"ERROR","details":{"oms_number":["Полис уже используется"],"general":"Сотрудник существует"}}`))
	}
	p, manager, refresher := setup(t, backend)
	s, err := manager.Open(context.Background(), "employee_add", nil)
	require.NoError(t, err)
	collector := notify.NewCollector()

	out, err := p.Submit(context.Background(), s.ID, validEmployee(), collector)
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, StateIdle, out.State)
	assert.Empty(t, refresher.views)
	assert.Equal(t, "Сотрудник существует; Полис уже используется", collector.Items()[0].Message)

	current, err := manager.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.False(t, current.IsSubmitting)
	assert.False(t, current.Closed)
}

func TestSubmitTransportFailureIsResubmittable(t *testing.T) {
	backend := newFakeBackend()
	attempts := 0
	backend.replies["/worker/add/"] = func(call) (*upstream.Result, error) {
		attempts++
		if attempts == 1 {
			return nil, appErrors.Wrap(context.DeadlineExceeded, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
		}
		return &upstream.Result{Status: "SUCCESS", ID: 7}, nil
	}
	p, manager, _ := setup(t, backend)
	s, err := manager.Open(context.Background(), "employee_add", nil)
	require.NoError(t, err)

	collector := notify.NewCollector()
	_, err = p.Submit(context.Background(), s.ID, validEmployee(), collector)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrTimeout))
	assert.Equal(t, "Превышено время ожидания запроса", collector.Items()[0].Message)

	out, err := p.Submit(context.Background(), s.ID, nil, notify.NewCollector())
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestSubmitRefusesWhileBusy(t *testing.T) {
	backend := newFakeBackend()
	p, manager, _ := setup(t, backend)
	s, err := manager.Open(context.Background(), "employee_add", nil)
	require.NoError(t, err)
	_, err = manager.BeginSubmit(context.Background(), s.ID)
	require.NoError(t, err)

	_, err = p.Submit(context.Background(), s.ID, validEmployee(), nil)
	assert.True(t, errors.Is(err, appErrors.ErrInProgress))
	assert.Empty(t, backend.paths())
}

func TestSubmitUploadsStagedFilesAndReportsEachFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.replies["/worker/med/add"] = func(call) (*upstream.Result, error) {
		return &upstream.Result{Status: "SUCCESS", ID: 99}, nil
	}
	backend.replies["/files/upload/"] = func(c call) (*upstream.Result, error) {
		if c.Form.Files[0].Name == "broken.pdf" {
			return &upstream.Result{Status: "ERROR", Description: "Недопустимый формат"}, nil
		}
		assert.Equal(t, "med", c.Form.Fields["file_type"])
		assert.Equal(t, int64(99), c.Form.Fields["object_id"])
		return &upstream.Result{Status: "SUCCESS", ID: 1}, nil
	}
	p, manager, _ := setup(t, backend)
	employee := int64(5)
	s, err := manager.Open(context.Background(), "med_add", &employee)
	require.NoError(t, err)
	for _, name := range []string{"ok.pdf", "broken.pdf"} {
		_, _, err := manager.AddAttachment(context.Background(), s.ID, session.Upload{Name: name, ContentType: "application/pdf", Size: 3, Body: strings.NewReader("pdf")})
		require.NoError(t, err)
	}
	collector := notify.NewCollector()

	out, err := p.Submit(context.Background(), s.ID, map[string]string{
		"exam_type":   "periodic",
		"exam_date":   "10.01.2024",
		"expiry_date": "2025-01-10",
	}, collector)
	require.NoError(t, err)
	assert.True(t, out.OK)
	require.Len(t, out.Uploads, 2)
	assert.True(t, out.Uploads[0].OK)
	assert.False(t, out.Uploads[1].OK)

	body := backend.calls[0].Body.(map[string]interface{})
	assert.Equal(t, int64(5), body["employee_id"])
	assert.Equal(t, "2024-01-10", body["exam_date"])

	messages := make([]string, 0)
	for _, n := range collector.Items() {
		messages = append(messages, n.Message)
	}
	assert.Equal(t, []string{
		fmt.Sprintf("Ошибка загрузки файла %s: %s", "broken.pdf", "Недопустимый формат"),
		"Медосмотр успешно добавлен",
	}, messages)
}

func TestSubmitSurvivesCallerCancellation(t *testing.T) {
	backend := newFakeBackend()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	backend.replies["/worker/med/add"] = func(call) (*upstream.Result, error) {
		cancel()
		return &upstream.Result{Status: "SUCCESS", ID: 99}, nil
	}
	p, manager, refresher := setup(t, backend)
	employee := int64(5)
	s, err := manager.Open(context.Background(), "med_add", &employee)
	require.NoError(t, err)
	_, _, err = manager.AddAttachment(context.Background(), s.ID, session.Upload{Name: "scan.pdf", ContentType: "application/pdf", Size: 3, Body: strings.NewReader("pdf")})
	require.NoError(t, err)

	out, err := p.Submit(ctx, s.ID, map[string]string{
		"exam_type":   "periodic",
		"exam_date":   "10.01.2024",
		"expiry_date": "2025-01-10",
	}, notify.NewCollector())
	require.NoError(t, err)
	assert.True(t, out.OK)
	require.Len(t, out.Uploads, 1)
	assert.True(t, out.Uploads[0].OK, out.Uploads[0].Error)
	assert.Equal(t, []string{"POST /worker/med/add", "MULTIPART /files/upload/"}, backend.paths())
	assert.NotEmpty(t, refresher.views)
	assert.True(t, out.Closed)
}

func TestSubmitRunsBeforeStepsUnlessSkipped(t *testing.T) {
	for _, tc := range []struct {
		name      string
		isCurrent bool
		want      []string
	}{
		{name: "other user", isCurrent: false, want: []string{"POST /admin/generate-password/3/", "MULTIPART /admin/edit/3/"}},
		{name: "current user", isCurrent: true, want: []string{"MULTIPART /admin/edit/3/"}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.gets["/admin/api/user/3/"] = map[string]interface{}{
				"username":        "petrov",
				"email":           "petrov@example.com",
				"last_name":       "Петров",
				"first_name":      "Пётр",
				"is_active":       true,
				"is_staff":        false,
				"is_current_user": tc.isCurrent,
			}
			backend.replies["/admin/edit/3/"] = func(call) (*upstream.Result, error) {
				return upstream.ParseResult([]byte(`{"success":"Пользователь обновлён"}`))
			}
			p, manager, _ := setup(t, backend)
			id := int64(3)
			s, err := manager.Open(context.Background(), "user_edit", &id)
			require.NoError(t, err)
			assert.Equal(t, "Петров Пётр", s.Values["full_name"])

			collector := notify.NewCollector()
			out, err := p.Submit(context.Background(), s.ID, map[string]string{"generate_password": "true"}, collector)
			require.NoError(t, err)
			assert.True(t, out.OK)
			assert.Equal(t, tc.want, backend.paths())

			last := backend.calls[len(backend.calls)-1]
			assert.Equal(t, true, last.Form.Fields["generate_password"])
			_, hasPassword := last.Form.Fields["password1"]
			assert.False(t, hasPassword)
			items := collector.Items()
			assert.Equal(t, notify.Success("Пользователь обновлён"), items[len(items)-1])
		})
	}
}

func TestSubmitDeleteForms(t *testing.T) {
	for _, tc := range []struct {
		form       string
		gets       map[string]map[string]interface{}
		path       string
		body       map[string]interface{}
		message    string
		refresh    []string
		deselected []string
	}{
		{
			form:       "employee_delete",
			gets:       map[string]map[string]interface{}{"/worker/filter?id=5": {"status": "SUCCESS", "employees": map[string]interface{}{"FIO": "Иванов Иван"}}},
			path:       "POST /worker/delete/",
			body:       map[string]interface{}{"employee_id": int64(5)},
			message:    "Сотрудник успешно удалён",
			refresh:    []string{"employees", "employee_detail"},
			deselected: []string{"employees/5"},
		},
		{
			form:    "med_delete",
			path:    "POST /med/delete/",
			body:    map[string]interface{}{"med_id": int64(5)},
			message: "Данные медосмотра успешно удалены",
			refresh: []string{"medical_exams"},
		},
		{
			form:    "edu_delete",
			path:    "POST /education/delete/",
			body:    map[string]interface{}{"edu_id": int64(5)},
			message: "Данные обучения успешно удалены",
			refresh: []string{"educations"},
		},
	} {
		t.Run(tc.form, func(t *testing.T) {
			backend := newFakeBackend()
			for path, body := range tc.gets {
				backend.gets[path] = body
			}
			p, manager, refresher := setup(t, backend)
			s, err := manager.Open(context.Background(), tc.form, int64p(5))
			require.NoError(t, err)
			assert.True(t, s.Ready)
			collector := notify.NewCollector()

			out, err := p.Submit(context.Background(), s.ID, nil, collector)
			require.NoError(t, err)
			assert.True(t, out.OK)
			assert.True(t, out.Closed)
			assert.Equal(t, []string{tc.path}, backend.paths())
			assert.Equal(t, tc.body, backend.calls[0].Body)
			assert.Equal(t, tc.refresh, refresher.views)
			assert.Equal(t, tc.deselected, refresher.deselected)
			assert.Equal(t, []notify.Notification{notify.Success(tc.message)}, collector.Items())
		})
	}
}

func TestSubmitUserDeleteClearsSelection(t *testing.T) {
	backend := newFakeBackend()
	backend.gets["/admin/api/user/3/"] = map[string]interface{}{"username": "petrov", "is_current_user": false}
	backend.replies["/admin/delete/3/"] = func(call) (*upstream.Result, error) {
		return upstream.ParseResult([]byte(`{"success":"Пользователь \"petrov\" успешно удален","details":{"user_id":3,"username":"petrov"}}`))
	}
	p, manager, refresher := setup(t, backend)
	s, err := manager.Open(context.Background(), "user_delete", int64p(3))
	require.NoError(t, err)
	assert.Equal(t, "petrov", s.Values["username"])
	collector := notify.NewCollector()

	out, err := p.Submit(context.Background(), s.ID, nil, collector)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, []string{"MULTIPART /admin/delete/3/"}, backend.paths())
	assert.Empty(t, backend.calls[0].Form.Fields)
	assert.Equal(t, []string{"users/3"}, refresher.deselected)
	assert.Equal(t, []string{"console"}, out.Deselected)
	assert.Equal(t, notify.Success(`Пользователь "petrov" успешно удален`), collector.Items()[0])
}

func TestSubmitUserDeleteRejected(t *testing.T) {
	backend := newFakeBackend()
	backend.gets["/admin/api/user/3/"] = map[string]interface{}{"username": "petrov", "is_current_user": true}
	backend.replies["/admin/delete/3/"] = func(call) (*upstream.Result, error) {
		return upstream.ParseResult([]byte(`{"error":"Нельзя удалить пользователя, под которым выполнен вход"}`))
	}
	p, manager, refresher := setup(t, backend)
	s, err := manager.Open(context.Background(), "user_delete", int64p(3))
	require.NoError(t, err)
	collector := notify.NewCollector()

	out, err := p.Submit(context.Background(), s.ID, nil, collector)
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Empty(t, refresher.deselected)
	assert.Empty(t, refresher.views)
	assert.Equal(t, notify.Error("Нельзя удалить пользователя, под которым выполнен вход"), collector.Items()[0])
}

func TestSubmitChangePassword(t *testing.T) {
	for _, form := range []string{"change_password", "admin_change_password"} {
		t.Run(form, func(t *testing.T) {
			backend := newFakeBackend()
			p, manager, _ := setup(t, backend)
			s, err := manager.Open(context.Background(), form, nil)
			require.NoError(t, err)

			out, err := p.Submit(context.Background(), s.ID, map[string]string{
				"old_password":  "",
				"new_password1": "n3w-Secret",
				"new_password2": "n3w-Secre",
			}, notify.NewCollector())
			require.NoError(t, err)
			assert.False(t, out.OK)
			assert.Equal(t, "old_password", out.ScrollTo)
			errs := out.Report.Errors()
			assert.Contains(t, errs, "old_password")
			assert.Equal(t, "Пароли не совпадают", errs["new_password2"])
			assert.Empty(t, backend.paths())

			collector := notify.NewCollector()
			out, err = p.Submit(context.Background(), s.ID, map[string]string{
				"old_password":  "old-Secret1",
				"new_password2": "n3w-Secret",
			}, collector)
			require.NoError(t, err)
			assert.True(t, out.OK)
			require.Len(t, backend.calls, 1)
			assert.Equal(t, "FORM", backend.calls[0].Method)
			assert.Equal(t, map[string]interface{}{
				"old_password":  "old-Secret1",
				"new_password1": "n3w-Secret",
				"new_password2": "n3w-Secret",
			}, backend.calls[0].Body)
			assert.Equal(t, []notify.Notification{notify.Success("Пароль успешно изменён")}, collector.Items())
		})
	}
}

func int64p(v int64) *int64 { return &v }
