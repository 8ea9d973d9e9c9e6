package service

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/guard-forms/internal/dto"
	"github.com/noah-isme/guard-forms/internal/forms"
	"github.com/noah-isme/guard-forms/internal/listing"
	"github.com/noah-isme/guard-forms/internal/notify"
	"github.com/noah-isme/guard-forms/internal/session"
	"github.com/noah-isme/guard-forms/internal/submit"
	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
	"github.com/noah-isme/guard-forms/pkg/storage"
)

func TestCSRFTokenExpires(t *testing.T) {
	svc := NewCSRFService("secret", time.Minute)
	token, exp, err := svc.Issue()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	_, err = svc.Validate(token)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = svc.Validate(token)
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, _, err = NewCSRFService("", time.Minute).Issue()
	assert.Error(t, err)
}

type stubSessions struct {
	sessionManager
	form string
}

func (s stubSessions) Get(context.Context, string) (*session.FormSession, error) {
	return &session.FormSession{ID: "s", FormID: s.form}, nil
}

type stubPipeline struct {
	outcome *submit.Outcome
	err     error
}

func (p stubPipeline) Submit(ctx context.Context, _ string, _ map[string]string, n notify.Notifier) (*submit.Outcome, error) {
	n.Notify(ctx, notify.Info("seen"))
	return p.outcome, p.err
}

func TestSubmitRecordsOutcomes(t *testing.T) {
	metrics := NewMetricsService()
	cases := []stubPipeline{
		{outcome: &submit.Outcome{OK: true, Uploads: []submit.UploadResult{{OK: true}, {OK: false}}}},
		{outcome: &submit.Outcome{Report: &forms.Report{Valid: false}}},
		{outcome: &submit.Outcome{Report: &forms.Report{Valid: true}}},
		{err: appErrors.ErrTimeout},
		{err: appErrors.ErrInProgress},
	}
	for _, p := range cases {
		svc := NewSessionService(stubSessions{form: "med_add"}, p, nil, metrics, nil)
		_, items, _ := svc.Submit(context.Background(), "s", dto.SubmitRequest{})
		assert.Equal(t, []notify.Notification{notify.Info("seen")}, items)
	}

	expected := `
# HELP form_submissions_total Form submissions by form and outcome
# TYPE form_submissions_total counter
form_submissions_total{form="med_add",outcome="failed"} 1
form_submissions_total{form="med_add",outcome="invalid"} 1
form_submissions_total{form="med_add",outcome="rejected"} 1
form_submissions_total{form="med_add",outcome="success"} 1
# HELP attachment_uploads_total Chained attachment uploads by outcome
# TYPE attachment_uploads_total counter
attachment_uploads_total{outcome="failed"} 1
attachment_uploads_total{outcome="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "form_submissions_total", "attachment_uploads_total"))
}

func TestListQueryCommands(t *testing.T) {
	search, gender := "ова", "F"
	cmds := commands("v", "employees", dto.ListQuery{Search: &search, Gender: &gender})
	assert.Len(t, cmds, 3)
	assert.Equal(t, "default", viewID(""))

	filter := listing.FilterState{Search: "old", Gender: "M", Sort: "desc"}
	overlay(&filter, dto.ListQuery{Search: &search})
	assert.Equal(t, listing.FilterState{Search: "ова", Gender: "M", Sort: "desc"}, filter)
}

func TestDownloadServiceOpenAndSweep(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewDownloadService(store, signer)

	rel, err := store.Save("abc/Направление.docx", []byte("docx"))
	require.NoError(t, err)
	token, _, err := signer.Generate("abc", rel)
	require.NoError(t, err)

	f, name, err := svc.Open(token)
	require.NoError(t, err)
	data, _ := io.ReadAll(f)
	require.NoError(t, f.Close())
	assert.Equal(t, "Направление.docx", name)
	assert.Equal(t, "docx", string(data))

	_, _, err = svc.Open(token + "x")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	removed, err := svc.Sweep()
	require.NoError(t, err)
	assert.Zero(t, removed)

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path(rel), old, old))
	removed, err = svc.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, _, err = svc.Open(token)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
