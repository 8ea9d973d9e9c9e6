// Package upstream talks to the backend that owns employees, medical exams,
// education records and user accounts.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
	"github.com/noah-isme/guard-forms/pkg/storage"
)

const (
	defaultReadTimeout = 10 * time.Second
	defaultCSRFHeader  = "X-CSRFToken"
	maxResponseBytes   = 32 << 20
)

// Options configures a Client.
type Options struct {
	BaseURL     string
	ReadTimeout time.Duration
	CSRFHeader  string
	CSRFCookie  string
	Tokens      TokenSource
	HTTPClient  *http.Client
	Downloads   *storage.LocalStorage
	Signer      *storage.SignedURLSigner
	Logger      *zap.Logger
}

// Client issues reads and writes against the backend. Reads carry a timeout,
// writes only honour the caller's context.
type Client struct {
	base        *url.URL
	http        *http.Client
	readTimeout time.Duration
	csrfHeader  string
	tokens      TokenSource
	downloads   *storage.LocalStorage
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
}

// New builds a client. Without an explicit token source the anti-forgery
// token is read from the CSRF cookie held in the client's jar.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base url %q", opts.BaseURL)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("create cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar}
	}
	tokens := opts.Tokens
	if tokens == nil {
		cookie := opts.CSRFCookie
		if cookie == "" {
			cookie = "csrftoken"
		}
		tokens = CookieTokenSource{Jar: httpClient.Jar, Base: base, Cookie: cookie}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	readTimeout := opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	header := opts.CSRFHeader
	if header == "" {
		header = defaultCSRFHeader
	}
	return &Client{
		base:        base,
		http:        httpClient,
		readTimeout: readTimeout,
		csrfHeader:  header,
		tokens:      tokens,
		downloads:   opts.Downloads,
		signer:      opts.Signer,
		logger:      logger,
	}, nil
}

// Get fetches a JSON document. A slow backend surfaces as UPSTREAM_TIMEOUT.
func (c *Client) Get(ctx context.Context, path string) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, c.readTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}
	status, header, body, err := c.do(c.http, req)
	if err != nil {
		return nil, err
	}
	if !isJSON(header.Get("Content-Type")) {
		return nil, appErrors.Clone(appErrors.ErrUnexpectedResponse, "upstream returned "+header.Get("Content-Type"))
	}
	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnexpectedResponse.Code, appErrors.ErrUnexpectedResponse.Status, "upstream returned malformed JSON")
	}
	if status >= http.StatusBadRequest {
		res, _ := ParseResult(body)
		msg := res.RejectionMessage(http.StatusText(status))
		if status == http.StatusNotFound {
			return nil, appErrors.Clone(appErrors.ErrNotFound, msg)
		}
		return nil, appErrors.Clone(appErrors.ErrRejected, msg)
	}
	return out, nil
}

// PostJSON sends body as JSON.
func (c *Client) PostJSON(ctx context.Context, path string, body interface{}) (*Result, error) {
	return c.sendJSON(ctx, http.MethodPost, path, body)
}

// Patch sends body as JSON with PATCH.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Result, error) {
	return c.sendJSON(ctx, http.MethodPatch, path, body)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body interface{}) (*Result, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}
	req, err := c.newRequest(ctx, method, path, &buf, "application/json")
	if err != nil {
		return nil, err
	}
	return c.write(req)
}

// FilePart is one file of a multipart body.
type FilePart struct {
	Field       string
	Name        string
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// Multipart is a form body. Booleans follow HTML checkbox semantics: true is
// sent as "on" and false is left out.
type Multipart struct {
	Fields map[string]interface{}
	Files  []FilePart
}

// PostMultipart sends form as multipart/form-data.
func (c *Client) PostMultipart(ctx context.Context, path string, form Multipart) (*Result, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(form.Fields))
	for k := range form.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		value, ok := formValue(form.Fields[k])
		if !ok {
			continue
		}
		if err := w.WriteField(k, value); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	for _, f := range form.Files {
		if err := writeFile(w, f); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, &buf, w.FormDataContentType())
	if err != nil {
		return nil, err
	}
	return c.write(req)
}

// PostForm sends fields urlencoded like a server rendered HTML form. Such
// forms redirect on success and render the page again on rejection, so
// redirects are not followed: a 3xx is success, an HTML page is a rejection.
func (c *Client) PostForm(ctx context.Context, path string, fields map[string]interface{}) (*Result, error) {
	values := url.Values{}
	for k, v := range fields {
		if value, ok := formValue(v); ok {
			values.Set(k, value)
		}
	}
	req, err := c.newRequest(ctx, http.MethodPost, path, strings.NewReader(values.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return nil, err
	}
	noFollow := *c.http
	noFollow.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	status, header, body, err := c.do(&noFollow, req)
	if err != nil {
		return nil, err
	}
	switch {
	case status >= http.StatusMultipleChoices && status < http.StatusBadRequest:
		return &Result{HTTPStatus: status, Status: statusSuccess}, nil
	case isHTML(header.Get("Content-Type")) && status < http.StatusBadRequest:
		return &Result{HTTPStatus: status, Status: statusError}, nil
	}
	return c.result(status, header, body)
}

func writeFile(w *multipart.Writer, f FilePart) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close() //nolint:errcheck

	h := make(map[string][]string)
	h["Content-Disposition"] = []string{mime.FormatMediaType("form-data", map[string]string{"name": f.Field, "filename": f.Name})}
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h["Content-Type"] = []string{ct}
	part, err := w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create part %s: %w", f.Name, err)
	}
	if _, err := io.Copy(part, rc); err != nil {
		return fmt.Errorf("copy %s: %w", f.Name, err)
	}
	return nil
}

func formValue(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case bool:
		if !t {
			return "", false
		}
		return "on", true
	case string:
		return t, true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return fmt.Sprint(t), true
	}
}

func (c *Client) write(req *http.Request) (*Result, error) {
	status, header, body, err := c.do(c.http, req)
	if err != nil {
		return nil, err
	}
	return c.result(status, header, body)
}

func (c *Client) result(status int, header http.Header, body []byte) (*Result, error) {
	ct := header.Get("Content-Type")
	switch {
	case isJSON(ct):
		res, err := ParseResult(body)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnexpectedResponse.Code, appErrors.ErrUnexpectedResponse.Status, "upstream returned malformed JSON")
		}
		res.HTTPStatus = status
		return res, nil
	case isDocument(ct) && status < http.StatusBadRequest:
		dl, err := c.saveDownload(header.Get("Content-Disposition"), ct, body)
		if err != nil {
			return nil, err
		}
		return &Result{HTTPStatus: status, Status: statusSuccess, Download: dl}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrUnexpectedResponse, fmt.Sprintf("upstream returned %d %s", status, ct))
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	target, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", c.base.String()+"/")
	if token := c.tokens.Token(); token != "" {
		req.Header.Set(c.csrfHeader, token)
	}
	return req, nil
}

func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid upstream path %q: %w", path, err)
	}
	if ref.IsAbs() {
		return "", fmt.Errorf("absolute upstream path %q not allowed", path)
	}
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawQuery = ref.RawQuery
	return u.String(), nil
}

func (c *Client) do(hc *http.Client, req *http.Request) (int, http.Header, []byte, error) {
	started := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		c.logger.Warn("upstream request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
		return 0, nil, nil, classify(req.Context(), err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, nil, classify(req.Context(), err)
	}
	c.logger.Debug("upstream request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(started)),
	)
	return resp.StatusCode, resp.Header, body, nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrTimeout.Code, appErrors.ErrTimeout.Status, appErrors.ErrTimeout.Message)
	case errors.Is(err, context.Canceled):
		return appErrors.Wrap(err, appErrors.ErrSuperseded.Code, appErrors.ErrSuperseded.Status, appErrors.ErrSuperseded.Message)
	default:
		return appErrors.Wrap(err, appErrors.ErrNetwork.Code, appErrors.ErrNetwork.Status, appErrors.ErrNetwork.Message)
	}
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && (mt == "application/json" || strings.HasSuffix(mt, "+json"))
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "text/html"
}

func isDocument(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mt, "application/vnd.openxmlformats-officedocument.") ||
		mt == "application/msword" ||
		mt == "application/vnd.ms-excel"
}
