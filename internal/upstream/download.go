package upstream

import (
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

const defaultDocumentName = "document.docx"

// Download is a generated document kept by the gateway until fetched through
// its signed token.
type Download struct {
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (c *Client) saveDownload(disposition, contentType string, body []byte) (*Download, error) {
	if c.downloads == nil || c.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "document downloads are not configured")
	}
	name := DispositionFilename(disposition)
	id := uuid.NewString()
	rel, err := c.downloads.Save(path.Join(id, name), body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store generated document")
	}
	token, exp, err := c.signer.Generate(id, rel)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign document link")
	}
	return &Download{
		Filename:    name,
		ContentType: contentType,
		Size:        int64(len(body)),
		Token:       token,
		ExpiresAt:   exp,
	}, nil
}

// DispositionFilename extracts the file name from a Content-Disposition
// header, falling back to document.docx.
func DispositionFilename(header string) string {
	if header == "" {
		return defaultDocumentName
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return defaultDocumentName
	}
	name := strings.TrimSpace(params["filename"])
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "" || name == "." || name == "/" {
		return defaultDocumentName
	}
	return name
}
