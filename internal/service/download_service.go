package service

import (
	"os"
	"path"

	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
	"github.com/noah-isme/guard-forms/pkg/storage"
)

// DownloadService serves documents generated by the backend through their
// signed tokens.
type DownloadService struct {
	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
}

// NewDownloadService builds the download service.
func NewDownloadService(store *storage.LocalStorage, signer *storage.SignedURLSigner) *DownloadService {
	return &DownloadService{store: store, signer: signer}
}

// Open resolves a token to the stored document and its file name.
func (s *DownloadService) Open(token string) (*os.File, string, error) {
	_, rel, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "download link is invalid or expired")
	}
	f, err := s.store.Open(rel)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "document not found")
	}
	return f, path.Base(rel), nil
}

// Sweep removes documents whose links have expired.
func (s *DownloadService) Sweep() (int, error) {
	removed, err := s.store.CleanupOlderThan(s.signer.TTL())
	return len(removed), err
}
