package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

const csrfIssuer = "guard-forms"

// CSRFClaims is the body of an anti-forgery token.
type CSRFClaims struct {
	jwt.RegisteredClaims
}

// CSRFService issues and checks double-submit anti-forgery tokens. The same
// token travels in a cookie and in the X-CSRFToken header.
type CSRFService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCSRFService builds the token service.
func NewCSRFService(secret string, ttl time.Duration) *CSRFService {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &CSRFService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a fresh token.
func (s *CSRFService) Issue() (string, time.Time, error) {
	if len(s.secret) == 0 {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrInternal, "csrf secret missing")
	}
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	claims := CSRFClaims{RegisteredClaims: jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    csrfIssuer,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "sign csrf token")
	}
	return signed, expiresAt, nil
}

// Validate checks signature, issuer and expiry.
func (s *CSRFService) Validate(token string) (*CSRFClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &CSRFClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(csrfIssuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid csrf token")
	}
	claims, ok := parsed.Claims.(*CSRFClaims)
	if !ok || !parsed.Valid {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid csrf token")
	}
	return claims, nil
}
