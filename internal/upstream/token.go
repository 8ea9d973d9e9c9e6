package upstream

import (
	"net/http"
	"net/url"
)

// TokenSource supplies the anti-forgery token attached to every request.
type TokenSource interface {
	Token() string
}

// StaticToken always returns the same token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token() string { return string(t) }

// CookieTokenSource reads the token from a cookie the backend has set in jar.
type CookieTokenSource struct {
	Jar    http.CookieJar
	Base   *url.URL
	Cookie string
}

// Token implements TokenSource. An absent cookie yields an empty token.
func (s CookieTokenSource) Token() string {
	if s.Jar == nil || s.Base == nil {
		return ""
	}
	for _, c := range s.Jar.Cookies(s.Base) {
		if c.Name == s.Cookie {
			return c.Value
		}
	}
	return ""
}
