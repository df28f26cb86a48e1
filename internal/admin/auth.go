// Package admin authenticates the single blog administrator and serves the
// /api/admin routes.
package admin

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"

	"github.com/JakeFAU/quickblog-api/internal/web"
)

const (
	tokenName = "blog-admin"
	// UnauthorizedMessage is the body message for missing or bad tokens.
	UnauthorizedMessage = "Not authorized"
	// DefaultTokenTTL applies when Config.TokenTTL is zero.
	DefaultTokenTTL = 7 * 24 * time.Hour
)

var (
	// ErrInvalidCredentials is returned by Login on an email or password mismatch.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned by Verify for forged, malformed or expired tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrDisabled is returned when no admin account is configured.
	ErrDisabled = errors.New("admin login is disabled")
)

// Config holds the admin account and token settings.
type Config struct {
	Email       string
	Password    string
	TokenSecret string
	TokenTTL    time.Duration
}

// Claims is the signed token payload.
type Claims struct {
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
}

// Authenticator issues and verifies admin tokens.
type Authenticator struct {
	email    string
	password string
	ttl      time.Duration
	codec    *securecookie.SecureCookie
	now      func() time.Time
}

// NewAuthenticator returns an Authenticator. An empty Email disables login:
// every Login and Verify then fails.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	a := &Authenticator{email: cfg.Email, password: cfg.Password, ttl: cfg.TokenTTL, now: time.Now}
	if a.ttl <= 0 {
		a.ttl = DefaultTokenTTL
	}
	if cfg.Email == "" {
		return a, nil
	}
	if len(cfg.TokenSecret) < 32 {
		return nil, fmt.Errorf("token secret must be at least 32 bytes")
	}
	blockKey := sha256.Sum256([]byte(cfg.TokenSecret))
	a.codec = securecookie.New([]byte(cfg.TokenSecret), blockKey[:])
	a.codec.SetSerializer(securecookie.JSONEncoder{})
	a.codec.MaxAge(int(a.ttl / time.Second))
	return a, nil
}

// Enabled reports whether an admin account is configured.
func (a *Authenticator) Enabled() bool {
	return a.codec != nil
}

// Login checks the credentials and returns a fresh token.
func (a *Authenticator) Login(email, password string) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	emailOK := subtle.ConstantTimeCompare([]byte(strings.ToLower(strings.TrimSpace(email))), []byte(strings.ToLower(a.email)))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(a.password))
	if emailOK&passOK != 1 {
		return "", ErrInvalidCredentials
	}
	return a.Issue(a.email)
}

// Issue signs a token for subject.
func (a *Authenticator) Issue(subject string) (string, error) {
	if !a.Enabled() {
		return "", ErrDisabled
	}
	now := a.now()
	token, err := a.codec.Encode(tokenName, Claims{
		Subject:   subject,
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(a.ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return token, nil
}

// Verify decodes token and checks its expiry.
func (a *Authenticator) Verify(token string) (Claims, error) {
	if !a.Enabled() {
		return Claims{}, ErrDisabled
	}
	var c Claims
	if err := a.codec.Decode(tokenName, token, &c); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject != a.email || a.now().Unix() >= c.ExpiresAt {
		return Claims{}, ErrInvalidToken
	}
	return c, nil
}

// Require rejects requests without a valid token with 401. The token is read
// from the Authorization header, with or without a Bearer scheme.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r.Header.Get("Authorization"))
		if token == "" {
			unauthorized(w)
			return
		}
		if _, err := a.Verify(token); err != nil {
			web.LoggerFrom(r.Context()).Debug("admin token rejected", zap.Error(err))
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func unauthorized(w http.ResponseWriter) {
	web.WriteJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": UnauthorizedMessage})
}
