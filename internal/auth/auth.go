// Package auth turns bearer tokens into user identities.
//
// Tokens are HMAC-signed JWTs whose sub claim is the user ID. When no
// signing secret is configured the [Verifier] runs in development mode: the
// payload is decoded without checking the signature and a warning is logged
// once.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken is returned when a request carries no bearer token.
	ErrMissingToken = errors.New("auth: missing bearer token")

	// ErrInvalidToken is returned for malformed, expired or badly signed
	// tokens and for tokens without a subject.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// User is the authenticated caller.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Config configures a [Verifier].
type Config struct {
	// Secret is the HMAC key. Empty enables development mode.
	Secret string

	// Issuer and Audience are checked when non-empty.
	Issuer   string
	Audience string

	// Leeway tolerates clock skew on exp/nbf/iat. Default 30s.
	Leeway time.Duration
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// Verifier validates tokens. It is safe for concurrent use.
type Verifier struct {
	secret   []byte
	parser   *jwt.Parser
	warnOnce sync.Once
}

// NewVerifier returns a Verifier for cfg.
func NewVerifier(cfg Config) *Verifier {
	if cfg.Leeway == 0 {
		cfg.Leeway = 30 * time.Second
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Verifier{secret: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}
}

// DevMode reports whether signatures are skipped.
func (v *Verifier) DevMode() bool { return len(v.secret) == 0 }

// Verify checks token and returns its user.
func (v *Verifier) Verify(token string) (User, error) {
	var c claims
	if v.DevMode() {
		v.warnOnce.Do(func() {
			slog.Warn("auth: running without token verification, development mode only")
		})
		if _, _, err := v.parser.ParseUnverified(token, &c); err != nil {
			return User{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
	} else {
		_, err := v.parser.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
			return v.secret, nil
		})
		if err != nil {
			return User{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
		}
	}
	if c.Subject == "" {
		return User{}, fmt.Errorf("%w: no subject", ErrInvalidToken)
	}
	return User{ID: c.Subject, Email: c.Email}, nil
}

// BearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on a WebSocket handshake, so the access_token query
// parameter is accepted as well.
func BearerToken(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return "", ErrMissingToken
		}
		return strings.TrimSpace(token), nil
	}
	if t := r.URL.Query().Get("access_token"); t != "" {
		return t, nil
	}
	return "", ErrMissingToken
}

// Middleware authenticates every request and stores the [User] in its
// context. Failures are reported through onError, which writes the
// response.
func (v *Verifier) Middleware(onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				onError(w, r, err)
				return
			}
			u, err := v.Verify(token)
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

type ctxKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext returns the user stored by [Middleware].
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok
}
