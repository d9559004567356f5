package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abdusco/countdown/internal"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// ScopeViews grants read access to the view log.
const ScopeViews = "views:read"

// AdminKey is the echo context key holding the signed-in admin's username.
const AdminKey = "admin"

const (
	cookieName   = "countdown_admin"
	issuer       = "countdown"
	sessionTTL   = 7 * 24 * time.Hour
	refreshAfter = 24 * time.Hour
)

var ErrInvalidSession = errors.New("invalid admin session")

type Credentials struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// ParseCredentials reads "user:password" as configured in ADMIN_CREDENTIALS.
func ParseCredentials(s string) (Credentials, error) {
	username, password, ok := strings.Cut(s, ":")
	if !ok || username == "" {
		return Credentials{}, errors.New("admin credentials must be user:password")
	}
	return Credentials{Username: username, Password: password}, nil
}

func (c Credentials) matches(other Credentials) bool {
	userOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(other.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(c.Password), []byte(other.Password)) == 1
	return userOK && passOK
}

type sessionClaims struct {
	Scopes []string `json:"scp"`
	jwt.RegisteredClaims
}

// Sessions issues and checks signed cookies for the view log admin.
type Sessions struct {
	admin Credentials
	key   []byte
	now   func() time.Time
}

func NewSessions(admin Credentials, secret string) *Sessions {
	return &Sessions{admin: admin, key: []byte(secret), now: time.Now}
}

// Login returns a session cookie granting ScopeViews when creds match the admin.
func (s *Sessions) Login(creds Credentials, secure bool) (*http.Cookie, error) {
	if !s.admin.matches(creds) {
		return nil, internal.ErrUnauthorized
	}
	return s.issue(creds.Username, secure, ScopeViews)
}

func (s *Sessions) Logout(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     cookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	}
}

func (s *Sessions) issue(subject string, secure bool, scopes ...string) (*http.Cookie, error) {
	now := s.now()
	claims := &sessionClaims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}

	return &http.Cookie{
		Name:     cookieName,
		Value:    signed,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL / time.Second),
	}, nil
}

func (s *Sessions) verify(token string) (*sessionClaims, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	// Sessions end when the admin username changes.
	if claims.Subject != s.admin.Username {
		return nil, fmt.Errorf("%w: unknown subject %q", ErrInvalidSession, claims.Subject)
	}
	return claims, nil
}

// Require guards a route with scope. A session cookie is tried first, then
// HTTP basic auth for scripts. Day-old cookies are reissued.
func (s *Sessions) Require(scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			admin, err := s.authenticate(c, scope)
			if errors.Is(err, internal.ErrForbidden) {
				return echo.NewHTTPError(http.StatusForbidden, err.Error())
			}
			if err != nil {
				log.Debug().Err(err).Str("path", c.Path()).Msg("view log access denied")
				return echo.NewHTTPError(http.StatusUnauthorized, internal.ErrUnauthorized.Error())
			}

			c.Set(AdminKey, admin)
			return next(c)
		}
	}
}

func (s *Sessions) authenticate(c echo.Context, scope string) (string, error) {
	if cookie, err := c.Cookie(cookieName); err == nil && cookie.Value != "" {
		claims, err := s.verify(cookie.Value)
		if err == nil {
			if !lo.Contains(claims.Scopes, scope) {
				return "", fmt.Errorf("%w: session lacks %s", internal.ErrForbidden, scope)
			}
			if claims.IssuedAt == nil || s.now().Sub(claims.IssuedAt.Time) > refreshAfter {
				s.refresh(c, claims.Subject)
			}
			return claims.Subject, nil
		}
		log.Debug().Err(err).Msg("ignoring admin session cookie")
	}

	username, password, ok := c.Request().BasicAuth()
	if !ok {
		return "", internal.ErrUnauthorized
	}
	if !s.admin.matches(Credentials{Username: username, Password: password}) {
		return "", fmt.Errorf("%w: bad basic auth for %q", internal.ErrUnauthorized, username)
	}
	return username, nil
}

func (s *Sessions) refresh(c echo.Context, subject string) {
	cookie, err := s.issue(subject, c.IsTLS(), ScopeViews)
	if err != nil {
		log.Error().Err(err).Msg("failed to refresh admin session")
		return
	}
	c.SetCookie(cookie)
}
