package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/abdusco/countdown/internal"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = Credentials{Username: "admin", Password: "pw"}

func newTestSessions(now time.Time) *Sessions {
	s := NewSessions(admin, "secret")
	s.now = func() time.Time { return now }
	return s
}

func TestParseCredentials(t *testing.T) {
	creds, err := ParseCredentials("admin:p:w")
	require.NoError(t, err)
	assert.Equal(t, Credentials{Username: "admin", Password: "p:w"}, creds)

	_, err = ParseCredentials("admin")
	assert.Error(t, err)

	_, err = ParseCredentials(":pw")
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s := newTestSessions(now)

	_, err := s.Login(Credentials{Username: "admin", Password: "nope"}, false)
	assert.ErrorIs(t, err, internal.ErrUnauthorized)

	cookie, err := s.Login(admin, true)
	require.NoError(t, err)
	assert.Equal(t, cookieName, cookie.Name)
	assert.True(t, cookie.Secure)
	assert.True(t, cookie.HttpOnly)

	claims, err := s.verify(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, issuer, claims.Issuer)
	assert.Equal(t, []string{ScopeViews}, claims.Scopes)
	assert.True(t, now.Add(sessionTTL).Equal(claims.ExpiresAt.Time))
}

func TestVerifyRejects(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s := newTestSessions(now)

	valid, err := s.issue("admin", false, ScopeViews)
	require.NoError(t, err)

	expired, err := newTestSessions(now.Add(-sessionTTL-time.Minute)).issue("admin", false, ScopeViews)
	require.NoError(t, err)

	forged, err := NewSessions(admin, "other").issue("admin", false, ScopeViews)
	require.NoError(t, err)

	renamed, err := s.issue("root", false, ScopeViews)
	require.NoError(t, err)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &sessionClaims{
		Scopes: []string{ScopeViews},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "elsewhere",
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = s.verify(valid.Value)
	assert.NoError(t, err)

	for name, token := range map[string]string{
		"expired": expired.Value,
		"forged":  forged.Value,
		"renamed": renamed.Value,
		"issuer":  foreign,
		"garbage": "not-a-jwt",
	} {
		_, err := s.verify(token)
		assert.ErrorIs(t, err, ErrInvalidSession, name)
	}
}

func TestRequire(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s := newTestSessions(now)

	session, err := s.issue("admin", false, ScopeViews)
	require.NoError(t, err)
	unscoped, err := s.issue("admin", false)
	require.NoError(t, err)
	forged, err := NewSessions(admin, "other").issue("admin", false, ScopeViews)
	require.NoError(t, err)

	tests := []struct {
		name       string
		cookie     *http.Cookie
		basic      *Credentials
		wantStatus int
	}{
		{name: "nothing", wantStatus: http.StatusUnauthorized},
		{name: "session", cookie: session, wantStatus: http.StatusOK},
		{name: "session without scope", cookie: unscoped, wantStatus: http.StatusForbidden},
		{name: "forged session", cookie: forged, wantStatus: http.StatusUnauthorized},
		{name: "forged session with basic auth", cookie: forged, basic: &admin, wantStatus: http.StatusOK},
		{name: "basic auth", basic: &admin, wantStatus: http.StatusOK},
		{name: "wrong basic auth", basic: &Credentials{Username: "admin", Password: "x"}, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/api/views", func(c echo.Context) error {
				return c.String(http.StatusOK, c.Get(AdminKey).(string))
			}, s.Require(ScopeViews))

			req := httptest.NewRequest(http.MethodGet, "/api/views", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			if tt.basic != nil {
				req.SetBasicAuth(tt.basic.Username, tt.basic.Password)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "admin", rec.Body.String())
			}
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), internal.ErrUnauthorized.Error())
			}
		})
	}
}

func TestRequireRefreshesOldSession(t *testing.T) {
	issued := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	old, err := newTestSessions(issued).issue("admin", false, ScopeViews)
	require.NoError(t, err)

	for _, tt := range []struct {
		age       time.Duration
		refreshed bool
	}{
		{age: time.Hour, refreshed: false},
		{age: refreshAfter + time.Hour, refreshed: true},
	} {
		s := newTestSessions(issued.Add(tt.age))
		e := echo.New()
		e.GET("/api/views", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, s.Require(ScopeViews))

		req := httptest.NewRequest(http.MethodGet, "/api/views", nil)
		req.AddCookie(old)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		cookies := rec.Result().Cookies()
		if !tt.refreshed {
			assert.Empty(t, cookies)
			continue
		}
		require.Len(t, cookies, 1)
		assert.NotEqual(t, old.Value, cookies[0].Value)

		claims, err := s.verify(cookies[0].Value)
		require.NoError(t, err)
		assert.True(t, issued.Add(tt.age).Equal(claims.IssuedAt.Time))
	}
}

func TestLogout(t *testing.T) {
	cookie := NewSessions(admin, "secret").Logout(false)
	assert.Equal(t, cookieName, cookie.Name)
	assert.Empty(t, cookie.Value)
	assert.Equal(t, -1, cookie.MaxAge)
}
