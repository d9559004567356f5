package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abdusco/countdown/internal"
	"github.com/abdusco/countdown/internal/auth"
	"github.com/abdusco/countdown/internal/countdown"
	"github.com/abdusco/countdown/web"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

func (c fixedClock) AfterFunc(d time.Duration, f func()) countdown.Timer {
	return time.AfterFunc(d, f)
}

type fakeViews struct {
	mu    sync.Mutex
	calls []internal.View
}

func (f *fakeViews) Create(_ context.Context, target, label, userAgent, ipAddress string) (*internal.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := internal.View{
		ID:        int64(len(f.calls) + 1),
		Target:    target,
		Label:     label,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}
	f.calls = append(f.calls, v)
	return &v, nil
}

func (f *fakeViews) ListRecent(_ context.Context, limit uint) ([]*internal.View, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*internal.View
	for i := len(f.calls) - 1; i >= 0 && uint(len(out)) < limit; i-- {
		v := f.calls[i]
		out = append(out, &v)
	}
	return out, nil
}

func (f *fakeViews) StatsByTarget(_ context.Context, _ uint) ([]*internal.TargetStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := map[string]int64{}
	var order []string
	for _, v := range f.calls {
		if counts[v.Target] == 0 {
			order = append(order, v.Target)
		}
		counts[v.Target]++
	}
	var out []*internal.TargetStats
	for _, target := range order {
		out = append(out, &internal.TargetStats{Target: target, Views: counts[target]})
	}
	return out, nil
}

var testNow = time.Date(2024, 6, 1, 10, 0, 0, 400*int(time.Millisecond), time.UTC)

func newTestEcho(t *testing.T, clock countdown.Clock, views *fakeViews) *echo.Echo {
	t.Helper()

	renderer, err := web.NewRenderer(TemplateFuncs())
	require.NoError(t, err)

	e := echo.New()
	e.Renderer = renderer

	var recorder ViewRecorder
	if views != nil {
		recorder = views
	}

	h := NewCountdownHandler("http://countdown.test", time.UTC, clock, recorder)
	e.GET("/", h.Index)
	e.POST("/create", h.Create)
	e.GET("/api/countdown", h.Snapshot)
	e.GET("/api/countdown/stream", h.Stream)

	if views != nil {
		sessions := auth.NewSessions(auth.Credentials{Username: "admin", Password: "pw"}, "secret")
		authHandler := NewAuthHandler(sessions)
		e.GET("/login", authHandler.ServeLoginPage)
		e.POST("/login", authHandler.Login)
		e.GET("/logout", authHandler.Logout)
		e.GET("/api/views", NewViewsHandler(views).ListViews, sessions.Require(auth.ScopeViews))
	}

	return e
}

func serve(e *echo.Echo, method, target string, body url.Values) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(body.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
