package handler

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/abdusco/countdown/internal"
	"github.com/abdusco/countdown/internal/countdown"
	"github.com/abdusco/countdown/internal/link"
	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const displayLayout = "2006-01-02 15:04:05 -07:00"

// ViewRecorder logs countdown page views.
type ViewRecorder interface {
	Create(ctx context.Context, target, label, userAgent, ipAddress string) (*internal.View, error)
}

type CountdownHandler struct {
	baseURL    string
	defaultLoc *time.Location
	clock      countdown.Clock
	views      ViewRecorder
}

// NewCountdownHandler builds the countdown pages. views may be nil when the
// view log is disabled.
func NewCountdownHandler(baseURL string, defaultLoc *time.Location, clock countdown.Clock, views ViewRecorder) *CountdownHandler {
	if defaultLoc == nil {
		defaultLoc = time.Local
	}
	if clock == nil {
		clock = countdown.RealClock
	}
	return &CountdownHandler{
		baseURL:    baseURL,
		defaultLoc: defaultLoc,
		clock:      clock,
		views:      views,
	}
}

type createPage struct {
	Name  string
	To    string
	TZ    string
	Error string

	// Suggested marks To as a server default the browser may replace with its
	// own local time.
	Suggested bool
}

type errorPage struct {
	Error string
}

type countdownPage struct {
	Title     string
	Target    string
	Relative  string
	Parts     countdown.Parts
	StreamURL string
	ShareURL  string
}

type TickResponse struct {
	Label            string          `json:"label,omitempty"`
	Title            string          `json:"title"`
	Target           string          `json:"target"`
	RemainingSeconds int64           `json:"remaining_seconds"`
	Parts            countdown.Parts `json:"parts"`
	Display          string          `json:"display"`
}

// Index serves the countdown for the query, the creation form when no target
// is given, or the decode error.
func (h *CountdownHandler) Index(c echo.Context) error {
	l, err := link.Decode(c.Request().URL.RawQuery)
	if err != nil {
		log.Warn().Err(err).Str("query", c.Request().URL.RawQuery).Msg("failed to decode countdown link")
		return c.Render(http.StatusBadRequest, "error.html", errorPage{Error: err.Error()})
	}

	if !l.HasTarget() {
		return c.Render(http.StatusOK, "create.html", createPage{
			To:        h.clock.Now().In(h.defaultLoc).Add(time.Minute).Format(link.LocalLayout),
			Suggested: true,
		})
	}

	h.recordView(c, l)

	now := h.clock.Now()
	target := *l.Target
	query := link.Encode(l.Label, target)

	return c.Render(http.StatusOK, "countdown.html", countdownPage{
		Title:     l.Title(),
		Target:    target.Format(displayLayout),
		Relative:  humanize.RelTime(target, now, "ago", "from now"),
		Parts:     countdown.Compute(target, now).Parts(),
		StreamURL: "/api/countdown/stream?" + query,
		ShareURL:  link.URL(h.baseURL, l.Label, target),
	})
}

// Create handles the creation form and redirects to the encoded link.
func (h *CountdownHandler) Create(c echo.Context) error {
	page := createPage{
		Name: strings.TrimSpace(c.FormValue("name")),
		To:   c.FormValue("to"),
		TZ:   c.FormValue("tz"),
	}

	loc, err := link.LoadLocation(page.TZ, h.defaultLoc)
	if err != nil {
		log.Warn().Err(err).Str("tz", page.TZ).Msg("rejecting countdown with unknown time zone")
		page.Error = err.Error()
		return c.Render(http.StatusBadRequest, "create.html", page)
	}

	target, err := link.ParseLocal(page.To, loc)
	if err != nil {
		log.Warn().Err(err).Str("to", page.To).Str("tz", loc.String()).Msg("rejecting countdown with invalid local time")
		page.Error = err.Error()
		return c.Render(http.StatusBadRequest, "create.html", page)
	}

	query := link.Encode(page.Name, target)
	log.Info().Str("to", target.Format(time.RFC3339)).Str("name", page.Name).Msg("countdown created")

	return c.Redirect(http.StatusSeeOther, "/?"+query)
}

// Snapshot returns the remaining time for the query as JSON.
func (h *CountdownHandler) Snapshot(c echo.Context) error {
	l, err := decodeTarget(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newTickResponse(l, countdown.Compute(*l.Target, h.clock.Now())))
}

func (h *CountdownHandler) recordView(c echo.Context, l link.Link) {
	if h.views == nil {
		return
	}

	ctx := c.Request().Context()
	target := l.Target.Format(time.RFC3339Nano)
	if _, err := h.views.Create(ctx, target, l.Label, c.Request().UserAgent(), getClientIP(c.Request())); err != nil {
		log.Error().Err(err).Str("to", target).Msg("failed to record view")
	}
}

func decodeTarget(c echo.Context) (link.Link, error) {
	l, err := link.Decode(c.Request().URL.RawQuery)
	if err != nil {
		var decodeErr *link.DecodeError
		if errors.As(err, &decodeErr) {
			return link.Link{}, echo.NewHTTPError(http.StatusBadRequest, decodeErr.Error())
		}
		return link.Link{}, fmt.Errorf("failed to decode countdown link: %w", err)
	}
	if !l.HasTarget() {
		return link.Link{}, echo.NewHTTPError(http.StatusBadRequest, internal.ErrMissingTarget.Error())
	}
	return l, nil
}

func newTickResponse(l link.Link, r countdown.Remaining) TickResponse {
	return TickResponse{
		Label:            l.Label,
		Title:            l.Title(),
		Target:           l.Target.Format(time.RFC3339Nano),
		RemainingSeconds: r.Seconds(),
		Parts:            r.Parts(),
		Display:          r.String(),
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// Try X-Forwarded-For header first (for proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		first = strings.TrimSpace(first)
		if ip := net.ParseIP(first); ip != nil {
			return first
		}
	}

	// Try X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		if ip := net.ParseIP(xri); ip != nil {
			return xri
		}
	}

	// Fall back to RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	return r.RemoteAddr
}
