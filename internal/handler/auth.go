package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/abdusco/countdown/internal"
	"github.com/abdusco/countdown/internal/auth"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

type AuthHandler struct {
	sessions *auth.Sessions
}

func NewAuthHandler(sessions *auth.Sessions) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

type loginPage struct {
	Error string
}

// ServeLoginPage serves the login form
func (h *AuthHandler) ServeLoginPage(c echo.Context) error {
	return c.Render(http.StatusOK, "login.html", loginPage{})
}

// Login handles POST /login. A form post lands on the view log, a JSON post
// gets a status body.
func (h *AuthHandler) Login(c echo.Context) error {
	var creds auth.Credentials
	if err := c.Bind(&creds); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	isForm := !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)

	cookie, err := h.sessions.Login(creds, c.IsTLS())
	if errors.Is(err, internal.ErrUnauthorized) {
		log.Warn().Str("username", creds.Username).Str("ip", getClientIP(c.Request())).Msg("invalid login attempt")
		if isForm {
			return c.Render(http.StatusUnauthorized, "login.html", loginPage{Error: "invalid credentials"})
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to start admin session")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to start session")
	}
	c.SetCookie(cookie)

	if isForm {
		return c.Redirect(http.StatusSeeOther, "/api/views")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.Logout(c.IsTLS()))
	return c.Redirect(http.StatusFound, "/")
}
