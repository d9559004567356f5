package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/abdusco/countdown/internal"
	"github.com/abdusco/countdown/internal/auth"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

const (
	defaultViewsLimit = 50
	maxViewsLimit     = 500
)

type ViewLister interface {
	ListRecent(ctx context.Context, limit uint) ([]*internal.View, error)
	StatsByTarget(ctx context.Context, limit uint) ([]*internal.TargetStats, error)
}

type ViewsHandler struct {
	views ViewLister
}

func NewViewsHandler(views ViewLister) *ViewsHandler {
	return &ViewsHandler{views: views}
}

type ListViewsResponse struct {
	Views   []*internal.View        `json:"views"`
	Targets []*internal.TargetStats `json:"targets"`
}

func (h *ViewsHandler) ListViews(c echo.Context) error {
	ctx := c.Request().Context()

	limit := uint(defaultViewsLimit)
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || n == 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = uint(min(n, maxViewsLimit))
	}

	views, err := h.views.ListRecent(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to list views")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	targets, err := h.views.StatsByTarget(ctx, limit)
	if err != nil {
		log.Error().Err(err).Msg("failed to aggregate views")
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	log.Debug().Interface("admin", c.Get(auth.AdminKey)).Uint("limit", limit).Msg("listed views")
	return c.JSON(http.StatusOK, ListViewsResponse{Views: views, Targets: targets})
}
