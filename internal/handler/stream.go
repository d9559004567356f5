package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/abdusco/countdown/internal/countdown"
	"github.com/abdusco/countdown/internal/logger"
	"github.com/labstack/echo/v4"
)

// Stream pushes one server-sent "tick" event per second until the client goes
// away. The ticker is stopped on disconnect.
func (h *CountdownHandler) Stream(c echo.Context) error {
	l, err := decodeTarget(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	streamLog := logger.With("to", l.Target.String(), "ip", getClientIP(c.Request()))

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	// Holds only the latest value; a slow client skips stale ticks.
	latest := make(chan countdown.Remaining, 1)
	publish := func(r countdown.Remaining) {
		select {
		case <-latest:
		default:
		}
		latest <- r
	}

	ticker := countdown.NewTicker(*l.Target, publish, countdown.WithClock(h.clock))
	ticker.Start()
	defer ticker.Stop()

	streamLog.Debug().Msg("countdown stream opened")
	defer func() {
		streamLog.Debug().Msg("countdown stream closed")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-latest:
			data, err := json.Marshal(newTickResponse(l, r))
			if err != nil {
				return fmt.Errorf("failed to encode tick: %w", err)
			}
			if _, err := fmt.Fprintf(res, "event: tick\ndata: %s\n\n", data); err != nil {
				streamLog.Debug().Err(err).Msg("countdown stream write failed")
				return nil
			}
			res.Flush()
		}
	}
}
