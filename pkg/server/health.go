package server

import (
	"errors"
	"net/http"

	"clusterdash/pkg/dispatcher"
	"clusterdash/pkg/log"

	"github.com/labstack/echo/v4"
)

// getHealth handles GET /healthz. It reports 503 while the last refresh is failing;
// the page keeps showing the last good data either way.
func (ds *DashboardServer) getHealth(ctx echo.Context) error {
	status := ds.source.Status()

	code := http.StatusOK
	if !status.Healthy() {
		code = http.StatusServiceUnavailable
	}

	return ctx.JSON(code, map[string]interface{}{
		"healthy": status.Healthy(),
		"version": ds.version,
		"refresh": status,
	})
}

// postRefresh handles POST /api/refresh, an out-of-schedule refresh.
func (ds *DashboardServer) postRefresh(ctx echo.Context) error {
	err := ds.source.Refresh(ctx.Request().Context())
	if errors.Is(err, dispatcher.ErrRefreshInProgress) {
		return ctx.JSON(http.StatusConflict, map[string]string{
			"error": "refresh already in progress",
		})
	}
	if err != nil {
		log.Warn().Err(err).Msg("Manual refresh failed")
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": err.Error(),
		})
	}

	return ctx.JSON(http.StatusOK, map[string]int64{
		"snapshot_id": ds.source.Frame().State.SnapshotID,
	})
}
