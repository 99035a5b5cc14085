package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"clusterdash/pkg/dispatcher"
	"clusterdash/pkg/models"

	"github.com/labstack/echo/v4"
)

const etagLength = 16

type chartsResponse struct {
	SnapshotID  int64              `json:"snapshot_id"`
	SnapshotAt  time.Time          `json:"snapshot_at"`
	RefreshedAt time.Time          `json:"refreshed_at"`
	Charts      []models.ChartSpec `json:"charts"`
}

// etag ties a response to the snapshot it was rendered from without exposing the raw id.
func (ds *DashboardServer) etag(frame *dispatcher.Frame) string {
	mac := hmac.New(sha256.New, ds.secret)
	mac.Write([]byte(strconv.FormatInt(frame.State.SnapshotID, 10)))
	return `"` + hex.EncodeToString(mac.Sum(nil))[:etagLength] + `"`
}

// notModified sets the ETag header and reports whether the client already has this frame.
func (ds *DashboardServer) notModified(ctx echo.Context, frame *dispatcher.Frame) bool {
	tag := ds.etag(frame)
	ctx.Response().Header().Set("ETag", tag)

	for _, candidate := range strings.Split(ctx.Request().Header.Get("If-None-Match"), ",") {
		if strings.TrimSpace(candidate) == tag {
			return true
		}
	}
	return false
}

func noSnapshot(ctx echo.Context) error {
	return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
		"error": "no snapshot loaded yet",
	})
}

// getCharts handles GET /api/charts. All charts come from the same snapshot.
func (ds *DashboardServer) getCharts(ctx echo.Context) error {
	frame := ds.source.Frame()
	if frame == nil {
		return noSnapshot(ctx)
	}
	if ds.notModified(ctx, frame) {
		return ctx.NoContent(http.StatusNotModified)
	}

	return ctx.JSON(http.StatusOK, chartsResponse{
		SnapshotID:  frame.State.SnapshotID,
		SnapshotAt:  frame.State.SnapshotAt,
		RefreshedAt: frame.State.RefreshedAt,
		Charts:      frame.Charts,
	})
}

// getChart handles GET /api/charts/:cluster.
func (ds *DashboardServer) getChart(ctx echo.Context) error {
	name := models.ClusterName(strings.ToLower(ctx.Param("cluster")))

	known := false
	for _, c := range ds.source.Clusters() {
		if c == name {
			known = true
			break
		}
	}
	if !known {
		return ctx.JSON(http.StatusNotFound, map[string]string{
			"error": "unknown cluster",
		})
	}

	frame := ds.source.Frame()
	chart, ok := frame.Chart(name)
	if !ok {
		return noSnapshot(ctx)
	}
	if ds.notModified(ctx, frame) {
		return ctx.NoContent(http.StatusNotModified)
	}

	return ctx.JSON(http.StatusOK, chart)
}

// getState handles GET /api/state.
func (ds *DashboardServer) getState(ctx echo.Context) error {
	frame := ds.source.Frame()
	if frame == nil {
		return noSnapshot(ctx)
	}
	return ctx.JSON(http.StatusOK, frame.State)
}
