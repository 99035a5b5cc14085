package server

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"clusterdash/pkg/dispatcher"
	"clusterdash/pkg/log"
	"clusterdash/pkg/models"
	"clusterdash/pkg/render"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
)

const pageTitle = "Cluster Utilization"

var templateFuncs = template.FuncMap{
	"num": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 3, 64)
	},
	"pct": func(v float64) string {
		return humanize.FtoaWithDigits(v, 1) + "%"
	},
}

type chartView struct {
	Cluster     models.ClusterName
	Title       string
	Ring        render.Ring
	HasData     bool
	Used        string
	Free        string
	UsedPercent float64
}

type pageView struct {
	Title         string
	Version       string
	RefreshMillis int64
	Charts        []chartView
	Updated       string
	Stale         bool
}

func (ds *DashboardServer) buildPage(now time.Time) pageView {
	frame := ds.source.Frame()
	status := ds.source.Status()

	view := pageView{
		Title:         pageTitle,
		Version:       ds.version,
		RefreshMillis: ds.source.Interval().Milliseconds(),
		Stale:         frame != nil && !status.Healthy(),
	}
	if frame != nil {
		view.Updated = humanize.RelTime(frame.State.RefreshedAt, now, "ago", "from now")
	}

	for _, name := range ds.source.Clusters() {
		view.Charts = append(view.Charts, chartFor(frame, name))
	}
	return view
}

func chartFor(frame *dispatcher.Frame, name models.ClusterName) chartView {
	spec, ok := frame.Chart(name)
	if !ok {
		adapter := render.NewAdapter(name)
		spec = adapter.Render(models.UtilizationPair{})
		return chartView{Cluster: name, Title: adapter.Label, Ring: render.Layout(spec)}
	}

	used, free := spec.Segments[0].Value, spec.Segments[1].Value
	return chartView{
		Cluster:     name,
		Title:       spec.Title,
		Ring:        render.Layout(spec),
		HasData:     true,
		Used:        humanize.Comma(used),
		Free:        humanize.Comma(free),
		UsedPercent: render.Percent(used, spec.Total()),
	}
}

func (ds *DashboardServer) render(ctx echo.Context, name string, data any) error {
	var buf bytes.Buffer
	if err := ds.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Failed to render template")
		return ctx.String(http.StatusInternalServerError, "failed to render page")
	}

	ctx.Response().Header().Set("Cache-Control", "no-store")
	return ctx.HTMLBlob(http.StatusOK, buf.Bytes())
}

// servePage handles GET /, the full dashboard page.
func (ds *DashboardServer) servePage(ctx echo.Context) error {
	return ds.render(ctx, "index", ds.buildPage(time.Now()))
}

// serveChartsFragment handles GET /charts, the chart grid swapped in by the page script.
func (ds *DashboardServer) serveChartsFragment(ctx echo.Context) error {
	return ds.render(ctx, "charts", ds.buildPage(time.Now()))
}
