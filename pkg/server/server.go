package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"clusterdash/pkg/dispatcher"
	"clusterdash/pkg/log"
	"clusterdash/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 10 * time.Second

//go:embed web/*.html
var webFS embed.FS

// FrameSource is what the dashboard reads from. *dispatcher.Dispatcher implements it.
type FrameSource interface {
	Frame() *dispatcher.Frame
	Status() dispatcher.Status
	Clusters() []models.ClusterName
	Interval() time.Duration
	Refresh(ctx context.Context) error
}

// DashboardServer serves the chart page, its JSON API and the metrics endpoint.
type DashboardServer struct {
	echo      *echo.Echo
	source    FrameSource
	metrics   http.Handler
	secret    []byte
	version   string
	templates *template.Template
}

// NewDashboardServer creates the server. metricsHandler may be nil.
func NewDashboardServer(source FrameSource, metricsHandler http.Handler, secret, version string) (*DashboardServer, error) {
	templates, err := template.New("web").Funcs(templateFuncs).ParseFS(webFS, "web/*.html")
	if err != nil {
		return nil, err
	}

	srv := &DashboardServer{
		echo:      echo.New(),
		source:    source,
		metrics:   metricsHandler,
		secret:    []byte(secret),
		version:   version,
		templates: templates,
	}
	srv.setupRoutes()
	return srv, nil
}

// ServeHTTP lets the server be used directly as an http.Handler.
func (ds *DashboardServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ds.echo.ServeHTTP(w, r)
}

// Start serves on addr until SIGINT or SIGTERM, then shuts down gracefully.
func (ds *DashboardServer) Start(addr string) error {
	go func() {
		log.Info().
			Str("addr", addr).
			Str("version", ds.version).
			Dur("refresh_interval", ds.source.Interval()).
			Msg("Starting dashboard server")

		if err := ds.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server startup failed")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	return ds.Shutdown()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (ds *DashboardServer) Shutdown() error {
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := ds.echo.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		return err
	}

	log.Info().Msg("Server gracefully stopped")
	return nil
}

func (ds *DashboardServer) setupRoutes() {
	ds.echo.HideBanner = true
	ds.echo.HidePort = true

	ds.echo.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	ds.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			event := log.Debug()
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				event = log.Warn().Err(v.Error)
			}
			event.
				Str("request_id", v.RequestID).
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("Request")
			return nil
		},
	}))
	ds.echo.Use(middleware.Recover())

	ds.echo.GET("/", ds.servePage)
	ds.echo.GET("/charts", ds.serveChartsFragment)
	ds.echo.GET("/api/charts", ds.getCharts)
	ds.echo.GET("/api/charts/:cluster", ds.getChart)
	ds.echo.GET("/api/state", ds.getState)
	ds.echo.POST("/api/refresh", ds.postRefresh)
	ds.echo.GET("/healthz", ds.getHealth)
	if ds.metrics != nil {
		ds.echo.GET("/metrics", echo.WrapHandler(ds.metrics))
	}
}
