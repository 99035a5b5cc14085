package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"clusterdash/pkg/config"
	"clusterdash/pkg/dispatcher"
	"clusterdash/pkg/log"
	"clusterdash/pkg/metrics"
	"clusterdash/pkg/reader"
	"clusterdash/pkg/render"
	"clusterdash/pkg/server"
	"clusterdash/pkg/store/sqlite"
)

//go:embed VERSION
var Version string

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if errors.Is(err, config.ErrHelpRequested) {
		fmt.Fprint(os.Stdout, config.Usage())
		os.Exit(0)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if cfg.LogJSON {
		log.SetOutput(os.Stderr)
	}
	if cfg.Debug {
		log.SetDebugMode()
		log.Debug().Msg("Debug mode enabled")
	}

	statusStore, err := sqlite.NewStore(cfg.DatabaseURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open status database")
	}

	adapters := render.Adapters(cfg.Clusters)
	renderers := make([]dispatcher.Renderer, 0, len(adapters))
	for _, a := range adapters {
		renderers = append(renderers, a)
	}

	reporter := metrics.NewReporter()
	snapshotReader := reader.New(statusStore, cfg.Clusters, cfg.ReadTimeout)
	refresher := dispatcher.New(snapshotReader, renderers, cfg.RefreshInterval, reporter)

	dashboard, err := server.NewDashboardServer(refresher, reporter.Handler(), cfg.SecretKey, strings.TrimSpace(Version))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load page templates")
	}

	refresher.Start(context.Background())

	serveErr := dashboard.Start(cfg.ListenAddr)

	refresher.Stop()
	if err := statusStore.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close status database")
	}

	if serveErr != nil {
		log.Fatal().Err(serveErr).Msg("Server failed")
	}
	os.Exit(0)
}
