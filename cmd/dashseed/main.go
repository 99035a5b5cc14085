package main

import (
	"context"
	"flag"
	"io"
	"os"
	"time"

	"clusterdash/pkg/config"
	"clusterdash/pkg/log"
	"clusterdash/pkg/reader"
	"clusterdash/pkg/store/sqlite"

	"github.com/dustin/go-humanize"
)

const insertTimeout = 10 * time.Second

// dashseed appends one status document to the database, standing in for the collector.
func main() {
	dbPath := flag.String("db", os.Getenv("DATABASE_URI"), "status database connection string")
	file := flag.String("file", "-", "JSON document to insert, - for stdin")
	check := flag.Bool("check", true, "reject documents the dashboard would treat as malformed")
	clusters := flag.String("clusters", "smp,gpu,mpi,htc", "clusters that must be present when -check is set")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal().Msg("A database must be given with -db or DATABASE_URI")
	}

	document, err := readDocument(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to read document")
	}

	if *check {
		if _, err := reader.Derive(document, config.ParseClusters(*clusters)); err != nil {
			log.Fatal().Err(err).Msg("Document rejected")
		}
	}

	st, err := sqlite.NewStore(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open status database")
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
	defer cancel()

	snapshot, err := st.Insert(ctx, document)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to insert snapshot")
	}

	count, err := st.Count(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to count snapshots")
	}

	log.Info().
		Int64("snapshot_id", snapshot.ID).
		Str("size", humanize.Bytes(uint64(len(document)))).
		Str("stored", humanize.Comma(count)).
		Msg("Snapshot inserted")
}

func readDocument(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
