package reader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clusterdash/pkg/models"
	"clusterdash/pkg/store"
)

const defaultReadTimeout = 10 * time.Second

// Result is the normalized content of the latest snapshot.
type Result struct {
	SnapshotID int64
	SnapshotAt time.Time
	Pairs      map[models.ClusterName]models.UtilizationPair
}

// Reader turns the newest stored snapshot into per-cluster utilization pairs.
type Reader struct {
	store    store.Store
	clusters []models.ClusterName
	timeout  time.Duration
}

// New creates a reader for the given tracked clusters.
func New(st store.Store, clusters []models.ClusterName, timeout time.Duration) *Reader {
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	if len(clusters) == 0 {
		clusters = models.DefaultClusters
	}

	return &Reader{
		store:    st,
		clusters: append([]models.ClusterName(nil), clusters...),
		timeout:  timeout,
	}
}

// Clusters returns the tracked cluster names.
func (r *Reader) Clusters() []models.ClusterName {
	return append([]models.ClusterName(nil), r.clusters...)
}

// ReadLatest performs one store read and derives the used/free pair of every tracked cluster.
func (r *Reader) ReadLatest(ctx context.Context) (*Result, error) {
	readCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	snapshot, err := r.store.Latest(readCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}

	pairs, err := Derive(snapshot.Document, r.clusters)
	if err != nil {
		return nil, fmt.Errorf("snapshot %d: %w", snapshot.ID, err)
	}

	return &Result{
		SnapshotID: snapshot.ID,
		SnapshotAt: snapshot.CreatedAt,
		Pairs:      pairs,
	}, nil
}

// clusterFields uses pointers so that a missing field is told apart from zero.
type clusterFields struct {
	Allocated *int64 `json:"allocated"`
	Total     *int64 `json:"total"`
}

// Derive parses a snapshot document and computes used = allocated, free = total - allocated.
// Keys other than the tracked clusters are ignored.
func Derive(document []byte, clusters []models.ClusterName) (map[models.ClusterName]models.UtilizationPair, error) {
	var entries map[models.ClusterName]json.RawMessage
	if err := json.Unmarshal(document, &entries); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}

	pairs := make(map[models.ClusterName]models.UtilizationPair, len(clusters))
	for _, name := range clusters {
		raw, ok := entries[name]
		if !ok || string(raw) == "null" {
			return nil, fmt.Errorf("%w: cluster %q missing", ErrMalformedRecord, name)
		}

		var fields clusterFields
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("%w: cluster %q: %w", ErrMalformedRecord, name, err)
		}

		pair, err := toPair(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: cluster %q: %w", ErrMalformedRecord, name, err)
		}
		pairs[name] = pair
	}

	return pairs, nil
}

func toPair(fields clusterFields) (models.UtilizationPair, error) {
	switch {
	case fields.Allocated == nil:
		return models.UtilizationPair{}, errors.New("allocated missing")
	case fields.Total == nil:
		return models.UtilizationPair{}, errors.New("total missing")
	case *fields.Allocated < 0 || *fields.Total < 0:
		return models.UtilizationPair{}, fmt.Errorf("negative count (allocated=%d, total=%d)", *fields.Allocated, *fields.Total)
	case *fields.Allocated > *fields.Total:
		return models.UtilizationPair{}, fmt.Errorf("allocated %d exceeds total %d", *fields.Allocated, *fields.Total)
	}

	return models.UtilizationPair{
		Used: *fields.Allocated,
		Free: *fields.Total - *fields.Allocated,
	}, nil
}
