package models

import "time"

// ClusterName identifies a tracked resource pool.
type ClusterName string

const (
	ClusterSMP ClusterName = "smp"
	ClusterGPU ClusterName = "gpu"
	ClusterMPI ClusterName = "mpi"
	ClusterHTC ClusterName = "htc"
)

// DefaultClusters is the tracked set, in display order.
var DefaultClusters = []ClusterName{ClusterSMP, ClusterGPU, ClusterMPI, ClusterHTC}

// ClusterStatus is one cluster entry of a stored snapshot document.
type ClusterStatus struct {
	Allocated int64 `json:"allocated"`
	Total     int64 `json:"total"`
}

// Snapshot is a persisted status record. ID grows with every insert.
type Snapshot struct {
	ID        int64
	CreatedAt time.Time
	Document  []byte
}

// UtilizationPair is the derived used/free split for one cluster.
type UtilizationPair struct {
	Used int64 `json:"used"`
	Free int64 `json:"free"`
}

// Total returns the capacity the pair was derived from.
func (p UtilizationPair) Total() int64 {
	return p.Used + p.Free
}

// DisplayState holds the pairs currently shown. It is replaced wholesale on refresh.
type DisplayState struct {
	SnapshotID  int64                           `json:"snapshot_id"`
	SnapshotAt  time.Time                       `json:"snapshot_at"`
	RefreshedAt time.Time                       `json:"refreshed_at"`
	Pairs       map[ClusterName]UtilizationPair `json:"pairs"`
}

