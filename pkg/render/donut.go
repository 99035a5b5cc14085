package render

import (
	"strings"

	"clusterdash/pkg/models"
)

const (
	LabelUsed = "Used"
	LabelFree = "Free"

	ColorUsed  = "rgb(181, 160, 97)"
	ColorFree  = "rgb(13, 75, 116)"
	ColorTrack = "rgb(229, 229, 229)"

	HoleRatio   = 0.65
	ChartWidth  = 130
	ChartHeight = 122
	chartMargin = 1
)

// Donut builds the chart for one cluster. It is a pure function of its arguments:
// the same inputs always produce an equal ChartSpec.
func Donut(name models.ClusterName, label string, pair models.UtilizationPair) models.ChartSpec {
	return models.ChartSpec{
		Cluster: name,
		Title:   label,
		// Used always comes first, whatever the magnitudes.
		Segments: []models.Segment{
			{Label: LabelUsed, Value: pair.Used, Color: ColorUsed},
			{Label: LabelFree, Value: pair.Free, Color: ColorFree},
		},
		Hole:       HoleRatio,
		ShowLegend: false,
		Sort:       false,
		Margin: models.Margin{
			Left:   chartMargin,
			Right:  chartMargin,
			Top:    chartMargin,
			Bottom: chartMargin,
		},
		Width:  ChartWidth,
		Height: ChartHeight,
	}
}

// Adapter renders a single cluster.
type Adapter struct {
	Cluster models.ClusterName
	Label   string
}

// NewAdapter returns an adapter whose display name is the upper-cased cluster name.
func NewAdapter(name models.ClusterName) Adapter {
	return Adapter{Cluster: name, Label: strings.ToUpper(string(name))}
}

// Render builds the chart for the adapter's cluster.
func (a Adapter) Render(pair models.UtilizationPair) models.ChartSpec {
	return Donut(a.Cluster, a.Label, pair)
}

// Adapters returns one adapter per cluster, in the given order.
func Adapters(clusters []models.ClusterName) []Adapter {
	adapters := make([]Adapter, 0, len(clusters))
	for _, name := range clusters {
		adapters = append(adapters, NewAdapter(name))
	}
	return adapters
}

// DefaultAdapters returns the SMP, GPU, MPI and HTC adapters.
func DefaultAdapters() []Adapter {
	return Adapters(models.DefaultClusters)
}

// Name returns the cluster the adapter renders.
func (a Adapter) Name() models.ClusterName {
	return a.Cluster
}
