package render

import (
	"math"

	"clusterdash/pkg/models"
)

// Arc is one stroked segment of the ring, expressed as an SVG dash pattern.
type Arc struct {
	Label  string
	Color  string
	Value  int64
	Dash   float64
	Gap    float64
	Offset float64
}

// Ring is the drawable geometry of a donut chart.
type Ring struct {
	Width       int
	Height      int
	CX          float64
	CY          float64
	Radius      float64
	StrokeWidth float64
	Track       string
	Arcs        []Arc
}

// Layout converts a chart spec into ring geometry. A chart whose segments sum to zero
// yields zero-length arcs over the background track.
func Layout(spec models.ChartSpec) Ring {
	innerW := float64(spec.Width - spec.Margin.Left - spec.Margin.Right)
	innerH := float64(spec.Height - spec.Margin.Top - spec.Margin.Bottom)
	outer := math.Max(math.Min(innerW, innerH)/2, 0)
	inner := outer * spec.Hole

	ring := Ring{
		Width:       spec.Width,
		Height:      spec.Height,
		CX:          float64(spec.Margin.Left) + innerW/2,
		CY:          float64(spec.Margin.Top) + innerH/2,
		Radius:      (outer + inner) / 2,
		StrokeWidth: outer - inner,
		Track:       ColorTrack,
		Arcs:        make([]Arc, 0, len(spec.Segments)),
	}

	circumference := 2 * math.Pi * ring.Radius
	total := spec.Total()
	var drawn float64
	for _, seg := range spec.Segments {
		var length float64
		if total > 0 {
			length = circumference * float64(seg.Value) / float64(total)
		}
		ring.Arcs = append(ring.Arcs, Arc{
			Label:  seg.Label,
			Color:  seg.Color,
			Value:  seg.Value,
			Dash:   length,
			Gap:    circumference - length,
			Offset: -drawn,
		})
		drawn += length
	}

	return ring
}

// Percent returns the share of value in total, 0 when total is 0.
func Percent(value, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(value) * 100 / float64(total)
}
