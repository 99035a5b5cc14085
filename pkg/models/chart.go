package models

// Segment is one wedge of a donut chart.
type Segment struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
	Color string `json:"color"`
}

// Margin is the chart padding in pixels.
type Margin struct {
	Left   int `json:"l"`
	Right  int `json:"r"`
	Top    int `json:"t"`
	Bottom int `json:"b"`
}

// ChartSpec describes a two-segment donut chart for one cluster.
type ChartSpec struct {
	Cluster    ClusterName `json:"cluster"`
	Title      string      `json:"title"`
	Segments   []Segment   `json:"segments"`
	Hole       float64     `json:"hole"`
	ShowLegend bool        `json:"show_legend"`
	Sort       bool        `json:"sort"`
	Margin     Margin      `json:"margin"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
}

// Total sums all segment values.
func (c ChartSpec) Total() int64 {
	var total int64
	for _, seg := range c.Segments {
		total += seg.Value
	}
	return total
}
