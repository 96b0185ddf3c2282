package chart

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// LineHTML renders series as a standalone HTML page with one line per
// device. The x-axis is the sample index within the window.
func LineHTML(w io.Writer, series []Series, o Options) error {
	o = o.withDefaults()

	longest := 0
	for _, s := range series {
		if len(s.Samples) > longest {
			longest = len(s.Samples)
		}
	}
	x := make([]int, longest)
	for i := range x {
		x[i] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.Title, Width: "100%", Height: "560px"}),
		charts.WithTitleOpts(opts.Title{Title: o.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0", Left: "0"}),
		charts.WithXAxisOpts(opts.XAxis{Name: o.XLabel, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: o.YLabel, Min: YMin, Max: YMax, NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x)

	for _, s := range series {
		data := make([]opts.LineData, len(s.Samples))
		for i, v := range s.Samples {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(o.legend(s), data)
	}
	return line.Render(w)
}
