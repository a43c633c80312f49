package impact

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	colorBar       = "#8b5cf6"
	colorTitle     = "#6d28d9"
	colorTextMuted = "#6b7280"

	chartWidthPx  = 900
	rowHeightPx   = 36
	minChartPx    = 240
	chartMarginPx = 120
)

// ChartOptions configures RenderChart.
type ChartOptions struct {
	// Subtitle is shown under the title, e.g. the patient id.
	Subtitle string
	// PageTitle is the HTML document title.
	PageTitle string
}

// Title returns the chart heading for n rows.
func Title(n int) string {
	return fmt.Sprintf("Feature Impact on Prediction (Top %d)", n)
}

// NewChart builds a horizontal bar chart of rows, largest at the top.
func NewChart(rows []Row, o ChartOptions) *charts.Bar {
	height := len(rows)*rowHeightPx + chartMarginPx
	if height < minChartPx {
		height = minChartPx
	}
	pageTitle := o.PageTitle
	if pageTitle == "" {
		pageTitle = "Feature Impact"
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: pageTitle,
			Width:     fmt.Sprintf("%dpx", chartWidthPx),
			Height:    fmt.Sprintf("%dpx", height),
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      Title(len(rows)),
			Subtitle:   o.Subtitle,
			Left:       "left",
			TitleStyle: &opts.TextStyle{Color: colorTitle, FontSize: 14},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Min:       0,
			Max:       1,
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Color: colorTextMuted},
		}),
	)

	// echarts draws the first category at the bottom of a reversed axis.
	labels := make([]string, len(rows))
	data := make([]opts.BarData, len(rows))
	for i, r := range rows {
		j := len(rows) - 1 - i
		labels[j] = r.Label
		data[j] = opts.BarData{
			Name:      r.Display,
			Value:     r.Width,
			ItemStyle: &opts.ItemStyle{Color: colorBar},
			Label: &opts.Label{
				Show:      opts.Bool(true),
				Position:  "insideLeft",
				Color:     "#ffffff",
				Formatter: r.Display,
			},
		}
	}

	bar.SetXAxis(labels)
	bar.AddSeries("impact", data)
	bar.XYReversal()
	return bar
}

// RenderChart writes the chart for rows as a standalone HTML page.
func RenderChart(w io.Writer, rows []Row, o ChartOptions) error {
	if err := NewChart(rows, o).Render(w); err != nil {
		return fmt.Errorf("render impact chart: %w", err)
	}
	return nil
}
