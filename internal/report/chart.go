package report

import (
	"bytes"
	"fmt"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"github.com/momaliii/kamal-bot-old/internal/ledger"
)

// Renderer turns per-date totals into an image payload.
type Renderer interface {
	Render(points []ledger.DailyTotal) ([]byte, error)
}

// ChartRenderer renders a PNG line chart of daily totals.
type ChartRenderer struct{}

func NewChartRenderer() ChartRenderer { return ChartRenderer{} }

func (ChartRenderer) Render(points []ledger.DailyTotal) ([]byte, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("report: no points to chart")
	}

	xs := make([]time.Time, 0, len(points)+1)
	ys := make([]float64, 0, len(points)+1)
	for _, p := range points {
		d, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return nil, fmt.Errorf("report: bad date %q: %w", p.Date, err)
		}
		xs = append(xs, d)
		// Float conversion is for rendering only; stored amounts stay decimal.
		ys = append(ys, p.Total.InexactFloat64())
	}
	// go-chart requires at least two points per series.
	if len(xs) == 1 {
		xs = append(xs, xs[0].Add(24*time.Hour))
		ys = append(ys, ys[0])
	}

	c := chart.Chart{
		Title:  "Transaction History",
		Width:  800,
		Height: 400,
		XAxis:  chart.XAxis{Name: "Date", ValueFormatter: chart.TimeDateValueFormatter},
		YAxis:  chart.YAxis{Name: "Total Amount"},
		Series: []chart.Series{
			chart.TimeSeries{Name: "total", XValues: xs, YValues: ys},
		},
	}

	var buf bytes.Buffer
	if err := c.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("report: render chart: %w", err)
	}
	return buf.Bytes(), nil
}
