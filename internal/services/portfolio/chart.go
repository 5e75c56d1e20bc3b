package portfolio

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/dstanton/folio/internal/models"
)

// RenderChart renders the user's daily value series as a PNG line chart with
// a dashed cost-basis reference line. Returns raw PNG bytes.
func (s *Service) RenderChart(ctx context.Context, userID string, rangeDays int, baseCurrency string) ([]byte, error) {
	points, err := s.ValueSeries(ctx, userID, rangeDays, baseCurrency, models.ResolutionDaily)
	if err != nil {
		return nil, err
	}

	summary, err := s.Summary(ctx, userID, baseCurrency)
	if err != nil {
		return nil, err
	}

	return renderValueChart(points, summary.TotalCost)
}

// renderValueChart draws the series. Needs at least 2 points for axes.
func renderValueChart(points []models.AggregatedPoint, totalCost float64) ([]byte, error) {
	if len(points) < 2 {
		return nil, fmt.Errorf("need at least 2 data points, got %d", len(points))
	}

	xValues := make([]time.Time, 0, len(points))
	valueY := make([]float64, 0, len(points))
	costY := make([]float64, 0, len(points))

	for _, p := range points {
		d, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			continue
		}
		xValues = append(xValues, d)
		valueY = append(valueY, p.Value)
		costY = append(costY, totalCost)
	}

	if len(xValues) < 2 {
		return nil, fmt.Errorf("need at least 2 parseable data points")
	}

	valueSeries := chart.TimeSeries{
		Name: "Portfolio Value",
		Style: chart.Style{
			StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: valueY,
	}

	costSeries := chart.TimeSeries{
		Name: "Book Cost",
		Style: chart.Style{
			StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
			StrokeWidth:     1.5,
			StrokeDashArray: []float64{5.0, 3.0},
		},
		XValues: xValues,
		YValues: costY,
	}

	graph := chart.Chart{
		Title:  "Portfolio Value",
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format("Jan 06")
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{
			valueSeries,
			costSeries,
		},
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
