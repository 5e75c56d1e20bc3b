package portfolio

import (
	"sort"
	"time"

	"github.com/dstanton/folio/internal/models"
)

// Downsample reduces a daily series to the requested resolution.
//
// Daily is the identity. Weekly is greedy selection: the first point is kept,
// and each later point is kept only when it falls at least 7 calendar days
// after the most recently KEPT point (not the preceding input point) — so no
// two kept points are closer than 7 days, with no special preservation of
// the range endpoints. Calendar-week bucketing was considered and rejected to
// keep the selection stable across month/week boundaries. Monthly keeps the
// last point of each (year, month) group in input order.
//
// Output is always ascending by date with no duplicate dates.
func Downsample(points []models.AggregatedPoint, resolution models.Resolution) []models.AggregatedPoint {
	switch resolution {
	case models.ResolutionWeekly:
		return downsampleWeekly(points)
	case models.ResolutionMonthly:
		return downsampleMonthly(points)
	default:
		return points
	}
}

func downsampleWeekly(points []models.AggregatedPoint) []models.AggregatedPoint {
	out := make([]models.AggregatedPoint, 0, len(points)/7+1)
	var lastKept time.Time

	for _, p := range points {
		d, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			continue
		}
		if len(out) == 0 || d.Sub(lastKept) >= 7*24*time.Hour {
			out = append(out, p)
			lastKept = d
		}
	}

	return out
}

func downsampleMonthly(points []models.AggregatedPoint) []models.AggregatedPoint {
	byMonth := make(map[string]models.AggregatedPoint)
	for _, p := range points {
		if len(p.Date) < 7 {
			continue
		}
		byMonth[p.Date[:7]] = p // last point of the month in input order wins
	}

	out := make([]models.AggregatedPoint, 0, len(byMonth))
	for _, p := range byMonth {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	return out
}
