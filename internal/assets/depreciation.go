package assets

import (
	"fmt"
	"math"
	"time"
)

// Schedule is the straight-line depreciation state of an asset at a point in
// time. All functions here are pure; the service applies the results.
type Schedule struct {
	MonthlyDepreciation float64
	Accumulated         float64
	BookValue           float64
}

// MonthlyDepreciation returns the constant straight-line monthly charge.
func MonthlyDepreciation(acquisitionCost, salvageValue float64, usefulLifeYears int) float64 {
	if usefulLifeYears <= 0 {
		return 0
	}
	return (acquisitionCost - salvageValue) / float64(usefulLifeYears*12)
}

// StraightLine computes the schedule after monthsElapsed whole months.
// Accumulated never exceeds the depreciable base and book value never drops
// below salvage.
func StraightLine(acquisitionCost, salvageValue float64, usefulLifeYears, monthsElapsed int) Schedule {
	monthly := MonthlyDepreciation(acquisitionCost, salvageValue, usefulLifeYears)
	base := acquisitionCost - salvageValue
	accumulated := math.Min(monthly*float64(monthsElapsed), base)
	if accumulated < 0 {
		accumulated = 0
	}
	return Schedule{
		MonthlyDepreciation: monthly,
		Accumulated:         accumulated,
		BookValue:           math.Max(acquisitionCost-accumulated, salvageValue),
	}
}

// MonthsBetween counts whole calendar months from the acquisition date to the
// period, clamped at zero. Both arguments are compared by year and month only.
func MonthsBetween(acquisitionDate string, period time.Time) (int, error) {
	acquired, err := time.Parse("2006-01-02", acquisitionDate)
	if err != nil {
		return 0, fmt.Errorf("parse acquisition date %q: %w", acquisitionDate, err)
	}
	months := (period.Year()-acquired.Year())*12 + int(period.Month()) - int(acquired.Month())
	if months < 0 {
		months = 0
	}
	return months, nil
}

// PeriodKey renders the calendar period a run belongs to, e.g. "2026-03".
func PeriodKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
