package entity

import (
	"fmt"
	"time"
)

// ReviewPeriod is the cadence of a review.
type ReviewPeriod string

const (
	PeriodWeekly    ReviewPeriod = "weekly"
	PeriodMonthly   ReviewPeriod = "monthly"
	PeriodQuarterly ReviewPeriod = "quarterly"
)

// Valid reports whether the period is one of the known cadences.
func (p ReviewPeriod) Valid() bool {
	switch p {
	case PeriodWeekly, PeriodMonthly, PeriodQuarterly:
		return true
	}
	return false
}

// ParseReviewPeriod validates a stored period tag.
func ParseReviewPeriod(s string) (ReviewPeriod, error) {
	p := ReviewPeriod(s)
	if !p.Valid() {
		return "", fmt.Errorf("invalid review period %q", s)
	}
	return p, nil
}

// PeriodKey returns the filename stem identifying the review's period:
// 2025-W23 for weeks (ISO week), 2025-M06 for months, 2025-Q2 for quarters.
// The key is derived from PeriodStart so repeated syncs of the same review
// always target the same remote file.
func (r *Review) PeriodKey() string {
	switch r.Period {
	case PeriodMonthly:
		return fmt.Sprintf("%04d-M%02d", r.PeriodStart.Year(), int(r.PeriodStart.Month()))
	case PeriodQuarterly:
		q := (int(r.PeriodStart.Month())-1)/3 + 1
		return fmt.Sprintf("%04d-Q%d", r.PeriodStart.Year(), q)
	default:
		year, week := r.PeriodStart.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	}
}

// WeekBounds returns the Monday and Sunday of the ISO week containing t.
func WeekBounds(t time.Time) (start, end time.Time) {
	t = t.UTC().Truncate(24 * time.Hour)
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	start = t.AddDate(0, 0, 1-weekday)
	end = start.AddDate(0, 0, 6)
	return start, end
}
