package model

import (
	"time"
)

// UsageRecord is one counter row keyed by (user, metric, period bucket).
type UsageRecord struct {
	UserID    string
	Metric    string
	PeriodKey string
	Count     int64
	UpdatedAt time.Time
}

// PeriodKey returns the UTC bucket key for t: "day:2006-01-02" or "month:2006-01".
func PeriodKey(p Period, t time.Time) string {
	t = t.UTC()
	if p == PeriodMonthly {
		return "month:" + t.Format("2006-01")
	}
	return "day:" + t.Format("2006-01-02")
}

// PeriodEnd returns the first instant after the bucket containing t.
func PeriodEnd(p Period, t time.Time) time.Time {
	t = t.UTC()
	if p == PeriodMonthly {
		return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
}
