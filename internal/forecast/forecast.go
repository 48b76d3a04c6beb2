// Package forecast groups 3-hour forecast samples into daily summaries.
package forecast

import (
	"time"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// Representative window, in hours of the display location, inclusive.
const (
	noonFrom = 11
	noonTo   = 13
)

// StripDays is the number of days shown in the forecast strip.
const StripDays = 5

type bucket struct {
	date    string
	rep     int // index into samples
	hasNoon bool
	tempMin float64
	tempMax float64
}

// GroupByDay partitions samples by UTC calendar date, in first-seen order, and
// emits one summary per date. The representative sample is the first one whose
// hour in loc falls in [11, 13], else the first of the day. TempMin and TempMax
// are the extremes across the whole day. A nil loc means UTC.
func GroupByDay(samples []models.ForecastSample, loc *time.Location) []models.DailySummary {
	if loc == nil {
		loc = time.UTC
	}

	var buckets []*bucket
	byDate := make(map[string]*bucket)
	for i, s := range samples {
		t := time.Unix(s.Timestamp, 0)
		date := t.UTC().Format("2006-01-02")

		b, ok := byDate[date]
		if !ok {
			b = &bucket{date: date, rep: i, tempMin: s.TempMin, tempMax: s.TempMax}
			byDate[date] = b
			buckets = append(buckets, b)
		} else {
			if s.TempMin < b.tempMin {
				b.tempMin = s.TempMin
			}
			if s.TempMax > b.tempMax {
				b.tempMax = s.TempMax
			}
		}

		if !b.hasNoon {
			if h := t.In(loc).Hour(); h >= noonFrom && h <= noonTo {
				b.rep = i
				b.hasNoon = true
			}
		}
	}

	out := make([]models.DailySummary, 0, len(buckets))
	for _, b := range buckets {
		rep := samples[b.rep]
		out = append(out, models.DailySummary{
			Date:      b.date,
			Timestamp: rep.Timestamp,
			Temp:      rep.Temp,
			TempMin:   b.tempMin,
			TempMax:   b.tempMax,
			Humidity:  rep.Humidity,
			Weather:   rep.Weather,
			TimeText:  rep.TimeText,
		})
	}
	return out
}

// Limit returns at most n leading days.
func Limit(days []models.DailySummary, n int) []models.DailySummary {
	if n < 0 || len(days) <= n {
		return days
	}
	return days[:n]
}
