// Package ranking rolls daily keyword ranking samples into monthly and
// baseline positions.
package ranking

import (
	"math"
	"sort"
	"time"

	"rankguard/internal/models"
)

// Window sizes used by the read path.
const (
	BaselineDays    = 7
	InitialRankDays = 7
)

// Aggregate computes the impression-weighted average position over the last n
// samples by date. Samples without a date are ignored. n <= 0 uses every
// sample. ok is false when no samples remain.
func Aggregate(samples []models.RankingDailySample, n int) (summary models.RankingSummary, ok bool) {
	selected := make([]models.RankingDailySample, 0, len(samples))
	for _, s := range samples {
		if s.Date.IsZero() {
			continue
		}
		selected = append(selected, s)
	}
	if len(selected) == 0 {
		return models.RankingSummary{}, false
	}

	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Date.Before(selected[j].Date) })
	if n > 0 && len(selected) > n {
		selected = selected[len(selected)-n:]
	}

	var weighted float64
	var volume int64
	for _, s := range selected {
		v := s.SearchVolume
		if v < 0 {
			v = 0
		}
		weighted += s.AverageRank * float64(v)
		volume += v
	}

	avg := selected[0].AverageRank
	if volume > 0 {
		avg = weighted / float64(volume)
	}

	return models.RankingSummary{
		AveragePosition:   avg,
		TotalSearchVolume: volume,
		DayCount:          len(selected),
	}, true
}

// MonthlySummary aggregates the samples that fall in month. A completed month
// uses the trailing BaselineDays; the month containing now uses every day so
// far, since a short slice would understate a partial month.
func MonthlySummary(samples []models.RankingDailySample, month, now time.Time) (models.RankingSummary, bool) {
	start := monthStart(month)
	end := start.AddDate(0, 1, 0)

	var inMonth []models.RankingDailySample
	for _, s := range samples {
		d := dayUTC(s.Date)
		if !s.Date.IsZero() && !d.Before(start) && d.Before(end) {
			inMonth = append(inMonth, s)
		}
	}

	n := BaselineDays
	if start.Equal(monthStart(now)) {
		n = daysIn(start)
	}
	return Aggregate(inMonth, n)
}

// InitialRank is the baseline position from the InitialRankDays days before
// the campaign start date, excluding the start date itself.
func InitialRank(samples []models.RankingDailySample, campaignStart time.Time) (models.RankingSummary, bool) {
	end := dayUTC(campaignStart).AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(InitialRankDays - 1))

	var window []models.RankingDailySample
	for _, s := range samples {
		d := dayUTC(s.Date)
		if !s.Date.IsZero() && !d.Before(start) && !d.After(end) {
			window = append(window, s)
		}
	}
	return Aggregate(window, InitialRankDays)
}

// Round2 rounds to two decimal places for display.
func Round2(f float64) float64 { return math.Round(f*100) / 100 }

func dayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func daysIn(month time.Time) int {
	return monthStart(month).AddDate(0, 1, -1).Day()
}
