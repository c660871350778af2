// Package cannibalization turns raw Search Console rows into per-keyword page
// aggregates and detects keywords where several pages of one site compete.
package cannibalization

import (
	"time"

	"rankguard/internal/models"
	"rankguard/internal/validation"
)

// Filter holds the campaign inputs used to accept or drop raw rows.
type Filter struct {
	Keywords map[string]struct{}
	SiteHost string
	Start    time.Time
	End      time.Time
}

// NewFilter builds a Filter from a campaign's keyword list and site identifier.
// A malformed site yields a filter that rejects every row.
func NewFilter(keywords, site string, start, end time.Time) Filter {
	host, err := validation.SiteHost(site)
	if err != nil {
		host = ""
	}
	return Filter{
		Keywords: validation.ParseKeywordList(keywords),
		SiteHost: host,
		Start:    dayUTC(start),
		End:      dayUTC(end),
	}
}

// Accept reports whether a row survives the whitelist, domain and date checks,
// returning its normalized keyword.
func (f Filter) Accept(row models.PerformanceRow) (string, bool) {
	if f.SiteHost == "" || row.Date.IsZero() {
		return "", false
	}
	d := dayUTC(row.Date)
	if d.Before(f.Start) || d.After(f.End) {
		return "", false
	}
	kw := validation.NormalizeKeyword(row.Query)
	if _, ok := f.Keywords[kw]; !ok {
		return "", false
	}
	host, err := validation.PageHost(row.Page)
	if err != nil || host != f.SiteHost {
		return "", false
	}
	return kw, true
}

// Normalize sums impressions per (keyword, page) over every accepted row.
// Rows that fail any check are dropped; it never fails.
func Normalize(rows []models.PerformanceRow, f Filter) map[models.KeywordPageKey]int64 {
	out := make(map[models.KeywordPageKey]int64)
	for _, row := range rows {
		kw, ok := f.Accept(row)
		if !ok {
			continue
		}
		out[models.KeywordPageKey{Keyword: kw, PageURL: row.Page}] += max0(row.Impressions)
	}
	return out
}

func dayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func max0(i int64) int64 {
	if i < 0 {
		return 0
	}
	return i
}
