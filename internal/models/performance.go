package models

import "time"

// Search Console dimensions requested by an audit.
const (
	DimensionDate  = "date"
	DimensionQuery = "query"
	DimensionPage  = "page"
)

// PerformanceRow is one provider-reported observation for a date, query and page.
type PerformanceRow struct {
	Date        time.Time
	Query       string
	Page        string
	Impressions int64
	Clicks      int64
	Position    float64
}

// KeywordPageKey identifies a normalized keyword and the page it surfaced.
type KeywordPageKey struct {
	Keyword string
	PageURL string
}

// KeywordPageAggregate is the summed impressions for a keyword/page pair over a window.
type KeywordPageAggregate struct {
	Keyword     string `json:"keyword"`
	PageURL     string `json:"page_url"`
	Impressions int64  `json:"impressions"`
}
