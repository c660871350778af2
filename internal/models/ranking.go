package models

import "time"

// RankingDailySample is one day of ranking data for a tracked keyword.
type RankingDailySample struct {
	Date              time.Time `json:"date"`
	AverageRank       float64   `json:"average_rank"`
	SearchVolume      int64     `json:"search_volume"`
	TopRankingPageURL string    `json:"top_ranking_page_url"`
}

// RankingSummary is an impression-weighted roll-up over a window of samples.
type RankingSummary struct {
	AveragePosition   float64 `json:"average_position"`
	TotalSearchVolume int64   `json:"total_search_volume"`
	DayCount          int     `json:"day_count"`
}

// MonthlyRanking is the summary for one calendar month.
type MonthlyRanking struct {
	Month   string          `json:"month"` // YYYY-MM
	Summary *RankingSummary `json:"summary"`
}
