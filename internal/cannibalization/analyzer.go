package cannibalization

import (
	"sort"

	"rankguard/internal/models"
)

// DefaultThreshold is the minimum overlap percentage for a page to count as competing.
const DefaultThreshold = 20.0

// Page is a page and its impressions for one keyword.
type Page struct {
	URL         string  `json:"url"`
	Impressions int64   `json:"impressions"`
	Overlap     float64 `json:"overlap_percentage"`
}

// Finding is one cannibalized keyword. CompetingPages always starts with the
// top page at 100% overlap.
type Finding struct {
	Keyword        string `json:"keyword"`
	TopPage        Page   `json:"top_page"`
	CompetingPages []Page `json:"competing_pages"`
}

// Analyze returns one finding per keyword where at least one page other than
// the top page reaches threshold percent of the top page's impressions.
// Findings are ordered by keyword.
func Analyze(aggregates map[models.KeywordPageKey]int64, threshold float64) []Finding {
	byKeyword := make(map[string][]Page)
	for key, impressions := range aggregates {
		byKeyword[key.Keyword] = append(byKeyword[key.Keyword], Page{URL: key.PageURL, Impressions: impressions})
	}

	keywords := make([]string, 0, len(byKeyword))
	for kw, pages := range byKeyword {
		if len(pages) >= 2 {
			keywords = append(keywords, kw)
		}
	}
	sort.Strings(keywords)

	var findings []Finding
	for _, kw := range keywords {
		if f, ok := analyzeKeyword(kw, byKeyword[kw], threshold); ok {
			findings = append(findings, f)
		}
	}
	return findings
}

func analyzeKeyword(keyword string, pages []Page, threshold float64) (Finding, bool) {
	// Equal impressions fall back to URL order so the top page is stable.
	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Impressions != pages[j].Impressions {
			return pages[i].Impressions > pages[j].Impressions
		}
		return pages[i].URL < pages[j].URL
	})

	top := pages[0]
	top.Overlap = 100
	competing := []Page{top}
	for _, p := range pages[1:] {
		p.Overlap = OverlapPercentage(p.Impressions, top.Impressions)
		if p.Overlap >= threshold {
			competing = append(competing, p)
		}
	}
	if len(competing) < 2 {
		return Finding{}, false
	}
	return Finding{Keyword: keyword, TopPage: top, CompetingPages: competing}, true
}

// OverlapPercentage is page impressions as a percentage of the top page's.
// Multiplying first keeps whole-percent ratios exact. A zero top yields 0.
func OverlapPercentage(impressions, topImpressions int64) float64 {
	if topImpressions <= 0 {
		return 0
	}
	return float64(impressions) * 100 / float64(topImpressions)
}

// ToResults converts findings into persistable results for a run.
func ToResults(findings []Finding) []models.CannibalizationResult {
	results := make([]models.CannibalizationResult, 0, len(findings))
	for _, f := range findings {
		r := models.CannibalizationResult{
			Keyword:            f.Keyword,
			TopPageURL:         f.TopPage.URL,
			TopPageImpressions: f.TopPage.Impressions,
			CompetingPages:     make([]models.CompetingPage, 0, len(f.CompetingPages)),
		}
		for _, p := range f.CompetingPages {
			r.CompetingPages = append(r.CompetingPages, models.CompetingPage{
				PageURL:           p.URL,
				Impressions:       p.Impressions,
				OverlapPercentage: p.Overlap,
			})
		}
		results = append(results, r)
	}
	return results
}
