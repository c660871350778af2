package searchconsole

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	sc "google.golang.org/api/searchconsole/v1"

	"rankguard/internal/models"
)

type queryRequest struct {
	StartDate  string   `json:"startDate"`
	EndDate    string   `json:"endDate"`
	Dimensions []string `json:"dimensions"`
	RowLimit   int64    `json:"rowLimit"`
	StartRow   int64    `json:"startRow"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append(opts, WithClientOptions(option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client())))
	return New("client-id", "client-secret", zerolog.Nop(), opts...)
}

var account = &models.GoogleAccount{AccessToken: "token", RefreshToken: "refresh"}

func TestFetchRows_Paging(t *testing.T) {
	all := [][]string{
		{"2025-03-01", "shoes", "https://example.com/a"},
		{"2025-03-01", "shoes", "https://example.com/b"},
		{"2025-03-02", "boots", "https://example.com/a"},
	}

	var mu sync.Mutex
	var requests []queryRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/searchAnalytics/query") {
			http.NotFound(w, r)
			return
		}
		var req queryRequest
		json.NewDecoder(r.Body).Decode(&req)
		mu.Lock()
		requests = append(requests, req)
		mu.Unlock()

		end := req.StartRow + req.RowLimit
		if end > int64(len(all)) {
			end = int64(len(all))
		}
		var rows []map[string]any
		for i := req.StartRow; i < end; i++ {
			rows = append(rows, map[string]any{"keys": all[i], "impressions": 10 * (i + 1), "clicks": 1, "position": 2.5})
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"rows": rows})
	}, WithRowLimit(2))

	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	rows, err := client.FetchRows(context.Background(), "sc-domain:example.com", account, start, end,
		[]string{models.DimensionDate, models.DimensionQuery, models.DimensionPage})
	if err != nil {
		t.Fatalf("FetchRows() error = %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("FetchRows() len = %d, want 3", len(rows))
	}
	if len(requests) != 2 {
		t.Errorf("requests = %d, want 2 pages", len(requests))
	}
	if requests[0].StartDate != "2025-03-01" || requests[0].EndDate != "2025-03-31" {
		t.Errorf("request window = %s..%s", requests[0].StartDate, requests[0].EndDate)
	}
	if requests[1].StartRow != 2 {
		t.Errorf("second page StartRow = %d, want 2", requests[1].StartRow)
	}

	want := models.PerformanceRow{
		Date:        time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC),
		Query:       "boots",
		Page:        "https://example.com/a",
		Impressions: 30,
		Clicks:      1,
		Position:    2.5,
	}
	if rows[2] != want {
		t.Errorf("rows[2] = %+v, want %+v", rows[2], want)
	}
}

func TestFetchRows_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"User does not have sufficient permission"}}`))
	})

	_, err := client.FetchRows(context.Background(), "https://example.com/", account, time.Now(), time.Now(), []string{"query"})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("FetchRows() error = %v, want *FetchError", err)
	}
	if fe.StatusCode != http.StatusForbidden || fe.Site != "https://example.com/" {
		t.Errorf("FetchError = %+v", fe)
	}
}

func TestFetchRows_NoCredentials(t *testing.T) {
	client := New("id", "secret", zerolog.Nop())

	tests := []struct {
		name    string
		account *models.GoogleAccount
	}{
		{"nil account", nil},
		{"empty tokens", &models.GoogleAccount{Email: "a@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.FetchRows(context.Background(), "example.com", tt.account, time.Now(), time.Now(), nil)
			if !errors.Is(err, ErrNoCredentials) {
				t.Errorf("FetchRows() error = %v, want ErrNoCredentials", err)
			}
		})
	}
}

func TestToRow(t *testing.T) {
	tests := []struct {
		name       string
		dimensions []string
		keys       []string
		want       models.PerformanceRow
	}{
		{
			name:       "query then page",
			dimensions: []string{"query", "page"},
			keys:       []string{"shoes", "https://example.com/"},
			want:       models.PerformanceRow{Query: "shoes", Page: "https://example.com/"},
		},
		{
			name:       "bad date leaves zero time",
			dimensions: []string{"date", "query"},
			keys:       []string{"03/01/2025", "shoes"},
			want:       models.PerformanceRow{Query: "shoes"},
		},
		{
			name:       "fewer keys than dimensions",
			dimensions: []string{"query", "page"},
			keys:       []string{"shoes"},
			want:       models.PerformanceRow{Query: "shoes"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toRow(tt.dimensions, &sc.ApiDataRow{Keys: tt.keys})
			if got != tt.want {
				t.Errorf("toRow() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWithRowLimit(t *testing.T) {
	tests := []struct {
		in, want int64
	}{
		{100, 100},
		{0, MaxRowLimit},
		{MaxRowLimit + 1, MaxRowLimit},
	}
	for _, tt := range tests {
		if got := New("", "", zerolog.Nop(), WithRowLimit(tt.in)).rowLimit; got != tt.want {
			t.Errorf("WithRowLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
