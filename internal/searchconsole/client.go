// Package searchconsole fetches search analytics rows from the Google Search Console API.
package searchconsole

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sc "google.golang.org/api/searchconsole/v1"

	"rankguard/internal/models"
)

// MaxRowLimit is the largest page the Search Analytics API returns.
const MaxRowLimit = 25000

// ErrNoCredentials is returned when an account has no usable token.
var ErrNoCredentials = errors.New("google account has no credentials")

// FetchError is a failed Search Analytics query.
type FetchError struct {
	Site       string
	StatusCode int // HTTP status when the API answered, 0 otherwise
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("search console query for %s failed with status %d: %v", e.Site, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("search console query for %s failed: %v", e.Site, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Client queries Search Console on behalf of linked Google accounts.
type Client struct {
	oauth    oauth2.Config
	rowLimit int64
	log      zerolog.Logger

	// newService builds an API client for one token source.
	newService func(ctx context.Context, ts oauth2.TokenSource) (*sc.Service, error)
}

// Option configures a Client.
type Option func(*Client)

// WithRowLimit sets the page size, capped at MaxRowLimit.
func WithRowLimit(n int64) Option {
	return func(c *Client) {
		if n > 0 && n <= MaxRowLimit {
			c.rowLimit = n
		}
	}
}

// WithClientOptions appends API client options, for example a custom endpoint.
// An option.WithHTTPClient replaces the per-account token source.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(c *Client) {
		c.newService = func(ctx context.Context, ts oauth2.TokenSource) (*sc.Service, error) {
			return sc.NewService(ctx, append([]option.ClientOption{option.WithTokenSource(ts)}, opts...)...)
		}
	}
}

// New creates a client using the OAuth app credentials that issued the accounts' tokens.
func New(clientID, clientSecret string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		oauth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sc.WebmastersReadonlyScope},
		},
		rowLimit: MaxRowLimit,
		log:      log.With().Str("component", "searchconsole").Logger(),
		newService: func(ctx context.Context, ts oauth2.TokenSource) (*sc.Service, error) {
			return sc.NewService(ctx, option.WithTokenSource(ts))
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TokenSource returns a refreshing token source for the account.
func (c *Client) TokenSource(ctx context.Context, account *models.GoogleAccount) (oauth2.TokenSource, error) {
	if account == nil || (account.AccessToken == "" && account.RefreshToken == "") {
		return nil, ErrNoCredentials
	}
	tok := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		TokenType:    "Bearer",
	}
	if account.TokenExpiry != nil {
		tok.Expiry = *account.TokenExpiry
	}
	return c.oauth.TokenSource(ctx, tok), nil
}

// FetchRows pages through the Search Analytics query for site over [start, end]
// and returns every row. Keys are mapped to row fields by dimension name.
func (c *Client) FetchRows(ctx context.Context, site string, account *models.GoogleAccount, start, end time.Time, dimensions []string) ([]models.PerformanceRow, error) {
	ts, err := c.TokenSource(ctx, account)
	if err != nil {
		return nil, &FetchError{Site: site, Err: err}
	}
	svc, err := c.newService(ctx, ts)
	if err != nil {
		return nil, &FetchError{Site: site, Err: err}
	}

	req := &sc.SearchAnalyticsQueryRequest{
		StartDate:  start.Format(models.DateLayout),
		EndDate:    end.Format(models.DateLayout),
		Dimensions: dimensions,
		RowLimit:   c.rowLimit,
		DataState:  "final",
	}

	var rows []models.PerformanceRow
	for page := 0; ; page++ {
		req.StartRow = int64(len(rows))
		resp, err := svc.Searchanalytics.Query(site, req).Context(ctx).Do()
		if err != nil {
			return nil, newFetchError(site, err)
		}
		for _, r := range resp.Rows {
			rows = append(rows, toRow(dimensions, r))
		}
		c.log.Debug().
			Str("site", site).
			Int("page", page).
			Int("rows", len(resp.Rows)).
			Msg("fetched search analytics page")
		if int64(len(resp.Rows)) < c.rowLimit {
			break
		}
	}
	return rows, nil
}

func newFetchError(site string, err error) *FetchError {
	fe := &FetchError{Site: site, Err: err}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		fe.StatusCode = apiErr.Code
	}
	return fe
}

// toRow maps an API row to a PerformanceRow. An unparseable date leaves the
// zero time so the row is dropped during normalization.
func toRow(dimensions []string, r *sc.ApiDataRow) models.PerformanceRow {
	row := models.PerformanceRow{
		Impressions: int64(r.Impressions),
		Clicks:      int64(r.Clicks),
		Position:    r.Position,
	}
	for i, dim := range dimensions {
		if i >= len(r.Keys) {
			break
		}
		switch strings.ToLower(dim) {
		case models.DimensionDate:
			if d, err := time.Parse(models.DateLayout, r.Keys[i]); err == nil {
				row.Date = d
			}
		case models.DimensionQuery:
			row.Query = r.Keys[i]
		case models.DimensionPage:
			row.Page = r.Keys[i]
		}
	}
	return row
}
