package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"rankguard/internal/models"
)

const campaignColumns = `c.id, c.name, c.keywords, c.search_console_site, c.google_account_id,
	c.start_date, c.created_at, c.updated_at`

func campaignFields(c *models.Campaign) []any {
	return []any{
		&c.ID,
		&c.Name,
		&c.Keywords,
		&c.SearchConsoleSite,
		&c.GoogleAccountID,
		&c.StartDate,
		&c.CreatedAt,
		&c.UpdatedAt,
	}
}

// CreateGoogleAccount inserts an account, updating the tokens if the email already exists.
func (d *DB) CreateGoogleAccount(ctx context.Context, acct *models.GoogleAccount) error {
	query := `
		INSERT INTO google_accounts (email, access_token, refresh_token, token_expiry)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expiry = EXCLUDED.token_expiry
		RETURNING id, created_at
	`
	return d.Pool.QueryRow(ctx, query,
		acct.Email,
		acct.AccessToken,
		acct.RefreshToken,
		acct.TokenExpiry,
	).Scan(&acct.ID, &acct.CreatedAt)
}

// CreateCampaign inserts a campaign.
func (d *DB) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	query := `
		INSERT INTO campaigns (name, keywords, search_console_site, google_account_id, start_date)
		VALUES ($1, $2, $3, $4, COALESCE($5::date, CURRENT_DATE))
		RETURNING id, start_date, created_at, updated_at
	`
	var start any
	if !c.StartDate.IsZero() {
		start = c.StartDate
	}
	return d.Pool.QueryRow(ctx, query,
		c.Name,
		c.Keywords,
		c.SearchConsoleSite,
		c.GoogleAccountID,
		start,
	).Scan(&c.ID, &c.StartDate, &c.CreatedAt, &c.UpdatedAt)
}

// GetCampaignByID retrieves a campaign without its account.
func (d *DB) GetCampaignByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns c WHERE c.id = $1`

	var c models.Campaign
	err := d.Pool.QueryRow(ctx, query, id).Scan(campaignFields(&c)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCampaignWithAccount retrieves a campaign joined with its Google account.
// A campaign without a linked account returns ErrAccountNotFound.
func (d *DB) GetCampaignWithAccount(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `,
			a.id, a.email, a.access_token, a.refresh_token, a.token_expiry, a.created_at
		FROM campaigns c
		LEFT JOIN google_accounts a ON a.id = c.google_account_id
		WHERE c.id = $1
	`

	var (
		c         models.Campaign
		accountID *uuid.UUID
		email     *string
		access    *string
		refresh   *string
		expiry    *time.Time
		created   *time.Time
	)
	fields := append(campaignFields(&c), &accountID, &email, &access, &refresh, &expiry, &created)
	err := d.Pool.QueryRow(ctx, query, id).Scan(fields...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	if accountID == nil {
		return nil, ErrAccountNotFound
	}

	c.GoogleAccount = &models.GoogleAccount{
		ID:           *accountID,
		Email:        deref(email),
		AccessToken:  deref(access),
		RefreshToken: deref(refresh),
		TokenExpiry:  expiry,
	}
	if created != nil {
		c.GoogleAccount.CreatedAt = *created
	}
	return &c, nil
}

// ListCampaignsDueForAudit returns campaigns with a linked account whose most
// recent audit run was created before cutoff, or that have never been audited.
func (d *DB) ListCampaignsDueForAudit(ctx context.Context, cutoff time.Time, limit int) ([]models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns c
		WHERE c.google_account_id IS NOT NULL
		AND NOT EXISTS (
			SELECT 1 FROM cannibalization_audits a
			WHERE a.campaign_id = c.id AND a.created_at >= $1
		)
		ORDER BY c.created_at
		LIMIT $2
	`

	rows, err := d.Pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var campaigns []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(campaignFields(&c)...); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
