package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign is a tracked SEO campaign for one Search Console property.
type Campaign struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	Keywords          string     `json:"keywords"`            // newline-delimited whitelist
	SearchConsoleSite string     `json:"search_console_site"` // e.g. "sc-domain:example.com" or "https://www.example.com/"
	GoogleAccountID   *uuid.UUID `json:"google_account_id"`
	StartDate         time.Time  `json:"start_date"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`

	// Populated by lookups that join the linked account
	GoogleAccount *GoogleAccount `json:"-"`
}

// GoogleAccount holds the OAuth credentials used to query Search Console.
type GoogleAccount struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	TokenExpiry  *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}

// TrackedKeyword is a keyword whose daily ranking is recorded for a campaign.
type TrackedKeyword struct {
	ID         uuid.UUID `json:"id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	Keyword    string    `json:"keyword"`
	CreatedAt  time.Time `json:"created_at"`
}
