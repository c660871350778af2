package db

import "errors"

// Domain-level database error sentinels.
var (
	// Campaign errors
	ErrCampaignNotFound = errors.New("campaign not found")
	ErrAccountNotFound  = errors.New("google account not found")
	ErrKeywordNotFound  = errors.New("tracked keyword not found")

	// Audit errors
	ErrAuditRunNotFound  = errors.New("audit run not found")
	ErrInvalidTransition = errors.New("audit run is not in the expected status")
)
