package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"rankguard/internal/db"
	"rankguard/internal/models"
	"rankguard/internal/ranking"
)

// RankingReader serves monthly keyword rankings.
type RankingReader interface {
	KeywordRankings(ctx context.Context, campaignID, keywordID uuid.UUID, months int) (*models.KeywordRankingResponse, error)
}

// RankingHandler handles keyword ranking reads via JSON API.
type RankingHandler struct {
	rankings RankingReader
}

// NewRankingHandler creates a new API ranking handler.
func NewRankingHandler(rankings RankingReader) *RankingHandler {
	return &RankingHandler{rankings: rankings}
}

// maxMonths bounds the months query parameter.
const maxMonths = 24

// Keyword returns monthly summaries and the initial rank for a tracked keyword.
func (h *RankingHandler) Keyword(c fiber.Ctx) error {
	campaignID, ok := uuidParam(c, "id")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid campaign id")
	}
	keywordID, ok := uuidParam(c, "keywordId")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid keyword id")
	}

	months, err := intQuery(c, "months", ranking.DefaultMonths)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	if months > maxMonths {
		months = maxMonths
	}

	resp, err := h.rankings.KeywordRankings(c.Context(), campaignID, keywordID, months)
	if err != nil {
		if errors.Is(err, ranking.ErrKeywordNotFound) || errors.Is(err, db.ErrCampaignNotFound) {
			return jsonError(c, fiber.StatusNotFound, "keyword not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, "failed to load rankings")
	}

	return jsonSuccess(c, resp)
}
