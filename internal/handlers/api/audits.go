package api

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"rankguard/internal/audit"
	"rankguard/internal/jobs"
	"rankguard/internal/models"
)

// AuditReader serves stored audit results and history.
type AuditReader interface {
	GetResults(ctx context.Context, campaignID uuid.UUID, limit int, start, end *time.Time) (*models.AuditRunWithResults, error)
	GetAuditHistory(ctx context.Context, campaignID uuid.UUID, limit int) ([]models.AuditRunSummary, error)
}

// AuditSubmitter queues audit runs.
type AuditSubmitter interface {
	Submit(ctx context.Context, campaignID uuid.UUID, start, end time.Time) (*models.AuditRun, error)
	SubmitPreset(ctx context.Context, campaignID uuid.UUID, preset audit.Preset) (*models.AuditRun, error)
}

// AuditHandler handles cannibalization audits via JSON API.
type AuditHandler struct {
	audits AuditReader
	queue  AuditSubmitter
}

// NewAuditHandler creates a new API audit handler.
func NewAuditHandler(audits AuditReader, queue AuditSubmitter) *AuditHandler {
	return &AuditHandler{audits: audits, queue: queue}
}

// Create queues an audit for a campaign. The window comes from either the
// preset query parameter or a {start_date, end_date} body.
func (h *AuditHandler) Create(c fiber.Ctx) error {
	campaignID, ok := uuidParam(c, "id")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid campaign id")
	}

	var (
		run *models.AuditRun
		err error
	)
	if p := c.Query("preset"); p != "" {
		preset, perr := audit.ParsePreset(p)
		if perr != nil {
			return jsonError(c, fiber.StatusBadRequest, "preset must be initial or scheduled")
		}
		run, err = h.queue.SubmitPreset(c.Context(), campaignID, preset)
	} else {
		var body struct {
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return jsonError(c, fiber.StatusBadRequest, "invalid request body")
		}
		if body.StartDate == "" || body.EndDate == "" {
			return jsonError(c, fiber.StatusBadRequest, "start_date and end_date are required")
		}
		start, serr := parseDate(body.StartDate)
		end, eerr := parseDate(body.EndDate)
		if serr != nil || eerr != nil {
			return jsonError(c, fiber.StatusBadRequest, "dates must be in YYYY-MM-DD format")
		}
		run, err = h.queue.Submit(c.Context(), campaignID, start, end)
	}

	if err != nil {
		return auditError(c, err)
	}

	return jsonAccepted(c, models.AuditAcceptedResponse{ID: run.ID, Status: run.Status})
}

// Results returns the latest completed audit overlapping the requested window.
func (h *AuditHandler) Results(c fiber.Ctx) error {
	campaignID, ok := uuidParam(c, "id")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid campaign id")
	}

	limit, err := intQuery(c, "limit", audit.DefaultLimit)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	start, err := dateQuery(c, "start_date")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	end, err := dateQuery(c, "end_date")
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	result, err := h.audits.GetResults(c.Context(), campaignID, limit, start, end)
	if err != nil {
		return auditError(c, err)
	}
	if result == nil {
		return jsonEmpty(c, "no cannibalization detected")
	}

	return jsonSuccess(c, result)
}

// History lists a campaign's audit runs, most recent first.
func (h *AuditHandler) History(c fiber.Ctx) error {
	campaignID, ok := uuidParam(c, "id")
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid campaign id")
	}

	limit, err := intQuery(c, "limit", audit.DefaultLimit)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	history, err := h.audits.GetAuditHistory(c.Context(), campaignID, limit)
	if err != nil {
		return auditError(c, err)
	}

	return jsonSuccess(c, history)
}

func auditError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, audit.ErrNotFound):
		return jsonError(c, fiber.StatusNotFound, "campaign or linked Google account not found")
	case errors.Is(err, audit.ErrInvalidRange):
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrQueueFull):
		return jsonError(c, fiber.StatusServiceUnavailable, "too many audits in progress, try again later")
	default:
		return jsonError(c, fiber.StatusInternalServerError, "audit request failed")
	}
}
