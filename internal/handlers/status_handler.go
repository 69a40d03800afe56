package handlers

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"speech-evaluator/internal/models"
	"speech-evaluator/internal/repositories"
	"speech-evaluator/internal/services"
)

type StatusHandler struct {
	sessionRepo repositories.SessionRepository
	coordinator services.JobCoordinator
}

func NewStatusHandler(
	sessionRepo repositories.SessionRepository,
	coordinator services.JobCoordinator,
) *StatusHandler {
	return &StatusHandler{
		sessionRepo: sessionRepo,
		coordinator: coordinator,
	}
}

// HandleGetStatus handles GET /analysis/:sessionId/:jobId. Polling is
// read-only and safe to repeat on any interval; when the in-memory job is
// gone (process restart) a persisted result is still served from the session
// store.
func (h *StatusHandler) HandleGetStatus(c *fiber.Ctx) error {
	sessionID, err := uuid.Parse(c.Params("sessionId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid session ID format",
		})
	}

	jobID, err := uuid.Parse(c.Params("jobId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid job ID format",
		})
	}

	job, err := h.coordinator.Poll(sessionID, jobID)
	if err != nil {
		if errors.Is(err, services.ErrJobNotFound) {
			return h.statusFromStore(c, sessionID, jobID)
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Analysis job not found",
		})
	}

	return c.JSON(models.StatusResponse{
		SessionID:    job.SessionID.String(),
		JobID:        job.ID.String(),
		Status:       string(job.Status),
		Progress:     job.Progress,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		CompletedAt:  job.CompletedAt,
		Result:       job.Result,
		Error:        job.Error,
		ErrorDetails: job.ErrorDetails,
	})
}

func (h *StatusHandler) statusFromStore(c *fiber.Ctx, sessionID, jobID uuid.UUID) error {
	session, err := h.sessionRepo.FindByID(sessionID)
	if err != nil || session.ResultJSON == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Analysis job not found",
		})
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(*session.ResultJSON), &result); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Stored analysis result is unreadable",
		})
	}

	return c.JSON(models.StatusResponse{
		SessionID: sessionID.String(),
		JobID:     jobID.String(),
		Status:    string(models.JobComplete),
		Progress:  100,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
		Result:    &result,
	})
}
