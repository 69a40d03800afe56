package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"speech-evaluator/internal/models"
	"speech-evaluator/internal/repositories"
	"speech-evaluator/internal/services"
)

type AnalyzeHandler struct {
	sessionRepo repositories.SessionRepository
	coordinator services.JobCoordinator
	worker      services.Worker
}

func NewAnalyzeHandler(
	sessionRepo repositories.SessionRepository,
	coordinator services.JobCoordinator,
	worker services.Worker,
) *AnalyzeHandler {
	return &AnalyzeHandler{
		sessionRepo: sessionRepo,
		coordinator: coordinator,
		worker:      worker,
	}
}

// HandleAnalyze handles POST /analyze. It accepts a transcript plus framing
// evidence, persists the session, and starts the analysis job. Re-submitting
// with an existing session_id returns that session's job instead of creating
// a duplicate, so a page reload never re-runs the model call.
func (h *AnalyzeHandler) HandleAnalyze(c *fiber.Ctx) error {
	var req models.AnalyzeRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request payload",
		})
	}

	// Resume path: the client already holds a session ID.
	if req.SessionID != "" {
		sessionID, err := uuid.Parse(req.SessionID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid session_id format",
			})
		}

		if _, err := h.sessionRepo.FindByID(sessionID); err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Session not found",
			})
		}

		return h.startJob(c, sessionID)
	}

	if req.Transcript == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "transcript is required",
		})
	}

	if req.DurationSeconds <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "duration_seconds must be positive",
		})
	}

	wordCount := req.WordCount
	if wordCount <= 0 {
		wordCount = services.CountWords(req.Transcript)
	}

	session := &models.SpeechSession{
		ID:              uuid.New(),
		Theme:           req.Theme,
		Prompt:          req.Prompt,
		Transcript:      req.Transcript,
		DurationSeconds: req.DurationSeconds,
		WordCount:       wordCount,
		HeadVisible:     req.Framing.HeadVisible,
		TorsoVisible:    req.Framing.TorsoVisible,
		HandsVisible:    req.Framing.HandsVisible,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if err := h.sessionRepo.Create(session); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create session",
		})
	}

	return h.startJob(c, session.ID)
}

func (h *AnalyzeHandler) startJob(c *fiber.Ctx, sessionID uuid.UUID) error {
	job, created := h.coordinator.Start(sessionID)
	if created {
		h.worker.EnqueueJob(sessionID)
	}

	return c.Status(fiber.StatusAccepted).JSON(models.AnalyzeResponse{
		SessionID: sessionID.String(),
		JobID:     job.ID.String(),
		Status:    string(job.Status),
	})
}
