package repositories

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"speech-evaluator/internal/models"
)

type SessionRepository interface {
	Create(session *models.SpeechSession) error
	FindByID(id uuid.UUID) (*models.SpeechSession, error)
	SaveResult(id uuid.UUID, resultJSON string) error
}

type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(session *models.SpeechSession) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *sessionRepository) FindByID(id uuid.UUID) (*models.SpeechSession, error) {
	var session models.SpeechSession
	if err := r.db.Where("id = ?", id).First(&session).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("session not found")
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &session, nil
}

func (r *sessionRepository) SaveResult(id uuid.UUID, resultJSON string) error {
	result := r.db.Model(&models.SpeechSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"result_json": resultJSON,
			"updated_at":  time.Now(),
		})

	if result.Error != nil {
		return fmt.Errorf("failed to save result: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("session not found")
	}

	return nil
}
