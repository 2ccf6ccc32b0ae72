package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/feedforward/feedforward-api/internal/models"
)

// FeedbackRepository defines data operations for feedback records.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *models.Feedback) error
	GetBySubmission(ctx context.Context, submissionID uint) (models.Feedback, error)
}

type feedbackRepository struct {
	db *gorm.DB
}

// NewFeedbackRepository instantiates the repository.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *models.Feedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}

func (r *feedbackRepository) GetBySubmission(ctx context.Context, submissionID uint) (models.Feedback, error) {
	var feedback models.Feedback
	if err := r.db.WithContext(ctx).
		Where("submission_id = ?", submissionID).
		Order("created_at DESC").
		First(&feedback).Error; err != nil {
		return models.Feedback{}, err
	}

	return feedback, nil
}
