package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/feedforward/feedforward-api/internal/models"
)

// SubmissionRepository defines the data operations the pipeline needs on submissions.
type SubmissionRepository interface {
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	// ClaimProcessing transitions pending -> processing. It returns false when
	// the submission was not in the pending state, which covers both unknown
	// ids and submissions already claimed by another worker.
	ClaimProcessing(ctx context.Context, id uint) (bool, error)
	MarkCompleted(ctx context.Context, id uint) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	// ResetPending returns a claimed submission to pending, used when a worker
	// shuts down before the job reached a terminal state.
	ResetPending(ctx context.Context, id uint) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Preload("Assignment").
		First(&submission, id).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *submissionRepository) ClaimProcessing(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionStatusPending).
		Update("status", models.SubmissionStatusProcessing)
	if result.Error != nil {
		return false, result.Error
	}

	return result.RowsAffected == 1, nil
}

func (r *submissionRepository) MarkCompleted(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionStatusProcessing).
		Update("status", models.SubmissionStatusCompleted).Error
}

func (r *submissionRepository) MarkFailed(ctx context.Context, id uint, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":         models.SubmissionStatusFailed,
			"failure_reason": reason,
		}).Error
}

func (r *submissionRepository) ResetPending(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ? AND status = ?", id, models.SubmissionStatusProcessing).
		Update("status", models.SubmissionStatusPending).Error
}
