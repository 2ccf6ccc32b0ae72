package models

import (
	"time"

	"gorm.io/datatypes"
)

// Feedback captures the validated outcome of one AI evaluation of a submission.
// Created exactly once per successfully processed submission and immutable after
// creation.
type Feedback struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	SubmissionID     uint              `gorm:"not null;index" json:"submission_id"`
	Strengths        datatypes.JSON    `json:"strengths"`
	Improvements     datatypes.JSON    `json:"improvements"`
	Suggestions      datatypes.JSON    `json:"suggestions"`
	Summary          string            `gorm:"type:text" json:"summary"`
	Score            *float64          `json:"score"`
	CriteriaScores   datatypes.JSON    `json:"criteria_scores"`
	ProcessingTimeMs int64             `gorm:"default:0" json:"processing_time_ms"`
	ModelName        string            `gorm:"size:128" json:"model_name"`
	TokenCount       int               `gorm:"default:0" json:"token_count"`
	Raw              datatypes.JSONMap `json:"raw"`
	CreatedAt        time.Time         `json:"created_at"`
}
