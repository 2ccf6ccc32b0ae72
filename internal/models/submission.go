package models

import "time"

const (
	// SubmissionStatusPending indicates the submission has been received but not yet claimed.
	SubmissionStatusPending = "pending"
	// SubmissionStatusProcessing indicates a worker has claimed the submission.
	SubmissionStatusProcessing = "processing"
	// SubmissionStatusCompleted indicates feedback has been persisted for the submission.
	SubmissionStatusCompleted = "completed"
	// SubmissionStatusFailed indicates processing gave up after exhausting retries.
	SubmissionStatusFailed = "failed"
)

// Submission represents one piece of student work awaiting or holding AI feedback.
// Either Content (inline text or code) or FileURL (a reference resolvable by the
// fetcher) is set, never both.
type Submission struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	AssignmentID  uint       `gorm:"not null" json:"assignment_id"`
	UserID        uint       `gorm:"not null" json:"user_id"`
	Content       string     `gorm:"type:text" json:"content"`
	FileURL       string     `gorm:"size:1024" json:"file_url"`
	FileName      string     `gorm:"size:255" json:"file_name"`
	MimeType      string     `gorm:"size:128" json:"mime_type"`
	Notes         string     `gorm:"type:text" json:"notes"`
	Status        string     `gorm:"size:32;not null;default:pending" json:"status"`
	FailureReason string     `gorm:"type:text" json:"failure_reason"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Assignment    Assignment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"assignment"`
	Feedbacks     []Feedback `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"feedbacks"`
}

// HasFileReference reports whether the submission points at a file rather than inline content.
func (s Submission) HasFileReference() bool {
	return s.FileURL != ""
}

// IsTerminal reports whether the submission has reached a final state.
func (s Submission) IsTerminal() bool {
	return s.Status == SubmissionStatusCompleted || s.Status == SubmissionStatusFailed
}
