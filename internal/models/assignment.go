package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Assignment represents an assignment definition against which submissions are evaluated.
type Assignment struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	DueDate     time.Time      `json:"due_date"`
	Rubric      datatypes.JSON `json:"rubric"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Submissions []Submission   `json:"submissions"`
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return !a.DueDate.IsZero() && reference.After(a.DueDate)
}

// DecodeRubric unmarshals the attached rubric. A nil rubric (no column value or
// an empty criteria set) means the assignment uses general evaluation.
func (a Assignment) DecodeRubric() (*Rubric, error) {
	if len(a.Rubric) == 0 {
		return nil, nil
	}

	var rubric Rubric
	if err := json.Unmarshal(a.Rubric, &rubric); err != nil {
		return nil, err
	}

	if len(rubric.Criteria) == 0 {
		return nil, nil
	}

	return &rubric, nil
}
