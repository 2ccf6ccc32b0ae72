package models

// RubricCriterion is a single scoring criterion inside a rubric. Weight is a
// percentage-like positive integer; MaxScore bounds the per-criterion score.
type RubricCriterion struct {
	ID          string `json:"id" validate:"required"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	MaxScore    int    `json:"maxScore" validate:"gt=0"`
	Weight      int    `json:"weight" validate:"gt=0"`
}

// Rubric is a named set of criteria with a passing threshold, attached to an
// assignment. Immutable once attached for evaluation purposes.
type Rubric struct {
	Criteria         []RubricCriterion `json:"criteria"`
	PassingThreshold int               `json:"passingThreshold" validate:"gte=0,lte=100"`
}

// CriterionByID returns the criterion with the given id, if present.
func (r Rubric) CriterionByID(id string) (RubricCriterion, bool) {
	for _, criterion := range r.Criteria {
		if criterion.ID == id {
			return criterion, true
		}
	}
	return RubricCriterion{}, false
}

// CriterionScore is the model-assigned score and feedback for one criterion.
type CriterionScore struct {
	CriteriaID string  `json:"criteriaId" validate:"required"`
	Score      float64 `json:"score" validate:"gte=0"`
	Feedback   string  `json:"feedback"`
}
