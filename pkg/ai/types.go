package ai

import "context"

// PartKind mirrors the coarse content categories produced by normalization.
type PartKind string

const (
	PartText     PartKind = "text"
	PartImage    PartKind = "image"
	PartDocument PartKind = "document"
	PartCode     PartKind = "code"
)

// Part is one unit of multimodal content attached to a completion request.
// Binary parts carry Data plus a MIME type; textual parts carry Text.
type Part struct {
	Kind PartKind
	Data []byte
	Text string
	MIME string
}

// CriterionScore is a per-criterion evaluation in the model's response.
type CriterionScore struct {
	CriteriaID string  `json:"criteriaId"`
	Score      float64 `json:"score"`
	Feedback   string  `json:"feedback"`
}

// Completion is the structured feedback parsed from a model response.
type Completion struct {
	Strengths      []string
	Improvements   []string
	Suggestions    []string
	Summary        string
	Score          *float64
	CriteriaScores []CriterionScore
	Raw            map[string]interface{}
	ModelName      string
	TokenCount     int
}

// Generator describes an AI provider capable of producing structured feedback
// from a prompt and optional multimodal parts. Exactly one generator is active
// per deployment; implementations are interchangeable from the caller's point
// of view.
type Generator interface {
	GenerateCompletion(ctx context.Context, prompt string, parts []Part) (Completion, error)
}
