package ai

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// feedbackSchema is the contract every model response must satisfy before it
// is accepted by the pipeline.
const feedbackSchema = `{
	"type": "object",
	"required": ["strengths", "improvements", "suggestions", "summary"],
	"properties": {
		"strengths": {"type": "array", "items": {"type": "string"}},
		"improvements": {"type": "array", "items": {"type": "string"}},
		"suggestions": {"type": "array", "items": {"type": "string"}},
		"summary": {"type": "string"},
		"score": {"type": ["number", "null"], "minimum": 0, "maximum": 100},
		"criteriaScores": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["criteriaId", "score"],
				"properties": {
					"criteriaId": {"type": ["string", "integer"]},
					"score": {"type": "number", "minimum": 0},
					"feedback": {"type": "string"}
				}
			}
		}
	}
}`

var compiledSchema = jsonschema.MustCompileString("feedback.schema.json", feedbackSchema)

// flexibleID accepts criterion ids emitted either as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(bytes.TrimSpace(data), &n); err == nil {
		*f = flexibleID(n.String())
		return nil
	}

	return fmt.Errorf("criteriaId must be a string or number, got %s", data)
}

type completionPayload struct {
	Strengths      []string `json:"strengths"`
	Improvements   []string `json:"improvements"`
	Suggestions    []string `json:"suggestions"`
	Summary        string   `json:"summary"`
	Score          *float64 `json:"score"`
	CriteriaScores []struct {
		CriteriaID flexibleID `json:"criteriaId"`
		Score      float64    `json:"score"`
		Feedback   string     `json:"feedback"`
	} `json:"criteriaScores"`
}

// parseCompletion validates the raw model text against the feedback contract
// and converts it into a Completion. Any parse failure, schema violation, or
// wrong field type is a FormatError.
func parseCompletion(content string) (Completion, error) {
	content = stripCodeFences(strings.TrimSpace(content))
	if content == "" {
		return Completion{}, &FormatError{Reason: "empty response"}
	}

	var generic interface{}
	if err := json.Unmarshal([]byte(content), &generic); err != nil {
		return Completion{}, &FormatError{Reason: "response is not valid JSON", Err: err}
	}

	if err := compiledSchema.Validate(generic); err != nil {
		return Completion{}, &FormatError{Reason: "response violates feedback contract", Err: err}
	}

	var payload completionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return Completion{}, &FormatError{Reason: "response fields have wrong types", Err: err}
	}

	completion := Completion{
		Strengths:    payload.Strengths,
		Improvements: payload.Improvements,
		Suggestions:  payload.Suggestions,
		Summary:      payload.Summary,
		Score:        payload.Score,
		Raw:          map[string]interface{}{"response": generic},
	}

	for _, cs := range payload.CriteriaScores {
		completion.CriteriaScores = append(completion.CriteriaScores, CriterionScore{
			CriteriaID: string(cs.CriteriaID),
			Score:      cs.Score,
			Feedback:   cs.Feedback,
		})
	}

	return completion, nil
}

// stripCodeFences removes a surrounding markdown code fence, which some models
// add despite JSON-only instructions.
func stripCodeFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
