package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/feedforward/feedforward-api/internal/models"
	"github.com/feedforward/feedforward-api/pkg/ai"
)

// AnalysisRequest carries everything needed to evaluate one submission.
type AnalysisRequest struct {
	AssignmentTitle       string `validate:"required"`
	AssignmentDescription string
	Rubric                *models.Rubric
	SubmissionContent     string `validate:"required"`
	Parts                 []ai.Part
}

// Result is a fully validated feedback object ready for persistence.
type Result struct {
	Strengths        []string
	Improvements     []string
	Suggestions      []string
	Summary          string
	Score            *float64
	CriteriaScores   []models.CriterionScore
	ProcessingTimeMs int64
	ModelName        string
	TokenCount       int
	Raw              map[string]interface{}
}

// Synthesizer builds the evaluation prompt, invokes the AI generator, and
// validates the structured response against the rubric.
type Synthesizer struct {
	generator ai.Generator
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewSynthesizer constructs a synthesizer bound to one active generator.
func NewSynthesizer(generator ai.Generator, validate *validator.Validate, logger zerolog.Logger) *Synthesizer {
	return &Synthesizer{
		generator: generator,
		validator: validate,
		logger:    logger.With().Str("component", "feedback_synthesizer").Logger(),
		tracer:    otel.Tracer("github.com/feedforward/feedforward-api/internal/feedback"),
	}
}

// Analyze runs one evaluation. Processing time is measured wall-clock from
// prompt dispatch to validated-result return.
func (s *Synthesizer) Analyze(parent context.Context, req AnalysisRequest) (Result, error) {
	ctx, span := s.tracer.Start(parent, "feedback.analyze")
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid analysis request")
		return Result{}, fmt.Errorf("invalid analysis request: %w", err)
	}

	prompt := buildPrompt(req)
	span.SetAttributes(
		attribute.Int("prompt.length", len(prompt)),
		attribute.Int("parts", len(req.Parts)),
		attribute.Bool("rubric", req.Rubric != nil),
	)

	start := time.Now()
	completion, err := s.generator.GenerateCompletion(ctx, prompt, req.Parts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return Result{}, err
	}

	scores, overall, err := s.validateScores(completion, req.Rubric)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "score validation failed")
		return Result{}, err
	}

	result := Result{
		Strengths:        completion.Strengths,
		Improvements:     completion.Improvements,
		Suggestions:      completion.Suggestions,
		Summary:          completion.Summary,
		Score:            overall,
		CriteriaScores:   scores,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		ModelName:        completion.ModelName,
		TokenCount:       completion.TokenCount,
		Raw:              completion.Raw,
	}

	s.logger.Info().
		Str("model", result.ModelName).
		Int64("processing_time_ms", result.ProcessingTimeMs).
		Int("token_count", result.TokenCount).
		Int("criteria_scores", len(result.CriteriaScores)).
		Msg("submission analyzed")

	return result, nil
}

// validateScores enforces the scoring contract. With a rubric, the model must
// supply exactly one score per criterion; scores above a criterion's maximum
// are clamped (and logged) rather than rejected. Without a rubric, any
// criterion scores are discarded and the holistic score is bounded to 0-100.
func (s *Synthesizer) validateScores(completion ai.Completion, rubric *models.Rubric) ([]models.CriterionScore, *float64, error) {
	if rubric == nil || len(rubric.Criteria) == 0 {
		return nil, clampOverall(completion.Score), nil
	}

	byID := make(map[string]ai.CriterionScore, len(completion.CriteriaScores))
	for _, cs := range completion.CriteriaScores {
		if _, known := rubric.CriterionByID(cs.CriteriaID); !known {
			return nil, nil, &ai.FormatError{
				Reason: fmt.Sprintf("criterion score references unknown criterion %q", cs.CriteriaID),
			}
		}
		if _, dup := byID[cs.CriteriaID]; dup {
			return nil, nil, &ai.FormatError{
				Reason: fmt.Sprintf("duplicate score for criterion %q", cs.CriteriaID),
			}
		}
		byID[cs.CriteriaID] = cs
	}

	scores := make([]models.CriterionScore, 0, len(rubric.Criteria))
	for _, criterion := range rubric.Criteria {
		cs, ok := byID[criterion.ID]
		if !ok {
			return nil, nil, &ai.FormatError{
				Reason: fmt.Sprintf("missing score for criterion %q", criterion.ID),
			}
		}

		score := cs.Score
		if score > float64(criterion.MaxScore) {
			s.logger.Warn().
				Str("criterion_id", criterion.ID).
				Float64("score", score).
				Int("max_score", criterion.MaxScore).
				Msg("criterion score exceeds maximum, clamping")
			score = float64(criterion.MaxScore)
		}
		if score < 0 {
			score = 0
		}

		scores = append(scores, models.CriterionScore{
			CriteriaID: criterion.ID,
			Score:      score,
			Feedback:   cs.Feedback,
		})
	}

	overall := clampOverall(completion.Score)
	if overall == nil {
		overall = weightedOverall(scores, rubric)
	}

	return scores, overall, nil
}

// weightedOverall derives a 0-100 score from per-criterion results when the
// model omitted one.
func weightedOverall(scores []models.CriterionScore, rubric *models.Rubric) *float64 {
	var weightSum, total float64
	for _, cs := range scores {
		criterion, ok := rubric.CriterionByID(cs.CriteriaID)
		if !ok || criterion.MaxScore <= 0 {
			continue
		}

		weight := float64(criterion.Weight)
		if weight <= 0 {
			weight = 1
		}

		weightSum += weight
		total += cs.Score / float64(criterion.MaxScore) * weight
	}

	if weightSum == 0 {
		return nil
	}

	overall := total / weightSum * 100
	return &overall
}

func clampOverall(score *float64) *float64 {
	if score == nil {
		return nil
	}

	clamped := *score
	if clamped < 0 {
		clamped = 0
	}
	if clamped > 100 {
		clamped = 100
	}

	return &clamped
}
