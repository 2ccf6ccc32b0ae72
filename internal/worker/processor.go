package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/feedforward/feedforward-api/internal/content"
	"github.com/feedforward/feedforward-api/internal/events"
	"github.com/feedforward/feedforward-api/internal/feedback"
	"github.com/feedforward/feedforward-api/internal/fetch"
	"github.com/feedforward/feedforward-api/internal/models"
	"github.com/feedforward/feedforward-api/internal/observability"
	"github.com/feedforward/feedforward-api/internal/repository"
	"github.com/feedforward/feedforward-api/pkg/ai"
)

const (
	outcomeCompleted   = "completed"
	outcomeFailed      = "failed"
	outcomeSkipped     = "skipped"
	outcomeInterrupted = "interrupted"

	classTransient  = "transient"
	classStructural = "structural"

	// structuralAttempts bounds retries for errors that indicate a structural
	// problem a retry will not fix (contract violations, bad references).
	structuralAttempts = 2

	// persistAttempts bounds retries of the feedback write after a successful
	// AI call, so the expensive completion is not wastefully repeated.
	persistAttempts = 3
)

// ReferenceResolver resolves a submission file reference into a local artifact.
type ReferenceResolver interface {
	Resolve(ctx context.Context, reference, hintMIME string) (*fetch.Artifact, error)
}

// Analyzer runs one AI evaluation of normalized submission content.
type Analyzer interface {
	Analyze(ctx context.Context, req feedback.AnalysisRequest) (feedback.Result, error)
}

// Config tunes the processor's retry and timeout behaviour.
type Config struct {
	MaxAttempts int
	BaseBackoff time.Duration
	JobTimeout  time.Duration
}

// Processor drives a claimed submission through fetch, normalization,
// synthesis, and persistence. Each submission job is independent; the only
// shared state touched is that submission's status row and the feedback table.
type Processor struct {
	submissions repository.SubmissionRepository
	feedbacks   repository.FeedbackRepository
	resolver    ReferenceResolver
	content     *content.Processor
	analyzer    Analyzer
	publisher   *events.Publisher
	cfg         Config
	logger      zerolog.Logger
}

// NewProcessor wires the pipeline stages together.
func NewProcessor(
	submissions repository.SubmissionRepository,
	feedbacks repository.FeedbackRepository,
	resolver ReferenceResolver,
	contentProcessor *content.Processor,
	analyzer Analyzer,
	publisher *events.Publisher,
	cfg Config,
	logger zerolog.Logger,
) *Processor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 2 * time.Second
	}

	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}

	return &Processor{
		submissions: submissions,
		feedbacks:   feedbacks,
		resolver:    resolver,
		content:     contentProcessor,
		analyzer:    analyzer,
		publisher:   publisher,
		cfg:         cfg,
		logger:      logger.With().Str("component", "submission_processor").Logger(),
	}
}

// ProcessSubmission claims and processes one submission end to end. A
// submission that cannot be claimed (already processing or terminal) is
// skipped without error, and one interrupted by shutdown is returned to
// pending. The returned error reports infrastructure problems only;
// evaluation failures are absorbed into the submission's failed status.
func (p *Processor) ProcessSubmission(parent context.Context, id uint) error {
	ctx, cancel := context.WithTimeout(parent, p.cfg.JobTimeout)
	defer cancel()

	log := p.logger.With().Uint("submission_id", id).Logger()

	claimed, err := p.submissions.ClaimProcessing(ctx, id)
	if err != nil {
		return fmt.Errorf("claim submission %d: %w", id, err)
	}
	if !claimed {
		observability.JobsProcessed().WithLabelValues(outcomeSkipped).Inc()
		log.Info().Msg("submission not claimable, skipping")
		return nil
	}

	observability.JobsInFlight().Inc()
	defer observability.JobsInFlight().Dec()
	start := time.Now()

	submission, err := p.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error().Msg("claimed submission disappeared")
			return nil
		}
		// Infrastructure error after the claim: hand the submission back so a
		// later cycle can pick it up.
		if resetErr := p.submissions.ResetPending(context.WithoutCancel(ctx), id); resetErr != nil {
			log.Error().Err(resetErr).Msg("failed to reset submission to pending")
		}
		return fmt.Errorf("load submission %d: %w", id, err)
	}

	result, runErr := p.runWithRetries(ctx, log, submission)
	if runErr == nil {
		runErr = p.persistFeedback(ctx, log, submission.ID, result)
	}

	// Status writes must survive job-timeout cancellation.
	finishCtx := context.WithoutCancel(ctx)
	if runErr != nil {
		// Shutdown is not a verdict on the submission: hand it back so a
		// restarted worker can process it.
		if parent.Err() != nil || errors.Is(runErr, context.Canceled) {
			if resetErr := p.submissions.ResetPending(finishCtx, id); resetErr != nil {
				log.Error().Err(resetErr).Msg("failed to reset submission to pending")
			}
			observability.JobsProcessed().WithLabelValues(outcomeInterrupted).Inc()
			log.Warn().Err(runErr).Msg("processing interrupted, submission returned to pending")
			return nil
		}

		reason := runErr.Error()
		if markErr := p.submissions.MarkFailed(finishCtx, id, reason); markErr != nil {
			log.Error().Err(markErr).Msg("failed to mark submission failed")
		}
		observability.JobsProcessed().WithLabelValues(outcomeFailed).Inc()
		observability.JobDuration().WithLabelValues(outcomeFailed).Observe(time.Since(start).Seconds())
		p.publisher.Publish(events.SubmissionEvent{
			SubmissionID: id,
			Status:       models.SubmissionStatusFailed,
			Reason:       reason,
		})
		log.Error().Err(runErr).Msg("submission processing failed")
		return nil
	}

	if err := p.submissions.MarkCompleted(finishCtx, id); err != nil {
		log.Error().Err(err).Msg("failed to mark submission completed")
		return fmt.Errorf("mark completed %d: %w", id, err)
	}

	observability.JobsProcessed().WithLabelValues(outcomeCompleted).Inc()
	observability.JobDuration().WithLabelValues(outcomeCompleted).Observe(time.Since(start).Seconds())
	p.publisher.Publish(events.SubmissionEvent{
		SubmissionID: id,
		Status:       models.SubmissionStatusCompleted,
	})
	log.Info().Dur("elapsed", time.Since(start)).Msg("submission processed")
	return nil
}

// runWithRetries executes evaluation attempts under the retry policy:
// transient failures get the full attempt budget with exponential backoff,
// structural failures get at most one retry.
func (p *Processor) runWithRetries(ctx context.Context, log zerolog.Logger, submission models.Submission) (feedback.Result, error) {
	var lastErr error

	for attempt := 1; ; attempt++ {
		result, err := p.evaluate(ctx, log, submission)
		if err == nil {
			return result, nil
		}

		lastErr = err
		class := failureClass(err)
		budget := p.cfg.MaxAttempts
		if class == classStructural {
			budget = structuralAttempts
		}

		log.Warn().Err(err).
			Int("attempt", attempt).
			Int("budget", budget).
			Str("class", class).
			Msg("evaluation attempt failed")

		if attempt >= budget || ctx.Err() != nil {
			break
		}

		observability.JobRetries().WithLabelValues(class).Inc()
		if err := sleepBackoff(ctx, p.cfg.BaseBackoff, attempt); err != nil {
			break
		}
	}

	return feedback.Result{}, lastErr
}

// evaluate performs a single fetch -> normalize -> synthesize pass. The
// temporary artifact, if any, is released on every exit path.
func (p *Processor) evaluate(ctx context.Context, log zerolog.Logger, submission models.Submission) (feedback.Result, error) {
	rubric, err := submission.Assignment.DecodeRubric()
	if err != nil {
		log.Warn().Err(err).Msg("attached rubric is malformed, falling back to general evaluation")
		rubric = nil
	}

	var units []content.Unit
	if submission.HasFileReference() {
		artifact, err := p.resolver.Resolve(ctx, submission.FileURL, submission.MimeType)
		if err != nil {
			return feedback.Result{}, err
		}
		defer artifact.Release()

		units = p.content.Process(content.FileMeta{
			Name: submission.FileName,
			MIME: submission.MimeType,
			Data: artifact.Bytes,
		})
	} else {
		units = []content.Unit{p.content.ProcessInline(submission.Content, submission.FileName)}
	}

	submissionText, parts := assembleParts(units)

	return p.analyzer.Analyze(ctx, feedback.AnalysisRequest{
		AssignmentTitle:       submission.Assignment.Title,
		AssignmentDescription: submission.Assignment.Description,
		Rubric:                rubric,
		SubmissionContent:     submissionText,
		Parts:                 parts,
	})
}

// assembleParts splits normalized units into the textual submission body and
// binary multimodal parts.
func assembleParts(units []content.Unit) (string, []ai.Part) {
	var texts []string
	var parts []ai.Part

	for _, unit := range units {
		if unit.Kind == content.KindImage {
			parts = append(parts, ai.Part{Kind: ai.PartImage, Data: unit.Data, MIME: unit.MIME})
			continue
		}
		if unit.Text != "" {
			texts = append(texts, unit.Text)
		}
	}

	body := strings.Join(texts, "\n\n")
	if body == "" && len(parts) > 0 {
		body = "The submission is the attached image."
	}

	return body, parts
}

// persistFeedback writes the validated result, retrying with backoff so the
// preceding AI call is not repeated for a flaky database.
func (p *Processor) persistFeedback(ctx context.Context, log zerolog.Logger, submissionID uint, result feedback.Result) error {
	record, err := buildFeedbackRecord(submissionID, result)
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		if lastErr = p.feedbacks.Create(ctx, record); lastErr == nil {
			return nil
		}

		log.Warn().Err(lastErr).Int("attempt", attempt).Msg("feedback write failed")
		if attempt < persistAttempts {
			if err := sleepBackoff(ctx, p.cfg.BaseBackoff, attempt); err != nil {
				break
			}
		}
	}

	return fmt.Errorf("persist feedback after %d attempts: %w", persistAttempts, lastErr)
}

func buildFeedbackRecord(submissionID uint, result feedback.Result) (*models.Feedback, error) {
	strengths, err := json.Marshal(result.Strengths)
	if err != nil {
		return nil, err
	}
	improvements, err := json.Marshal(result.Improvements)
	if err != nil {
		return nil, err
	}
	suggestions, err := json.Marshal(result.Suggestions)
	if err != nil {
		return nil, err
	}
	criteriaScores, err := json.Marshal(result.CriteriaScores)
	if err != nil {
		return nil, err
	}

	return &models.Feedback{
		SubmissionID:     submissionID,
		Strengths:        strengths,
		Improvements:     improvements,
		Suggestions:      suggestions,
		Summary:          result.Summary,
		Score:            result.Score,
		CriteriaScores:   criteriaScores,
		ProcessingTimeMs: result.ProcessingTimeMs,
		ModelName:        result.ModelName,
		TokenCount:       result.TokenCount,
		Raw:              datatypes.JSONMap(result.Raw),
	}, nil
}

// failureClass sorts an evaluation error into the retry policy buckets.
// Contract violations and reference failures are structural; provider and
// network errors, including timeouts inside a fetch, are transient.
func failureClass(err error) string {
	var formatErr *ai.FormatError
	if errors.As(err, &formatErr) {
		return classStructural
	}

	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		var netErr net.Error
		if errors.As(err, &netErr) ||
			errors.Is(err, context.DeadlineExceeded) ||
			errors.Is(err, context.Canceled) {
			return classTransient
		}
		return classStructural
	}

	return classTransient
}

func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	backoff := base << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(base)/2 + 1))

	timer := time.NewTimer(backoff + jitter)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
