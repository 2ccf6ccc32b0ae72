package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/feedforward/feedforward-api/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Assignment{}, &models.Submission{}, &models.Feedback{}))

	return db
}

func seedSubmission(t *testing.T, db *gorm.DB, status string) models.Submission {
	t.Helper()

	assignment := models.Assignment{Title: "Essay", Description: "Write an essay."}
	require.NoError(t, db.Create(&assignment).Error)

	submission := models.Submission{
		AssignmentID: assignment.ID,
		UserID:       7,
		Content:      "inline text",
		Status:       status,
	}
	require.NoError(t, db.Create(&submission).Error)

	return submission
}

func TestAssignmentGetByIDDecodesRubric(t *testing.T) {
	db := newTestDB(t)
	repo := NewAssignmentRepository(db)

	assignment := models.Assignment{
		Title:  "Lab Report",
		Rubric: []byte(`{"criteria":[{"id":"c1","name":"Method","maxScore":10,"weight":50}]}`),
	}
	require.NoError(t, db.Create(&assignment).Error)

	got, err := repo.GetByID(context.Background(), assignment.ID)
	require.NoError(t, err)
	require.Equal(t, "Lab Report", got.Title)

	rubric, err := got.DecodeRubric()
	require.NoError(t, err)
	require.NotNil(t, rubric)
	require.Len(t, rubric.Criteria, 1)

	_, err = repo.GetByID(context.Background(), 999)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubmissionGetByIDPreloadsAssignment(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)
	seeded := seedSubmission(t, db, models.SubmissionStatusPending)

	got, err := repo.GetByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Equal(t, seeded.ID, got.ID)
	require.Equal(t, "Essay", got.Assignment.Title)
}

func TestSubmissionGetByIDNotFound(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)

	_, err := repo.GetByID(context.Background(), 999)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestClaimProcessingOnlyOnce(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)
	seeded := seedSubmission(t, db, models.SubmissionStatusPending)

	claimed, err := repo.ClaimProcessing(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = repo.ClaimProcessing(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.False(t, claimed)

	got, err := repo.GetByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusProcessing, got.Status)
}

func TestClaimProcessingUnknownID(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)

	claimed, err := repo.ClaimProcessing(context.Background(), 12345)
	require.NoError(t, err)
	require.False(t, claimed)
}

func TestClaimProcessingSkipsTerminalStates(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)

	for _, status := range []string{models.SubmissionStatusCompleted, models.SubmissionStatusFailed, models.SubmissionStatusProcessing} {
		seeded := seedSubmission(t, db, status)
		claimed, err := repo.ClaimProcessing(context.Background(), seeded.ID)
		require.NoError(t, err)
		require.False(t, claimed, "status %s must not be claimable", status)
	}
}

func TestMarkCompletedRequiresProcessing(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)
	seeded := seedSubmission(t, db, models.SubmissionStatusPending)

	_, err := repo.ClaimProcessing(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.NoError(t, repo.MarkCompleted(context.Background(), seeded.ID))

	got, err := repo.GetByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusCompleted, got.Status)
}

func TestMarkFailedStoresReason(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)
	seeded := seedSubmission(t, db, models.SubmissionStatusProcessing)

	require.NoError(t, repo.MarkFailed(context.Background(), seeded.ID, "provider unreachable"))

	got, err := repo.GetByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusFailed, got.Status)
	require.Equal(t, "provider unreachable", got.FailureReason)
}

func TestResetPendingReturnsClaimedSubmission(t *testing.T) {
	db := newTestDB(t)
	repo := NewSubmissionRepository(db)
	seeded := seedSubmission(t, db, models.SubmissionStatusProcessing)

	require.NoError(t, repo.ResetPending(context.Background(), seeded.ID))

	got, err := repo.GetByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusPending, got.Status)

	claimed, err := repo.ClaimProcessing(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.True(t, claimed)
}

func TestFeedbackCreateAndGetBySubmission(t *testing.T) {
	db := newTestDB(t)
	submissionRepo := NewSubmissionRepository(db)
	feedbackRepo := NewFeedbackRepository(db)
	seeded := seedSubmission(t, db, models.SubmissionStatusProcessing)

	score := 88.0
	record := &models.Feedback{
		SubmissionID:     seeded.ID,
		Strengths:        []byte(`["clear writing"]`),
		Improvements:     []byte(`["add sources"]`),
		Suggestions:      []byte(`["read more"]`),
		Summary:          "Well done.",
		Score:            &score,
		CriteriaScores:   []byte(`[]`),
		ProcessingTimeMs: 1500,
		ModelName:        "test-model",
		TokenCount:       120,
	}
	require.NoError(t, feedbackRepo.Create(context.Background(), record))
	require.NotZero(t, record.ID)

	got, err := feedbackRepo.GetBySubmission(context.Background(), seeded.ID)
	require.NoError(t, err)
	require.Equal(t, "Well done.", got.Summary)
	require.NotNil(t, got.Score)
	require.InDelta(t, 88, *got.Score, 0.001)
	require.Equal(t, "test-model", got.ModelName)

	_, err = submissionRepo.GetByID(context.Background(), seeded.ID)
	require.NoError(t, err)
}

func TestFeedbackGetBySubmissionNotFound(t *testing.T) {
	db := newTestDB(t)
	feedbackRepo := NewFeedbackRepository(db)

	_, err := feedbackRepo.GetBySubmission(context.Background(), 54321)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
