package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/pkg/models"
)

// Repository interfaces for domain entities. These are the public contracts
// consumers should depend on; concrete implementations live under internal/.
// Single-row getters return (nil, nil) when the row does not exist.

// ErrNotFound is returned by writes that address a missing row.
var ErrNotFound = errors.New("not found")

// DuplicateError is returned when a unique column already holds the value.
type DuplicateError struct {
	Column string
}

func (e *DuplicateError) Error() string { return "duplicate " + e.Column }

type UserRepo interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
}

// QuestionFilter is a conjunction; empty fields do not constrain.
type QuestionFilter struct {
	Category   string
	Difficulty string
	Tag        string
	Company    string
	Limit      int
}

type QuestionRepo interface {
	CreateQuestion(ctx context.Context, q *models.InterviewQuestion) error
	GetQuestion(ctx context.Context, id uuid.UUID) (*models.InterviewQuestion, error)
	GetQuestions(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.InterviewQuestion, error)
	ListQuestions(ctx context.Context, f QuestionFilter) ([]models.InterviewQuestion, error)
	IncrementLikes(ctx context.Context, id uuid.UUID) error
	IncrementViews(ctx context.Context, id uuid.UUID) error
	// ListUnattempted returns questions in category with no progress row for userID.
	ListUnattempted(ctx context.Context, userID uuid.UUID, category string, limit int) ([]models.InterviewQuestion, error)
}

type AnswerRepo interface {
	// SubmitAnswer stores the answer and bumps the caller's progress row in one
	// transaction. ErrNotFound when the question does not exist.
	SubmitAnswer(ctx context.Context, a *models.UserAnswer) (*models.QuestionProgress, error)
	ListAnswersByUser(ctx context.Context, userID uuid.UUID) ([]models.UserAnswer, error)
}

type ProgressRepo interface {
	ListProgress(ctx context.Context, userID uuid.UUID) ([]models.QuestionProgress, error)
	// UpdateMastery folds score into the running mean and returns the new row.
	UpdateMastery(ctx context.Context, userID, questionID uuid.UUID, score float64, at time.Time) (*models.QuestionProgress, error)
}

type MediaRepo interface {
	CreateMedia(ctx context.Context, m *models.MediaFile) error
	GetMedia(ctx context.Context, userID, id uuid.UUID) (*models.MediaFile, error)
	ListMedia(ctx context.Context, userID uuid.UUID, category, tag string) ([]models.MediaFile, error)
	DeleteMedia(ctx context.Context, userID, id uuid.UUID) error
}

type ApplicationRepo interface {
	CreateApplication(ctx context.Context, a *models.JobApplication) error
	UpdateApplicationStatus(ctx context.Context, userID, id uuid.UUID, status string, at time.Time) (*models.JobApplication, error)
	ListApplications(ctx context.Context, userID uuid.UUID) ([]models.JobApplication, error)
}

type RecordingRepo interface {
	CreateRecording(ctx context.Context, r *models.VoiceRecording) error
	ListRecordings(ctx context.Context, userID uuid.UUID, questionID *uuid.UUID) ([]models.VoiceRecording, error)
	TotalRecordingSeconds(ctx context.Context, userID uuid.UUID) (float64, error)
}

// Repository is the full persistence surface handed to services.
type Repository interface {
	UserRepo
	QuestionRepo
	AnswerRepo
	ProgressRepo
	MediaRepo
	ApplicationRepo
	RecordingRepo
}
