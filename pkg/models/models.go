package models

import (
	"time"

	"github.com/google/uuid"
)

// Domain models matching the database schema in db/migrations/0001_init.sql.
// Constructors stamp a fresh id and timestamp on every instance.

// Progress statuses for QuestionProgress.
const (
	StatusNotStarted = "not_started"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// ApplicationApplied is the status given to a freshly saved job application.
const ApplicationApplied = "applied"

type User struct {
	ID             uuid.UUID      `json:"id"`
	Email          string         `json:"email" validate:"required,email"`
	Username       string         `json:"username" validate:"required,min=3,max=64"`
	FullName       string         `json:"full_name" validate:"required,max=200"`
	HashedPassword string         `json:"-"`
	Skills         []string       `json:"skills"`
	Progress       map[string]any `json:"progress"`
	Preferences    map[string]any `json:"preferences"`
	IsActive       bool           `json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
}

// NewUser returns an active user with empty skills, progress and preferences.
func NewUser(email, username, fullName, hashedPassword string) *User {
	return &User{
		ID:             uuid.New(),
		Email:          email,
		Username:       username,
		FullName:       fullName,
		HashedPassword: hashedPassword,
		Skills:         []string{},
		Progress:       map[string]any{},
		Preferences:    map[string]any{},
		IsActive:       true,
		CreatedAt:      time.Now().UTC(),
	}
}

// PreferredLocation reads preferences["preferred_location"], empty when unset.
func (u *User) PreferredLocation() string {
	if u == nil || u.Preferences == nil {
		return ""
	}
	if s, ok := u.Preferences["preferred_location"].(string); ok {
		return s
	}
	return ""
}

type InterviewQuestion struct {
	ID           uuid.UUID `json:"id"`
	Category     string    `json:"category" validate:"required,max=100"`
	Difficulty   string    `json:"difficulty" validate:"required,max=50"`
	Title        string    `json:"title" validate:"required,max=300"`
	Description  string    `json:"description" validate:"required"`
	SampleAnswer string    `json:"sample_answer"`
	Keywords     []string  `json:"keywords"`
	Tags         []string  `json:"tags"`
	CompanyTags  []string  `json:"company_tags"`
	Likes        int64     `json:"likes"`
	Views        int64     `json:"views"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewQuestion returns an empty question with its own id and creation time.
func NewQuestion() *InterviewQuestion {
	return &InterviewQuestion{
		ID:          uuid.New(),
		Keywords:    []string{},
		Tags:        []string{},
		CompanyTags: []string{},
		CreatedAt:   time.Now().UTC(),
	}
}

type UserAnswer struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	QuestionID        uuid.UUID  `json:"question_id"`
	AnswerText        string     `json:"answer_text"`
	VoiceRecordingURL *string    `json:"voice_recording_url,omitempty"`
	Feedback          *string    `json:"feedback,omitempty"`
	ConfidenceScore   *float64   `json:"confidence_score,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
}

func NewAnswer(userID, questionID uuid.UUID, text string) *UserAnswer {
	return &UserAnswer{
		ID:         uuid.New(),
		UserID:     userID,
		QuestionID: questionID,
		AnswerText: text,
		CreatedAt:  time.Now().UTC(),
	}
}

type QuestionProgress struct {
	UserID          uuid.UUID  `json:"user_id"`
	QuestionID      uuid.UUID  `json:"question_id"`
	Status          string     `json:"status"`
	Attempts        int        `json:"attempts"`
	LastAttemptDate *time.Time `json:"last_attempt_date,omitempty"`
	MasteryLevel    float64    `json:"mastery_level"`
	Notes           *string    `json:"notes,omitempty"`
}

type JobPosting struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Company         string    `json:"company"`
	Location        string    `json:"location"`
	Description     string    `json:"description"`
	Requirements    []string  `json:"requirements"`
	SalaryRange     *string   `json:"salary_range,omitempty"`
	SkillsRequired  []string  `json:"skills_required"`
	ExperienceLevel string    `json:"experience_level"`
	PostingURL      string    `json:"posting_url"`
	Source          string    `json:"source"`
	PostedDate      time.Time `json:"posted_date"`
}

type JobApplication struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	JobID       uuid.UUID `json:"job_id"`
	Status      string    `json:"status"`
	AppliedDate time.Time `json:"applied_date"`
	LastUpdated time.Time `json:"last_updated"`
}

func NewApplication(userID, jobID uuid.UUID, status string) *JobApplication {
	now := time.Now().UTC()
	return &JobApplication{
		ID:          uuid.New(),
		UserID:      userID,
		JobID:       jobID,
		Status:      status,
		AppliedDate: now,
		LastUpdated: now,
	}
}

type VoiceRecording struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	QuestionID      uuid.UUID `json:"question_id"`
	FilePath        string    `json:"file_path"`
	Transcript      *string   `json:"transcript,omitempty"`
	DurationSeconds float64   `json:"duration_seconds"`
	CreatedAt       time.Time `json:"created_at"`
}

type MediaFile struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"user_id"`
	Filename         string    `json:"filename"`
	OriginalFilename string    `json:"original_filename"`
	Category         string    `json:"category,omitempty"`
	Tags             []string  `json:"tags"`
	UploadDate       time.Time `json:"upload_date"`
	FileType         string    `json:"file_type"`
	FileSize         int64     `json:"file_size"`
}
