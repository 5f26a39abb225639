package mock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository"
)

// Repo is an in-memory repository.Repository for handler and service tests.
// The *Err fields, when set, are returned by the matching method before it
// touches any state.
type Repo struct {
	mu sync.Mutex

	Users        map[uuid.UUID]*models.User
	Questions    map[uuid.UUID]*models.InterviewQuestion
	Answers      []models.UserAnswer
	Progress     map[[2]uuid.UUID]*models.QuestionProgress
	Media        map[uuid.UUID]*models.MediaFile
	Applications map[uuid.UUID]*models.JobApplication
	Recordings   []models.VoiceRecording

	CreateUserErr      error
	GetUserErr         error
	ListQuestionsErr   error
	SubmitAnswerErr    error
	CreateMediaErr     error
	DeleteMediaErr     error
	CreateRecordingErr error
}

var _ repository.Repository = (*Repo)(nil)

func NewRepo() *Repo {
	return &Repo{
		Users:        map[uuid.UUID]*models.User{},
		Questions:    map[uuid.UUID]*models.InterviewQuestion{},
		Progress:     map[[2]uuid.UUID]*models.QuestionProgress{},
		Media:        map[uuid.UUID]*models.MediaFile{},
		Applications: map[uuid.UUID]*models.JobApplication{},
	}
}

// Users

func (m *Repo) CreateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateUserErr != nil {
		return m.CreateUserErr
	}
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	for _, existing := range m.Users {
		if existing.Email == u.Email {
			return &repository.DuplicateError{Column: "email"}
		}
		if existing.Username == u.Username {
			return &repository.DuplicateError{Column: "username"}
		}
	}
	cp := *u
	m.Users[u.ID] = &cp
	return nil
}

func (m *Repo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.findUser(func(u *models.User) bool { return u.ID == id })
}

func (m *Repo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.findUser(func(u *models.User) bool { return u.Email == email })
}

func (m *Repo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.findUser(func(u *models.User) bool { return u.Username == username })
}

func (m *Repo) findUser(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetUserErr != nil {
		return nil, m.GetUserErr
	}
	for _, u := range m.Users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *Repo) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Users[u.ID]; !ok {
		return repository.ErrNotFound
	}
	for id, existing := range m.Users {
		if id == u.ID {
			continue
		}
		if existing.Email == u.Email {
			return &repository.DuplicateError{Column: "email"}
		}
		if existing.Username == u.Username {
			return &repository.DuplicateError{Column: "username"}
		}
	}
	cp := *u
	m.Users[u.ID] = &cp
	return nil
}

// Questions

func (m *Repo) CreateQuestion(ctx context.Context, q *models.InterviewQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *q
	m.Questions[q.ID] = &cp
	return nil
}

func (m *Repo) GetQuestion(ctx context.Context, id uuid.UUID) (*models.InterviewQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.Questions[id]
	if !ok {
		return nil, nil
	}
	cp := *q
	return &cp, nil
}

func (m *Repo) GetQuestions(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.InterviewQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uuid.UUID]*models.InterviewQuestion{}
	for _, id := range ids {
		if q, ok := m.Questions[id]; ok {
			cp := *q
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *Repo) ListQuestions(ctx context.Context, f repository.QuestionFilter) ([]models.InterviewQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListQuestionsErr != nil {
		return nil, m.ListQuestionsErr
	}
	out := []models.InterviewQuestion{}
	for _, q := range m.sortedQuestions() {
		if f.Category != "" && q.Category != f.Category {
			continue
		}
		if f.Difficulty != "" && q.Difficulty != f.Difficulty {
			continue
		}
		if f.Tag != "" && !contains(q.Tags, f.Tag) {
			continue
		}
		if f.Company != "" && !contains(q.CompanyTags, f.Company) {
			continue
		}
		out = append(out, *q)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *Repo) IncrementLikes(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.Questions[id]
	if !ok {
		return repository.ErrNotFound
	}
	q.Likes++
	return nil
}

func (m *Repo) IncrementViews(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.Questions[id]
	if !ok {
		return repository.ErrNotFound
	}
	q.Views++
	return nil
}

func (m *Repo) ListUnattempted(ctx context.Context, userID uuid.UUID, category string, limit int) ([]models.InterviewQuestion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.InterviewQuestion{}
	for _, q := range m.sortedQuestions() {
		if len(out) >= limit {
			break
		}
		if q.Category != category {
			continue
		}
		if _, attempted := m.Progress[[2]uuid.UUID{userID, q.ID}]; attempted {
			continue
		}
		out = append(out, *q)
	}
	return out, nil
}

func (m *Repo) sortedQuestions() []*models.InterviewQuestion {
	qs := make([]*models.InterviewQuestion, 0, len(m.Questions))
	for _, q := range m.Questions {
		qs = append(qs, q)
	}
	sort.Slice(qs, func(i, j int) bool {
		if !qs[i].CreatedAt.Equal(qs[j].CreatedAt) {
			return qs[i].CreatedAt.Before(qs[j].CreatedAt)
		}
		return qs[i].Title < qs[j].Title
	})
	return qs
}

// Answers and progress

func (m *Repo) SubmitAnswer(ctx context.Context, a *models.UserAnswer) (*models.QuestionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmitAnswerErr != nil {
		return nil, m.SubmitAnswerErr
	}
	if _, ok := m.Questions[a.QuestionID]; !ok {
		return nil, repository.ErrNotFound
	}
	m.Answers = append(m.Answers, *a)

	key := [2]uuid.UUID{a.UserID, a.QuestionID}
	at := a.CreatedAt
	p, ok := m.Progress[key]
	if ok {
		p.Attempts++
		p.LastAttemptDate = &at
	} else {
		p = &models.QuestionProgress{UserID: a.UserID, QuestionID: a.QuestionID, Status: models.StatusInProgress, Attempts: 1, LastAttemptDate: &at}
		m.Progress[key] = p
	}
	cp := *p
	return &cp, nil
}

func (m *Repo) ListAnswersByUser(ctx context.Context, userID uuid.UUID) ([]models.UserAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.UserAnswer{}
	for _, a := range m.Answers {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Repo) ListProgress(ctx context.Context, userID uuid.UUID) ([]models.QuestionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.QuestionProgress{}
	for key, p := range m.Progress {
		if key[0] == userID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID.String() < out[j].QuestionID.String() })
	return out, nil
}

func (m *Repo) UpdateMastery(ctx context.Context, userID, questionID uuid.UUID, score float64, at time.Time) (*models.QuestionProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if score < 0 || score > 1 {
		return nil, fmt.Errorf("confidence score %v outside [0,1]", score)
	}
	key := [2]uuid.UUID{userID, questionID}
	p, ok := m.Progress[key]
	if !ok {
		p = &models.QuestionProgress{UserID: userID, QuestionID: questionID, MasteryLevel: score, Attempts: 1}
		m.Progress[key] = p
	} else {
		n := float64(p.Attempts)
		p.MasteryLevel = (p.MasteryLevel*n + score) / (n + 1)
		p.Attempts++
	}
	p.LastAttemptDate = &at
	p.Status = models.StatusInProgress
	if p.MasteryLevel >= 0.8 {
		p.Status = models.StatusCompleted
	}
	cp := *p
	return &cp, nil
}

// Media

func (m *Repo) CreateMedia(ctx context.Context, f *models.MediaFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateMediaErr != nil {
		return m.CreateMediaErr
	}
	cp := *f
	m.Media[f.ID] = &cp
	return nil
}

func (m *Repo) GetMedia(ctx context.Context, userID, id uuid.UUID) (*models.MediaFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.Media[id]
	if !ok || f.UserID != userID {
		return nil, nil
	}
	cp := *f
	return &cp, nil
}

func (m *Repo) ListMedia(ctx context.Context, userID uuid.UUID, category, tag string) ([]models.MediaFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.MediaFile{}
	for _, f := range m.Media {
		if f.UserID != userID {
			continue
		}
		if category != "" && f.Category != category {
			continue
		}
		if tag != "" && !contains(f.Tags, tag) {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadDate.After(out[j].UploadDate) })
	return out, nil
}

func (m *Repo) DeleteMedia(ctx context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteMediaErr != nil {
		return m.DeleteMediaErr
	}
	f, ok := m.Media[id]
	if !ok || f.UserID != userID {
		return repository.ErrNotFound
	}
	delete(m.Media, id)
	return nil
}

// Applications

func (m *Repo) CreateApplication(ctx context.Context, a *models.JobApplication) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.Applications[a.ID] = &cp
	return nil
}

func (m *Repo) UpdateApplicationStatus(ctx context.Context, userID, id uuid.UUID, status string, at time.Time) (*models.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Applications[id]
	if !ok || a.UserID != userID {
		return nil, repository.ErrNotFound
	}
	a.Status = status
	a.LastUpdated = at
	cp := *a
	return &cp, nil
}

func (m *Repo) ListApplications(ctx context.Context, userID uuid.UUID) ([]models.JobApplication, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.JobApplication{}
	for _, a := range m.Applications {
		if a.UserID == userID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppliedDate.After(out[j].AppliedDate) })
	return out, nil
}

// Recordings

func (m *Repo) CreateRecording(ctx context.Context, r *models.VoiceRecording) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateRecordingErr != nil {
		return m.CreateRecordingErr
	}
	m.Recordings = append(m.Recordings, *r)
	return nil
}

func (m *Repo) ListRecordings(ctx context.Context, userID uuid.UUID, questionID *uuid.UUID) ([]models.VoiceRecording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.VoiceRecording{}
	for _, r := range m.Recordings {
		if r.UserID != userID {
			continue
		}
		if questionID != nil && r.QuestionID != *questionID {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Repo) TotalRecordingSeconds(ctx context.Context, userID uuid.UUID) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, r := range m.Recordings {
		if r.UserID == userID {
			total += r.DurationSeconds
		}
	}
	return total, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
