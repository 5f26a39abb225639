// Package progress derives statistics, recommendations and study plans from
// a user's answers and per-question progress.
package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/internal/apperr"
	"github.com/garnizeh/prepcoach/internal/validate"
	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository"
)

const (
	// StrengthThreshold and WeakThreshold bound category averages.
	StrengthThreshold = 0.8
	WeakThreshold     = 0.6

	DefaultRecommendations = 5
	MaxRecommendations     = 50
	studyPlanQuestions     = 10
	studyPlanFocusAreas    = 3
	recentActivitySize     = 5
)

// Store is the persistence the service reads and writes.
type Store interface {
	repository.QuestionRepo
	repository.AnswerRepo
	repository.ProgressRepo
	repository.RecordingRepo
}

type Service struct {
	store     Store
	validator *validate.Validator
	logger    *slog.Logger
	now       func() time.Time
}

func New(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return &Service{store: store, validator: validate.New(), logger: logger, now: time.Now}
}

type WeekBucket struct {
	Week               string  `json:"week"`
	QuestionsAttempted int     `json:"questions_attempted"`
	AverageScore       float64 `json:"average_score"`
}

type CategoryStats struct {
	QuestionsAttempted int     `json:"questions_attempted"`
	AverageScore       float64 `json:"average_score"`
}

type Statistics struct {
	TotalQuestionsAttempted int                      `json:"total_questions_attempted"`
	QuestionsCompleted      int                      `json:"questions_completed"`
	AverageConfidenceScore  float64                  `json:"average_confidence_score"`
	PracticeSessions        int                      `json:"practice_sessions"`
	TotalPracticeTime       float64                  `json:"total_practice_time"`
	StrengthAreas           []string                 `json:"strength_areas"`
	WeakAreas               []string                 `json:"weak_areas"`
	RecentActivity          []models.UserAnswer      `json:"recent_activity"`
	WeeklyProgress          []WeekBucket             `json:"weekly_progress"`
	CategoryPerformance     map[string]CategoryStats `json:"category_performance"`
}

// mean accumulates non-null scores.
type mean struct {
	sum float64
	n   int
}

func (m *mean) add(score *float64) {
	if score != nil {
		m.sum += *score
		m.n++
	}
}

func (m mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

// WeekStart returns the Monday, as a UTC date, of the week containing t.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.AddDate(0, 0, -offset).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Statistics loads the user's answers and progress once and aggregates them.
func (s *Service) Statistics(ctx context.Context, userID uuid.UUID) (*Statistics, error) {
	answers, err := s.store.ListAnswersByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("load answers", err)
	}
	progress, err := s.store.ListProgress(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("load progress", err)
	}
	seconds, err := s.store.TotalRecordingSeconds(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("load recordings", err)
	}

	ids := make([]uuid.UUID, 0, len(answers))
	for _, a := range answers {
		ids = append(ids, a.QuestionID)
	}
	questions, err := s.store.GetQuestions(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("load questions", err)
	}

	stats := &Statistics{
		TotalQuestionsAttempted: len(answers),
		TotalPracticeTime:       seconds,
		StrengthAreas:           []string{},
		WeakAreas:               []string{},
		RecentActivity:          []models.UserAnswer{},
		WeeklyProgress:          []WeekBucket{},
		CategoryPerformance:     map[string]CategoryStats{},
	}

	for _, p := range progress {
		if p.Status == models.StatusCompleted {
			stats.QuestionsCompleted++
		}
	}

	var overall mean
	days := map[string]struct{}{}
	weekOrder := []string{}
	weekCount := map[string]int{}
	weekScores := map[string]*mean{}
	catCount := map[string]int{}
	catScores := map[string]*mean{}

	// answers arrive newest first, so weeks are appended newest first too
	for _, a := range answers {
		overall.add(a.ConfidenceScore)
		days[a.CreatedAt.UTC().Format(time.DateOnly)] = struct{}{}

		week := WeekStart(a.CreatedAt).Format(time.DateOnly)
		if _, ok := weekScores[week]; !ok {
			weekOrder = append(weekOrder, week)
			weekScores[week] = &mean{}
		}
		weekCount[week]++
		weekScores[week].add(a.ConfidenceScore)

		q, ok := questions[a.QuestionID]
		if !ok {
			continue
		}
		if _, ok := catScores[q.Category]; !ok {
			catScores[q.Category] = &mean{}
		}
		catCount[q.Category]++
		catScores[q.Category].add(a.ConfidenceScore)
	}

	stats.AverageConfidenceScore = overall.value()
	stats.PracticeSessions = len(days)
	for _, w := range weekOrder {
		stats.WeeklyProgress = append(stats.WeeklyProgress, WeekBucket{
			Week:               w,
			QuestionsAttempted: weekCount[w],
			AverageScore:       weekScores[w].value(),
		})
	}
	for c, m := range catScores {
		cs := CategoryStats{QuestionsAttempted: catCount[c], AverageScore: m.value()}
		stats.CategoryPerformance[c] = cs
		switch {
		case cs.AverageScore >= StrengthThreshold:
			stats.StrengthAreas = append(stats.StrengthAreas, c)
		case cs.AverageScore < WeakThreshold:
			stats.WeakAreas = append(stats.WeakAreas, c)
		}
	}
	sort.Strings(stats.StrengthAreas)
	sort.Strings(stats.WeakAreas)

	n := min(len(answers), recentActivitySize)
	stats.RecentActivity = append(stats.RecentActivity, answers[:n]...)

	return stats, nil
}

type rankedCategory struct {
	name  string
	stats CategoryStats
}

// weakestFirst orders categories by ascending average, ties by name.
func weakestFirst(perf map[string]CategoryStats) []rankedCategory {
	out := make([]rankedCategory, 0, len(perf))
	for name, cs := range perf {
		out = append(out, rankedCategory{name: name, stats: cs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].stats.AverageScore != out[j].stats.AverageScore {
			return out[i].stats.AverageScore < out[j].stats.AverageScore
		}
		return out[i].name < out[j].name
	})
	return out
}

// Recommendations walks categories from weakest to strongest and collects
// questions the user has not attempted until limit is reached.
func (s *Service) Recommendations(ctx context.Context, userID uuid.UUID, limit int) ([]models.InterviewQuestion, error) {
	if limit == 0 {
		limit = DefaultRecommendations
	}
	if limit < 1 || limit > MaxRecommendations {
		return nil, apperr.Validation("limit must be between 1 and 50")
	}
	stats, err := s.Statistics(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.recommend(ctx, userID, stats, limit)
}

func (s *Service) recommend(ctx context.Context, userID uuid.UUID, stats *Statistics, limit int) ([]models.InterviewQuestion, error) {
	out := []models.InterviewQuestion{}
	for _, c := range weakestFirst(stats.CategoryPerformance) {
		if len(out) >= limit {
			break
		}
		qs, err := s.store.ListUnattempted(ctx, userID, c.name, limit-len(out))
		if err != nil {
			return nil, apperr.Internal("load unattempted questions", err)
		}
		out = append(out, qs...)
	}
	return out, nil
}

type FocusArea struct {
	Category                string  `json:"category"`
	CurrentScore            float64 `json:"current_score"`
	RecommendedPracticeTime string  `json:"recommended_practice_time"`
}

type StudyPlan struct {
	FocusAreas               []FocusArea                `json:"focus_areas"`
	RecommendedQuestions     []models.InterviewQuestion `json:"recommended_questions"`
	DailyGoals               []string                   `json:"daily_goals"`
	EstimatedImprovementTime string                     `json:"estimated_improvement_time"`
}

// PracticeTime is the suggested daily practice for a category average.
func PracticeTime(score float64) string {
	if score < WeakThreshold {
		return "30 minutes"
	}
	return "15 minutes"
}

// ImprovementTime estimates how long a user with this overall average needs.
func ImprovementTime(average float64) string {
	switch {
	case average > StrengthThreshold:
		return "1-2 weeks"
	case average > WeakThreshold:
		return "2-3 weeks"
	default:
		return "4-6 weeks"
	}
}

// StudyPlan focuses on the three weakest categories.
func (s *Service) StudyPlan(ctx context.Context, userID uuid.UUID) (*StudyPlan, error) {
	stats, err := s.Statistics(ctx, userID)
	if err != nil {
		return nil, err
	}

	ranked := weakestFirst(stats.CategoryPerformance)
	if len(ranked) > studyPlanFocusAreas {
		ranked = ranked[:studyPlanFocusAreas]
	}
	areas := make([]FocusArea, 0, len(ranked))
	for _, c := range ranked {
		areas = append(areas, FocusArea{
			Category:                c.name,
			CurrentScore:            c.stats.AverageScore,
			RecommendedPracticeTime: PracticeTime(c.stats.AverageScore),
		})
	}

	questions, err := s.recommend(ctx, userID, stats, studyPlanQuestions)
	if err != nil {
		return nil, err
	}

	return &StudyPlan{
		FocusAreas:           areas,
		RecommendedQuestions: questions,
		DailyGoals: []string{
			fmt.Sprintf("Practice %d questions from your weak areas", len(areas)),
			"Review previous answers and feedback",
			"Update your progress tracking",
		},
		EstimatedImprovementTime: ImprovementTime(stats.AverageConfidenceScore),
	}, nil
}

type MasteryInput struct {
	QuestionID      uuid.UUID `json:"question_id" validate:"required"`
	ConfidenceScore *float64  `json:"confidence_score" validate:"required,gte=0,lte=1"`
}

// UpdateMastery folds a confidence score into the running mastery of one
// question.
func (s *Service) UpdateMastery(ctx context.Context, userID uuid.UUID, in MasteryInput) (*models.QuestionProgress, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	q, err := s.store.GetQuestion(ctx, in.QuestionID)
	if err != nil {
		return nil, apperr.Internal("load question", err)
	}
	if q == nil {
		return nil, apperr.NotFound("question not found")
	}

	p, err := s.store.UpdateMastery(ctx, userID, in.QuestionID, *in.ConfidenceScore, s.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("question not found")
	}
	if err != nil {
		return nil, apperr.Internal("update mastery", err)
	}
	s.logger.Debug("mastery updated",
		slog.String("user_id", userID.String()),
		slog.String("question_id", in.QuestionID.String()),
		slog.Float64("mastery", p.MasteryLevel),
	)
	return p, nil
}
