// Package jobservice aggregates postings from the job boards, ranks them
// against a user's skills and tracks the user's applications.
package jobservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/garnizeh/prepcoach/internal/apperr"
	"github.com/garnizeh/prepcoach/internal/metrics"
	"github.com/garnizeh/prepcoach/internal/validate"
	"github.com/garnizeh/prepcoach/pkg/jobboard"
	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

type Service struct {
	apps      repository.ApplicationRepo
	providers []jobboard.Provider
	validator *validate.Validator
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// New builds the service. Results from providers are concatenated in the
// order given here.
func New(apps repository.ApplicationRepo, providers []jobboard.Provider, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return &Service{
		apps:      apps,
		providers: providers,
		validator: validate.New(),
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// fetchAll queries every provider concurrently. Any provider failure fails
// the whole call.
func (s *Service) fetchAll(ctx context.Context, keywords []string, location string) ([]models.JobPosting, error) {
	results := make([][]models.JobPosting, len(s.providers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range s.providers {
		g.Go(func() error {
			jobs, err := p.Fetch(gctx, keywords, location)
			switch {
			case err != nil:
				s.metrics.ObserveUpstream(p.Name(), metrics.OutcomeError)
				s.logger.Error("job board fetch failed", slog.String("provider", p.Name()), slog.Any("err", err))
				return err
			case len(jobs) == 0:
				s.metrics.ObserveUpstream(p.Name(), metrics.OutcomeEmpty)
			default:
				s.metrics.ObserveUpstream(p.Name(), metrics.OutcomeOK)
			}
			results[i] = jobs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Upstream("fetch job postings", err)
	}

	all := []models.JobPosting{}
	for _, jobs := range results {
		all = append(all, jobs...)
	}
	return all, nil
}

// Relevance counts the skills that occur, case-insensitively, as a substring
// of at least one required skill of the posting.
func Relevance(job models.JobPosting, skills []string) int {
	score := 0
	for _, skill := range skills {
		sk := strings.ToLower(skill)
		for _, req := range job.SkillsRequired {
			if strings.Contains(strings.ToLower(req), sk) {
				score++
				break
			}
		}
	}
	return score
}

// RankByRelevance returns jobs ordered by descending relevance in a new slice.
// Ties keep their input order.
func RankByRelevance(jobs []models.JobPosting, skills []string) []models.JobPosting {
	order := make([]int, len(jobs))
	scores := make([]int, len(jobs))
	for i, j := range jobs {
		order[i] = i
		scores[i] = Relevance(j, skills)
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	ranked := make([]models.JobPosting, len(jobs))
	for i, idx := range order {
		ranked[i] = jobs[idx]
	}
	return ranked
}

// Recommended fetches postings for the user's skills near their preferred
// location and returns the limit most relevant ones.
func (s *Service) Recommended(ctx context.Context, u *models.User, limit int) ([]models.JobPosting, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return nil, apperr.Validation("limit must be between 1 and 50")
	}

	jobs, err := s.fetchAll(ctx, u.Skills, u.PreferredLocation())
	if err != nil {
		return nil, err
	}
	jobs = RankByRelevance(jobs, u.Skills)
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

type SearchInput struct {
	Keywords        []string
	Location        string
	ExperienceLevel string
}

// Search queries the boards directly. Without keywords the user's skills are
// used; an experience level filters case-insensitively.
func (s *Service) Search(ctx context.Context, u *models.User, in SearchInput) ([]models.JobPosting, error) {
	keywords := make([]string, 0, len(in.Keywords))
	for _, k := range in.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) == 0 {
		keywords = u.Skills
	}

	jobs, err := s.fetchAll(ctx, keywords, strings.TrimSpace(in.Location))
	if err != nil {
		return nil, err
	}
	level := strings.TrimSpace(in.ExperienceLevel)
	if level == "" {
		return jobs, nil
	}
	out := make([]models.JobPosting, 0, len(jobs))
	for _, j := range jobs {
		if strings.EqualFold(j.ExperienceLevel, level) {
			out = append(out, j)
		}
	}
	return out, nil
}

type ApplyInput struct {
	JobID uuid.UUID `json:"job_id" validate:"required"`
}

// Apply records an application with status applied.
func (s *Service) Apply(ctx context.Context, userID uuid.UUID, in ApplyInput) (*models.JobApplication, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	a := models.NewApplication(userID, in.JobID, models.ApplicationApplied)
	if err := s.apps.CreateApplication(ctx, a); err != nil {
		return nil, apperr.Internal("save job application", err)
	}
	return a, nil
}

type StatusInput struct {
	Status string `json:"status" validate:"required,app_status"`
}

// UpdateStatus changes the status of one of the user's own applications.
func (s *Service) UpdateStatus(ctx context.Context, userID, applicationID uuid.UUID, in StatusInput) (*models.JobApplication, error) {
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if err := s.validator.Struct(in); err != nil {
		return nil, err
	}
	a, err := s.apps.UpdateApplicationStatus(ctx, userID, applicationID, in.Status, s.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("application not found")
	}
	if err != nil {
		return nil, apperr.Internal("update job application", err)
	}
	return a, nil
}

// Applications lists the user's applications, newest first.
func (s *Service) Applications(ctx context.Context, userID uuid.UUID) ([]models.JobApplication, error) {
	apps, err := s.apps.ListApplications(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("list job applications", err)
	}
	return apps, nil
}
