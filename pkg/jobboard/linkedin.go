package jobboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/pkg/models"
)

const SourceLinkedIn = "linkedin"

type LinkedIn struct {
	*client
}

func NewLinkedIn(cfg Config, httpClient *http.Client) (*LinkedIn, error) {
	c, err := newClient(SourceLinkedIn, "linkedin.json", cfg, httpClient)
	if err != nil {
		return nil, err
	}
	return &LinkedIn{client: c}, nil
}

type linkedInResponse struct {
	Elements []struct {
		Title   string `json:"title"`
		Company struct {
			Name string `json:"name"`
		} `json:"company"`
		Location        string   `json:"location"`
		Description     string   `json:"description"`
		Requirements    []string `json:"requirements"`
		ApplicationURL  string   `json:"applicationUrl"`
		PostedAt        float64  `json:"postedAt"`
		Skills          []string `json:"skills"`
		ExperienceLevel string   `json:"experienceLevel"`
		SalaryRange     *string  `json:"salaryRange"`
	} `json:"elements"`
}

// Fetch queries /v2/jobs with comma-joined keywords.
func (l *LinkedIn) Fetch(ctx context.Context, keywords []string, location string) ([]models.JobPosting, error) {
	params := url.Values{}
	params.Set("keywords", strings.Join(keywords, ","))
	params.Set("location", location)

	body, ok, err := l.get(ctx, "v2/jobs", params)
	if err != nil || !ok {
		return []models.JobPosting{}, err
	}

	var resp linkedInResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: linkedin: %v", ErrBadResponse, err)
	}

	out := make([]models.JobPosting, 0, len(resp.Elements))
	for _, e := range resp.Elements {
		out = append(out, models.JobPosting{
			ID:              uuid.New(),
			Title:           e.Title,
			Company:         e.Company.Name,
			Location:        e.Location,
			Description:     e.Description,
			Requirements:    nonNil(e.Requirements),
			SalaryRange:     e.SalaryRange,
			SkillsRequired:  nonNil(e.Skills),
			ExperienceLevel: e.ExperienceLevel,
			PostingURL:      e.ApplicationURL,
			Source:          SourceLinkedIn,
			PostedDate:      time.UnixMilli(int64(e.PostedAt)).UTC(),
		})
	}
	return out, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
