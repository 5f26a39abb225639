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

const SourceIndeed = "indeed"

// Experience levels derived from Indeed descriptions.
const (
	LevelSenior = "senior"
	LevelJunior = "junior"
	LevelMid    = "mid-level"
)

// skillVocabulary is matched as lower-case substrings of the description.
var skillVocabulary = []string{
	"python", "java", "javascript", "react", "node.js", "sql",
	"aws", "docker", "kubernetes", "machine learning",
}

type Indeed struct {
	*client
}

func NewIndeed(cfg Config, httpClient *http.Client) (*Indeed, error) {
	c, err := newClient(SourceIndeed, "indeed.json", cfg, httpClient)
	if err != nil {
		return nil, err
	}
	return &Indeed{client: c}, nil
}

type indeedResponse struct {
	Results []struct {
		Title       string  `json:"title"`
		Company     string  `json:"company"`
		Location    string  `json:"location"`
		Description string  `json:"description"`
		URL         string  `json:"url"`
		Date        string  `json:"date"`
		Salary      *string `json:"salary"`
	} `json:"results"`
}

// Fetch queries /v2/jobs with space-joined keywords.
func (in *Indeed) Fetch(ctx context.Context, keywords []string, location string) ([]models.JobPosting, error) {
	params := url.Values{}
	params.Set("q", strings.Join(keywords, " "))
	params.Set("l", location)

	body, ok, err := in.get(ctx, "v2/jobs", params)
	if err != nil || !ok {
		return []models.JobPosting{}, err
	}

	var resp indeedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: indeed: %v", ErrBadResponse, err)
	}

	out := make([]models.JobPosting, 0, len(resp.Results))
	for _, r := range resp.Results {
		posted, err := parseISODate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: indeed: date %q: %v", ErrBadResponse, r.Date, err)
		}
		out = append(out, models.JobPosting{
			ID:              uuid.New(),
			Title:           r.Title,
			Company:         r.Company,
			Location:        r.Location,
			Description:     r.Description,
			Requirements:    []string{},
			SalaryRange:     r.Salary,
			SkillsRequired:  ExtractSkills(r.Description),
			ExperienceLevel: ExtractExperienceLevel(r.Description),
			PostingURL:      r.URL,
			Source:          SourceIndeed,
			PostedDate:      posted,
		})
	}
	return out, nil
}

// ExtractSkills returns the vocabulary entries mentioned in description, in
// vocabulary order.
func ExtractSkills(description string) []string {
	d := strings.ToLower(description)
	out := []string{}
	for _, s := range skillVocabulary {
		if strings.Contains(d, s) {
			out = append(out, s)
		}
	}
	return out
}

// ExtractExperienceLevel checks for "senior" first, then "junior", and
// falls back to mid-level.
func ExtractExperienceLevel(description string) string {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, LevelSenior):
		return LevelSenior
	case strings.Contains(d, LevelJunior):
		return LevelJunior
	default:
		return LevelMid
	}
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// parseISODate accepts ISO-8601 with or without a zone; zoneless values are UTC.
func parseISODate(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range isoLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
