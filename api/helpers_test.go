package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/api"
	"github.com/garnizeh/prepcoach/internal/auth"
	"github.com/garnizeh/prepcoach/internal/config"
	"github.com/garnizeh/prepcoach/internal/jobservice"
	"github.com/garnizeh/prepcoach/internal/metrics"
	"github.com/garnizeh/prepcoach/internal/progress"
	"github.com/garnizeh/prepcoach/internal/storage"
	"github.com/garnizeh/prepcoach/internal/voice"
	"github.com/garnizeh/prepcoach/pkg/jobboard"
	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository/mock"
)

func TestMain(m *testing.M) {
	api.SetLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	m.Run()
}

// flakyStorage wraps a real backend and fails on demand.
type flakyStorage struct {
	storage.Storage
	SaveErr   error
	DeleteErr error
}

func (f *flakyStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) error {
	if f.SaveErr != nil {
		return f.SaveErr
	}
	return f.Storage.Save(ctx, key, r, contentType)
}

func (f *flakyStorage) Delete(ctx context.Context, key string) error {
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	return f.Storage.Delete(ctx, key)
}

type harness struct {
	t       *testing.T
	handler http.Handler
	repo    *mock.Repo
	local   *storage.LocalStorage
	objects *flakyStorage
	token   string
	userID  uuid.UUID
}

func newHarness(t *testing.T, providers ...jobboard.Provider) *harness {
	t.Helper()

	repo := mock.NewRepo()
	local, err := storage.NewLocal(storage.Config{BasePath: t.TempDir()})
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	objects := &flakyStorage{Storage: local}
	m := metrics.New()
	cfg := &config.Config{
		MaxUploadBytes: 1 << 20,
		Storage:        config.StorageConfig{PresignExpiry: time.Hour, Timeout: 5 * time.Second},
		CORSOrigins:    []string{"*"},
	}
	authSvc := auth.NewService(repo, "test-secret", time.Hour, nil)

	h := &harness{
		t:    t,
		repo: repo,
		handler: api.SetupRoutes(cfg, "1.2.3", "2026-01-01T00:00:00Z", api.Deps{
			Repo:     repo,
			Auth:     authSvc,
			Progress: progress.New(repo, nil),
			Jobs:     jobservice.New(repo, providers, m, nil),
			Voice:    voice.New(repo, objects, nil, m, 5*time.Second, nil),
			Objects:  objects,
			Metrics:  m,
			Files:    local,
		}),
		local:   local,
		objects: objects,
	}
	h.token, h.userID = h.signup("alice", "alice@example.com")
	return h
}

// signup registers a user and returns a bearer token for it.
func (h *harness) signup(username, email string) (string, uuid.UUID) {
	h.t.Helper()
	res := h.do(http.MethodPost, "/users/register", map[string]string{
		"email": email, "username": username, "full_name": "Test User", "password": "correct horse",
	}, "")
	if res.Code != http.StatusCreated {
		h.t.Fatalf("register %s: status %d body %s", username, res.Code, res.Body.String())
	}
	var u models.User
	decode(h.t, res, &u)

	form := url.Values{"username": {username}, "password": {"correct horse"}}
	req := httptest.NewRequest(http.MethodPost, "/users/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		h.t.Fatalf("token %s: status %d body %s", username, w.Code, w.Body.String())
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	decode(h.t, w, &tok)
	if tok.TokenType != "bearer" || tok.AccessToken == "" {
		h.t.Fatalf("unexpected token response %+v", tok)
	}
	return tok.AccessToken, u.ID
}

func (h *harness) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	h.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return h.send(req, token)
}

func (h *harness) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func (h *harness) addQuestion(category string, keywords, tags, companies []string) *models.InterviewQuestion {
	h.t.Helper()
	q := models.NewQuestion()
	q.Category = category
	q.Difficulty = "medium"
	q.Title = category + " question " + q.ID.String()[:8]
	q.Description = "describe"
	q.Keywords = keywords
	q.Tags = tags
	q.CompanyTags = companies
	if err := h.repo.CreateQuestion(context.Background(), q); err != nil {
		h.t.Fatalf("create question: %v", err)
	}
	return q
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d body %s", status, w.Code, w.Body.String())
	}
	var e errorResponse
	decode(t, w, &e)
	if e.Error.Code != code {
		t.Fatalf("expected error code %q, got %q", code, e.Error.Code)
	}
}
