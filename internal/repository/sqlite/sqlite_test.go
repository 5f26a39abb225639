package sqlite_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	dbfs "github.com/garnizeh/prepcoach/db"
	dbpkg "github.com/garnizeh/prepcoach/internal/db"
	sqlite "github.com/garnizeh/prepcoach/internal/repository/sqlite"
	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository"
)

func setupRepo(t *testing.T) (*sqlite.SQLiteRepo, *dbpkg.DB) {
	t.Helper()
	ctx := context.Background()
	d, err := dbpkg.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations, nil); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return sqlite.New(d, nil), d
}

func createQuestion(t *testing.T, repo *sqlite.SQLiteRepo, category, difficulty string, tags, companies []string) *models.InterviewQuestion {
	t.Helper()
	q := models.NewQuestion()
	q.Category = category
	q.Difficulty = difficulty
	q.Title = category + " " + difficulty + " " + q.ID.String()[:8]
	q.Description = "describe"
	q.Tags = tags
	q.CompanyTags = companies
	if err := repo.CreateQuestion(context.Background(), q); err != nil {
		t.Fatalf("CreateQuestion error: %v", err)
	}
	return q
}

func floatEq(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestUserCRUD(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	if err := repo.CreateUser(ctx, nil); err == nil {
		t.Fatalf("expected error when creating nil user")
	}

	got, err := repo.GetUserByEmail(ctx, "a@a.com")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for unknown email, got %#v, %v", got, err)
	}

	u := models.NewUser("alice@example.com", "alice", "Alice A", "hash")
	u.Skills = []string{"go", "sql"}
	u.Preferences = map[string]any{"preferred_location": "Berlin"}
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	byID, err := repo.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID error: %v", err)
	}
	if byID == nil || byID.Email != u.Email || len(byID.Skills) != 2 || byID.PreferredLocation() != "Berlin" || !byID.IsActive {
		t.Fatalf("GetUserByID wrong result: %#v", byID)
	}
	if !byID.CreatedAt.Equal(u.CreatedAt.Truncate(time.Millisecond)) {
		t.Fatalf("created_at not preserved: %s vs %s", byID.CreatedAt, u.CreatedAt)
	}

	byName, err := repo.GetUserByUsername(ctx, "alice")
	if err != nil || byName == nil || byName.ID != u.ID {
		t.Fatalf("GetUserByUsername wrong result: %#v, %v", byName, err)
	}

	byID.FullName = "Alice B"
	byID.Skills = []string{"rust"}
	if err := repo.UpdateUser(ctx, byID); err != nil {
		t.Fatalf("UpdateUser error: %v", err)
	}
	after, _ := repo.GetUserByID(ctx, u.ID)
	if after.FullName != "Alice B" || len(after.Skills) != 1 || after.Skills[0] != "rust" {
		t.Fatalf("update not persisted: %#v", after)
	}

	ghost := models.NewUser("ghost@example.com", "ghost", "Ghost", "h")
	if err := repo.UpdateUser(ctx, ghost); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating missing user, got %v", err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	repo, d := setupRepo(t)
	ctx := context.Background()

	if err := repo.CreateUser(ctx, models.NewUser("dup@example.com", "first", "First", "h")); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}

	err := repo.CreateUser(ctx, models.NewUser("dup@example.com", "second", "Second", "h"))
	var de *repository.DuplicateError
	if !errors.As(err, &de) || de.Column != "email" {
		t.Fatalf("expected duplicate on email column, got %#v", err)
	}

	var count int
	if err := d.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, "dup@example.com").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one row, got %d", count)
	}
}

func TestGetUser_MalformedJSONColumn(t *testing.T) {
	repo, d := setupRepo(t)
	ctx := context.Background()

	id := uuid.New()
	if _, err := d.Exec(ctx, `INSERT INTO users (id, email, username, full_name, hashed_password, skills, progress, preferences, is_active, created_at)
		VALUES (?, 'bad@example.com', 'bad', 'Bad', 'h', '{not-a-list', '{}', '{}', 1, 0)`, id.String()); err != nil {
		t.Fatalf("raw insert: %v", err)
	}

	_, err := repo.GetUserByID(ctx, id)
	var de *sqlite.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if de.Table != "users" || de.Column != "skills" {
		t.Fatalf("unexpected decode error location: %s.%s", de.Table, de.Column)
	}
}

func TestListQuestions_Conjunctive(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()

	want := createQuestion(t, repo, "algorithms", "easy", []string{"arrays"}, []string{"google"})
	createQuestion(t, repo, "algorithms", "easy", []string{"arrays"}, []string{"amazon"})
	createQuestion(t, repo, "algorithms", "hard", []string{"arrays"}, []string{"google"})
	createQuestion(t, repo, "design", "easy", []string{"arrays"}, []string{"google"})
	createQuestion(t, repo, "algorithms", "easy", []string{"graphs"}, []string{"google"})

	got, err := repo.ListQuestions(ctx, repository.QuestionFilter{Category: "algorithms", Difficulty: "easy", Tag: "arrays", Company: "google", Limit: 10})
	if err != nil {
		t.Fatalf("ListQuestions error: %v", err)
	}
	if len(got) != 1 || got[0].ID != want.ID {
		t.Fatalf("expected only the question matching every filter, got %d results", len(got))
	}

	all, err := repo.ListQuestions(ctx, repository.QuestionFilter{Limit: 3})
	if err != nil {
		t.Fatalf("ListQuestions error: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected limit to cap results at 3, got %d", len(all))
	}

	none, err := repo.ListQuestions(ctx, repository.QuestionFilter{Tag: "arr", Limit: 10})
	if err != nil {
		t.Fatalf("ListQuestions error: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("tag filter must match whole entries, got %d", len(none))
	}
}

func TestIncrementCounters(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	q := createQuestion(t, repo, "algorithms", "easy", nil, nil)

	for i := 0; i < 3; i++ {
		if err := repo.IncrementLikes(ctx, q.ID); err != nil {
			t.Fatalf("IncrementLikes error: %v", err)
		}
	}
	if err := repo.IncrementViews(ctx, q.ID); err != nil {
		t.Fatalf("IncrementViews error: %v", err)
	}

	got, err := repo.GetQuestion(ctx, q.ID)
	if err != nil {
		t.Fatalf("GetQuestion error: %v", err)
	}
	if got.Likes != 3 || got.Views != 1 {
		t.Fatalf("expected likes=3 views=1, got likes=%d views=%d", got.Likes, got.Views)
	}

	if err := repo.IncrementLikes(ctx, uuid.New()); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown question, got %v", err)
	}
}

func TestGetQuestions_Batch(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	a := createQuestion(t, repo, "a", "easy", nil, nil)
	b := createQuestion(t, repo, "b", "easy", nil, nil)

	got, err := repo.GetQuestions(ctx, []uuid.UUID{a.ID, b.ID, a.ID, uuid.New()})
	if err != nil {
		t.Fatalf("GetQuestions error: %v", err)
	}
	if len(got) != 2 || got[a.ID] == nil || got[b.ID] == nil {
		t.Fatalf("unexpected batch result: %v", got)
	}
}

func TestSubmitAnswer_UpsertsProgress(t *testing.T) {
	repo, d := setupRepo(t)
	ctx := context.Background()
	userID := uuid.New()
	q := createQuestion(t, repo, "algorithms", "easy", nil, nil)

	first := models.NewAnswer(userID, q.ID, "first try")
	p, err := repo.SubmitAnswer(ctx, first)
	if err != nil {
		t.Fatalf("SubmitAnswer error: %v", err)
	}
	if p.Status != models.StatusInProgress || p.Attempts != 1 {
		t.Fatalf("unexpected progress after first answer: %#v", p)
	}

	second := models.NewAnswer(userID, q.ID, "second try")
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	p, err = repo.SubmitAnswer(ctx, second)
	if err != nil {
		t.Fatalf("SubmitAnswer error: %v", err)
	}
	if p.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", p.Attempts)
	}
	if p.LastAttemptDate == nil || !p.LastAttemptDate.Equal(second.CreatedAt.Truncate(time.Millisecond)) {
		t.Fatalf("expected last attempt at second answer time, got %v", p.LastAttemptDate)
	}

	answers, err := repo.ListAnswersByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListAnswersByUser error: %v", err)
	}
	if len(answers) != 2 || answers[0].AnswerText != "second try" {
		t.Fatalf("expected newest answer first, got %#v", answers)
	}

	var rows int
	if err := d.QueryRow(ctx, `SELECT COUNT(*) FROM question_progress WHERE user_id = ?`, userID.String()).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected a single progress row per (user, question), got %d", rows)
	}
}

func TestSubmitAnswer_UnknownQuestionWritesNothing(t *testing.T) {
	repo, d := setupRepo(t)
	ctx := context.Background()

	_, err := repo.SubmitAnswer(ctx, models.NewAnswer(uuid.New(), uuid.New(), "orphan"))
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var answers, progress int
	if err := d.QueryRow(ctx, `SELECT (SELECT COUNT(*) FROM user_answers), (SELECT COUNT(*) FROM question_progress)`).Scan(&answers, &progress); err != nil {
		t.Fatalf("count: %v", err)
	}
	if answers != 0 || progress != 0 {
		t.Fatalf("expected no rows written, got answers=%d progress=%d", answers, progress)
	}
}

func TestUpdateMastery_RunningMean(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	userID, questionID := uuid.New(), uuid.New()
	at := time.Now().UTC()

	steps := []struct {
		score   float64
		mastery float64
		status  string
	}{
		{0.6, 0.6, models.StatusInProgress},
		{0.9, 0.75, models.StatusInProgress},
		{0.3, 0.6, models.StatusInProgress},
		{1.0, 0.7, models.StatusInProgress},
	}
	for i, s := range steps {
		p, err := repo.UpdateMastery(ctx, userID, questionID, s.score, at)
		if err != nil {
			t.Fatalf("step %d: UpdateMastery error: %v", i, err)
		}
		if !floatEq(p.MasteryLevel, s.mastery) || p.Attempts != i+1 || p.Status != s.status {
			t.Fatalf("step %d: got mastery=%v attempts=%d status=%s", i, p.MasteryLevel, p.Attempts, p.Status)
		}
	}

	if _, err := repo.UpdateMastery(ctx, userID, questionID, 1.5, at); err == nil {
		t.Fatalf("expected error for score above 1")
	}
}

func TestUpdateMastery_CompletesAtThreshold(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	userID, questionID := uuid.New(), uuid.New()

	p, err := repo.UpdateMastery(ctx, userID, questionID, 0.8, time.Now())
	if err != nil {
		t.Fatalf("UpdateMastery error: %v", err)
	}
	if p.Status != models.StatusCompleted {
		t.Fatalf("expected completed at mastery 0.8, got %s", p.Status)
	}

	p, err = repo.UpdateMastery(ctx, userID, questionID, 0.2, time.Now())
	if err != nil {
		t.Fatalf("UpdateMastery error: %v", err)
	}
	if p.Status != models.StatusInProgress {
		t.Fatalf("expected in_progress after mastery dropped to %v, got %s", p.MasteryLevel, p.Status)
	}

	list, err := repo.ListProgress(ctx, userID)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListProgress: %v, %v", list, err)
	}
}

func TestListUnattempted(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	done := createQuestion(t, repo, "algorithms", "easy", nil, nil)
	createQuestion(t, repo, "algorithms", "medium", nil, nil)
	createQuestion(t, repo, "algorithms", "hard", nil, nil)
	createQuestion(t, repo, "design", "easy", nil, nil)

	if _, err := repo.SubmitAnswer(ctx, models.NewAnswer(userID, done.ID, "x")); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}

	got, err := repo.ListUnattempted(ctx, userID, "algorithms", 10)
	if err != nil {
		t.Fatalf("ListUnattempted error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 unattempted algorithms questions, got %d", len(got))
	}
	for _, q := range got {
		if q.ID == done.ID {
			t.Fatalf("attempted question returned")
		}
	}

	limited, err := repo.ListUnattempted(ctx, userID, "algorithms", 1)
	if err != nil || len(limited) != 1 || limited[0].ID == done.ID {
		t.Fatalf("expected one unattempted question, got %#v, %v", limited, err)
	}

	other, err := repo.ListUnattempted(ctx, uuid.New(), "algorithms", 10)
	if err != nil || len(other) != 3 {
		t.Fatalf("another user has attempted nothing, got %d, %v", len(other), err)
	}
}

func TestMediaOwnership(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	owner, stranger := uuid.New(), uuid.New()

	m := &models.MediaFile{
		ID:               uuid.New(),
		UserID:           owner,
		Filename:         uuid.NewString() + ".pdf",
		OriginalFilename: "resume.pdf",
		Category:         "resume",
		Tags:             []string{"2024", "backend"},
		UploadDate:       time.Now().UTC(),
		FileType:         "application/pdf",
		FileSize:         1024,
	}
	if err := repo.CreateMedia(ctx, m); err != nil {
		t.Fatalf("CreateMedia error: %v", err)
	}

	if got, err := repo.GetMedia(ctx, stranger, m.ID); err != nil || got != nil {
		t.Fatalf("stranger must not see the file: %#v, %v", got, err)
	}
	if got, err := repo.GetMedia(ctx, owner, m.ID); err != nil || got == nil || got.FileSize != 1024 {
		t.Fatalf("owner lookup failed: %#v, %v", got, err)
	}

	byTag, err := repo.ListMedia(ctx, owner, "", "backend")
	if err != nil || len(byTag) != 1 {
		t.Fatalf("expected tag filter hit, got %d, %v", len(byTag), err)
	}
	byCat, err := repo.ListMedia(ctx, owner, "video", "")
	if err != nil || len(byCat) != 0 {
		t.Fatalf("expected category filter miss, got %d, %v", len(byCat), err)
	}

	if err := repo.DeleteMedia(ctx, stranger, m.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting someone else's file, got %v", err)
	}
	if err := repo.DeleteMedia(ctx, owner, m.ID); err != nil {
		t.Fatalf("DeleteMedia error: %v", err)
	}
	if got, _ := repo.GetMedia(ctx, owner, m.ID); got != nil {
		t.Fatalf("expected file gone after delete")
	}
}

func TestApplications(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	userID := uuid.New()

	older := models.NewApplication(userID, uuid.New(), models.ApplicationApplied)
	older.AppliedDate = older.AppliedDate.Add(-time.Hour)
	newer := models.NewApplication(userID, uuid.New(), models.ApplicationApplied)
	for _, a := range []*models.JobApplication{older, newer} {
		if err := repo.CreateApplication(ctx, a); err != nil {
			t.Fatalf("CreateApplication error: %v", err)
		}
	}

	list, err := repo.ListApplications(ctx, userID)
	if err != nil || len(list) != 2 || list[0].ID != newer.ID {
		t.Fatalf("expected newest application first: %#v, %v", list, err)
	}

	at := time.Now().UTC().Add(time.Minute)
	updated, err := repo.UpdateApplicationStatus(ctx, userID, older.ID, "interviewing", at)
	if err != nil {
		t.Fatalf("UpdateApplicationStatus error: %v", err)
	}
	if updated.Status != "interviewing" || !updated.LastUpdated.Equal(at.Truncate(time.Millisecond)) {
		t.Fatalf("unexpected updated application: %#v", updated)
	}

	if _, err := repo.UpdateApplicationStatus(ctx, uuid.New(), older.ID, "rejected", at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another user's application, got %v", err)
	}
}

func TestRecordings(t *testing.T) {
	repo, _ := setupRepo(t)
	ctx := context.Background()
	userID, q1, q2 := uuid.New(), uuid.New(), uuid.New()

	transcript := "hello"
	for i, qid := range []uuid.UUID{q1, q2, q1} {
		rec := &models.VoiceRecording{
			ID:              uuid.New(),
			UserID:          userID,
			QuestionID:      qid,
			FilePath:        "recordings/x.wav",
			Transcript:      &transcript,
			DurationSeconds: 1.5,
			CreatedAt:       time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		if err := repo.CreateRecording(ctx, rec); err != nil {
			t.Fatalf("CreateRecording error: %v", err)
		}
	}

	all, err := repo.ListRecordings(ctx, userID, nil)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 recordings, got %d, %v", len(all), err)
	}
	forQ1, err := repo.ListRecordings(ctx, userID, &q1)
	if err != nil || len(forQ1) != 2 {
		t.Fatalf("expected 2 recordings for q1, got %d, %v", len(forQ1), err)
	}
	if forQ1[0].Transcript == nil || *forQ1[0].Transcript != "hello" {
		t.Fatalf("transcript not preserved")
	}

	total, err := repo.TotalRecordingSeconds(ctx, userID)
	if err != nil || !floatEq(total, 4.5) {
		t.Fatalf("expected 4.5 seconds, got %v, %v", total, err)
	}
	empty, err := repo.TotalRecordingSeconds(ctx, uuid.New())
	if err != nil || empty != 0 {
		t.Fatalf("expected 0 seconds for unknown user, got %v, %v", empty, err)
	}
}

func TestTransactionsLogThroughRepoLogger(t *testing.T) {
	ctx := context.Background()
	d, err := dbpkg.New(ctx, ":memory:", nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	if err := dbpkg.Migrate(ctx, d, dbfs.Migrations, nil); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	var buf bytes.Buffer
	repo := sqlite.New(d, slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	q := createQuestion(t, repo, "algorithms", "easy", nil, nil)
	u := models.NewUser("log@example.com", "logger", "Log", "h")
	if err := repo.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser error: %v", err)
	}
	a := models.NewAnswer(u.ID, q.ID, "answer")
	if _, err := repo.SubmitAnswer(ctx, a); err != nil {
		t.Fatalf("SubmitAnswer error: %v", err)
	}
	if _, err := repo.UpdateMastery(ctx, u.ID, q.ID, 0.5, time.Now()); err != nil {
		t.Fatalf("UpdateMastery error: %v", err)
	}

	out := buf.String()
	for _, msg := range []string{"answer stored", "mastery updated", q.ID.String()} {
		if !strings.Contains(out, msg) {
			t.Fatalf("expected %q in repo log, got %s", msg, out)
		}
	}
}
