package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository"
)

const questionColumns = `id, category, difficulty, title, description, sample_answer, keywords, tags, company_tags, likes, views, created_at`

func (r *SQLiteRepo) CreateQuestion(ctx context.Context, q *models.InterviewQuestion) error {
	if q == nil {
		return fmt.Errorf("question is nil")
	}

	_, err := r.conn.Exec(ctx, `INSERT INTO interview_questions (`+questionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		q.ID.String(), q.Category, q.Difficulty, q.Title, q.Description, q.SampleAnswer,
		encodeStrings(q.Keywords), encodeStrings(q.Tags), encodeStrings(q.CompanyTags),
		q.Likes, q.Views, millis(q.CreatedAt))
	if err != nil {
		return duplicateColumn(err)
	}

	return nil
}

func (r *SQLiteRepo) GetQuestion(ctx context.Context, id uuid.UUID) (*models.InterviewQuestion, error) {
	q, err := scanQuestion(r.conn.QueryRow(ctx, `SELECT `+questionColumns+` FROM interview_questions WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return q, nil
}

// GetQuestions loads the given ids in one query; missing ids are absent from the map.
func (r *SQLiteRepo) GetQuestions(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.InterviewQuestion, error) {
	out := make(map[uuid.UUID]*models.InterviewQuestion, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	args := make([]any, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		args = append(args, id.String())
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")

	rows, err := r.conn.QueryRows(ctx, `SELECT `+questionColumns+` FROM interview_questions WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out[q.ID] = q
	}

	return out, rows.Err()
}

// ListQuestions applies every non-empty filter field conjunctively. Tag and
// company match membership in the JSON list columns.
func (r *SQLiteRepo) ListQuestions(ctx context.Context, f repository.QuestionFilter) ([]models.InterviewQuestion, error) {
	var conds []string
	var args []any

	if f.Category != "" {
		conds = append(conds, `category = ?`)
		args = append(args, f.Category)
	}
	if f.Difficulty != "" {
		conds = append(conds, `difficulty = ?`)
		args = append(args, f.Difficulty)
	}
	if f.Tag != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM json_each(interview_questions.tags) WHERE json_each.value = ?)`)
		args = append(args, f.Tag)
	}
	if f.Company != "" {
		conds = append(conds, `EXISTS (SELECT 1 FROM json_each(interview_questions.company_tags) WHERE json_each.value = ?)`)
		args = append(args, f.Company)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}

	query := `SELECT ` + questionColumns + ` FROM interview_questions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	return r.queryQuestions(ctx, query, args...)
}

func (r *SQLiteRepo) IncrementLikes(ctx context.Context, id uuid.UUID) error {
	return r.increment(ctx, `UPDATE interview_questions SET likes = likes + 1 WHERE id = ?`, id)
}

func (r *SQLiteRepo) IncrementViews(ctx context.Context, id uuid.UUID) error {
	return r.increment(ctx, `UPDATE interview_questions SET views = views + 1 WHERE id = ?`, id)
}

func (r *SQLiteRepo) increment(ctx context.Context, query string, id uuid.UUID) error {
	res, err := r.conn.Exec(ctx, query, id.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepo) ListUnattempted(ctx context.Context, userID uuid.UUID, category string, limit int) ([]models.InterviewQuestion, error) {
	if limit <= 0 {
		return []models.InterviewQuestion{}, nil
	}

	return r.queryQuestions(ctx, `SELECT `+questionColumns+` FROM interview_questions q
		WHERE q.category = ?
		AND NOT EXISTS (SELECT 1 FROM question_progress p WHERE p.user_id = ? AND p.question_id = q.id)
		ORDER BY q.created_at, q.id LIMIT ?`, category, userID.String(), limit)
}

func (r *SQLiteRepo) queryQuestions(ctx context.Context, query string, args ...any) ([]models.InterviewQuestion, error) {
	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.InterviewQuestion{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}

	return out, rows.Err()
}

func scanQuestion(row scanner) (*models.InterviewQuestion, error) {
	var q models.InterviewQuestion
	var id, keywords, tags, companies string
	var created int64
	if err := row.Scan(&id, &q.Category, &q.Difficulty, &q.Title, &q.Description, &q.SampleAnswer, &keywords, &tags, &companies, &q.Likes, &q.Views, &created); err != nil {
		return nil, err
	}

	var err error
	if q.ID, err = decodeUUID("interview_questions", "id", id); err != nil {
		return nil, err
	}
	if q.Keywords, err = decodeStrings("interview_questions", "keywords", keywords); err != nil {
		return nil, err
	}
	if q.Tags, err = decodeStrings("interview_questions", "tags", tags); err != nil {
		return nil, err
	}
	if q.CompanyTags, err = decodeStrings("interview_questions", "company_tags", companies); err != nil {
		return nil, err
	}
	q.CreatedAt = fromMillis(created)

	return &q, nil
}
