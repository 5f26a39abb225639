package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository"
)

const answerColumns = `id, user_id, question_id, answer_text, voice_recording_url, feedback, confidence_score, created_at, updated_at`

// SubmitAnswer checks the question, stores the answer and upserts the progress
// row in a single transaction. An existing row gets attempts+1 and the answer
// time as last attempt; a new one starts in_progress with one attempt.
func (r *SQLiteRepo) SubmitAnswer(ctx context.Context, a *models.UserAnswer) (*models.QuestionProgress, error) {
	if a == nil {
		return nil, fmt.Errorf("answer is nil")
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM interview_questions WHERE id = ?`, a.QuestionID.String()).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("check question: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO user_answers (`+answerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.UserID.String(), a.QuestionID.String(), a.AnswerText,
		a.VoiceRecordingURL, a.Feedback, a.ConfidenceScore, millis(a.CreatedAt), nullMillis(a.UpdatedAt)); err != nil {
		return nil, fmt.Errorf("insert answer: %w", duplicateColumn(err))
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO question_progress (user_id, question_id, status, attempts, last_attempt_date, mastery_level)
		VALUES (?, ?, ?, 1, ?, 0)
		ON CONFLICT (user_id, question_id) DO UPDATE SET attempts = attempts + 1, last_attempt_date = excluded.last_attempt_date`,
		a.UserID.String(), a.QuestionID.String(), models.StatusInProgress, millis(a.CreatedAt)); err != nil {
		return nil, fmt.Errorf("upsert progress: %w", err)
	}

	p, err := scanProgress(tx.QueryRowContext(ctx, `SELECT `+progressColumns+` FROM question_progress WHERE user_id = ? AND question_id = ?`,
		a.UserID.String(), a.QuestionID.String()))
	if err != nil {
		return nil, fmt.Errorf("reload progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	r.logger.Debug("answer stored",
		slog.String("answer_id", a.ID.String()),
		slog.String("question_id", a.QuestionID.String()),
		slog.Int("attempts", p.Attempts),
	)
	return p, nil
}

// ListAnswersByUser returns the user's answers, newest first.
func (r *SQLiteRepo) ListAnswersByUser(ctx context.Context, userID uuid.UUID) ([]models.UserAnswer, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+answerColumns+` FROM user_answers WHERE user_id = ? ORDER BY created_at DESC, id`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.UserAnswer{}
	for rows.Next() {
		a, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}

	return out, rows.Err()
}

func scanAnswer(row scanner) (*models.UserAnswer, error) {
	var a models.UserAnswer
	var id, userID, questionID string
	var url, feedback sql.NullString
	var score sql.NullFloat64
	var created int64
	var updated sql.NullInt64
	if err := row.Scan(&id, &userID, &questionID, &a.AnswerText, &url, &feedback, &score, &created, &updated); err != nil {
		return nil, err
	}

	var err error
	if a.ID, err = decodeUUID("user_answers", "id", id); err != nil {
		return nil, err
	}
	if a.UserID, err = decodeUUID("user_answers", "user_id", userID); err != nil {
		return nil, err
	}
	if a.QuestionID, err = decodeUUID("user_answers", "question_id", questionID); err != nil {
		return nil, err
	}
	if score.Valid {
		if _, err := decodeUnit("user_answers", "confidence_score", score.Float64); err != nil {
			return nil, err
		}
	}
	a.VoiceRecordingURL = stringPtr(url)
	a.Feedback = stringPtr(feedback)
	a.ConfidenceScore = floatPtr(score)
	a.CreatedAt = fromMillis(created)
	a.UpdatedAt = timePtr(updated)

	return &a, nil
}
