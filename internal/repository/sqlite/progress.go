package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/pkg/models"
)

const progressColumns = `user_id, question_id, status, attempts, last_attempt_date, mastery_level, notes`

// CompletedMastery is the mastery level at which a question counts as completed.
const CompletedMastery = 0.8

func (r *SQLiteRepo) ListProgress(ctx context.Context, userID uuid.UUID) ([]models.QuestionProgress, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+progressColumns+` FROM question_progress WHERE user_id = ? ORDER BY last_attempt_date DESC, question_id`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.QuestionProgress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}

	return out, rows.Err()
}

// UpdateMastery folds score into the running mean inside a transaction:
// new = (mastery*attempts + score) / (attempts+1), then attempts+1. A missing
// row starts with mastery = score and one attempt.
func (r *SQLiteRepo) UpdateMastery(ctx context.Context, userID, questionID uuid.UUID, score float64, at time.Time) (*models.QuestionProgress, error) {
	if score < 0 || score > 1 {
		return nil, fmt.Errorf("confidence score %v outside [0,1]", score)
	}

	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	const sel = `SELECT ` + progressColumns + ` FROM question_progress WHERE user_id = ? AND question_id = ?`
	cur, err := scanProgress(tx.QueryRowContext(ctx, sel, userID.String(), questionID.String()))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		status := masteryStatus(score)
		if _, err := tx.ExecContext(ctx, `INSERT INTO question_progress (user_id, question_id, status, attempts, last_attempt_date, mastery_level) VALUES (?, ?, ?, 1, ?, ?)`,
			userID.String(), questionID.String(), status, millis(at), score); err != nil {
			return nil, fmt.Errorf("insert progress: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("load progress: %w", err)
	default:
		attempts := float64(cur.Attempts)
		mastery := clampUnit((cur.MasteryLevel*attempts + score) / (attempts + 1))
		if _, err := tx.ExecContext(ctx, `UPDATE question_progress SET mastery_level = ?, attempts = attempts + 1, last_attempt_date = ?, status = ? WHERE user_id = ? AND question_id = ?`,
			mastery, millis(at), masteryStatus(mastery), userID.String(), questionID.String()); err != nil {
			return nil, fmt.Errorf("update progress: %w", err)
		}
	}

	p, err := scanProgress(tx.QueryRowContext(ctx, sel, userID.String(), questionID.String()))
	if err != nil {
		return nil, fmt.Errorf("reload progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	r.logger.Debug("mastery updated",
		slog.String("user_id", userID.String()),
		slog.String("question_id", questionID.String()),
		slog.Float64("mastery", p.MasteryLevel),
		slog.Int("attempts", p.Attempts),
	)
	return p, nil
}

func masteryStatus(mastery float64) string {
	if mastery >= CompletedMastery {
		return models.StatusCompleted
	}
	return models.StatusInProgress
}

// clampUnit absorbs float rounding at the ends of [0,1].
func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func scanProgress(row scanner) (*models.QuestionProgress, error) {
	var p models.QuestionProgress
	var userID, questionID, status string
	var last sql.NullInt64
	var notes sql.NullString
	if err := row.Scan(&userID, &questionID, &status, &p.Attempts, &last, &p.MasteryLevel, &notes); err != nil {
		return nil, err
	}

	var err error
	if p.UserID, err = decodeUUID("question_progress", "user_id", userID); err != nil {
		return nil, err
	}
	if p.QuestionID, err = decodeUUID("question_progress", "question_id", questionID); err != nil {
		return nil, err
	}
	if p.Status, err = decodeStatus("question_progress", "status", status); err != nil {
		return nil, err
	}
	if p.MasteryLevel, err = decodeUnit("question_progress", "mastery_level", p.MasteryLevel); err != nil {
		return nil, err
	}
	p.LastAttemptDate = timePtr(last)
	p.Notes = stringPtr(notes)

	return &p, nil
}
