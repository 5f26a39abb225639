package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/pkg/models"
)

const recordingColumns = `id, user_id, question_id, file_path, transcript, duration_seconds, created_at`

func (r *SQLiteRepo) CreateRecording(ctx context.Context, rec *models.VoiceRecording) error {
	if rec == nil {
		return fmt.Errorf("recording is nil")
	}

	_, err := r.conn.Exec(ctx, `INSERT INTO voice_recordings (`+recordingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID.String(), rec.UserID.String(), rec.QuestionID.String(), rec.FilePath, rec.Transcript, rec.DurationSeconds, millis(rec.CreatedAt))
	if err != nil {
		return duplicateColumn(err)
	}
	return nil
}

// ListRecordings returns the user's recordings, newest first, optionally for one question.
func (r *SQLiteRepo) ListRecordings(ctx context.Context, userID uuid.UUID, questionID *uuid.UUID) ([]models.VoiceRecording, error) {
	query := `SELECT ` + recordingColumns + ` FROM voice_recordings WHERE user_id = ?`
	args := []any{userID.String()}
	if questionID != nil {
		query += ` AND question_id = ?`
		args = append(args, questionID.String())
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.VoiceRecording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) TotalRecordingSeconds(ctx context.Context, userID uuid.UUID) (float64, error) {
	var total float64
	if err := r.conn.QueryRow(ctx, `SELECT COALESCE(SUM(duration_seconds), 0) FROM voice_recordings WHERE user_id = ?`, userID.String()).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func scanRecording(row scanner) (*models.VoiceRecording, error) {
	var rec models.VoiceRecording
	var id, userID, questionID string
	var transcript sql.NullString
	var created int64
	if err := row.Scan(&id, &userID, &questionID, &rec.FilePath, &transcript, &rec.DurationSeconds, &created); err != nil {
		return nil, err
	}

	var err error
	if rec.ID, err = decodeUUID("voice_recordings", "id", id); err != nil {
		return nil, err
	}
	if rec.UserID, err = decodeUUID("voice_recordings", "user_id", userID); err != nil {
		return nil, err
	}
	if rec.QuestionID, err = decodeUUID("voice_recordings", "question_id", questionID); err != nil {
		return nil, err
	}
	rec.Transcript = stringPtr(transcript)
	rec.CreatedAt = fromMillis(created)

	return &rec, nil
}
