package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository"
)

const mediaColumns = `id, user_id, filename, original_filename, category, tags, upload_date, file_type, file_size`

func (r *SQLiteRepo) CreateMedia(ctx context.Context, m *models.MediaFile) error {
	if m == nil {
		return fmt.Errorf("media file is nil")
	}

	_, err := r.conn.Exec(ctx, `INSERT INTO media_files (`+mediaColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.UserID.String(), m.Filename, m.OriginalFilename, m.Category,
		encodeStrings(m.Tags), millis(m.UploadDate), m.FileType, m.FileSize)
	if err != nil {
		return duplicateColumn(err)
	}
	return nil
}

// GetMedia returns the file only when it belongs to userID.
func (r *SQLiteRepo) GetMedia(ctx context.Context, userID, id uuid.UUID) (*models.MediaFile, error) {
	m, err := scanMedia(r.conn.QueryRow(ctx, `SELECT `+mediaColumns+` FROM media_files WHERE id = ? AND user_id = ?`, id.String(), userID.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

func (r *SQLiteRepo) ListMedia(ctx context.Context, userID uuid.UUID, category, tag string) ([]models.MediaFile, error) {
	query := `SELECT ` + mediaColumns + ` FROM media_files WHERE user_id = ?`
	args := []any{userID.String()}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	if tag != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(media_files.tags) WHERE json_each.value = ?)`
		args = append(args, tag)
	}
	query += ` ORDER BY upload_date DESC, id`

	rows, err := r.conn.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.MediaFile{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}

	return out, rows.Err()
}

func (r *SQLiteRepo) DeleteMedia(ctx context.Context, userID, id uuid.UUID) error {
	res, err := r.conn.Exec(ctx, `DELETE FROM media_files WHERE id = ? AND user_id = ?`, id.String(), userID.String())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanMedia(row scanner) (*models.MediaFile, error) {
	var m models.MediaFile
	var id, userID, tags string
	var uploaded int64
	if err := row.Scan(&id, &userID, &m.Filename, &m.OriginalFilename, &m.Category, &tags, &uploaded, &m.FileType, &m.FileSize); err != nil {
		return nil, err
	}

	var err error
	if m.ID, err = decodeUUID("media_files", "id", id); err != nil {
		return nil, err
	}
	if m.UserID, err = decodeUUID("media_files", "user_id", userID); err != nil {
		return nil, err
	}
	if m.Tags, err = decodeStrings("media_files", "tags", tags); err != nil {
		return nil, err
	}
	m.UploadDate = fromMillis(uploaded)

	return &m, nil
}
