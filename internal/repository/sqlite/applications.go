package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository"
)

const applicationColumns = `id, user_id, job_id, status, applied_date, last_updated`

func (r *SQLiteRepo) CreateApplication(ctx context.Context, a *models.JobApplication) error {
	if a == nil {
		return fmt.Errorf("application is nil")
	}

	_, err := r.conn.Exec(ctx, `INSERT INTO job_applications (`+applicationColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.UserID.String(), a.JobID.String(), a.Status, millis(a.AppliedDate), millis(a.LastUpdated))
	if err != nil {
		return duplicateColumn(err)
	}
	return nil
}

// UpdateApplicationStatus changes the status of one of userID's applications.
// ErrNotFound when the application does not exist or belongs to someone else.
func (r *SQLiteRepo) UpdateApplicationStatus(ctx context.Context, userID, id uuid.UUID, status string, at time.Time) (*models.JobApplication, error) {
	res, err := r.conn.Exec(ctx, `UPDATE job_applications SET status = ?, last_updated = ? WHERE id = ? AND user_id = ?`,
		status, millis(at), id.String(), userID.String())
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, repository.ErrNotFound
	}

	a, err := scanApplication(r.conn.QueryRow(ctx, `SELECT `+applicationColumns+` FROM job_applications WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *SQLiteRepo) ListApplications(ctx context.Context, userID uuid.UUID) ([]models.JobApplication, error) {
	rows, err := r.conn.QueryRows(ctx, `SELECT `+applicationColumns+` FROM job_applications WHERE user_id = ? ORDER BY applied_date DESC, id`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.JobApplication{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}

	return out, rows.Err()
}

func scanApplication(row scanner) (*models.JobApplication, error) {
	var a models.JobApplication
	var id, userID, jobID string
	var applied, updated int64
	if err := row.Scan(&id, &userID, &jobID, &a.Status, &applied, &updated); err != nil {
		return nil, err
	}

	var err error
	if a.ID, err = decodeUUID("job_applications", "id", id); err != nil {
		return nil, err
	}
	if a.UserID, err = decodeUUID("job_applications", "user_id", userID); err != nil {
		return nil, err
	}
	if a.JobID, err = decodeUUID("job_applications", "job_id", jobID); err != nil {
		return nil, err
	}
	a.AppliedDate = fromMillis(applied)
	a.LastUpdated = fromMillis(updated)

	return &a, nil
}
