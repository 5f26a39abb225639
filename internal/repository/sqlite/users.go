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

const userColumns = `id, email, username, full_name, hashed_password, skills, progress, preferences, is_active, created_at`

func (r *SQLiteRepo) CreateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}

	progress, err := encodeMap(u.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	prefs, err := encodeMap(u.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	_, err = r.conn.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID.String(), u.Email, u.Username, u.FullName, u.HashedPassword,
		encodeStrings(u.Skills), progress, prefs, u.IsActive, millis(u.CreatedAt))
	if err != nil {
		return duplicateColumn(err)
	}

	return nil
}

func (r *SQLiteRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id.String())
}

func (r *SQLiteRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *SQLiteRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *SQLiteRepo) getUser(ctx context.Context, query string, arg any) (*models.User, error) {
	u, err := scanUser(r.conn.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// UpdateUser rewrites every mutable column of the user.
func (r *SQLiteRepo) UpdateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}

	progress, err := encodeMap(u.Progress)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	prefs, err := encodeMap(u.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	res, err := r.conn.Exec(ctx, `UPDATE users SET email = ?, username = ?, full_name = ?, hashed_password = ?, skills = ?, progress = ?, preferences = ?, is_active = ? WHERE id = ?`,
		u.Email, u.Username, u.FullName, u.HashedPassword, encodeStrings(u.Skills), progress, prefs, u.IsActive, u.ID.String())
	if err != nil {
		return duplicateColumn(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var id, skills, progress, prefs string
	var created int64
	if err := row.Scan(&id, &u.Email, &u.Username, &u.FullName, &u.HashedPassword, &skills, &progress, &prefs, &u.IsActive, &created); err != nil {
		return nil, err
	}

	var err error
	if u.ID, err = decodeUUID("users", "id", id); err != nil {
		return nil, err
	}
	if u.Skills, err = decodeStrings("users", "skills", skills); err != nil {
		return nil, err
	}
	if u.Progress, err = decodeMap("users", "progress", progress); err != nil {
		return nil, err
	}
	if u.Preferences, err = decodeMap("users", "preferences", prefs); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(created)

	return &u, nil
}
