package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/garnizeh/prepcoach/pkg/models"
	"github.com/garnizeh/prepcoach/pkg/repository"
)

// DecodeError reports a stored value that does not have the expected shape.
type DecodeError struct {
	Table  string
	Column string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s.%s: %v", e.Table, e.Column, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type scanner interface {
	Scan(dest ...any) error
}

func decodeUUID(table, column, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, &DecodeError{Table: table, Column: column, Err: err}
	}
	return id, nil
}

func decodeStrings(table, column, raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &DecodeError{Table: table, Column: column, Err: err}
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func decodeMap(table, column, raw string) (map[string]any, error) {
	out := map[string]any{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, &DecodeError{Table: table, Column: column, Err: err}
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func decodeStatus(table, column, raw string) (string, error) {
	switch raw {
	case models.StatusNotStarted, models.StatusInProgress, models.StatusCompleted:
		return raw, nil
	}
	return "", &DecodeError{Table: table, Column: column, Err: fmt.Errorf("unknown status %q", raw)}
}

func decodeUnit(table, column string, v float64) (float64, error) {
	if v < 0 || v > 1 {
		return 0, &DecodeError{Table: table, Column: column, Err: fmt.Errorf("value %v outside [0,1]", v)}
	}
	return v, nil
}

func encodeStrings(s []string) string {
	if s == nil {
		s = []string{}
	}
	b, _ := json.Marshal(s)
	return string(b)
}

func encodeMap(m map[string]any) (string, error) {
	if m == nil {
		m = map[string]any{}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func millis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: millis(*t), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// duplicateColumn maps a UNIQUE violation to a DuplicateError naming the column.
func duplicateColumn(err error) error {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	if se.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE && se.Code() != sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY {
		return err
	}
	// message shape: "... UNIQUE constraint failed: users.email (2067)"
	column := "value"
	msg := se.Error()
	if i := strings.LastIndex(msg, "failed: "); i >= 0 {
		if fields := strings.Fields(msg[i+len("failed: "):]); len(fields) > 0 {
			name := strings.TrimSuffix(fields[0], ",")
			if j := strings.LastIndex(name, "."); j >= 0 {
				name = name[j+1:]
			}
			column = name
		}
	}
	return &repository.DuplicateError{Column: column}
}
