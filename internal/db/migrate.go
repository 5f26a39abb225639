package db

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Migrate applies the SQL files under migrations/ in name order, recording
// each in schema_migrations, then loads the question seed when seedFS is
// non-nil. Both steps are idempotent.
func Migrate(ctx context.Context, d *DB, migrationFS fs.FS, seedFS fs.FS) error {
	if _, err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	migDir := "migrations"

	entries, err := fs.ReadDir(migrationFS, migDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(strings.ToLower(name), ".sql") {
			files = append(files, name)
		}
	}
	sort.Strings(files)

	for _, fname := range files {
		version := strings.TrimSuffix(fname, path.Ext(fname))

		var count int
		row := d.QueryRow(ctx, `SELECT COUNT(1) FROM schema_migrations WHERE version = ?`, version)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("scan migration applied count: %w", err)
		}
		if count > 0 {
			continue
		}

		b, err := fs.ReadFile(migrationFS, path.Join(migDir, fname))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", fname, err)
		}
		if _, err := d.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec migration %s: %w", fname, err)
		}

		if _, err := d.Exec(ctx, `INSERT INTO schema_migrations (version, applied) VALUES (?, ?)`, version, time.Now().UTC().UnixMilli()); err != nil {
			return fmt.Errorf("record migration %s: %w", fname, err)
		}
		d.logger.Info("migration applied", "version", version)
	}

	if seedFS == nil {
		return nil
	}

	return seedQuestions(ctx, d, seedFS)
}

type seedQuestion struct {
	Category     string   `json:"category"`
	Difficulty   string   `json:"difficulty"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	SampleAnswer string   `json:"sample_answer"`
	Keywords     []string `json:"keywords"`
	Tags         []string `json:"tags"`
	CompanyTags  []string `json:"company_tags"`
}

// seedQuestions inserts the starter catalog keyed on title, so reruns add only
// questions that are not there yet.
func seedQuestions(ctx context.Context, d *DB, seedFS fs.FS) error {
	b, err := fs.ReadFile(seedFS, path.Join("seed", "questions.json"))
	if err != nil {
		// no seed file is fine
		return nil
	}

	var qs []seedQuestion
	if err := json.Unmarshal(b, &qs); err != nil {
		return fmt.Errorf("decode question seed: %w", err)
	}

	inserted := 0
	for _, q := range qs {
		keywords, _ := json.Marshal(nonNil(q.Keywords))
		tags, _ := json.Marshal(nonNil(q.Tags))
		companies, _ := json.Marshal(nonNil(q.CompanyTags))

		res, err := d.Exec(ctx, `INSERT INTO interview_questions (id, category, difficulty, title, description, sample_answer, keywords, tags, company_tags, likes, views, created_at)
			SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?
			WHERE NOT EXISTS (SELECT 1 FROM interview_questions WHERE title = ?)`,
			uuid.NewString(), q.Category, q.Difficulty, q.Title, q.Description, q.SampleAnswer,
			string(keywords), string(tags), string(companies), time.Now().UTC().UnixMilli(), q.Title)
		if err != nil {
			return fmt.Errorf("seed question %q: %w", q.Title, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if inserted > 0 {
		d.logger.Info("question seed applied", "inserted", inserted)
	}

	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
