package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

//go:embed *.sql
var migrationsFS embed.FS

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Migrate applies every embedded statement. All tables are created with
// IF NOT EXISTS so reruns are harmless.
func Migrate(ctx context.Context, db execer) error {
	statements, err := Statements()
	if err != nil {
		return err
	}
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute migration statement %d: %w", i+1, err)
		}
	}
	logrus.WithField("statements", len(statements)).Info("Migrations applied")
	return nil
}

// Statements returns the embedded migration statements in file order. The
// MySQL driver runs one statement per exec, so files are split on ";".
func Statements() ([]string, error) {
	entries, err := migrationsFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	statements := make([]string, 0)
	for _, name := range names {
		raw, err := migrationsFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		for _, stmt := range strings.Split(string(raw), ";") {
			if stmt = strings.TrimSpace(stmt); stmt != "" {
				statements = append(statements, stmt)
			}
		}
	}
	return statements, nil
}
