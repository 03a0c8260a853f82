// Package migrations embeds the SQL schema and applies it in file-name order.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.sql
var files embed.FS

const (
	Up   = "up"
	Down = "down"
)

// Files lists the migration files for a direction in the order they run.
func Files(direction string) ([]string, error) {
	if direction != Up && direction != Down {
		return nil, fmt.Errorf("direction must be %q or %q, got %q", Up, Down, direction)
	}

	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), "."+direction+".sql") {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)
	if direction == Down {
		for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
			names[i], names[j] = names[j], names[i]
		}
	}

	return names, nil
}

// Run applies every migration for direction and returns the files applied.
func Run(ctx context.Context, db *sql.DB, direction string) ([]string, error) {
	names, err := Files(direction)
	if err != nil {
		return nil, err
	}

	for _, name := range names {
		content, err := fs.ReadFile(files, name)
		if err != nil {
			return nil, fmt.Errorf("read migration file %s: %w", name, err)
		}

		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return nil, fmt.Errorf("execute migration %s: %w", name, err)
		}
	}

	return names, nil
}
