// Package migrations embeds the SQL schema for the events store.
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

// Up applies every *.up.sql file in name order. The statements are
// idempotent, so Up may run against an already migrated database.
func Up(ctx context.Context, db *sql.DB) error {
	names, err := fs.Glob(files, "*.up.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", strings.TrimSuffix(name, ".up.sql"), err)
		}
	}
	return nil
}
