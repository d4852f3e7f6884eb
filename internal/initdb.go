package internal

import (
	"context"
	"fmt"

	"github.com/lychee-technology/intake"
)

// EnsureTables creates the schema and submission tables when absent. The
// uniqueness constraint on (department_id, name) backs the store's upsert,
// and the foreign key cascades schema deletion to submissions.
func EnsureTables(ctx context.Context, pool dbPool, tables intake.TableNames) error {
	if tables.Schemas == "" || tables.Submissions == "" {
		return fmt.Errorf("table names cannot be empty")
	}

	schemasDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY,
		department_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		fields JSONB NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (department_id, name)
	)`, tables.Schemas)

	submissionsDDL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY,
		form_id UUID NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
		user_id TEXT,
		data JSONB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		submitted_at TIMESTAMPTZ NOT NULL
	)`, tables.Submissions, tables.Schemas)

	indexDDL := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_form_id_idx ON %s (form_id, submitted_at DESC)",
		tables.Submissions, tables.Submissions,
	)

	for _, ddl := range []string{schemasDDL, submissionsDDL, indexDDL} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("ensure tables: %w", err)
		}
	}
	return nil
}
