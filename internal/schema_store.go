package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/intake"
	"go.uber.org/zap"
)

const schemaColumns = "id, department_id, name, description, fields, active, created_by, created_at, updated_at"

// PostgresSchemaStore persists form schemas in a single canonical shape: one
// row per schema with the ordered field list as a JSONB column. The table
// carries a uniqueness constraint on (department_id, name).
type PostgresSchemaStore struct {
	pool      dbPool
	table     string
	validator *intake.Validator
	logger    *zap.Logger
	nowFunc   func() time.Time
}

// NewPostgresSchemaStore creates a schema store over the given pool.
func NewPostgresSchemaStore(pool dbPool, table string, validator *intake.Validator, logger *zap.Logger) *PostgresSchemaStore {
	return &PostgresSchemaStore{
		pool:      pool,
		table:     table,
		validator: validator,
		logger:    logger,
		nowFunc:   time.Now,
	}
}

// LoadSchema returns the department's current active schema. Absence is a
// distinct, expected outcome (not-found error); query failures surface as
// collaborator errors so callers never conflate the two.
func (s *PostgresSchemaStore) LoadSchema(ctx context.Context, departmentID string) (*intake.FormSchema, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE department_id = $1 AND active ORDER BY updated_at DESC LIMIT 1",
		schemaColumns, s.table,
	)

	schema, err := s.scanSchema(s.pool.QueryRow(ctx, query, departmentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, intake.NewSchemaNotFoundError(departmentID)
		}
		return nil, intake.NewStorageError("load schema", err)
	}
	return schema, nil
}

// LoadSchemaByID returns a schema by primary key.
func (s *PostgresSchemaStore) LoadSchemaByID(ctx context.Context, id uuid.UUID) (*intake.FormSchema, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", schemaColumns, s.table)

	schema, err := s.scanSchema(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, intake.NewSchemaNotFoundError(id.String())
		}
		return nil, intake.NewStorageError("load schema by id", err)
	}
	return schema, nil
}

// SaveSchema validates the schema, then upserts it keyed by
// (department_id, name). On conflict the stored row keeps its id — existing
// submissions stay correctly linked — while fields, description and the
// active flag are replaced and updated_at is bumped. Validation failure means
// nothing touches the database.
func (s *PostgresSchemaStore) SaveSchema(ctx context.Context, schema *intake.FormSchema) (*intake.FormSchema, error) {
	if violations := s.validator.ValidateSchema(schema); violations.HasErrors() {
		return nil, violations
	}

	id := schema.ID
	if id == uuid.Nil {
		id = uuid.Must(uuid.NewV7())
	}

	fieldsJSON, err := json.Marshal(schema.Fields)
	if err != nil {
		return nil, intake.NewInternalError("marshal schema fields", err)
	}

	now := s.nowFunc().UTC()
	query := fmt.Sprintf(`INSERT INTO %s (id, department_id, name, description, fields, active, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (department_id, name) DO UPDATE SET
			description = EXCLUDED.description,
			fields = EXCLUDED.fields,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
		RETURNING %s`, s.table, schemaColumns)

	persisted, err := s.scanSchema(s.pool.QueryRow(ctx, query,
		id, schema.DepartmentID, schema.Name, schema.Description,
		fieldsJSON, schema.Active, schema.CreatedBy, now,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Unique violation outside the upsert key is a bug, not user input.
			return nil, intake.NewIntegrityError(
				fmt.Sprintf("schema upsert violated constraint %s", pgErr.ConstraintName)).WithCause(err)
		}
		return nil, intake.NewStorageError("save schema", err)
	}

	s.logger.Info("schema saved",
		zap.String("schemaId", persisted.ID.String()),
		zap.String("departmentId", persisted.DepartmentID),
		zap.String("name", persisted.Name),
		zap.Int("fields", len(persisted.Fields)),
	)
	return persisted, nil
}

// DeleteSchema removes a schema. Submissions referencing it are removed by
// the storage layer's cascade; any in-flight submission against it will fail
// at its persist step.
func (s *PostgresSchemaStore) DeleteSchema(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.table), id)
	if err != nil {
		return intake.NewStorageError("delete schema", err)
	}
	if tag.RowsAffected() == 0 {
		return intake.NewSchemaNotFoundError(id.String())
	}

	s.logger.Info("schema deleted, submissions cascade with it", zap.String("schemaId", id.String()))
	return nil
}

func (s *PostgresSchemaStore) scanSchema(row pgx.Row) (*intake.FormSchema, error) {
	var (
		schema     intake.FormSchema
		fieldsJSON []byte
	)
	err := row.Scan(
		&schema.ID, &schema.DepartmentID, &schema.Name, &schema.Description,
		&fieldsJSON, &schema.Active, &schema.CreatedBy, &schema.CreatedAt, &schema.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(fieldsJSON, &schema.Fields); err != nil {
		return nil, fmt.Errorf("decode field list for schema %s: %w", schema.ID, err)
	}
	return &schema, nil
}
