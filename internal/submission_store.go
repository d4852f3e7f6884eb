package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/intake"
	"go.uber.org/zap"
)

const submissionColumns = "id, form_id, user_id, data, status, submitted_at"

// PostgresSubmissionStore persists submissions. Rows are written once by the
// pipeline; the only mutation afterwards is the admin review status change.
type PostgresSubmissionStore struct {
	pool   dbPool
	table  string
	logger *zap.Logger
}

// NewPostgresSubmissionStore creates a submission store over the given pool.
func NewPostgresSubmissionStore(pool dbPool, table string, logger *zap.Logger) *PostgresSubmissionStore {
	return &PostgresSubmissionStore{pool: pool, table: table, logger: logger}
}

// InsertSubmission writes one submission row. A foreign-key violation means
// the schema was deleted while the attempt was in flight.
func (s *PostgresSubmissionStore) InsertSubmission(ctx context.Context, sub *intake.Submission) error {
	dataJSON, err := json.Marshal(sub.Data)
	if err != nil {
		return intake.NewInternalError("marshal submission data", err)
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (id, form_id, user_id, data, status, submitted_at) VALUES ($1, $2, $3, $4, $5, $6)",
		s.table,
	)
	_, err = s.pool.Exec(ctx, query, sub.ID, sub.FormID, sub.UserID, dataJSON, sub.Status, sub.SubmittedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return intake.NewStorageError(
				fmt.Sprintf("form schema %s no longer exists", sub.FormID), err)
		}
		return intake.NewStorageError("insert submission", err)
	}
	return nil
}

// GetSubmission returns one submission by id.
func (s *PostgresSubmissionStore) GetSubmission(ctx context.Context, id uuid.UUID) (*intake.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", submissionColumns, s.table)

	sub, err := scanSubmission(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, intake.NewSubmissionNotFoundError(id.String())
		}
		return nil, intake.NewStorageError("get submission", err)
	}
	return sub, nil
}

// ListSubmissions returns a form's submissions, newest first.
func (s *PostgresSubmissionStore) ListSubmissions(ctx context.Context, formID uuid.UUID) ([]*intake.Submission, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE form_id = $1 ORDER BY submitted_at DESC",
		submissionColumns, s.table,
	)

	rows, err := s.pool.Query(ctx, query, formID)
	if err != nil {
		return nil, intake.NewStorageError("list submissions", err)
	}
	defer rows.Close()

	subs := make([]*intake.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, intake.NewStorageError("scan submission row", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, intake.NewStorageError("iterate submissions", err)
	}
	return subs, nil
}

// UpdateSubmissionStatus applies an admin review decision.
func (s *PostgresSubmissionStore) UpdateSubmissionStatus(ctx context.Context, id uuid.UUID, status intake.SubmissionStatus, reviewer string) (*intake.Submission, error) {
	if !status.Known() {
		return nil, intake.NewIntakeError(intake.ErrorTypeValidation, intake.ErrCodeInvalidStatus,
			fmt.Sprintf("unknown submission status '%s'", status))
	}

	query := fmt.Sprintf(
		"UPDATE %s SET status = $2 WHERE id = $1 RETURNING %s",
		s.table, submissionColumns,
	)

	sub, err := scanSubmission(s.pool.QueryRow(ctx, query, id, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, intake.NewSubmissionNotFoundError(id.String())
		}
		return nil, intake.NewStorageError("update submission status", err)
	}

	s.logger.Info("submission reviewed",
		zap.String("submissionId", id.String()),
		zap.String("status", string(status)),
		zap.String("reviewer", reviewer),
	)
	return sub, nil
}

func scanSubmission(row pgx.Row) (*intake.Submission, error) {
	var (
		sub      intake.Submission
		dataJSON []byte
	)
	err := row.Scan(&sub.ID, &sub.FormID, &sub.UserID, &dataJSON, &sub.Status, &sub.SubmittedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(dataJSON, &sub.Data); err != nil {
		return nil, fmt.Errorf("decode submission data for %s: %w", sub.ID, err)
	}
	return &sub, nil
}
