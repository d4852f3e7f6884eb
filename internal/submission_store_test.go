package internal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/intake"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var submissionColumnList = []string{"id", "form_id", "user_id", "data", "status", "submitted_at"}

func testSubmissionStore(t *testing.T) (*PostgresSubmissionStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresSubmissionStore(mock, "form_submissions", zap.NewNop()), mock
}

func sampleSubmission() *intake.Submission {
	userID := "user-7"
	return &intake.Submission{
		ID:     uuid.MustParse("018f0000-0000-7000-8000-000000000010"),
		FormID: uuid.MustParse("018f0000-0000-7000-8000-000000000001"),
		UserID: &userID,
		Data: map[string]any{
			"full_name": "Ada Lovelace",
			"id_doc":    map[string]any{"key": "uploads/user-7/id_doc/a.pdf", "fileName": "a.pdf", "size": float64(1024)},
		},
		Status:      intake.SubmissionStatusPending,
		SubmittedAt: time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC),
	}
}

func TestInsertSubmission(t *testing.T) {
	store, mock := testSubmissionStore(t)
	sub := sampleSubmission()

	dataJSON, err := json.Marshal(sub.Data)
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO form_submissions`).
		WithArgs(sub.ID, sub.FormID, sub.UserID, dataJSON, sub.Status, sub.SubmittedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertSubmission(context.Background(), sub))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertSubmission_SchemaDeletedMidFlight(t *testing.T) {
	store, mock := testSubmissionStore(t)
	sub := sampleSubmission()

	mock.ExpectExec(`INSERT INTO form_submissions`).
		WithArgs(sub.ID, sub.FormID, sub.UserID, pgxmock.AnyArg(), sub.Status, sub.SubmittedAt).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := store.InsertSubmission(context.Background(), sub)
	require.Error(t, err)
	assert.True(t, intake.IsCollaboratorError(err))
	assert.Contains(t, err.Error(), "no longer exists")
}

func TestGetSubmission(t *testing.T) {
	store, mock := testSubmissionStore(t)
	sub := sampleSubmission()
	dataJSON, err := json.Marshal(sub.Data)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM form_submissions WHERE id = \$1`).
		WithArgs(sub.ID).
		WillReturnRows(pgxmock.NewRows(submissionColumnList).
			AddRow(sub.ID, sub.FormID, sub.UserID, dataJSON, sub.Status, sub.SubmittedAt))

	got, err := store.GetSubmission(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
	assert.Equal(t, "Ada Lovelace", got.Data["full_name"])

	// JSONB round-trip: the file value comes back as a generic map.
	fileValue, ok := got.Data["id_doc"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "uploads/user-7/id_doc/a.pdf", fileValue["key"])
}

func TestGetSubmission_NotFound(t *testing.T) {
	store, mock := testSubmissionStore(t)
	id := uuid.MustParse("018f0000-0000-7000-8000-0000000000ff")

	mock.ExpectQuery(`SELECT .+ FROM form_submissions WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetSubmission(context.Background(), id)
	assert.True(t, intake.IsNotFoundError(err))
}

func TestListSubmissions_NewestFirst(t *testing.T) {
	store, mock := testSubmissionStore(t)
	formID := uuid.MustParse("018f0000-0000-7000-8000-000000000001")

	newer := uuid.MustParse("018f0000-0000-7000-8000-000000000021")
	older := uuid.MustParse("018f0000-0000-7000-8000-000000000020")
	dataJSON := []byte(`{}`)
	t1 := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	t0 := t1.Add(-time.Hour)

	mock.ExpectQuery(`SELECT .+ FROM form_submissions WHERE form_id = \$1 ORDER BY submitted_at DESC`).
		WithArgs(formID).
		WillReturnRows(pgxmock.NewRows(submissionColumnList).
			AddRow(newer, formID, (*string)(nil), dataJSON, intake.SubmissionStatusPending, t1).
			AddRow(older, formID, (*string)(nil), dataJSON, intake.SubmissionStatusApproved, t0))

	subs, err := store.ListSubmissions(context.Background(), formID)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, newer, subs[0].ID)
	assert.Equal(t, older, subs[1].ID)
	assert.Nil(t, subs[0].UserID)
}

func TestUpdateSubmissionStatus(t *testing.T) {
	store, mock := testSubmissionStore(t)
	sub := sampleSubmission()
	dataJSON, err := json.Marshal(sub.Data)
	require.NoError(t, err)

	mock.ExpectQuery(`UPDATE form_submissions SET status = \$2 WHERE id = \$1 RETURNING`).
		WithArgs(sub.ID, intake.SubmissionStatusApproved).
		WillReturnRows(pgxmock.NewRows(submissionColumnList).
			AddRow(sub.ID, sub.FormID, sub.UserID, dataJSON, intake.SubmissionStatusApproved, sub.SubmittedAt))

	got, err := store.UpdateSubmissionStatus(context.Background(), sub.ID, intake.SubmissionStatusApproved, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, intake.SubmissionStatusApproved, got.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateSubmissionStatus_RejectsUnknownStatus(t *testing.T) {
	store, mock := testSubmissionStore(t)

	_, err := store.UpdateSubmissionStatus(context.Background(),
		uuid.MustParse("018f0000-0000-7000-8000-000000000010"), "archived", "admin-1")
	require.Error(t, err)
	assert.True(t, intake.IsValidationError(err))
	assert.Contains(t, err.Error(), "archived")

	// No query was issued for the invalid status.
	require.NoError(t, mock.ExpectationsWereMet())
}
