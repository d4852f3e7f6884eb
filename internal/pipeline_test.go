package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lychee-technology/intake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeSchemaStore struct {
	schema *intake.FormSchema
	err    error
}

func (f *fakeSchemaStore) LoadSchema(ctx context.Context, departmentID string) (*intake.FormSchema, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.schema, nil
}

func (f *fakeSchemaStore) LoadSchemaByID(ctx context.Context, id uuid.UUID) (*intake.FormSchema, error) {
	return f.schema, f.err
}

func (f *fakeSchemaStore) SaveSchema(ctx context.Context, schema *intake.FormSchema) (*intake.FormSchema, error) {
	return schema, nil
}

func (f *fakeSchemaStore) DeleteSchema(ctx context.Context, id uuid.UUID) error { return nil }

type fakeSubmissionStore struct {
	inserted  []*intake.Submission
	insertErr error
}

func (f *fakeSubmissionStore) InsertSubmission(ctx context.Context, sub *intake.Submission) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, sub)
	return nil
}

func (f *fakeSubmissionStore) GetSubmission(ctx context.Context, id uuid.UUID) (*intake.Submission, error) {
	return nil, intake.NewSubmissionNotFoundError(id.String())
}

func (f *fakeSubmissionStore) ListSubmissions(ctx context.Context, formID uuid.UUID) ([]*intake.Submission, error) {
	return f.inserted, nil
}

func (f *fakeSubmissionStore) UpdateSubmissionStatus(ctx context.Context, id uuid.UUID, status intake.SubmissionStatus, reviewer string) (*intake.Submission, error) {
	return nil, nil
}

type fakeObjectStorage struct {
	puts      []string // keys in Put order
	failOnKey string
}

func (f *fakeObjectStorage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (intake.StoredObject, error) {
	if f.failOnKey != "" && strings.Contains(key, f.failOnKey) {
		return intake.StoredObject{}, errors.New("s3 unavailable")
	}
	if body != nil {
		io.Copy(io.Discard, body)
	}
	f.puts = append(f.puts, key)
	return intake.StoredObject{Key: key, Size: size}, nil
}

func (f *fakeObjectStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://signed.example.com/" + key, nil
}

type fakeKeys struct{}

func (fakeKeys) ObjectKey(userID, fieldID, fileName string) string {
	return fmt.Sprintf("uploads/%s/%s/%s", userID, fieldID, fileName)
}

type fakeNotifier struct {
	received []*intake.Submission
}

func (f *fakeNotifier) SubmissionReceived(ctx context.Context, schema *intake.FormSchema, sub *intake.Submission) {
	f.received = append(f.received, sub)
}

// =============================================================================
// Fixtures
// =============================================================================

func pipelineSchema() *intake.FormSchema {
	return &intake.FormSchema{
		ID:           uuid.MustParse("018f0000-0000-7000-8000-000000000001"),
		DepartmentID: "engineering",
		Name:         "Engineering Onboarding",
		Active:       true,
		Fields: []intake.FieldDefinition{
			{ID: "full_name", Type: intake.FieldTypeText, Label: "Full Name", Required: true},
			{ID: "work_email", Type: intake.FieldTypeEmail, Label: "Work Email", Required: true},
			{ID: "id_doc", Type: intake.FieldTypeFile, Label: "ID Document", Required: true,
				FileTypes: []string{"pdf"}, MaxFileSizeMB: 5},
			{ID: "contract", Type: intake.FieldTypeFile, Label: "Signed Contract",
				FileTypes: []string{"pdf"}},
		},
	}
}

type pipelineHarness struct {
	pipeline    *Pipeline
	schemas     *fakeSchemaStore
	submissions *fakeSubmissionStore
	storage     *fakeObjectStorage
	notifier    *fakeNotifier
}

func newPipelineHarness() *pipelineHarness {
	h := &pipelineHarness{
		schemas:     &fakeSchemaStore{schema: pipelineSchema()},
		submissions: &fakeSubmissionStore{},
		storage:     &fakeObjectStorage{},
		notifier:    &fakeNotifier{},
	}
	h.pipeline = NewPipeline(
		h.schemas,
		h.submissions,
		h.storage,
		fakeKeys{},
		h.notifier,
		intake.NewValidator(intake.DefaultConfig().Uploads),
		zap.NewNop(),
	)
	return h
}

func validInput() intake.RawInput {
	return intake.RawInput{
		"full_name":  "Ada Lovelace",
		"work_email": "ada@example.com",
		"id_doc":     &intake.FileUpload{Name: "passport.pdf", Size: 1024, Content: strings.NewReader("pdf")},
	}
}

var testIdentity = intake.Identity{UserID: "user-7", Role: intake.RoleEmployee}

// =============================================================================
// Tests
// =============================================================================

func TestPipeline_Complete(t *testing.T) {
	h := newPipelineHarness()

	sub, err := h.pipeline.Run(context.Background(), "engineering", testIdentity, validInput())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, sub.ID)
	assert.Equal(t, h.schemas.schema.ID, sub.FormID)
	assert.Equal(t, intake.SubmissionStatusPending, sub.Status)
	require.NotNil(t, sub.UserID)
	assert.Equal(t, "user-7", *sub.UserID)
	assert.False(t, sub.SubmittedAt.IsZero())

	// File value was replaced with the stored-object reference, original name kept.
	stored, ok := sub.Data["id_doc"].(intake.StoredObject)
	require.True(t, ok)
	assert.Equal(t, "uploads/user-7/id_doc/passport.pdf", stored.Key)
	assert.Equal(t, "passport.pdf", stored.FileName)

	require.Len(t, h.submissions.inserted, 1)
	require.Len(t, h.notifier.received, 1)
	assert.Equal(t, sub.ID, h.notifier.received[0].ID)
}

func TestPipeline_NoActiveSchema(t *testing.T) {
	h := newPipelineHarness()
	h.schemas.err = intake.NewSchemaNotFoundError("engineering")

	_, err := h.pipeline.Run(context.Background(), "engineering", testIdentity, validInput())
	require.Error(t, err)
	assert.True(t, intake.IsPreconditionError(err))
	assert.Contains(t, err.Error(), "no active form")
}

func TestPipeline_SchemaStoreFailurePassesThrough(t *testing.T) {
	h := newPipelineHarness()
	h.schemas.err = intake.NewStorageError("load schema", errors.New("connection refused"))

	_, err := h.pipeline.Run(context.Background(), "engineering", testIdentity, validInput())
	assert.True(t, intake.IsCollaboratorError(err))
	assert.False(t, intake.IsPreconditionError(err))
}

func TestPipeline_ValidationHaltsBeforeAnySideEffect(t *testing.T) {
	h := newPipelineHarness()

	// Required text missing AND file over its cap: both reported, nothing
	// uploaded, nothing persisted.
	input := intake.RawInput{
		"work_email": "not-an-email",
		"id_doc":     &intake.FileUpload{Name: "huge.pdf", Size: 6 << 20},
	}

	_, err := h.pipeline.Run(context.Background(), "engineering", testIdentity, input)
	require.Error(t, err)
	assert.True(t, intake.IsValidationError(err))

	var ie *intake.IntakeError
	require.ErrorAs(t, err, &ie)
	assert.Len(t, ie.FieldErrors, 3)
	assert.Equal(t, "Full Name is required", ie.FieldErrors["full_name"])
	assert.Equal(t, "Work Email must be a valid email address", ie.FieldErrors["work_email"])
	assert.Equal(t, "File size must be less than 5MB", ie.FieldErrors["id_doc"])

	assert.Empty(t, h.storage.puts)
	assert.Empty(t, h.submissions.inserted)
	assert.Empty(t, h.notifier.received)
}

func TestPipeline_UploadsSequentialInFieldOrder(t *testing.T) {
	h := newPipelineHarness()

	input := validInput()
	input["contract"] = &intake.FileUpload{Name: "contract.pdf", Size: 2048, Content: strings.NewReader("pdf")}

	_, err := h.pipeline.Run(context.Background(), "engineering", testIdentity, input)
	require.NoError(t, err)

	require.Len(t, h.storage.puts, 2)
	assert.Equal(t, "uploads/user-7/id_doc/passport.pdf", h.storage.puts[0])
	assert.Equal(t, "uploads/user-7/contract/contract.pdf", h.storage.puts[1])
}

func TestPipeline_UploadFailureSkipsPersist(t *testing.T) {
	h := newPipelineHarness()
	h.storage.failOnKey = "contract"

	input := validInput()
	input["contract"] = &intake.FileUpload{Name: "contract.pdf", Size: 2048, Content: strings.NewReader("pdf")}

	_, err := h.pipeline.Run(context.Background(), "engineering", testIdentity, input)
	require.Error(t, err)

	var ie *intake.IntakeError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, intake.ErrCodeUploadFailed, ie.Code)
	assert.Equal(t, "contract", ie.Field)
	assert.Equal(t, "uploading", ie.Phase)

	// The first upload happened before the failure; no submission row exists.
	assert.Equal(t, []string{"uploads/user-7/id_doc/passport.pdf"}, h.storage.puts)
	assert.Empty(t, h.submissions.inserted)
	assert.Empty(t, h.notifier.received)
}

func TestPipeline_PersistFailureReported(t *testing.T) {
	h := newPipelineHarness()
	h.submissions.insertErr = intake.NewStorageError("insert submission", errors.New("down"))

	_, err := h.pipeline.Run(context.Background(), "engineering", testIdentity, validInput())
	require.Error(t, err)

	var ie *intake.IntakeError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, intake.ErrCodePersistFailed, ie.Code)
	assert.Equal(t, "persisting", ie.Phase)
	assert.Empty(t, h.notifier.received)
}

func TestPipeline_DropsKeysNotInSchema(t *testing.T) {
	h := newPipelineHarness()

	input := validInput()
	input["injected"] = "should not persist"

	sub, err := h.pipeline.Run(context.Background(), "engineering", testIdentity, input)
	require.NoError(t, err)
	assert.NotContains(t, sub.Data, "injected")
}

func TestPipeline_AnonymousSubmitterHasNilUserID(t *testing.T) {
	h := newPipelineHarness()

	sub, err := h.pipeline.Run(context.Background(), "engineering",
		intake.Identity{Role: intake.RoleEmployee}, validInput())
	require.NoError(t, err)
	assert.Nil(t, sub.UserID)
}

func TestPipeline_CapturedSchemaImmuneToConcurrentEdit(t *testing.T) {
	h := newPipelineHarness()

	sub, err := h.pipeline.Run(context.Background(), "engineering", testIdentity, validInput())
	require.NoError(t, err)

	// Editing the store's schema after the run must not affect the persisted
	// submission's captured snapshot.
	h.schemas.schema.Fields = nil
	assert.Contains(t, sub.Data, "full_name")
	assert.Equal(t, 3, len(sub.Data))
}
