package internal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lychee-technology/intake"
	"go.uber.org/zap"
)

// Stage names one phase of a submission attempt.
type Stage string

const (
	StageCollecting Stage = "collecting"
	StageValidating Stage = "validating"
	StageUploading  Stage = "uploading"
	StagePersisting Stage = "persisting"
	StageComplete   Stage = "complete"
	StageFailed     Stage = "failed"
)

// KeyBuilder derives the storage key for one uploaded file. S3ObjectStorage
// provides this; tests substitute a deterministic one.
type KeyBuilder interface {
	ObjectKey(userID, fieldID, fileName string) string
}

// Pipeline orchestrates one submission attempt:
// collecting -> validating -> uploading -> persisting -> complete, with
// failed reachable from validating, uploading, and persisting. Each run is
// one user action; there is no queue or background worker behind it.
type Pipeline struct {
	schemas     intake.SchemaStore
	submissions intake.SubmissionStore
	storage     intake.ObjectStorage
	keys        KeyBuilder
	notifier    intake.Notifier
	validator   *intake.Validator
	logger      *zap.Logger
	nowFunc     func() time.Time
}

// NewPipeline wires the pipeline's collaborators.
func NewPipeline(
	schemas intake.SchemaStore,
	submissions intake.SubmissionStore,
	storage intake.ObjectStorage,
	keys KeyBuilder,
	notifier intake.Notifier,
	validator *intake.Validator,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		schemas:     schemas,
		submissions: submissions,
		storage:     storage,
		keys:        keys,
		notifier:    notifier,
		validator:   validator,
		logger:      logger,
		nowFunc:     time.Now,
	}
}

// Run executes one submission attempt for the caller's department.
//
// The schema is captured once, up front; a concurrent schema save for the
// same department does not affect this attempt. No storage side effect
// happens before validation passes, uploads proceed sequentially in schema
// field order, and a failed upload or persist leaves no submission record —
// only orphaned objects, which are logged for out-of-band reconciliation.
func (p *Pipeline) Run(ctx context.Context, departmentID string, ident intake.Identity, input intake.RawInput) (*intake.Submission, error) {
	// Collecting: capture the active schema. Absence is a precondition
	// failure, not a validation failure.
	loaded, err := p.schemas.LoadSchema(ctx, departmentID)
	if err != nil {
		if intake.IsNotFoundError(err) {
			EmitSubmissionOutcome(ctx, "no_active_schema")
			return nil, intake.NewNoActiveSchemaError(departmentID)
		}
		return nil, err
	}
	schema := loaded.Clone()

	// Validating: full raw input, file fields judged on their pre-upload
	// metadata. Nothing has touched the network yet.
	started := p.nowFunc()
	fieldErrors := p.validator.ValidateSubmission(schema, input)
	EmitStageLatency(ctx, string(StageValidating), p.nowFunc().Sub(started).Milliseconds())
	if !fieldErrors.Valid() {
		EmitSubmissionOutcome(ctx, "validation_failed")
		return nil, intake.NewSubmissionValidationError(fieldErrors)
	}

	data, err := p.uploadFiles(ctx, schema, ident, input)
	if err != nil {
		EmitSubmissionOutcome(ctx, "upload_failed")
		return nil, err
	}

	sub, err := p.persist(ctx, schema, ident, data)
	if err != nil {
		EmitSubmissionOutcome(ctx, "persist_failed")
		return nil, err
	}

	p.notifier.SubmissionReceived(ctx, schema, sub)
	EmitSubmissionOutcome(ctx, "complete")
	return sub, nil
}

// uploadFiles runs the uploading stage: every file field with a selection is
// stored sequentially, in schema field order, so a partial failure is always
// reported against the first field (in that order) that failed. Values for
// non-file fields pass through untouched; keys absent from the schema are
// dropped here, never persisted.
func (p *Pipeline) uploadFiles(ctx context.Context, schema *intake.FormSchema, ident intake.Identity, input intake.RawInput) (map[string]any, error) {
	started := p.nowFunc()
	data := make(map[string]any, len(schema.Fields))
	uploaded := make([]string, 0)

	for _, field := range schema.Fields {
		value, present := input[field.ID]
		if !present || value == nil {
			continue
		}

		if field.Type != intake.FieldTypeFile {
			data[field.ID] = value
			continue
		}

		upload, ok := value.(*intake.FileUpload)
		if !ok || upload == nil {
			continue
		}

		key := p.keys.ObjectKey(ident.UserID, field.ID, upload.Name)
		stored, err := p.storage.Put(ctx, key, upload.Content, upload.Size, "")
		if err != nil {
			p.logOrphans(schema, field.ID, uploaded)
			return nil, intake.NewUploadFailedError(field.ID, err)
		}
		uploaded = append(uploaded, stored.Key)
		stored.FileName = upload.Name
		data[field.ID] = stored
	}

	EmitStageLatency(ctx, string(StageUploading), p.nowFunc().Sub(started).Milliseconds())
	return data, nil
}

// persist runs the persisting stage: one submission row, status pending,
// data keyed only by field ids present in the captured schema.
func (p *Pipeline) persist(ctx context.Context, schema *intake.FormSchema, ident intake.Identity, data map[string]any) (*intake.Submission, error) {
	started := p.nowFunc()

	sub := &intake.Submission{
		ID:          uuid.Must(uuid.NewV7()),
		FormID:      schema.ID,
		Data:        data,
		Status:      intake.SubmissionStatusPending,
		SubmittedAt: p.nowFunc().UTC(),
	}
	if ident.UserID != "" {
		userID := ident.UserID
		sub.UserID = &userID
	}

	if err := p.submissions.InsertSubmission(ctx, sub); err != nil {
		keys := make([]string, 0, len(data))
		for _, v := range data {
			if stored, ok := v.(intake.StoredObject); ok {
				keys = append(keys, stored.Key)
			}
		}
		p.logOrphans(schema, "", keys)
		return nil, intake.NewPersistFailedError(err)
	}

	EmitStageLatency(ctx, string(StagePersisting), p.nowFunc().Sub(started).Milliseconds())
	return sub, nil
}

// logOrphans records objects uploaded by an attempt that will not produce a
// submission record. Cleanup happens out of band; the log line is the
// reconciliation trail.
func (p *Pipeline) logOrphans(schema *intake.FormSchema, failedField string, keys []string) {
	if len(keys) == 0 {
		return
	}
	p.logger.Warn("submission attempt failed after uploads, objects orphaned",
		zap.String("formId", schema.ID.String()),
		zap.String("failedField", failedField),
		zap.Strings("orphanedKeys", keys),
	)
}
