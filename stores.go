package intake

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// SchemaStore is the persistence boundary for form schemas.
//
// LoadSchema returns a not-found IntakeError (IsNotFoundError) when the
// department has no configured form; connectivity and query failures surface
// as collaborator errors. The two are never conflated.
type SchemaStore interface {
	// LoadSchema returns the department's current active form schema.
	LoadSchema(ctx context.Context, departmentID string) (*FormSchema, error)
	// LoadSchemaByID returns a schema by primary key.
	LoadSchemaByID(ctx context.Context, id uuid.UUID) (*FormSchema, error)
	// SaveSchema validates then upserts keyed by (departmentId, name),
	// preserving the stored id on replace so submissions stay linked.
	// Nothing is persisted when validation fails.
	SaveSchema(ctx context.Context, schema *FormSchema) (*FormSchema, error)
	// DeleteSchema removes a schema; submissions follow via cascade at the
	// storage layer. In-flight submissions against it will fail to persist.
	DeleteSchema(ctx context.Context, id uuid.UUID) error
}

// SubmissionStore persists completed submissions and their review state.
type SubmissionStore interface {
	InsertSubmission(ctx context.Context, sub *Submission) error
	GetSubmission(ctx context.Context, id uuid.UUID) (*Submission, error)
	// ListSubmissions returns a form's submissions, newest first.
	ListSubmissions(ctx context.Context, formID uuid.UUID) ([]*Submission, error)
	// UpdateSubmissionStatus is the admin-review mutation; no other part of
	// the system modifies a persisted submission.
	UpdateSubmissionStatus(ctx context.Context, id uuid.UUID, status SubmissionStatus, reviewer string) (*Submission, error)
}

// ObjectStorage is the external blob-store collaborator. Keys are namespaced
// by user and field so the store's own access policy can be enforced without
// re-specifying it here.
type ObjectStorage interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (StoredObject, error)
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Notifier receives a fire-and-forget signal when a submission completes.
// Failures are logged by implementations and never fail the pipeline.
type Notifier interface {
	SubmissionReceived(ctx context.Context, schema *FormSchema, sub *Submission)
}
