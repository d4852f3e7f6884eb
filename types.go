package intake

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FieldType enumerates the supported field kinds. The set is closed: schemas
// carrying any other value are rejected by ValidateSchema before persistence.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeEmail    FieldType = "email"
	FieldTypePhone    FieldType = "phone"
	FieldTypeDropdown FieldType = "dropdown"
	FieldTypeFile     FieldType = "file"
)

// Known reports whether t is a member of the closed field-type set.
func (t FieldType) Known() bool {
	switch t {
	case FieldTypeText, FieldTypeEmail, FieldTypePhone, FieldTypeDropdown, FieldTypeFile:
		return true
	}
	return false
}

// Textual reports whether length bounds apply to this field type.
func (t FieldType) Textual() bool {
	return t == FieldTypeText || t == FieldTypeEmail || t == FieldTypePhone
}

// LengthBounds holds optional bounds on a value's textual length.
type LengthBounds struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// FieldDefinition is one configurable input within a form. Payload fields
// beyond the common set apply only to specific types: Options to dropdown,
// Validation to the text-like types, FileTypes/MaxFileSizeMB to file.
// ValidateSchema rejects schemas where a payload is attached to the wrong
// type.
type FieldDefinition struct {
	ID            string        `json:"id"`
	Type          FieldType     `json:"type"`
	Label         string        `json:"label"`
	Required      bool          `json:"required"`
	Placeholder   string        `json:"placeholder,omitempty"`
	Options       []string      `json:"options,omitempty"`
	Validation    *LengthBounds `json:"validation,omitempty"`
	FileTypes     []string      `json:"fileTypes,omitempty"`
	MaxFileSizeMB int           `json:"maxFileSize,omitempty"`
}

// UnmarshalJSON normalizes the wire form: the type discriminator is
// lower-cased and surrounding whitespace on id/label is dropped. Unknown
// types survive decoding so that ValidateSchema can report them alongside
// every other violation in one pass.
func (f *FieldDefinition) UnmarshalJSON(data []byte) error {
	type fieldAlias FieldDefinition

	var alias fieldAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	alias.ID = strings.TrimSpace(alias.ID)
	alias.Type = FieldType(strings.ToLower(strings.TrimSpace(string(alias.Type))))
	alias.Label = strings.TrimSpace(alias.Label)

	*f = FieldDefinition(alias)
	return nil
}

// HasOption reports whether value is a member of the dropdown options.
// Matching is case-sensitive and exact.
func (f *FieldDefinition) HasOption(value string) bool {
	for _, opt := range f.Options {
		if opt == value {
			return true
		}
	}
	return false
}

// EffectiveMaxFileSizeMB returns the field's size cap, falling back to the
// policy default when the schema author left it unset.
func (f *FieldDefinition) EffectiveMaxFileSizeMB(defaultMB int) int {
	if f.MaxFileSizeMB > 0 {
		return f.MaxFileSizeMB
	}
	return defaultMB
}

// Clone returns a deep copy of the field definition.
func (f FieldDefinition) Clone() FieldDefinition {
	out := f
	if f.Options != nil {
		out.Options = append([]string(nil), f.Options...)
	}
	if f.FileTypes != nil {
		out.FileTypes = append([]string(nil), f.FileTypes...)
	}
	if f.Validation != nil {
		bounds := *f.Validation
		out.Validation = &bounds
	}
	return out
}

// FormSchema is an ordered collection of field definitions plus form-level
// metadata, owned by exactly one department. The order of Fields is the only
// ordering authority: it is display and tab order, and it is the order the
// submission pipeline processes fields in.
type FormSchema struct {
	ID           uuid.UUID         `json:"id"`
	DepartmentID string            `json:"departmentId"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Fields       []FieldDefinition `json:"fields"`
	Active       bool              `json:"active"`
	CreatedBy    string            `json:"createdBy,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// FieldByID looks up a field definition by its id.
func (s *FormSchema) FieldByID(id string) (FieldDefinition, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// Clone returns a deep copy. The submission pipeline captures a clone at
// collect time so a concurrent schema save cannot change what a submission
// is validated and persisted against.
func (s *FormSchema) Clone() *FormSchema {
	out := *s
	out.Fields = make([]FieldDefinition, len(s.Fields))
	for i, f := range s.Fields {
		out.Fields[i] = f.Clone()
	}
	return &out
}

// GenerateFieldID derives an id for an editor-created field from its type and
// a counter that is monotonically increasing among same-typed fields already
// in the schema being edited. Authors may override the result before saving;
// ids are never regenerated for fields that already carry one.
func GenerateFieldID(t FieldType, existing []FieldDefinition) string {
	next := 1
	prefix := string(t) + "_"
	for _, f := range existing {
		if !strings.HasPrefix(f.ID, prefix) {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(f.ID[len(prefix):], "%d", &n); err == nil && n >= next {
			next = n + 1
		}
	}
	return fmt.Sprintf("%s%d", prefix, next)
}

// SubmissionStatus tracks the review state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusPending  SubmissionStatus = "pending"
	SubmissionStatusApproved SubmissionStatus = "approved"
	SubmissionStatusRejected SubmissionStatus = "rejected"
)

// Known reports whether s is a valid submission status.
func (s SubmissionStatus) Known() bool {
	switch s {
	case SubmissionStatusPending, SubmissionStatusApproved, SubmissionStatusRejected:
		return true
	}
	return false
}

// Submission is one user's completed answers against a specific form schema
// snapshot. Data keys are field ids that existed in the referenced schema at
// submission time; a submission is never re-bound to a later schema revision.
type Submission struct {
	ID          uuid.UUID        `json:"id"`
	FormID      uuid.UUID        `json:"formId"`
	UserID      *string          `json:"userId,omitempty"`
	Data        map[string]any   `json:"data"`
	Status      SubmissionStatus `json:"status"`
	SubmittedAt time.Time        `json:"submittedAt"`
}

// FileUpload carries a selected-but-not-yet-uploaded file through the
// pipeline: enough metadata for validation (name, size, extension) plus the
// content reader consumed during the upload stage.
type FileUpload struct {
	Name    string
	Size    int64
	Content io.Reader
}

// Extension returns the file extension without the leading dot, lower-cased.
func (u *FileUpload) Extension() string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(u.Name), "."))
}

// StoredObject references an uploaded file in object storage. It is what a
// file field's value looks like inside persisted submission data.
type StoredObject struct {
	Key      string `json:"key"`
	FileName string `json:"fileName"`
	Size     int64  `json:"size"`
}

// RawInput maps field ids to raw submitted values. Text-like and dropdown
// fields carry strings; file fields carry *FileUpload (nil or absent when the
// submitter selected nothing).
type RawInput map[string]any

// Role identifies the caller's access level as supplied by the identity
// collaborator. This core trusts it and does not re-validate.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Identity is the current caller as reported by the session provider.
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}
