package intake

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^[0-9+\-() ]+$`)
)

// FieldErrors maps field id to the single error message recorded for that
// field (first detected in rule order). Empty means the submission passed.
type FieldErrors map[string]string

// Valid reports whether no field errors were recorded.
func (f FieldErrors) Valid() bool {
	return len(f) == 0
}

// Validator performs schema-level and submission-level validation. Both
// checks are pure: no I/O, no clock, no ambient state beyond the upload
// policy it was constructed with.
type Validator struct {
	policy UploadPolicy
}

// NewValidator creates a Validator with the given upload policy.
func NewValidator(policy UploadPolicy) *Validator {
	return &Validator{policy: policy}
}

// ValidateSchema checks a form schema for internal consistency before it is
// persisted. All violations are accumulated; the caller presents the complete
// list to the form author in one pass.
func (v *Validator) ValidateSchema(schema *FormSchema) *SchemaViolations {
	violations := NewSchemaViolations()

	if len(strings.TrimSpace(schema.Name)) < 3 {
		violations.Add(ErrCodeSchemaInvalid, "name", "form name must be at least 3 characters")
	}
	if len(schema.Fields) == 0 {
		violations.Add(ErrCodeSchemaInvalid, "fields", "form must have at least one field")
	}

	seen := make(map[string]bool, len(schema.Fields))
	for i, field := range schema.Fields {
		ref := field.ID
		if ref == "" {
			ref = fmt.Sprintf("fields[%d]", i)
		}

		if field.ID == "" {
			violations.Add(ErrCodeSchemaInvalid, ref, fmt.Sprintf("field %d is missing an id", i))
		} else if seen[field.ID] {
			violations.Add(ErrCodeDuplicateFieldID, ref, fmt.Sprintf("duplicate field id '%s'", field.ID))
		}
		seen[field.ID] = true

		if field.Label == "" {
			violations.Add(ErrCodeSchemaInvalid, ref, fmt.Sprintf("field '%s' is missing a label", ref))
		}

		if field.Type == "" {
			violations.Add(ErrCodeSchemaInvalid, ref, fmt.Sprintf("field '%s' is missing a type", ref))
			continue
		}
		if !field.Type.Known() {
			violations.Add(ErrCodeUnknownFieldType, ref, fmt.Sprintf("field '%s' has unknown type '%s'", ref, field.Type))
			continue
		}

		v.checkFieldPayload(violations, ref, field)
	}

	return violations
}

// checkFieldPayload enforces that per-type payloads are attached to the right
// field type. A dropdown with no options cannot be meaningfully validated at
// submission time, so it is a construction error rather than "no options yet".
func (v *Validator) checkFieldPayload(violations *SchemaViolations, ref string, field FieldDefinition) {
	switch field.Type {
	case FieldTypeDropdown:
		if len(field.Options) == 0 {
			violations.Add(ErrCodeSchemaInvalid, ref, fmt.Sprintf("dropdown field '%s' must have at least one option", ref))
		}
	default:
		if len(field.Options) > 0 {
			violations.Add(ErrCodeSchemaInvalid, ref, fmt.Sprintf("field '%s' of type %s cannot carry options", ref, field.Type))
		}
	}

	if field.Type == FieldTypeFile {
		if field.Validation != nil {
			violations.Add(ErrCodeSchemaInvalid, ref, fmt.Sprintf("file field '%s' cannot carry length bounds", ref))
		}
		if field.MaxFileSizeMB < 0 {
			violations.Add(ErrCodeSchemaInvalid, ref, fmt.Sprintf("file field '%s' has a negative size limit", ref))
		}
	} else {
		if len(field.FileTypes) > 0 || field.MaxFileSizeMB != 0 {
			violations.Add(ErrCodeSchemaInvalid, ref, fmt.Sprintf("field '%s' of type %s cannot carry file constraints", ref, field.Type))
		}
	}

	if field.Validation != nil && field.Validation.Min != nil && field.Validation.Max != nil &&
		*field.Validation.Min > *field.Validation.Max {
		violations.Add(ErrCodeSchemaInvalid, ref, fmt.Sprintf("field '%s' has min length greater than max length", ref))
	}
}

// ValidateSubmission checks one raw-input mapping against one form schema.
// Fields are processed in schema order and every field is checked regardless
// of earlier failures; at most one message is recorded per field.
func (v *Validator) ValidateSubmission(schema *FormSchema, input RawInput) FieldErrors {
	errs := make(FieldErrors)

	for _, field := range schema.Fields {
		if msg := v.checkFieldValue(field, input[field.ID]); msg != "" {
			errs[field.ID] = msg
		}
	}

	return errs
}

func (v *Validator) checkFieldValue(field FieldDefinition, value any) string {
	if field.Type == FieldTypeFile {
		return v.checkFileValue(field, value)
	}

	text := textValue(value)
	if strings.TrimSpace(text) == "" {
		if field.Required {
			return fmt.Sprintf("%s is required", field.Label)
		}
		return ""
	}

	switch field.Type {
	case FieldTypeEmail:
		if !emailPattern.MatchString(text) {
			return fmt.Sprintf("%s must be a valid email address", field.Label)
		}
	case FieldTypePhone:
		if !phonePattern.MatchString(text) {
			return fmt.Sprintf("%s may only contain digits, spaces, and + - ( )", field.Label)
		}
	case FieldTypeDropdown:
		if !field.HasOption(text) {
			return fmt.Sprintf("%s must be one of the allowed options", field.Label)
		}
	}

	if field.Type.Textual() && field.Validation != nil {
		length := len(text)
		if field.Validation.Min != nil && length < *field.Validation.Min {
			return fmt.Sprintf("%s must be at least %d characters", field.Label, *field.Validation.Min)
		}
		if field.Validation.Max != nil && length > *field.Validation.Max {
			return fmt.Sprintf("%s must be at most %d characters", field.Label, *field.Validation.Max)
		}
	}

	return ""
}

// checkFileValue validates the pre-upload metadata of a selected file. An
// optional file field with nothing selected is valid; a required one is the
// generic required-field error.
func (v *Validator) checkFileValue(field FieldDefinition, value any) string {
	upload, ok := value.(*FileUpload)
	if !ok || upload == nil {
		if field.Required {
			return fmt.Sprintf("%s is required", field.Label)
		}
		return ""
	}

	if len(field.FileTypes) > 0 && !v.policy.ExtensionAllowed(field.FileTypes, upload.Extension()) {
		return fmt.Sprintf("File type must be one of: %s", strings.Join(field.FileTypes, ", "))
	}

	maxMB := field.EffectiveMaxFileSizeMB(v.policy.DefaultMaxFileSizeMB)
	if maxMB > 0 && upload.Size > int64(maxMB)*1048576 {
		return fmt.Sprintf("File size must be less than %dMB", maxMB)
	}

	return ""
}

// textValue extracts the textual form of a submitted value. Non-string
// scalars (numbers from decoded JSON) are rendered with fmt; nil is empty.
func textValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case *FileUpload:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}
