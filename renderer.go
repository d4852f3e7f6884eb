package intake

import "github.com/google/uuid"

// ControlKind names the interactive control a consumer should render for a
// field. The concrete UI is out of scope; these mirror HTML input semantics.
type ControlKind string

const (
	ControlText   ControlKind = "text"
	ControlEmail  ControlKind = "email"
	ControlTel    ControlKind = "tel"
	ControlSelect ControlKind = "select"
	ControlFile   ControlKind = "file"
)

// InputContract describes one interactive input derived from a field
// definition: everything a renderer needs, nothing it should re-derive from
// the schema.
type InputContract struct {
	FieldID      string      `json:"fieldId"`
	Control      ControlKind `json:"control"`
	Label        string      `json:"label"`
	Placeholder  string      `json:"placeholder,omitempty"`
	Required     bool        `json:"required"`
	Options      []string    `json:"options,omitempty"`
	MinLength    *int        `json:"minLength,omitempty"`
	MaxLength    *int        `json:"maxLength,omitempty"`
	Accept       []string    `json:"accept,omitempty"`
	MaxFileBytes int64       `json:"maxFileBytes,omitempty"`
	TabIndex     int         `json:"tabIndex"`
}

// RenderPlan is the consumer-facing rendering contract for one form schema.
// Inputs appear in schema field order, which is both display and tab order.
type RenderPlan struct {
	FormID      uuid.UUID       `json:"formId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Inputs      []InputContract `json:"inputs"`
}

// BuildRenderPlan turns a form schema into input contracts. Pure: the schema
// is an explicit parameter, never ambient state, and the plan is independent
// of later schema edits.
func BuildRenderPlan(schema *FormSchema, policy UploadPolicy) *RenderPlan {
	plan := &RenderPlan{
		FormID:      schema.ID,
		Name:        schema.Name,
		Description: schema.Description,
		Inputs:      make([]InputContract, 0, len(schema.Fields)),
	}

	for i, field := range schema.Fields {
		contract := InputContract{
			FieldID:     field.ID,
			Control:     controlFor(field.Type),
			Label:       field.Label,
			Placeholder: field.Placeholder,
			Required:    field.Required,
			TabIndex:    i + 1,
		}

		switch field.Type {
		case FieldTypeDropdown:
			contract.Options = append([]string(nil), field.Options...)
		case FieldTypeFile:
			contract.Accept = append([]string(nil), field.FileTypes...)
			contract.MaxFileBytes = int64(field.EffectiveMaxFileSizeMB(policy.DefaultMaxFileSizeMB)) * 1048576
		}
		if field.Type.Textual() && field.Validation != nil {
			contract.MinLength = field.Validation.Min
			contract.MaxLength = field.Validation.Max
		}

		plan.Inputs = append(plan.Inputs, contract)
	}

	return plan
}

func controlFor(t FieldType) ControlKind {
	switch t {
	case FieldTypeEmail:
		return ControlEmail
	case FieldTypePhone:
		return ControlTel
	case FieldTypeDropdown:
		return ControlSelect
	case FieldTypeFile:
		return ControlFile
	default:
		return ControlText
	}
}
