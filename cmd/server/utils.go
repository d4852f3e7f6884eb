package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/lychee-technology/intake"
)

// maxMultipartMemory bounds the in-memory portion of a multipart parse;
// larger file parts spill to temp files.
const maxMultipartMemory = 8 << 20

// APIResponse is the standard response envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Fields  any    `json:"fields,omitempty"`
}

// splitAPIPath strips the /api/v1/ prefix and returns the remaining segments.
func splitAPIPath(path string) []string {
	path = strings.TrimPrefix(path, "/api/v1/")
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// identityFromRequest reads the caller identity set by the fronting gateway.
// Absent headers mean an anonymous employee; role checks happen per handler.
func identityFromRequest(r *http.Request) intake.Identity {
	role := intake.Role(strings.ToLower(r.Header.Get("X-User-Role")))
	if role != intake.RoleAdmin {
		role = intake.RoleEmployee
	}
	return intake.Identity{
		UserID: r.Header.Get("X-User-Id"),
		Role:   role,
	}
}

// collectSubmissionInput flattens a parsed multipart form into the raw input
// the pipeline expects: text parts as strings, file parts as FileUpload
// metadata with the content stream left unread.
func collectSubmissionInput(form *multipart.Form) intake.RawInput {
	input := intake.RawInput{}
	for key, values := range form.Value {
		if len(values) > 0 {
			input[key] = values[0]
		}
	}
	for key, headers := range form.File {
		if len(headers) == 0 {
			continue
		}
		header := headers[0]
		file, err := header.Open()
		if err != nil {
			continue
		}
		input[key] = &intake.FileUpload{
			Name:    header.Filename,
			Size:    header.Size,
			Content: file,
		}
	}
	return input
}

// writeJSON writes a JSON response to http.ResponseWriter.
func writeJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a success envelope.
func writeSuccess(w http.ResponseWriter, statusCode int, data any) error {
	return writeJSON(w, statusCode, APIResponse{Success: true, Data: data})
}

// writeError writes an error envelope with a plain message.
func writeError(w http.ResponseWriter, statusCode int, message string) error {
	return writeJSON(w, statusCode, APIResponse{Success: false, Error: message})
}

// writeDomainError maps a typed error to an HTTP status and envelope.
func writeDomainError(w http.ResponseWriter, err error) error {
	resp := APIResponse{Success: false, Error: err.Error()}
	status := http.StatusInternalServerError

	var violations *intake.SchemaViolations
	var ie *intake.IntakeError
	switch {
	case errors.As(err, &violations):
		status = http.StatusBadRequest
		resp.Code = intake.ErrCodeSchemaInvalid
		resp.Fields = violations.Messages()
	case errors.As(err, &ie):
		resp.Code = ie.Code
		if len(ie.FieldErrors) > 0 {
			resp.Fields = ie.FieldErrors
		}
		switch {
		case intake.IsNotFoundError(err):
			status = http.StatusNotFound
		case intake.IsValidationError(err):
			status = http.StatusUnprocessableEntity
		case intake.IsPreconditionError(err):
			status = http.StatusConflict
		case intake.IsIntegrityError(err):
			status = http.StatusConflict
		case intake.IsCollaboratorError(err):
			status = http.StatusBadGateway
		}
	}
	return writeJSON(w, status, resp)
}

// parseUUID parses a UUID path segment.
func parseUUID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return id, nil
}
