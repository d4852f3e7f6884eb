package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/lychee-technology/intake"
)

// handleHealth handles GET /healthz. The plain endpoint is a liveness probe;
// ?deep=1 additionally pings Postgres and the object store.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil || r.URL.Query().Get("deep") == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	checks, healthy := s.health.Check(r.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"status": statusWord(healthy), "checks": checks})
}

func statusWord(healthy bool) string {
	if healthy {
		return "ok"
	}
	return "degraded"
}

// departmentsHandler dispatches /api/v1/departments/{id}/schema[...].
func (s *Server) departmentsHandler(w http.ResponseWriter, r *http.Request) {
	segments := splitAPIPath(r.URL.Path)
	if len(segments) < 3 || segments[0] != "departments" || segments[2] != "schema" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	departmentID := segments[1]

	switch {
	case len(segments) == 3 && r.Method == http.MethodGet:
		s.handleGetSchema(w, r, departmentID)
	case len(segments) == 3 && r.Method == http.MethodPut:
		s.handlePutSchema(w, r, departmentID)
	case len(segments) == 4 && segments[3] == "render" && r.Method == http.MethodGet:
		s.handleRenderPlan(w, r, departmentID)
	case len(segments) == 4 && segments[3] == "jsonschema" && r.Method == http.MethodGet:
		s.handleExportJSONSchema(w, r, departmentID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleGetSchema handles GET /api/v1/departments/{id}/schema.
func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request, departmentID string) {
	schema, err := s.schemas.LoadSchema(r.Context(), departmentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, schema)
}

// handlePutSchema handles PUT /api/v1/departments/{id}/schema. Admin only.
// The body carries the full schema; the department comes from the path.
func (s *Server) handlePutSchema(w http.ResponseWriter, r *http.Request, departmentID string) {
	ident := identityFromRequest(r)
	if ident.Role != intake.RoleAdmin {
		writeError(w, http.StatusForbidden, "schema management requires the admin role")
		return
	}

	var schema intake.FormSchema
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&schema); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}
	schema.DepartmentID = departmentID
	if schema.CreatedBy == "" {
		schema.CreatedBy = ident.UserID
	}

	saved, err := s.schemas.SaveSchema(r.Context(), &schema)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, saved)
}

// handleRenderPlan handles GET /api/v1/departments/{id}/schema/render: the
// resolved input contract a frontend renders from.
func (s *Server) handleRenderPlan(w http.ResponseWriter, r *http.Request, departmentID string) {
	schema, err := s.schemas.LoadSchema(r.Context(), departmentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, intake.BuildRenderPlan(schema, s.policy))
}

// handleExportJSONSchema handles GET /api/v1/departments/{id}/schema/jsonschema.
func (s *Server) handleExportJSONSchema(w http.ResponseWriter, r *http.Request, departmentID string) {
	schema, err := s.schemas.LoadSchema(r.Context(), departmentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	exported, err := intake.ExportJSONSchema(schema)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, exported)
}

// formsHandler dispatches /api/v1/forms/{id}/submissions and /stats.
func (s *Server) formsHandler(w http.ResponseWriter, r *http.Request) {
	segments := splitAPIPath(r.URL.Path)
	if len(segments) != 3 || segments[0] != "forms" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch {
	case segments[2] == "submissions" && r.Method == http.MethodPost:
		s.handleSubmit(w, r, segments[1])
	case segments[2] == "submissions" && r.Method == http.MethodGet:
		s.handleListSubmissions(w, r, segments[1])
	case segments[2] == "stats" && r.Method == http.MethodGet:
		s.handleStats(w, r, segments[1])
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSubmit handles POST /api/v1/forms/{id}/submissions (multipart). The
// form id resolves to its department; the pipeline runs against whatever
// schema is active for that department when the attempt starts.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, formIDStr string) {
	formID, err := parseUUID(formIDStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	schema, err := s.schemas.LoadSchemaByID(r.Context(), formID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	input := collectSubmissionInput(r.MultipartForm)
	ident := identityFromRequest(r)

	sub, err := s.pipeline.Run(r.Context(), schema.DepartmentID, ident, input)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusCreated, sub)
}

// handleListSubmissions handles GET /api/v1/forms/{id}/submissions. Admin only.
func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request, formIDStr string) {
	if identityFromRequest(r).Role != intake.RoleAdmin {
		writeError(w, http.StatusForbidden, "submission review requires the admin role")
		return
	}

	formID, err := parseUUID(formIDStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	subs, err := s.submissions.ListSubmissions(r.Context(), formID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, subs)
}

// handleStats handles GET /api/v1/forms/{id}/stats. Admin only; 404 when
// reporting is not enabled.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, formIDStr string) {
	if identityFromRequest(r).Role != intake.RoleAdmin {
		writeError(w, http.StatusForbidden, "reporting requires the admin role")
		return
	}
	if s.reporting == nil {
		writeError(w, http.StatusNotFound, "reporting is not enabled")
		return
	}

	formID, err := parseUUID(formIDStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := s.reporting.SubmissionStats(r.Context(), formID.String())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(w, http.StatusOK, stats)
}

// submissionsHandler dispatches /api/v1/submissions/{id}[...]. The whole
// subtree is the admin review surface.
func (s *Server) submissionsHandler(w http.ResponseWriter, r *http.Request) {
	segments := splitAPIPath(r.URL.Path)
	if len(segments) < 2 || segments[0] != "submissions" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if identityFromRequest(r).Role != intake.RoleAdmin {
		writeError(w, http.StatusForbidden, "submission review requires the admin role")
		return
	}

	id, err := parseUUID(segments[1])
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	switch {
	case len(segments) == 2 && r.Method == http.MethodGet:
		sub, err := s.submissions.GetSubmission(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeSuccess(w, http.StatusOK, sub)
	case len(segments) == 3 && segments[2] == "status" && r.Method == http.MethodPatch:
		s.handleUpdateStatus(w, r, id)
	case len(segments) == 4 && segments[2] == "files" && r.Method == http.MethodGet:
		s.handleFileRedirect(w, r, id, segments[3])
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// statusUpdateRequest is the PATCH /submissions/{id}/status body.
type statusUpdateRequest struct {
	Status   string `json:"status"`
	Reviewer string `json:"reviewer"`
}

// handleUpdateStatus handles PATCH /api/v1/submissions/{id}/status.
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	var req statusUpdateRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid json body: %v", err))
		return
	}
	reviewer := req.Reviewer
	if reviewer == "" {
		reviewer = identityFromRequest(r).UserID
	}

	sub, err := s.submissions.UpdateSubmissionStatus(r.Context(), id, intake.SubmissionStatus(req.Status), reviewer)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, sub)
}

// handleFileRedirect handles GET /api/v1/submissions/{id}/files/{field}:
// resolves the stored object behind a file field and redirects the reviewer
// to a short-lived signed URL.
func (s *Server) handleFileRedirect(w http.ResponseWriter, r *http.Request, id uuid.UUID, fieldID string) {
	sub, err := s.submissions.GetSubmission(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	key := storedObjectKey(sub.Data[fieldID])
	if key == "" {
		writeError(w, http.StatusNotFound, fmt.Sprintf("submission has no file for field '%s'", fieldID))
		return
	}

	url, err := s.storage.SignedURL(r.Context(), key, s.presignTTL)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// storedObjectKey extracts the object key from a persisted file-field value.
// Data round-trips through JSONB, so the value is a generic map by the time
// it is read back.
func storedObjectKey(value any) string {
	switch v := value.(type) {
	case intake.StoredObject:
		return v.Key
	case map[string]any:
		if key, ok := v["key"].(string); ok {
			return key
		}
	}
	return ""
}
