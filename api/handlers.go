/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Requests:
    POST   /api/requests                   Submit a leave request
    GET    /api/requests                   List requests (filterable)
    GET    /api/requests/{id}              Get one request
    GET    /api/requests/{id}/audit        Audit trail for a request
    POST   /api/requests/{id}/approve      Approve a pending request
    POST   /api/requests/{id}/deny         Deny a pending request
    POST   /api/requests/{id}/cancel       Cancel a pending/approved request

  Employees:
    GET    /api/employees                  List employees
    POST   /api/employees                  Create/update employee
    GET    /api/employees/{id}/balance     Derived balance snapshot
    GET    /api/employees/{id}/requests    Requests owned by employee

  Holidays:
    GET    /api/holidays                   List holidays
    POST   /api/holidays                   Register a holiday
    DELETE /api/holidays/{id}              Remove a holiday

  Conflicts:
    GET    /api/locations/{id}/conflicts   Concurrent-leave report for a window

ERROR HANDLING:
  Domain errors map to HTTP status by kind:
  - 400: Validation (bad range, notice, empty range, balance, bad input)
  - 403: Authorization denied
  - 404: Not found
  - 409: Conflict (overlapping request, invalid transition)
  - 500: Everything else

SECURITY NOTE:
  Actor identity comes from the request body, not from authentication.
  Put this behind a gateway that establishes identity before exposing it.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - leave/service.go: The lifecycle manager these handlers delegate to
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service  *leave.Service
	Advisor  *leave.Advisor
	Holidays leave.HolidayStore
	Audit    leave.AuditLog
	Store    *sqlite.Store // directory admin endpoints; nil when not SQLite-backed
}

// NewHandler creates a new handler around the lifecycle manager.
func NewHandler(service *leave.Service, advisor *leave.Advisor, store *sqlite.Store) *Handler {
	return &Handler{
		Service:  service,
		Advisor:  advisor,
		Holidays: service.Holidays,
		Audit:    service.Audit,
		Store:    store,
	}
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitRequest creates a new PENDING leave request.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	var body CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := leave.ParseDate(body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := leave.ParseDate(body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}

	req, err := h.Service.CreateRequest(r.Context(), leave.CreateInput{
		EmployeeID: leave.EmployeeID(employeeID),
		StartDate:  start,
		EndDate:    end,
		Type:       leave.LeaveType(body.Type),
		Reason:     body.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

// GetRequest returns a single request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	req, err := h.Service.GetRequest(r.Context(), leave.RequestID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// ListRequests returns requests, optionally filtered by employee_id and
// status query parameters.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	var filter leave.Filter

	if v := r.URL.Query().Get("employee_id"); v != "" {
		id := leave.EmployeeID(v)
		filter.EmployeeID = &id
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := leave.Status(v)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, "Invalid status filter", nil)
			return
		}
		filter.Status = &status
	}

	requests, err := h.Service.ListRequests(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// ListEmployeeRequests returns every request owned by one employee.
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	employeeID := leave.EmployeeID(chi.URLParam(r, "id"))

	requests, err := h.Service.ListRequests(r.Context(), leave.Filter{EmployeeID: &employeeID})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// ApproveRequest moves a PENDING request to APPROVED.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body DecideRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.ReviewerID == "" {
		writeError(w, http.StatusBadRequest, "reviewer_id is required", nil)
		return
	}

	req, err := h.Service.Approve(r.Context(), leave.RequestID(id), leave.EmployeeID(body.ReviewerID))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// DenyRequest moves a PENDING request to DENIED.
func (h *Handler) DenyRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body DecideRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.ReviewerID == "" {
		writeError(w, http.StatusBadRequest, "reviewer_id is required", nil)
		return
	}

	req, err := h.Service.Deny(r.Context(), leave.RequestID(id), leave.EmployeeID(body.ReviewerID), body.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// CancelRequest moves a PENDING or APPROVED request to CANCELLED.
func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body CancelRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.ActorID == "" {
		writeError(w, http.StatusBadRequest, "actor_id is required", nil)
		return
	}

	req, err := h.Service.Cancel(r.Context(), leave.RequestID(id), leave.EmployeeID(body.ActorID))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// GetRequestAudit returns the audit trail for one request.
func (h *Handler) GetRequestAudit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if h.Audit == nil {
		writeJSON(w, http.StatusOK, []AuditEntryDTO{})
		return
	}

	entries, err := h.Audit.ByRequest(r.Context(), leave.RequestID(id))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = AuditEntryDTO{
			ID:         e.ID,
			At:         e.At.Format(time.RFC3339),
			ActorID:    string(e.ActorID),
			Action:     string(e.Action),
			RequestID:  string(e.RequestID),
			EmployeeID: string(e.EmployeeID),
			Payload:    e.Payload,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalance returns the derived balance snapshot for an employee.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "id")

	snap, err := h.Service.Balance(r.Context(), leave.EmployeeID(employeeID))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBalanceDTO(snap))
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns all registered holidays.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Holidays.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = HolidayDTO{
			ID:         hol.ID,
			LocationID: string(hol.LocationID),
			Date:       hol.Date.String(),
			Name:       hol.Name,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday registers a holiday. New holidays never rewrite the frozen
// day counts of existing requests.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var body CreateHolidayBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	date, err := leave.ParseDate(body.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	holiday := leave.Holiday{
		ID:         uuid.NewString(),
		LocationID: leave.LocationID(body.LocationID),
		Date:       date,
		Name:       body.Name,
	}
	if err := h.Holidays.Add(r.Context(), holiday); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, HolidayDTO{
		ID:         holiday.ID,
		LocationID: body.LocationID,
		Date:       holiday.Date.String(),
		Name:       holiday.Name,
	})
}

// DeleteHoliday removes a holiday by ID.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.Holidays.Remove(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all directory records.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusNotImplemented, "Employee administration requires the SQLite store", nil)
		return
	}

	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = EmployeeDTO{
			ID:          string(e.ID),
			Name:        e.Name,
			Email:       e.Email,
			LocationID:  string(e.LocationID),
			Role:        string(e.Role),
			Entitlement: e.Entitlement,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee creates or updates a directory record.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusNotImplemented, "Employee administration requires the SQLite store", nil)
		return
	}

	var body CreateEmployeeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if body.ID == "" || body.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	role := sqlite.Role(body.Role)
	if role == "" {
		role = sqlite.RoleEmployee
	}

	emp := sqlite.Employee{
		ID:          leave.EmployeeID(body.ID),
		Name:        body.Name,
		Email:       body.Email,
		LocationID:  leave.LocationID(body.LocationID),
		Role:        role,
		Entitlement: body.Entitlement,
	}
	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}

	writeJSON(w, http.StatusCreated, EmployeeDTO{
		ID:          body.ID,
		Name:        body.Name,
		Email:       body.Email,
		LocationID:  body.LocationID,
		Role:        string(role),
		Entitlement: body.Entitlement,
	})
}

// =============================================================================
// CONFLICT HANDLERS
// =============================================================================

// GetConflicts returns the concurrent-leave report for a location and window.
// Query parameters: start, end (YYYY-MM-DD).
func (h *Handler) GetConflicts(w http.ResponseWriter, r *http.Request) {
	locationID := chi.URLParam(r, "id")

	start, err := leave.ParseDate(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start (use YYYY-MM-DD)", err)
		return
	}
	end, err := leave.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end (use YYYY-MM-DD)", err)
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end must not precede start", nil)
		return
	}

	report, err := h.Advisor.ConcurrentLeaveRatio(r.Context(), leave.LocationID(locationID), start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toConflictReportDTO(report))
}

// =============================================================================
// HELPERS
// =============================================================================


func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a domain error kind onto an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case leave.IsAuthorization(err):
		writeError(w, http.StatusForbidden, "Forbidden", err)
	case leave.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case leave.IsValidation(err):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
