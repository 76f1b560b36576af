/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Requests:
    RequestDTO, CreateRequestBody, DecideRequestBody, CancelRequestBody

  Balance:
    BalanceDTO

  Holidays:
    HolidayDTO, CreateHolidayBody

  Employees:
    EmployeeDTO, CreateEmployeeBody

  Conflicts:
    ConflictReportDTO

  Audit:
    AuditEntryDTO

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs. DTOs
  are pure data carriers. Dates travel as "YYYY-MM-DD" strings, timestamps
  as RFC3339.

SEE ALSO:
  - handlers.go: Uses these types
  - leave/types.go: The domain model these map from
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID           string `json:"id"`
	EmployeeID   string `json:"employee_id"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	TotalDays    int    `json:"total_days"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	ReviewerID   string `json:"reviewer_id,omitempty"`
	DecisionNote string `json:"decision_note,omitempty"`
	CancelledBy  string `json:"cancelled_by,omitempty"`
	CreatedAt    string `json:"created_at"`
	DecidedAt    string `json:"decided_at,omitempty"`
	CancelledAt  string `json:"cancelled_at,omitempty"`
}

// CreateRequestBody is the request body for submitting a leave request.
type CreateRequestBody struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Type      string `json:"type,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// DecideRequestBody carries the reviewer for approve/deny actions.
type DecideRequestBody struct {
	ReviewerID string `json:"reviewer_id"`
	Note       string `json:"note,omitempty"`
}

// CancelRequestBody carries the actor for a cancellation.
type CancelRequestBody struct {
	ActorID string `json:"actor_id"`
}

// =============================================================================
// BALANCE TYPES
// =============================================================================

// BalanceDTO is the derived balance snapshot for one employee.
type BalanceDTO struct {
	EmployeeID  string `json:"employee_id"`
	Entitlement int    `json:"entitlement"`
	Used        int    `json:"used"`
	Pending     int    `json:"pending"`
	Remaining   int    `json:"remaining"`
}

// =============================================================================
// HOLIDAY TYPES
// =============================================================================

// HolidayDTO represents a registered holiday.
type HolidayDTO struct {
	ID         string `json:"id"`
	LocationID string `json:"location_id,omitempty"`
	Date       string `json:"date"`
	Name       string `json:"name"`
}

// CreateHolidayBody is the request body to register a holiday.
// Empty location_id makes the holiday global.
type CreateHolidayBody struct {
	LocationID string `json:"location_id,omitempty"`
	Date       string `json:"date"`
	Name       string `json:"name"`
}

// =============================================================================
// EMPLOYEE TYPES
// =============================================================================

// EmployeeDTO represents a directory record in API responses.
type EmployeeDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	LocationID  string `json:"location_id"`
	Role        string `json:"role"`
	Entitlement int    `json:"entitlement"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// CreateEmployeeBody is the request body to create or update an employee.
type CreateEmployeeBody struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email,omitempty"`
	LocationID  string `json:"location_id"`
	Role        string `json:"role,omitempty"`
	Entitlement int    `json:"entitlement"`
}

// =============================================================================
// CONFLICT TYPES
// =============================================================================

// ConflictReportDTO summarizes concurrent leave at a location for a window.
// Ratio is rendered as a decimal string ("0.25") to avoid float drift.
type ConflictReportDTO struct {
	LocationID     string `json:"location_id"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	OnLeave        int    `json:"on_leave"`
	Headcount      int    `json:"headcount"`
	Ratio          string `json:"ratio"`
	AboveThreshold bool   `json:"above_threshold"`
}

// =============================================================================
// AUDIT TYPES
// =============================================================================

// AuditEntryDTO is one row of a request's audit trail.
type AuditEntryDTO struct {
	ID         string         `json:"id"`
	At         string         `json:"at"`
	ActorID    string         `json:"actor_id"`
	Action     string         `json:"action"`
	RequestID  string         `json:"request_id"`
	EmployeeID string         `json:"employee_id"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// ErrorResponse is the standard error format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toRequestDTO(req *leave.Request) RequestDTO {
	dto := RequestDTO{
		ID:           string(req.ID),
		EmployeeID:   string(req.EmployeeID),
		StartDate:    req.StartDate.String(),
		EndDate:      req.EndDate.String(),
		TotalDays:    req.TotalDays,
		Type:         string(req.Type),
		Status:       string(req.Status),
		Reason:       req.Reason,
		ReviewerID:   string(req.ReviewerID),
		DecisionNote: req.DecisionNote,
		CancelledBy:  string(req.CancelledBy),
		CreatedAt:    req.CreatedAt.Format(time.RFC3339),
	}
	if req.DecidedAt != nil {
		dto.DecidedAt = req.DecidedAt.Format(time.RFC3339)
	}
	if req.CancelledAt != nil {
		dto.CancelledAt = req.CancelledAt.Format(time.RFC3339)
	}
	return dto
}

func toRequestDTOs(reqs []*leave.Request) []RequestDTO {
	dtos := make([]RequestDTO, len(reqs))
	for i, r := range reqs {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func toBalanceDTO(snap leave.BalanceSnapshot) BalanceDTO {
	return BalanceDTO{
		EmployeeID:  string(snap.EmployeeID),
		Entitlement: snap.Entitlement,
		Used:        snap.Used,
		Pending:     snap.Pending,
		Remaining:   snap.Remaining,
	}
}

func toConflictReportDTO(report leave.ConflictReport) ConflictReportDTO {
	return ConflictReportDTO{
		LocationID:     string(report.LocationID),
		StartDate:      report.Range.Start.String(),
		EndDate:        report.Range.End.String(),
		OnLeave:        report.OnLeave,
		Headcount:      report.Headcount,
		Ratio:          report.Ratio.StringFixed(4),
		AboveThreshold: report.AboveThreshold,
	}
}
