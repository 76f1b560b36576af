/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error kinds in one place. Callers classify with errors.Is against the
  sentinels; the structured types carry enough context (offending dates,
  shortfall, conflicting request) to render an actionable message. The
  engine itself never formats user-facing text.

ERROR CATEGORIES:
  1. Validation errors - business-rule failures on creation
  2. Workflow errors   - illegal state transitions
  3. Authorization     - actor not permitted (distinct from invalid input)
  4. Lookup            - missing request/employee

USAGE:
  switch {
  case errors.Is(err, leave.ErrOverlappingRequest):
      // 409
  case leave.IsAuthorization(err):
      // 403
  }
*/
package leave

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDateRange is returned when end date precedes start date.
	ErrInvalidDateRange = errors.New("invalid date range: end before start")

	// ErrInsufficientNotice is returned when the start date is closer than
	// the configured minimum advance notice.
	ErrInsufficientNotice = errors.New("insufficient advance notice")

	// ErrEmptyRange is returned when a range contains no business days
	// (e.g. only weekends and holidays).
	ErrEmptyRange = errors.New("range contains no business days")

	// ErrInsufficientBalance is returned when a request would push the
	// remaining balance negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOverlappingRequest is returned when the range overlaps an existing
	// PENDING or APPROVED request for the same employee.
	ErrOverlappingRequest = errors.New("overlapping request")

	// ErrInvalidStateTransition is returned for any transition the workflow
	// table forbids, including re-cancelling a cancelled request.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrAuthorizationDenied is returned when the acting user lacks
	// authority for the transition. Distinct from business-rule failures so
	// callers can render "not allowed" vs "invalid input".
	ErrAuthorizationDenied = errors.New("authorization denied")

	// ErrNotFound is returned when a request or employee does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDecisionNoteRequired is returned on denial without a note when the
	// engine is configured to enforce one.
	ErrDecisionNoteRequired = errors.New("decision note required")

	// ErrReasonTooLong is returned when the free-text reason exceeds the
	// configured bound.
	ErrReasonTooLong = errors.New("reason exceeds maximum length")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// DateRangeError reports the offending dates.
type DateRangeError struct {
	Start Date
	End   Date
}

func (e *DateRangeError) Error() string {
	return fmt.Sprintf("invalid date range: end %s before start %s", e.End, e.Start)
}

func (e *DateRangeError) Unwrap() error { return ErrInvalidDateRange }

// NoticeError reports how much notice was given vs required.
type NoticeError struct {
	StartDate    Date
	RequiredDays int
	ActualDays   int
}

func (e *NoticeError) Error() string {
	return fmt.Sprintf("insufficient notice: start %s is %d days away, minimum is %d",
		e.StartDate, e.ActualDays, e.RequiredDays)
}

func (e *NoticeError) Unwrap() error { return ErrInsufficientNotice }

// EmptyRangeError reports a range with zero business days.
type EmptyRangeError struct {
	Start Date
	End   Date
}

func (e *EmptyRangeError) Error() string {
	return fmt.Sprintf("no business days in [%s, %s]", e.Start, e.End)
}

func (e *EmptyRangeError) Unwrap() error { return ErrEmptyRange }

// InsufficientBalanceError reports the shortfall against the current snapshot.
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	Requested  int
	Remaining  int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: requested %d days, %d remaining (short %d)",
		e.Requested, e.Remaining, e.Shortfall())
}

func (e *InsufficientBalanceError) Shortfall() int { return e.Requested - e.Remaining }

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// OverlapError identifies the conflicting request.
type OverlapError struct {
	ConflictingID RequestID
	Conflicting   DateRange
	Requested     DateRange
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("range %s overlaps request %s %s",
		e.Requested, e.ConflictingID, e.Conflicting)
}

func (e *OverlapError) Unwrap() error { return ErrOverlappingRequest }

// TransitionError reports the forbidden transition.
type TransitionError struct {
	RequestID RequestID
	From      Status
	To        Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("request %s: cannot transition %s -> %s", e.RequestID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidStateTransition }

// AuthorizationError reports who attempted what.
type AuthorizationError struct {
	ActorID EmployeeID
	Action  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("actor %s not authorized to %s", e.ActorID, e.Action)
}

func (e *AuthorizationError) Unwrap() error { return ErrAuthorizationDenied }

// NotFoundError identifies the missing record.
type NotFoundError struct {
	Kind string // "request", "employee", "holiday"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true for business-rule failures on creation or denial.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInsufficientNotice) ||
		errors.Is(err, ErrEmptyRange) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDecisionNoteRequired) ||
		errors.Is(err, ErrReasonTooLong)
}

// IsConflict returns true for failures a caller should render as a conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOverlappingRequest) ||
		errors.Is(err, ErrInvalidStateTransition)
}

// IsAuthorization returns true when the actor lacked authority.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrAuthorizationDenied)
}

// IsNotFound returns true when the referenced record is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
