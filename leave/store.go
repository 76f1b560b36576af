/*
store.go - Persistence and collaborator interfaces

PURPOSE:
  Defines the boundary between the lifecycle manager and everything it does
  not own: request persistence, the holiday registry, the employee
  directory, and the audit log. Different implementations can use SQLite,
  PostgreSQL, or in-memory storage.

OWNERSHIP:
  Only the lifecycle manager (service.go) writes request state, and only
  through the guarded transitions. Every other component reads.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - leave/store: in-memory, for tests and dev

SEE ALSO:
  - service.go: The only writer of request state
  - balance.go: Read model over RequestStore
*/
package leave

import (
	"context"
	"time"
)

// =============================================================================
// REQUEST STORE
// =============================================================================

// Filter narrows ListRequests. Nil fields match everything.
type Filter struct {
	EmployeeID *EmployeeID
	Status     *Status
	Range      *DateRange // matches requests whose span overlaps Range
}

// RequestStore persists leave requests.
//
// FindOverlapping must return every PENDING or APPROVED request for the
// employee whose inclusive span overlaps the given range. The store does
// not enforce the overlap invariant itself; the lifecycle manager checks it
// under the per-employee lock.
type RequestStore interface {
	// Create persists a new request. The ID must not already exist.
	Create(ctx context.Context, req *Request) error

	// Update persists a status transition. The request must exist.
	Update(ctx context.Context, req *Request) error

	// Get returns the request or a NotFoundError.
	Get(ctx context.Context, id RequestID) (*Request, error)

	// List returns requests matching the filter, most recent first.
	List(ctx context.Context, filter Filter) ([]*Request, error)

	// ListByEmployee returns every request owned by the employee.
	ListByEmployee(ctx context.Context, employeeID EmployeeID) ([]*Request, error)

	// FindOverlapping returns open (PENDING/APPROVED) requests for the
	// employee overlapping the range.
	FindOverlapping(ctx context.Context, employeeID EmployeeID, r DateRange) ([]*Request, error)
}

// =============================================================================
// HOLIDAY REGISTRY
// =============================================================================

// HolidayStore is the read path the calendar arithmetic depends on, plus
// the administrative mutations. Mutation never touches TotalDays on
// existing requests: day counts are frozen at creation.
type HolidayStore interface {
	// HolidaysInRange returns the union of location-specific and global
	// holiday dates intersecting [start, end].
	HolidaysInRange(ctx context.Context, locationID LocationID, start, end Date) (HolidaySet, error)

	// Add registers a holiday.
	Add(ctx context.Context, h Holiday) error

	// Remove deletes a holiday by ID.
	Remove(ctx context.Context, id string) error

	// List returns all registered holidays, ordered by date.
	List(ctx context.Context) ([]Holiday, error)
}

// =============================================================================
// EMPLOYEE DIRECTORY - External collaborator contract
// =============================================================================

// Directory supplies the employee facts the engine consumes. User
// management itself is out of scope; the engine only reads.
type Directory interface {
	// Entitlement returns the employee's annual leave entitlement in days.
	Entitlement(ctx context.Context, employeeID EmployeeID) (int, error)

	// Location returns the employee's primary location.
	Location(ctx context.Context, employeeID EmployeeID) (LocationID, error)

	// HasApprovalAuthorityOver reports whether the reviewer may decide
	// requests for the employee.
	HasApprovalAuthorityOver(ctx context.Context, reviewerID, employeeID EmployeeID) (bool, error)

	// EmployeesAt returns the employees assigned to a location.
	// Used by the conflict advisor for headcount.
	EmployeesAt(ctx context.Context, locationID LocationID) ([]EmployeeID, error)
}

// =============================================================================
// AUDIT LOG - Append-only, separate from the request records
// =============================================================================

type AuditAction string

const (
	AuditRequestCreated   AuditAction = "request_created"
	AuditRequestApproved  AuditAction = "request_approved"
	AuditRequestDenied    AuditAction = "request_denied"
	AuditRequestCancelled AuditAction = "request_cancelled"
)

// AuditEntry records who did what when.
type AuditEntry struct {
	ID         string
	At         time.Time
	ActorID    EmployeeID
	Action     AuditAction
	RequestID  RequestID
	EmployeeID EmployeeID
	Payload    map[string]any
}

// AuditLog stores audit entries. Append-only: no update, no delete.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	ByRequest(ctx context.Context, id RequestID) ([]AuditEntry, error)
}
