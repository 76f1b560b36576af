/*
Package leave implements the leave-request lifecycle and balance engine.

PURPOSE:
  This package contains the domain types and algorithms for managing leave
  requests: business-day calendar arithmetic, a four-state approval
  workflow, and a derived per-employee balance computed from the request set.

KEY CONCEPTS IN THIS FILE (types.go):
  - Request: A leave request for an inclusive date range
  - Status: Closed set of workflow states with a central transition table
  - LeaveType: What kind of leave; only annual leave consumes entitlement
  - BalanceSnapshot: Derived used/pending/remaining view per employee

DESIGN PRINCIPLES:
  1. Derived balance: The snapshot is always recomputed from the request
     set, never incrementally mutated. No drift.
  2. Frozen day counts: TotalDays is computed once at creation. Editing the
     holiday calendar later never rewrites history.
  3. Closed status set: Transitions are enforced in one place
     (Status.CanTransitionTo), not scattered across call sites.

SEE ALSO:
  - date.go: Date, DateRange, BusinessDays
  - service.go: The lifecycle manager that owns all transitions
  - balance.go: Snapshot computation
*/
package leave

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type RequestID string
type EmployeeID string
type LocationID string

// =============================================================================
// STATUS - Request workflow states
// =============================================================================

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusDenied    Status = "DENIED"
	StatusCancelled Status = "CANCELLED"
)

// transitions is the single source of truth for the state machine.
// PENDING is the sole initial state; DENIED and CANCELLED are dead ends,
// and APPROVED only permits cancellation.
var transitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved:  true,
		StatusDenied:    true,
		StatusCancelled: true,
	},
	StatusApproved: {
		StatusCancelled: true,
	},
	StatusDenied:    {},
	StatusCancelled: {},
}

// CanTransitionTo reports whether the workflow permits moving to the target
// status.
func (s Status) CanTransitionTo(to Status) bool {
	return transitions[s][to]
}

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// IsValid reports whether s is one of the four known statuses.
func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// =============================================================================
// LEAVE TYPE
// =============================================================================

type LeaveType string

const (
	TypeAnnual      LeaveType = "annual"
	TypeSick        LeaveType = "sick"
	TypeUnpaid      LeaveType = "unpaid"
	TypeParental    LeaveType = "parental"
	TypeBereavement LeaveType = "bereavement"
	TypeOther       LeaveType = "other"
)

var leaveTypes = map[LeaveType]bool{
	TypeAnnual:      true,
	TypeSick:        true,
	TypeUnpaid:      true,
	TypeParental:    true,
	TypeBereavement: true,
	TypeOther:       true,
}

func (t LeaveType) IsValid() bool { return leaveTypes[t] }

// CountsAgainstBalance reports whether this leave type consumes the annual
// entitlement. Sick, unpaid and the other special types do not.
func (t LeaveType) CountsAgainstBalance() bool { return t == TypeAnnual }

// =============================================================================
// REQUEST
// =============================================================================

// Request is a leave request for an inclusive date range.
//
// TotalDays is the business-day count of [StartDate, EndDate] at the time of
// creation, excluding weekends and the holidays registered for the
// employee's location. It is immutable afterwards: retroactive holiday edits
// do not rewrite approved history.
type Request struct {
	ID         RequestID
	EmployeeID EmployeeID

	StartDate Date
	EndDate   Date
	TotalDays int

	Type   LeaveType
	Status Status
	Reason string

	// Set on approve/deny.
	ReviewerID   EmployeeID
	DecisionNote string

	// Set on cancel.
	CancelledBy EmployeeID

	CreatedAt   time.Time
	DecidedAt   *time.Time
	CancelledAt *time.Time
}

// Range returns the inclusive date span of the request.
func (r *Request) Range() DateRange {
	return DateRange{Start: r.StartDate, End: r.EndDate}
}

// IsOpen reports whether the request currently holds or consumes balance
// (PENDING or APPROVED).
func (r *Request) IsOpen() bool {
	return r.Status == StatusPending || r.Status == StatusApproved
}

// =============================================================================
// HOLIDAY
// =============================================================================

// Holiday is a registered non-working day. An empty LocationID means the
// holiday applies to every location.
type Holiday struct {
	ID         string
	LocationID LocationID
	Date       Date
	Name       string
}

// =============================================================================
// BALANCE SNAPSHOT - Derived, never authoritative
// =============================================================================

// BalanceSnapshot is the derived balance view for one employee.
//
// Used counts every APPROVED annual-leave request regardless of whether the
// dates have elapsed: approved leave is committed. Pending counts PENDING
// annual-leave requests. Remaining = Entitlement - Used - Pending.
type BalanceSnapshot struct {
	EmployeeID  EmployeeID
	Entitlement int
	Used        int
	Pending     int
	Remaining   int
}
