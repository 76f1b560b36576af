/*
service.go - Request lifecycle manager

PURPOSE:
  Owns the leave-request state machine. Validates creation, performs the
  guarded transitions (approve/deny/cancel), writes the audit trail, and
  emits a domain event with a fresh balance snapshot after every change.

REQUEST FLOW:
  create ──▶ PENDING ──approve──▶ APPROVED ──cancel(manager)──▶ CANCELLED
                │
                ├──deny────▶ DENIED
                └──cancel──▶ CANCELLED

  DENIED and CANCELLED are terminal. A second cancel attempt fails with
  ErrInvalidStateTransition rather than succeeding silently: silent
  idempotency would mask programming errors upstream.

CONCURRENCY:
  The sequence "recompute balance -> validate -> persist" is the classic
  check-then-act race: two concurrent creations could both pass the balance
  check and together exceed the entitlement. Every mutation therefore runs
  under a per-employee mutex. Operations for different employees proceed in
  parallel; a single global lock would serialize unrelated employees for
  nothing.

VALIDATION:
  All creation rules are evaluated before any write, and the first failure
  is reported. A failed operation never leaves a request in an intermediate
  status.

SEE ALSO:
  - types.go: The transition table (Status.CanTransitionTo)
  - balance.go: Snapshot computation
  - errors.go: The error kinds raised here
*/
package leave

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// CONFIG
// =============================================================================

// Config holds the policy knobs callers supply. Advance notice and the
// decision-note requirement are deployment decisions, not hard-coded rules.
type Config struct {
	// MinNoticeDays is the minimum number of calendar days between
	// submission and the start date. Zero allows same-day requests.
	MinNoticeDays int

	// RequireDecisionNote makes a non-empty note mandatory on denial.
	// When false the note is recorded if given but never enforced.
	RequireDecisionNote bool

	// MaxReasonLen bounds the free-text reason. Zero means DefaultMaxReasonLen.
	MaxReasonLen int
}

const DefaultMaxReasonLen = 1000

func (c Config) maxReasonLen() int {
	if c.MaxReasonLen > 0 {
		return c.MaxReasonLen
	}
	return DefaultMaxReasonLen
}

// =============================================================================
// PER-EMPLOYEE LOCKS
// =============================================================================

// employeeLocks hands out one mutex per employee. Locks are created lazily
// and kept for the process lifetime; the population is bounded by headcount.
type employeeLocks struct {
	mu    sync.Mutex
	locks map[EmployeeID]*sync.Mutex
}

func newEmployeeLocks() *employeeLocks {
	return &employeeLocks{locks: make(map[EmployeeID]*sync.Mutex)}
}

func (l *employeeLocks) get(id EmployeeID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is the request lifecycle manager. It is the only component that
// writes request state.
type Service struct {
	Requests  RequestStore
	Holidays  HolidayStore
	Directory Directory
	Calc      *Calculator
	Events    Dispatcher
	Audit     AuditLog // optional

	Config Config

	locks *employeeLocks
	now   func() time.Time
}

func NewService(requests RequestStore, holidays HolidayStore, directory Directory, events Dispatcher, audit AuditLog, cfg Config) *Service {
	if events == nil {
		events = NoopDispatcher{}
	}
	return &Service{
		Requests:  requests,
		Holidays:  holidays,
		Directory: directory,
		Calc:      NewCalculator(requests, directory),
		Events:    events,
		Audit:     audit,
		Config:    cfg,
		locks:     newEmployeeLocks(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the service clock. Tests use this to pin "today".
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) today() Date { return DateOf(s.now()) }

// =============================================================================
// CREATE
// =============================================================================

// CreateInput is the caller-supplied payload for a new request.
type CreateInput struct {
	EmployeeID EmployeeID
	StartDate  Date
	EndDate    Date
	Type       LeaveType // empty defaults to annual
	Reason     string
}

// CreateRequest validates and persists a new PENDING request.
//
// Validation order (first failure wins, nothing is written on failure):
//  1. end >= start
//  2. minimum advance notice
//  3. at least one business day in the range
//  4. sufficient balance (annual leave only; boundary inclusive)
//  5. no overlap with an open request for the same employee
func (s *Service) CreateRequest(ctx context.Context, in CreateInput) (*Request, error) {
	leaveType := in.Type
	if leaveType == "" {
		leaveType = TypeAnnual
	}
	if !leaveType.IsValid() {
		return nil, &NotFoundError{Kind: "leave type", ID: string(leaveType)}
	}
	if len(in.Reason) > s.Config.maxReasonLen() {
		return nil, ErrReasonTooLong
	}

	mu := s.locks.get(in.EmployeeID)
	mu.Lock()
	defer mu.Unlock()

	// 1. Range sanity.
	if in.EndDate.Before(in.StartDate) {
		return nil, &DateRangeError{Start: in.StartDate, End: in.EndDate}
	}

	// 2. Advance notice. Also rejects start dates in the past whenever the
	// configured notice is non-negative.
	notice := s.today().DaysUntil(in.StartDate)
	if notice < s.Config.MinNoticeDays {
		return nil, &NoticeError{
			StartDate:    in.StartDate,
			RequiredDays: s.Config.MinNoticeDays,
			ActualDays:   notice,
		}
	}

	// 3. Business-day count, frozen into the request at creation.
	location, err := s.Directory.Location(ctx, in.EmployeeID)
	if err != nil {
		return nil, err
	}
	holidays, err := s.Holidays.HolidaysInRange(ctx, location, in.StartDate, in.EndDate)
	if err != nil {
		return nil, err
	}
	totalDays := BusinessDays(in.StartDate, in.EndDate, holidays)
	if totalDays < 1 {
		return nil, &EmptyRangeError{Start: in.StartDate, End: in.EndDate}
	}

	// 4. Balance. Only annual leave consumes the entitlement.
	if leaveType.CountsAgainstBalance() {
		exceeds, snap, err := s.Calc.WouldExceed(ctx, in.EmployeeID, totalDays)
		if err != nil {
			return nil, err
		}
		if exceeds {
			return nil, &InsufficientBalanceError{
				EmployeeID: in.EmployeeID,
				Requested:  totalDays,
				Remaining:  snap.Remaining,
			}
		}
	}

	// 5. Overlap against open requests, regardless of leave type: an
	// employee cannot be away twice on the same day.
	requested := DateRange{Start: in.StartDate, End: in.EndDate}
	overlapping, err := s.Requests.FindOverlapping(ctx, in.EmployeeID, requested)
	if err != nil {
		return nil, err
	}
	if len(overlapping) > 0 {
		first := overlapping[0]
		return nil, &OverlapError{
			ConflictingID: first.ID,
			Conflicting:   first.Range(),
			Requested:     requested,
		}
	}

	req := &Request{
		ID:         RequestID(uuid.NewString()),
		EmployeeID: in.EmployeeID,
		StartDate:  in.StartDate,
		EndDate:    in.EndDate,
		TotalDays:  totalDays,
		Type:       leaveType,
		Status:     StatusPending,
		Reason:     in.Reason,
		CreatedAt:  s.now(),
	}

	if err := s.Requests.Create(ctx, req); err != nil {
		return nil, err
	}

	s.audit(ctx, in.EmployeeID, AuditRequestCreated, req, map[string]any{
		"start": req.StartDate.String(),
		"end":   req.EndDate.String(),
		"days":  req.TotalDays,
		"type":  string(req.Type),
	})
	s.emit(ctx, EventRequestCreated, req, in.EmployeeID)

	return req, nil
}

// =============================================================================
// APPROVE / DENY
// =============================================================================

// Approve moves a PENDING request to APPROVED, committing its days from
// pending to used.
func (s *Service) Approve(ctx context.Context, id RequestID, reviewerID EmployeeID) (*Request, error) {
	return s.decide(ctx, id, reviewerID, StatusApproved, "")
}

// Deny moves a PENDING request to DENIED. When the service is configured
// with RequireDecisionNote, an empty note is rejected before any write.
func (s *Service) Deny(ctx context.Context, id RequestID, reviewerID EmployeeID, note string) (*Request, error) {
	if s.Config.RequireDecisionNote && strings.TrimSpace(note) == "" {
		return nil, ErrDecisionNoteRequired
	}
	return s.decide(ctx, id, reviewerID, StatusDenied, note)
}

func (s *Service) decide(ctx context.Context, id RequestID, reviewerID EmployeeID, target Status, note string) (*Request, error) {
	req, err := s.lockedRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	mu := s.locks.get(req.EmployeeID)
	mu.Lock()
	defer mu.Unlock()

	// Reload under the lock: the status may have moved.
	req, err = s.Requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !req.Status.CanTransitionTo(target) {
		return nil, &TransitionError{RequestID: id, From: req.Status, To: target}
	}

	if reviewerID == req.EmployeeID {
		return nil, &AuthorizationError{ActorID: reviewerID, Action: "decide own request"}
	}
	ok, err := s.Directory.HasApprovalAuthorityOver(ctx, reviewerID, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &AuthorizationError{ActorID: reviewerID, Action: "decide request " + string(id)}
	}

	at := s.now()
	req.Status = target
	req.ReviewerID = reviewerID
	req.DecisionNote = note
	req.DecidedAt = &at

	if err := s.Requests.Update(ctx, req); err != nil {
		return nil, err
	}

	if target == StatusApproved {
		s.audit(ctx, reviewerID, AuditRequestApproved, req, map[string]any{"days": req.TotalDays})
		s.emit(ctx, EventRequestApproved, req, reviewerID)
	} else {
		s.audit(ctx, reviewerID, AuditRequestDenied, req, map[string]any{"note": note})
		s.emit(ctx, EventRequestDenied, req, reviewerID)
	}

	return req, nil
}

// =============================================================================
// CANCEL
// =============================================================================

// Cancel moves a PENDING or APPROVED request to CANCELLED.
//
// A PENDING request may be cancelled by its owner (self-service) or by
// anyone with approval authority. Retracting an already-APPROVED request is
// manager-only: the days have been committed and releasing them is a
// scheduling decision, not self-service.
func (s *Service) Cancel(ctx context.Context, id RequestID, actorID EmployeeID) (*Request, error) {
	req, err := s.lockedRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	mu := s.locks.get(req.EmployeeID)
	mu.Lock()
	defer mu.Unlock()

	req, err = s.Requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !req.Status.CanTransitionTo(StatusCancelled) {
		return nil, &TransitionError{RequestID: id, From: req.Status, To: StatusCancelled}
	}

	isOwner := actorID == req.EmployeeID
	if !isOwner || req.Status == StatusApproved {
		ok, err := s.Directory.HasApprovalAuthorityOver(ctx, actorID, req.EmployeeID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, &AuthorizationError{ActorID: actorID, Action: "cancel request " + string(id)}
		}
	}

	at := s.now()
	req.Status = StatusCancelled
	req.CancelledBy = actorID
	req.CancelledAt = &at

	if err := s.Requests.Update(ctx, req); err != nil {
		return nil, err
	}

	s.audit(ctx, actorID, AuditRequestCancelled, req, map[string]any{"days": req.TotalDays})
	s.emit(ctx, EventRequestCancelled, req, actorID)

	return req, nil
}

// =============================================================================
// READS
// =============================================================================

// GetRequest returns a single request.
func (s *Service) GetRequest(ctx context.Context, id RequestID) (*Request, error) {
	return s.Requests.Get(ctx, id)
}

// ListRequests returns requests matching the filter.
func (s *Service) ListRequests(ctx context.Context, filter Filter) ([]*Request, error) {
	return s.Requests.List(ctx, filter)
}

// Balance recomputes the employee's balance snapshot.
func (s *Service) Balance(ctx context.Context, employeeID EmployeeID) (BalanceSnapshot, error) {
	return s.Calc.Snapshot(ctx, employeeID)
}

// =============================================================================
// INTERNAL
// =============================================================================

// lockedRequest resolves the request once, pre-lock, so the caller knows
// which employee mutex to take. Callers must reload after locking.
func (s *Service) lockedRequest(ctx context.Context, id RequestID) (*Request, error) {
	return s.Requests.Get(ctx, id)
}

func (s *Service) audit(ctx context.Context, actor EmployeeID, action AuditAction, req *Request, payload map[string]any) {
	if s.Audit == nil {
		return
	}
	// Audit failure never rolls back a committed transition.
	_ = s.Audit.Append(ctx, AuditEntry{
		ID:         uuid.NewString(),
		At:         s.now(),
		ActorID:    actor,
		Action:     action,
		RequestID:  req.ID,
		EmployeeID: req.EmployeeID,
		Payload:    payload,
	})
}

func (s *Service) emit(ctx context.Context, typ EventType, req *Request, actor EmployeeID) {
	snap, err := s.Calc.Snapshot(ctx, req.EmployeeID)
	if err != nil {
		snap = BalanceSnapshot{EmployeeID: req.EmployeeID}
	}
	s.Events.Dispatch(ctx, Event{
		Type:       typ,
		RequestID:  req.ID,
		EmployeeID: req.EmployeeID,
		ActorID:    actor,
		OccurredAt: s.now(),
		Snapshot:   snap,
	})
}
