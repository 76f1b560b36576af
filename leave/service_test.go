package leave_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/leave/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const (
	alice = leave.EmployeeID("alice") // employee, nyc, 20 days
	bob   = leave.EmployeeID("bob")   // manager, nyc
	carol = leave.EmployeeID("carol") // admin, sf
	dave  = leave.EmployeeID("dave")  // employee, nyc, 20 days
	erin  = leave.EmployeeID("erin")  // manager, sf
)

// captureDispatcher records every emitted event for assertions.
type captureDispatcher struct {
	mu     sync.Mutex
	events []leave.Event
}

func (c *captureDispatcher) Dispatch(_ context.Context, e leave.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureDispatcher) all() []leave.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]leave.Event(nil), c.events...)
}

type fixture struct {
	service  *leave.Service
	requests *store.MemoryRequests
	holidays *store.MemoryHolidays
	audit    *store.MemoryAudit
	events   *captureDispatcher
}

// newFixture builds a service over in-memory stores with the clock pinned to
// 2025-05-01 so date assertions stay stable.
func newFixture(t *testing.T, cfg leave.Config) *fixture {
	t.Helper()

	directory := store.NewMemoryDirectory(
		store.Employee{ID: alice, Name: "Alice", LocationID: "nyc", Role: store.RoleEmployee, Entitlement: 20},
		store.Employee{ID: bob, Name: "Bob", LocationID: "nyc", Role: store.RoleManager, Entitlement: 25},
		store.Employee{ID: carol, Name: "Carol", LocationID: "sf", Role: store.RoleAdmin, Entitlement: 25},
		store.Employee{ID: dave, Name: "Dave", LocationID: "nyc", Role: store.RoleEmployee, Entitlement: 20},
		store.Employee{ID: erin, Name: "Erin", LocationID: "sf", Role: store.RoleManager, Entitlement: 25},
	)

	f := &fixture{
		requests: store.NewMemoryRequests(),
		holidays: store.NewMemoryHolidays(),
		audit:    store.NewMemoryAudit(),
		events:   &captureDispatcher{},
	}
	f.service = leave.NewService(f.requests, f.holidays, directory, f.events, f.audit, cfg).
		WithClock(func() time.Time {
			return time.Date(2025, time.May, 1, 10, 0, 0, 0, time.UTC)
		})
	return f
}

func juneWeek() (leave.Date, leave.Date) {
	// Mon Jun 2 .. Fri Jun 6, 2025: 5 business days.
	return leave.NewDate(2025, time.June, 2), leave.NewDate(2025, time.June, 6)
}

func mustCreate(t *testing.T, f *fixture, in leave.CreateInput) *leave.Request {
	t.Helper()
	req, err := f.service.CreateRequest(context.Background(), in)
	require.NoError(t, err)
	return req
}

// =============================================================================
// CREATION
// =============================================================================

func TestCreateRequest_HappyPath(t *testing.T) {
	// GIVEN: Alice with 20 days entitlement and no prior requests
	// WHEN: She requests Mon Jun 2 .. Fri Jun 6
	// THEN: A PENDING request with 5 frozen business days, balance holds 5
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()

	req, err := f.service.CreateRequest(ctx, leave.CreateInput{
		EmployeeID: alice,
		StartDate:  start,
		EndDate:    end,
		Reason:     "summer trip",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, leave.StatusPending, req.Status)
	assert.Equal(t, leave.TypeAnnual, req.Type, "empty type defaults to annual")
	assert.Equal(t, 5, req.TotalDays)
	assert.Equal(t, "summer trip", req.Reason)
	assert.False(t, req.CreatedAt.IsZero())

	snap, err := f.service.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 20, snap.Entitlement)
	assert.Equal(t, 0, snap.Used)
	assert.Equal(t, 5, snap.Pending)
	assert.Equal(t, 15, snap.Remaining)
}

func TestCreateRequest_EndBeforeStart(t *testing.T) {
	f := newFixture(t, leave.Config{})
	start, end := juneWeek()

	_, err := f.service.CreateRequest(context.Background(), leave.CreateInput{
		EmployeeID: alice,
		StartDate:  end,
		EndDate:    start,
	})

	assert.ErrorIs(t, err, leave.ErrInvalidDateRange)

	var rangeErr *leave.DateRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, end, rangeErr.Start)
	assert.Equal(t, start, rangeErr.End)
}

func TestCreateRequest_InsufficientNotice(t *testing.T) {
	// GIVEN: 14 days minimum notice, today pinned to May 1
	// WHEN: Requesting May 5 (4 days out)
	// THEN: Rejected with the shortfall reported
	f := newFixture(t, leave.Config{MinNoticeDays: 14})

	_, err := f.service.CreateRequest(context.Background(), leave.CreateInput{
		EmployeeID: alice,
		StartDate:  leave.NewDate(2025, time.May, 5),
		EndDate:    leave.NewDate(2025, time.May, 9),
	})

	assert.ErrorIs(t, err, leave.ErrInsufficientNotice)

	var noticeErr *leave.NoticeError
	require.ErrorAs(t, err, &noticeErr)
	assert.Equal(t, 14, noticeErr.RequiredDays)
	assert.Equal(t, 4, noticeErr.ActualDays)
}

func TestCreateRequest_PastStartRejected(t *testing.T) {
	// Even with zero configured notice, a start date in the past has
	// negative notice and fails the same check.
	f := newFixture(t, leave.Config{MinNoticeDays: 0})

	_, err := f.service.CreateRequest(context.Background(), leave.CreateInput{
		EmployeeID: alice,
		StartDate:  leave.NewDate(2025, time.April, 28),
		EndDate:    leave.NewDate(2025, time.April, 30),
	})

	assert.ErrorIs(t, err, leave.ErrInsufficientNotice)
}

func TestCreateRequest_WeekendOnlyRange(t *testing.T) {
	f := newFixture(t, leave.Config{})

	_, err := f.service.CreateRequest(context.Background(), leave.CreateInput{
		EmployeeID: alice,
		StartDate:  leave.NewDate(2025, time.June, 7), // Sat
		EndDate:    leave.NewDate(2025, time.June, 8), // Sun
	})

	assert.ErrorIs(t, err, leave.ErrEmptyRange)
}

func TestCreateRequest_HolidayReducesTotalDays(t *testing.T) {
	// GIVEN: A global holiday on Wed Jun 4
	// WHEN: Alice requests Jun 2..6
	// THEN: TotalDays is 4, not 5
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	require.NoError(t, f.holidays.Add(ctx, leave.Holiday{
		ID: "h1", Date: leave.NewDate(2025, time.June, 4), Name: "Founders Day",
	}))

	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	assert.Equal(t, 4, req.TotalDays)
}

func TestCreateRequest_OtherLocationHolidayIgnored(t *testing.T) {
	// A holiday scoped to sf must not shrink an nyc request.
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	require.NoError(t, f.holidays.Add(ctx, leave.Holiday{
		ID: "h1", LocationID: "sf", Date: leave.NewDate(2025, time.June, 4), Name: "SF Only",
	}))

	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	assert.Equal(t, 5, req.TotalDays)
}

func TestCreateRequest_HolidayAddedLaterKeepsFrozenDays(t *testing.T) {
	// Day counts freeze at creation: a retroactive holiday registration
	// does not rewrite the request.
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})
	require.Equal(t, 5, req.TotalDays)

	require.NoError(t, f.holidays.Add(ctx, leave.Holiday{
		ID: "h1", Date: leave.NewDate(2025, time.June, 4), Name: "Late Holiday",
	}))

	got, err := f.service.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.TotalDays)

	snap, err := f.service.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Pending)
}

func TestCreateRequest_InsufficientBalance(t *testing.T) {
	// GIVEN: Alice has 15 remaining after a pending 5-day request
	// WHEN: She requests 4 full weeks in July (20 business days)
	// THEN: Rejected; nothing written
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	_, err := f.service.CreateRequest(ctx, leave.CreateInput{
		EmployeeID: alice,
		StartDate:  leave.NewDate(2025, time.July, 7),  // Mon
		EndDate:    leave.NewDate(2025, time.August, 1), // Fri, 20 business days
	})

	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	var balErr *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, 20, balErr.Requested)
	assert.Equal(t, 15, balErr.Remaining)
	assert.Equal(t, 5, balErr.Shortfall())

	// The failed creation left no trace.
	requests, err := f.service.ListRequests(ctx, leave.Filter{})
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}

func TestCreateRequest_ExactRemainingBalanceSucceeds(t *testing.T) {
	// The balance boundary is inclusive: requesting exactly the remaining
	// days is allowed, remaining lands on zero.
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()

	// 20 business days = whole entitlement.
	req := mustCreate(t, f, leave.CreateInput{
		EmployeeID: alice,
		StartDate:  leave.NewDate(2025, time.July, 7),
		EndDate:    leave.NewDate(2025, time.August, 1),
	})
	require.Equal(t, 20, req.TotalDays)

	snap, err := f.service.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Remaining)
}

func TestCreateRequest_OverlapRejected(t *testing.T) {
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	first := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	// Jun 5..9 shares Jun 5 and 6 with the pending request.
	_, err := f.service.CreateRequest(ctx, leave.CreateInput{
		EmployeeID: alice,
		StartDate:  leave.NewDate(2025, time.June, 5),
		EndDate:    leave.NewDate(2025, time.June, 9),
	})

	assert.ErrorIs(t, err, leave.ErrOverlappingRequest)

	var overlapErr *leave.OverlapError
	require.ErrorAs(t, err, &overlapErr)
	assert.Equal(t, first.ID, overlapErr.ConflictingID)
}

func TestCreateRequest_OverlapFromEitherSide(t *testing.T) {
	// An earlier range that runs into the existing one is just as rejected
	// as a later one.
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	start, end := juneWeek()
	mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	_, err := f.service.CreateRequest(context.Background(), leave.CreateInput{
		EmployeeID: alice,
		StartDate:  leave.NewDate(2025, time.May, 29),
		EndDate:    leave.NewDate(2025, time.June, 2),
	})
	assert.ErrorIs(t, err, leave.ErrOverlappingRequest)
}

func TestCreateRequest_NoOverlapAcrossEmployees(t *testing.T) {
	// Overlap is per-employee: Dave may take the same week as Alice.
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	start, end := juneWeek()
	mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})
	mustCreate(t, f, leave.CreateInput{EmployeeID: dave, StartDate: start, EndDate: end})
}

func TestCreateRequest_ClosedRequestsDoNotBlock(t *testing.T) {
	// GIVEN: A denied request for the week
	// WHEN: Alice re-requests the same week
	// THEN: DENIED holds no days, so the new request succeeds
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	first := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	_, err := f.service.Deny(ctx, first.ID, bob, "coverage gap")
	require.NoError(t, err)

	mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})
}

func TestCreateRequest_SickLeaveSkipsBalanceButNotOverlap(t *testing.T) {
	// GIVEN: Alice's entitlement is fully held by a pending annual request
	// THEN: Sick leave still goes through, but not on overlapping days
	f := newFixture(t, leave.Config{MinNoticeDays: 0})
	ctx := context.Background()
	mustCreate(t, f, leave.CreateInput{
		EmployeeID: alice,
		StartDate:  leave.NewDate(2025, time.July, 7),
		EndDate:    leave.NewDate(2025, time.August, 1), // 20 days, whole entitlement
	})

	sick := mustCreate(t, f, leave.CreateInput{
		EmployeeID: alice,
		Type:       leave.TypeSick,
		StartDate:  leave.NewDate(2025, time.June, 2),
		EndDate:    leave.NewDate(2025, time.June, 3),
	})
	assert.Equal(t, leave.TypeSick, sick.Type)

	// Sick days never appear in the annual balance.
	snap, err := f.service.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 20, snap.Pending)
	assert.Equal(t, 0, snap.Remaining)

	// But an employee cannot be away twice on the same day.
	_, err = f.service.CreateRequest(ctx, leave.CreateInput{
		EmployeeID: alice,
		Type:       leave.TypeSick,
		StartDate:  leave.NewDate(2025, time.July, 10),
		EndDate:    leave.NewDate(2025, time.July, 11),
	})
	assert.ErrorIs(t, err, leave.ErrOverlappingRequest)
}

func TestCreateRequest_UnknownLeaveType(t *testing.T) {
	f := newFixture(t, leave.Config{})

	start, end := juneWeek()
	_, err := f.service.CreateRequest(context.Background(), leave.CreateInput{
		EmployeeID: alice,
		Type:       leave.LeaveType("sabbatical"),
		StartDate:  start,
		EndDate:    end,
	})
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestCreateRequest_ReasonTooLong(t *testing.T) {
	f := newFixture(t, leave.Config{MaxReasonLen: 10})

	start, end := juneWeek()
	_, err := f.service.CreateRequest(context.Background(), leave.CreateInput{
		EmployeeID: alice,
		StartDate:  start,
		EndDate:    end,
		Reason:     "this reason is well over ten characters",
	})
	assert.ErrorIs(t, err, leave.ErrReasonTooLong)
}

func TestCreateRequest_UnknownEmployee(t *testing.T) {
	f := newFixture(t, leave.Config{})

	start, end := juneWeek()
	_, err := f.service.CreateRequest(context.Background(), leave.CreateInput{
		EmployeeID: "ghost",
		StartDate:  start,
		EndDate:    end,
	})
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// APPROVE / DENY
// =============================================================================

func TestApprove_MovesPendingToUsed(t *testing.T) {
	// GIVEN: Alice's pending 5-day request
	// WHEN: Bob (nyc manager) approves it
	// THEN: used 5, pending 0, remaining 15 - one atomic move
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	approved, err := f.service.Approve(ctx, req.ID, bob)
	require.NoError(t, err)

	assert.Equal(t, leave.StatusApproved, approved.Status)
	assert.Equal(t, bob, approved.ReviewerID)
	require.NotNil(t, approved.DecidedAt)

	snap, err := f.service.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.Used)
	assert.Equal(t, 0, snap.Pending)
	assert.Equal(t, 15, snap.Remaining)
}

func TestApprove_SelfApprovalForbidden(t *testing.T) {
	// Even a manager cannot decide their own request.
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: bob, StartDate: start, EndDate: end})

	_, err := f.service.Approve(context.Background(), req.ID, bob)
	assert.ErrorIs(t, err, leave.ErrAuthorizationDenied)
}

func TestApprove_PeerWithoutAuthority(t *testing.T) {
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	_, err := f.service.Approve(context.Background(), req.ID, dave)
	assert.ErrorIs(t, err, leave.ErrAuthorizationDenied)
}

func TestApprove_ManagerScopedToLocation(t *testing.T) {
	// Erin manages sf; Alice is nyc. Admins cut across locations.
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	_, err := f.service.Approve(ctx, req.ID, erin)
	assert.ErrorIs(t, err, leave.ErrAuthorizationDenied)

	approved, err := f.service.Approve(ctx, req.ID, carol)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, approved.Status)
}

func TestApprove_TerminalStatesRejected(t *testing.T) {
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	_, err := f.service.Deny(ctx, req.ID, bob, "coverage")
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, req.ID, bob)
	assert.ErrorIs(t, err, leave.ErrInvalidStateTransition)

	var trErr *leave.TransitionError
	require.ErrorAs(t, err, &trErr)
	assert.Equal(t, leave.StatusDenied, trErr.From)
	assert.Equal(t, leave.StatusApproved, trErr.To)
}

func TestApprove_AlreadyApprovedRejected(t *testing.T) {
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	_, err := f.service.Approve(ctx, req.ID, bob)
	require.NoError(t, err)

	_, err = f.service.Approve(ctx, req.ID, carol)
	assert.ErrorIs(t, err, leave.ErrInvalidStateTransition)
}

func TestDeny_FreesHeldDays(t *testing.T) {
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	denied, err := f.service.Deny(ctx, req.ID, bob, "short staffed that week")
	require.NoError(t, err)
	assert.Equal(t, leave.StatusDenied, denied.Status)
	assert.Equal(t, "short staffed that week", denied.DecisionNote)

	snap, err := f.service.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Used)
	assert.Equal(t, 0, snap.Pending)
	assert.Equal(t, 20, snap.Remaining)
}

func TestDeny_NoteRequiredWhenConfigured(t *testing.T) {
	f := newFixture(t, leave.Config{MinNoticeDays: 14, RequireDecisionNote: true})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	_, err := f.service.Deny(ctx, req.ID, bob, "   ")
	assert.ErrorIs(t, err, leave.ErrDecisionNoteRequired)

	// The failed denial changed nothing.
	got, err := f.service.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, got.Status)

	_, err = f.service.Deny(ctx, req.ID, bob, "no coverage")
	assert.NoError(t, err)
}

func TestDeny_NoteOptionalByDefault(t *testing.T) {
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	_, err := f.service.Deny(context.Background(), req.ID, bob, "")
	assert.NoError(t, err)
}

func TestDecide_UnknownRequest(t *testing.T) {
	f := newFixture(t, leave.Config{})

	_, err := f.service.Approve(context.Background(), "missing", bob)
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

// =============================================================================
// CANCEL
// =============================================================================

func TestCancel_OwnerCancelsPending(t *testing.T) {
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	cancelled, err := f.service.Cancel(ctx, req.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, cancelled.Status)
	assert.Equal(t, alice, cancelled.CancelledBy)
	require.NotNil(t, cancelled.CancelledAt)

	snap, err := f.service.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 20, snap.Remaining)
}

func TestCancel_ApprovedRequiresAuthority(t *testing.T) {
	// GIVEN: An approved request for Alice
	// WHEN: Alice tries to retract it herself
	// THEN: Forbidden; a manager cancel succeeds and restores the days
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})
	_, err := f.service.Approve(ctx, req.ID, bob)
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, req.ID, alice)
	assert.ErrorIs(t, err, leave.ErrAuthorizationDenied)

	cancelled, err := f.service.Cancel(ctx, req.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusCancelled, cancelled.Status)

	snap, err := f.service.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Used)
	assert.Equal(t, 20, snap.Remaining)
}

func TestCancel_StrangerCannotCancelPending(t *testing.T) {
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	_, err := f.service.Cancel(context.Background(), req.ID, dave)
	assert.ErrorIs(t, err, leave.ErrAuthorizationDenied)
}

func TestCancel_SecondCancelFails(t *testing.T) {
	// Cancellation is not idempotent: the second attempt reports the
	// invalid transition instead of silently succeeding.
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})

	_, err := f.service.Cancel(ctx, req.ID, alice)
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, req.ID, alice)
	assert.ErrorIs(t, err, leave.ErrInvalidStateTransition)
}

func TestCancel_DeniedCannotBeCancelled(t *testing.T) {
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})
	_, err := f.service.Deny(ctx, req.ID, bob, "nope")
	require.NoError(t, err)

	_, err = f.service.Cancel(ctx, req.ID, alice)
	assert.ErrorIs(t, err, leave.ErrInvalidStateTransition)
}

func TestCancel_FreedDaysAreReusable(t *testing.T) {
	// Cancelling releases both the held days and the date range.
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})
	_, err := f.service.Cancel(ctx, req.ID, alice)
	require.NoError(t, err)

	mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})
}

// =============================================================================
// AUDIT AND EVENTS
// =============================================================================

func TestLifecycle_WritesAuditTrail(t *testing.T) {
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})
	_, err := f.service.Approve(ctx, req.ID, bob)
	require.NoError(t, err)
	_, err = f.service.Cancel(ctx, req.ID, bob)
	require.NoError(t, err)

	entries, err := f.audit.ByRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, leave.AuditRequestCreated, entries[0].Action)
	assert.Equal(t, leave.AuditRequestApproved, entries[1].Action)
	assert.Equal(t, leave.AuditRequestCancelled, entries[2].Action)
	assert.Equal(t, bob, entries[1].ActorID)
}

func TestLifecycle_EmitsEventsWithSnapshots(t *testing.T) {
	// Every event carries the post-transition balance.
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()
	req := mustCreate(t, f, leave.CreateInput{EmployeeID: alice, StartDate: start, EndDate: end})
	_, err := f.service.Approve(ctx, req.ID, bob)
	require.NoError(t, err)

	events := f.events.all()
	require.Len(t, events, 2)

	assert.Equal(t, leave.EventRequestCreated, events[0].Type)
	assert.Equal(t, 5, events[0].Snapshot.Pending)
	assert.Equal(t, 0, events[0].Snapshot.Used)

	assert.Equal(t, leave.EventRequestApproved, events[1].Type)
	assert.Equal(t, 0, events[1].Snapshot.Pending)
	assert.Equal(t, 5, events[1].Snapshot.Used)
	assert.Equal(t, bob, events[1].ActorID)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestConcurrentCreates_OverlapAdmitsExactlyOne(t *testing.T) {
	// GIVEN: Two goroutines requesting the same week for the same employee
	// THEN: The per-employee lock admits exactly one
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()
	start, end := juneWeek()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.CreateRequest(ctx, leave.CreateInput{
				EmployeeID: alice, StartDate: start, EndDate: end,
			})
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, leave.ErrOverlappingRequest)
			failures++
		}
	}
	assert.Equal(t, 1, failures)

	requests, err := f.service.ListRequests(ctx, leave.Filter{})
	require.NoError(t, err)
	assert.Len(t, requests, 1)
}

func TestConcurrentCreates_BalanceNeverOversubscribed(t *testing.T) {
	// GIVEN: 20 days entitlement and several disjoint 5-day requests in flight
	// THEN: At most 4 can be admitted, whatever the interleaving
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()

	weeks := []leave.Date{
		leave.NewDate(2025, time.June, 2),
		leave.NewDate(2025, time.June, 9),
		leave.NewDate(2025, time.June, 16),
		leave.NewDate(2025, time.June, 23),
		leave.NewDate(2025, time.June, 30),
		leave.NewDate(2025, time.July, 7),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(weeks))
	for i, monday := range weeks {
		wg.Add(1)
		go func(i int, monday leave.Date) {
			defer wg.Done()
			_, errs[i] = f.service.CreateRequest(ctx, leave.CreateInput{
				EmployeeID: alice,
				StartDate:  monday,
				EndDate:    monday.AddDays(4),
			})
		}(i, monday)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, leave.ErrInsufficientBalance)
		}
	}
	assert.Equal(t, 4, admitted)

	snap, err := f.service.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 20, snap.Pending)
	assert.Equal(t, 0, snap.Remaining)
}

// =============================================================================
// END TO END
// =============================================================================

func TestLifecycle_EndToEnd(t *testing.T) {
	// The full walkthrough: create, approve, conflicting create, exhausting
	// create, each observed through the derived balance.
	f := newFixture(t, leave.Config{MinNoticeDays: 14})
	ctx := context.Background()

	// Alice requests Mon Jun 2 .. Fri Jun 6: totalDays 5.
	req := mustCreate(t, f, leave.CreateInput{
		EmployeeID: alice,
		StartDate:  leave.NewDate(2025, time.June, 2),
		EndDate:    leave.NewDate(2025, time.June, 6),
	})
	require.Equal(t, 5, req.TotalDays)

	snap, err := f.service.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, leave.BalanceSnapshot{
		EmployeeID: alice, Entitlement: 20, Used: 0, Pending: 5, Remaining: 15,
	}, snap)

	// Bob approves: pending moves to used.
	_, err = f.service.Approve(ctx, req.ID, bob)
	require.NoError(t, err)

	snap, err = f.service.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, leave.BalanceSnapshot{
		EmployeeID: alice, Entitlement: 20, Used: 5, Pending: 0, Remaining: 15,
	}, snap)

	// Jun 5..9 overlaps the approved week.
	_, err = f.service.CreateRequest(ctx, leave.CreateInput{
		EmployeeID: alice,
		StartDate:  leave.NewDate(2025, time.June, 5),
		EndDate:    leave.NewDate(2025, time.June, 9),
	})
	assert.ErrorIs(t, err, leave.ErrOverlappingRequest)

	// 20 business days in July exceed the 15 remaining.
	_, err = f.service.CreateRequest(ctx, leave.CreateInput{
		EmployeeID: alice,
		StartDate:  leave.NewDate(2025, time.July, 7),
		EndDate:    leave.NewDate(2025, time.August, 1),
	})
	assert.ErrorIs(t, err, leave.ErrInsufficientBalance)

	// Balance is untouched by the failed attempts.
	snap, err = f.service.Balance(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 15, snap.Remaining)
}
