/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements leave.RequestStore, leave.HolidayStore, leave.Directory and
  leave.AuditLog on a single SQLite database. The same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  requests:   Leave requests with frozen day counts and workflow state
  holidays:   Location-scoped and global non-working days
  employees:  Directory records (entitlement, location, role)
  audit_log:  Append-only trail of every transition

INDEXES:
  - idx_requests_employee_status: Overlap + balance queries (hot path)
  - idx_requests_dates:           Window queries for the conflict advisor
  - idx_holidays_location_date:   Calendar lookups

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The engine's per-employee
  serialization lives above this layer (leave/service.go); the store only
  guarantees individually consistent reads and writes.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/leave.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: Interface definitions
  - leave/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/leave-engine/leave"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ leave.RequestStore = (*Store)(nil)
	_ leave.HolidayStore = holidayView{}
	_ leave.Directory    = (*Store)(nil)
	_ leave.AuditLog     = (*Store)(nil)
)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Leave requests
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_days INTEGER NOT NULL,
		leave_type TEXT NOT NULL DEFAULT 'annual',
		status TEXT NOT NULL DEFAULT 'PENDING',
		reason TEXT,
		reviewer_id TEXT,
		decision_note TEXT,
		cancelled_by TEXT,
		created_at TEXT NOT NULL,
		decided_at TEXT,
		cancelled_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee_status
		ON requests(employee_id, status);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);
	CREATE INDEX IF NOT EXISTS idx_requests_dates
		ON requests(start_date, end_date);

	-- Holidays (location-specific; empty location_id = all locations)
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		location_id TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_holidays_location_date
		ON holidays(location_id, date);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(location_id, date, name);

	-- Employees (directory records)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		location_id TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'employee',
		entitlement_days INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_location
		ON employees(location_id);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		request_id TEXT NOT NULL,
		employee_id TEXT NOT NULL,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_request
		ON audit_log(request_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REQUEST STORE (leave.RequestStore interface)
// =============================================================================

// Create persists a new request.
func (s *Store) Create(ctx context.Context, req *leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO requests
		(id, employee_id, start_date, end_date, total_days, leave_type, status,
		 reason, reviewer_id, decision_note, cancelled_by, created_at, decided_at, cancelled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		req.ID,
		req.EmployeeID,
		req.StartDate.String(),
		req.EndDate.String(),
		req.TotalDays,
		req.Type,
		req.Status,
		nullString(req.Reason),
		nullString(string(req.ReviewerID)),
		nullString(req.DecisionNote),
		nullString(string(req.CancelledBy)),
		req.CreatedAt.UTC().Format(time.RFC3339),
		nullTime(req.DecidedAt),
		nullTime(req.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

// Update persists a status transition.
func (s *Store) Update(ctx context.Context, req *leave.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE requests
		SET status = ?, reviewer_id = ?, decision_note = ?, cancelled_by = ?,
		    decided_at = ?, cancelled_at = ?
		WHERE id = ?
	`

	res, err := s.db.ExecContext(ctx, query,
		req.Status,
		nullString(string(req.ReviewerID)),
		nullString(req.DecisionNote),
		nullString(string(req.CancelledBy)),
		nullTime(req.DecidedAt),
		nullTime(req.CancelledAt),
		req.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &leave.NotFoundError{Kind: "request", ID: string(req.ID)}
	}
	return nil
}

const requestColumns = `id, employee_id, start_date, end_date, total_days, leave_type, status,
		reason, reviewer_id, decision_note, cancelled_by, created_at, decided_at, cancelled_at`

// Get returns a single request.
func (s *Store) Get(ctx context.Context, id leave.RequestID) (*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	requests, err := s.queryRequests(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, &leave.NotFoundError{Kind: "request", ID: string(id)}
	}
	return requests[0], nil
}

// List returns requests matching the filter, most recent first.
func (s *Store) List(ctx context.Context, filter leave.Filter) ([]*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		conds []string
		args  []any
	)
	if filter.EmployeeID != nil {
		conds = append(conds, "employee_id = ?")
		args = append(args, *filter.EmployeeID)
	}
	if filter.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Range != nil {
		conds = append(conds, "start_date <= ? AND end_date >= ?")
		args = append(args, filter.Range.End.String(), filter.Range.Start.String())
	}

	query := `SELECT ` + requestColumns + ` FROM requests`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	return s.queryRequests(ctx, query, args...)
}

// ListByEmployee returns every request owned by the employee.
func (s *Store) ListByEmployee(ctx context.Context, employeeID leave.EmployeeID) ([]*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + requestColumns + ` FROM requests
		WHERE employee_id = ? ORDER BY created_at ASC, id ASC`
	return s.queryRequests(ctx, query, employeeID)
}

// FindOverlapping returns open requests whose span overlaps the range.
func (s *Store) FindOverlapping(ctx context.Context, employeeID leave.EmployeeID, r leave.DateRange) ([]*leave.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + requestColumns + ` FROM requests
		WHERE employee_id = ?
		  AND status IN (?, ?)
		  AND start_date <= ? AND end_date >= ?
		ORDER BY start_date ASC`

	return s.queryRequests(ctx, query,
		employeeID, leave.StatusPending, leave.StatusApproved,
		r.End.String(), r.Start.String())
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]*leave.Request, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []*leave.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func scanRequest(rows *sql.Rows) (*leave.Request, error) {
	var (
		req          leave.Request
		startDate    string
		endDate      string
		reason       sql.NullString
		reviewerID   sql.NullString
		decisionNote sql.NullString
		cancelledBy  sql.NullString
		createdAt    string
		decidedAt    sql.NullString
		cancelledAt  sql.NullString
	)

	err := rows.Scan(
		&req.ID, &req.EmployeeID, &startDate, &endDate, &req.TotalDays,
		&req.Type, &req.Status, &reason, &reviewerID, &decisionNote,
		&cancelledBy, &createdAt, &decidedAt, &cancelledAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan request: %w", err)
	}

	req.StartDate, err = leave.ParseDate(startDate)
	if err != nil {
		return nil, fmt.Errorf("bad start_date %q: %w", startDate, err)
	}
	req.EndDate, err = leave.ParseDate(endDate)
	if err != nil {
		return nil, fmt.Errorf("bad end_date %q: %w", endDate, err)
	}

	req.Reason = reason.String
	req.ReviewerID = leave.EmployeeID(reviewerID.String)
	req.DecisionNote = decisionNote.String
	req.CancelledBy = leave.EmployeeID(cancelledBy.String)
	req.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	req.DecidedAt = parseNullTime(decidedAt)
	req.CancelledAt = parseNullTime(cancelledAt)

	return &req, nil
}

// =============================================================================
// HOLIDAY STORE (leave.HolidayStore interface)
// =============================================================================

// HolidaysInRange returns the union of location-specific and global holiday
// dates intersecting [start, end].
func (s *Store) HolidaysInRange(ctx context.Context, locationID leave.LocationID, start, end leave.Date) (leave.HolidaySet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT date FROM holidays
		WHERE (location_id = '' OR location_id = ?)
		  AND date >= ? AND date <= ?
	`

	rows, err := s.db.QueryContext(ctx, query, locationID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	set := leave.NewHolidaySet()
	for rows.Next() {
		var ds string
		if err := rows.Scan(&ds); err != nil {
			return nil, err
		}
		d, err := leave.ParseDate(ds)
		if err != nil {
			return nil, fmt.Errorf("bad holiday date %q: %w", ds, err)
		}
		set.Add(d)
	}
	return set, rows.Err()
}

// Add registers a holiday.
func (s *Store) Add(ctx context.Context, h leave.Holiday) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO holidays (id, location_id, date, name, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		h.ID, h.LocationID, h.Date.String(), h.Name,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert holiday: %w", err)
	}
	return nil
}

// Remove deletes a holiday by ID.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holiday: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &leave.NotFoundError{Kind: "holiday", ID: id}
	}
	return nil
}

// Holidays returns the leave.HolidayStore view of the store. The holiday
// List method lives on a separate view type because Store.List is taken by
// leave.RequestStore, and Go does not allow two methods with the same name.
func (s *Store) Holidays() leave.HolidayStore {
	return holidayView{s}
}

type holidayView struct {
	*Store
}

// List returns all registered holidays, ordered by date.
func (v holidayView) List(ctx context.Context) ([]leave.Holiday, error) {
	s := v.Store
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, location_id, date, name FROM holidays ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query holidays: %w", err)
	}
	defer rows.Close()

	var holidays []leave.Holiday
	for rows.Next() {
		var (
			h  leave.Holiday
			ds string
		)
		if err := rows.Scan(&h.ID, &h.LocationID, &ds, &h.Name); err != nil {
			return nil, err
		}
		h.Date, err = leave.ParseDate(ds)
		if err != nil {
			return nil, fmt.Errorf("bad holiday date %q: %w", ds, err)
		}
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// EMPLOYEE DIRECTORY (leave.Directory interface)
// =============================================================================

// Role controls approval authority.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Employee is a stored directory record.
type Employee struct {
	ID          leave.EmployeeID
	Name        string
	Email       string
	LocationID  leave.LocationID
	Role        Role
	Entitlement int
	CreatedAt   time.Time
}

// SaveEmployee inserts or updates an employee record.
func (s *Store) SaveEmployee(ctx context.Context, e Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, email, location_id, role, entitlement_days, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			location_id = excluded.location_id,
			role = excluded.role,
			entitlement_days = excluded.entitlement_days
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.Name, e.Email, e.LocationID, e.Role, e.Entitlement,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// GetEmployee retrieves an employee, or nil if not found.
func (s *Store) GetEmployee(ctx context.Context, id leave.EmployeeID) (*Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEmployee(ctx, id)
}

func (s *Store) getEmployee(ctx context.Context, id leave.EmployeeID) (*Employee, error) {
	var (
		e         Employee
		email     sql.NullString
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, location_id, role, entitlement_days, created_at
		 FROM employees WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &email, &e.LocationID, &e.Role, &e.Entitlement, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	e.Email = email.String
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

// ListEmployees returns all employees.
func (s *Store) ListEmployees(ctx context.Context) ([]Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, location_id, role, entitlement_days, created_at
		 FROM employees ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []Employee
	for rows.Next() {
		var (
			e         Employee
			email     sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Name, &email, &e.LocationID, &e.Role, &e.Entitlement, &createdAt); err != nil {
			return nil, err
		}
		e.Email = email.String
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// Entitlement returns the employee's annual leave entitlement.
func (s *Store) Entitlement(ctx context.Context, id leave.EmployeeID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.getEmployee(ctx, id)
	if err != nil {
		return 0, err
	}
	if e == nil {
		return 0, &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return e.Entitlement, nil
}

// Location returns the employee's primary location.
func (s *Store) Location(ctx context.Context, id leave.EmployeeID) (leave.LocationID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.getEmployee(ctx, id)
	if err != nil {
		return "", err
	}
	if e == nil {
		return "", &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return e.LocationID, nil
}

// HasApprovalAuthorityOver reports whether the reviewer may decide requests
// for the employee: admins over everyone, managers over their location.
func (s *Store) HasApprovalAuthorityOver(ctx context.Context, reviewerID, employeeID leave.EmployeeID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reviewer, err := s.getEmployee(ctx, reviewerID)
	if err != nil {
		return false, err
	}
	if reviewer == nil {
		return false, &leave.NotFoundError{Kind: "employee", ID: string(reviewerID)}
	}
	employee, err := s.getEmployee(ctx, employeeID)
	if err != nil {
		return false, err
	}
	if employee == nil {
		return false, &leave.NotFoundError{Kind: "employee", ID: string(employeeID)}
	}

	switch reviewer.Role {
	case RoleAdmin:
		return true, nil
	case RoleManager:
		return reviewer.LocationID == employee.LocationID, nil
	default:
		return false, nil
	}
}

// EmployeesAt returns the employees assigned to a location.
func (s *Store) EmployeesAt(ctx context.Context, locationID leave.LocationID) ([]leave.EmployeeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM employees WHERE location_id = ? ORDER BY id ASC`, locationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query employees: %w", err)
	}
	defer rows.Close()

	var ids []leave.EmployeeID
	for rows.Next() {
		var id leave.EmployeeID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// AUDIT LOG (leave.AuditLog interface)
// =============================================================================

// Append writes one audit entry. Append-only: the table has no update path.
func (s *Store) Append(ctx context.Context, entry leave.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloadJSON, _ := json.Marshal(entry.Payload)

	query := `
		INSERT INTO audit_log (id, at, actor_id, action, request_id, employee_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		entry.At.UTC().Format(time.RFC3339),
		entry.ActorID,
		entry.Action,
		entry.RequestID,
		entry.EmployeeID,
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// ByRequest returns the audit trail for one request, oldest first.
func (s *Store) ByRequest(ctx context.Context, id leave.RequestID) ([]leave.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, actor_id, action, request_id, employee_id, payload_json
		 FROM audit_log WHERE request_id = ? ORDER BY at ASC, id ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []leave.AuditEntry
	for rows.Next() {
		var (
			entry       leave.AuditEntry
			at          string
			payloadJSON sql.NullString
		)
		if err := rows.Scan(&entry.ID, &at, &entry.ActorID, &entry.Action,
			&entry.RequestID, &entry.EmployeeID, &payloadJSON); err != nil {
			return nil, err
		}
		entry.At, _ = time.Parse(time.RFC3339, at)
		if payloadJSON.Valid && payloadJSON.String != "" {
			json.Unmarshal([]byte(payloadJSON.String), &entry.Payload)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}
