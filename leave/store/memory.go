// Package store provides in-memory implementations of the leave
// persistence interfaces, for tests and development.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// MEMORY REQUEST STORE
// =============================================================================

type MemoryRequests struct {
	mu       sync.RWMutex
	requests map[leave.RequestID]leave.Request
	order    []leave.RequestID // insertion order, newest listed first
}

func NewMemoryRequests() *MemoryRequests {
	return &MemoryRequests{requests: make(map[leave.RequestID]leave.Request)}
}

func (m *MemoryRequests) Create(_ context.Context, req *leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[req.ID]; exists {
		return fmt.Errorf("request %s already exists", req.ID)
	}
	m.requests[req.ID] = *req
	m.order = append(m.order, req.ID)
	return nil
}

func (m *MemoryRequests) Update(_ context.Context, req *leave.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.requests[req.ID]; !exists {
		return &leave.NotFoundError{Kind: "request", ID: string(req.ID)}
	}
	m.requests[req.ID] = *req
	return nil
}

func (m *MemoryRequests) Get(_ context.Context, id leave.RequestID) (*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, &leave.NotFoundError{Kind: "request", ID: string(id)}
	}
	out := req
	return &out, nil
}

func (m *MemoryRequests) List(_ context.Context, filter leave.Filter) ([]*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*leave.Request
	for i := len(m.order) - 1; i >= 0; i-- {
		req := m.requests[m.order[i]]
		if filter.EmployeeID != nil && req.EmployeeID != *filter.EmployeeID {
			continue
		}
		if filter.Status != nil && req.Status != *filter.Status {
			continue
		}
		if filter.Range != nil && !req.Range().Overlaps(*filter.Range) {
			continue
		}
		out := req
		result = append(result, &out)
	}
	return result, nil
}

func (m *MemoryRequests) ListByEmployee(_ context.Context, employeeID leave.EmployeeID) ([]*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*leave.Request
	for _, id := range m.order {
		req := m.requests[id]
		if req.EmployeeID == employeeID {
			out := req
			result = append(result, &out)
		}
	}
	return result, nil
}

func (m *MemoryRequests) FindOverlapping(_ context.Context, employeeID leave.EmployeeID, r leave.DateRange) ([]*leave.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*leave.Request
	for _, id := range m.order {
		req := m.requests[id]
		if req.EmployeeID != employeeID || !req.IsOpen() {
			continue
		}
		if req.Range().Overlaps(r) {
			out := req
			result = append(result, &out)
		}
	}
	return result, nil
}

// =============================================================================
// MEMORY HOLIDAY STORE
// =============================================================================

type MemoryHolidays struct {
	mu       sync.RWMutex
	holidays map[string]leave.Holiday
}

func NewMemoryHolidays() *MemoryHolidays {
	return &MemoryHolidays{holidays: make(map[string]leave.Holiday)}
}

func (m *MemoryHolidays) HolidaysInRange(_ context.Context, locationID leave.LocationID, start, end leave.Date) (leave.HolidaySet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	window := leave.DateRange{Start: start, End: end}
	set := leave.NewHolidaySet()
	for _, h := range m.holidays {
		if h.LocationID != "" && h.LocationID != locationID {
			continue
		}
		if window.Contains(h.Date) {
			set.Add(h.Date)
		}
	}
	return set, nil
}

func (m *MemoryHolidays) Add(_ context.Context, h leave.Holiday) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holidays[h.ID] = h
	return nil
}

func (m *MemoryHolidays) Remove(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.holidays[id]; !ok {
		return &leave.NotFoundError{Kind: "holiday", ID: id}
	}
	delete(m.holidays, id)
	return nil
}

func (m *MemoryHolidays) List(_ context.Context) ([]leave.Holiday, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]leave.Holiday, 0, len(m.holidays))
	for _, h := range m.holidays {
		result = append(result, h)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// =============================================================================
// MEMORY DIRECTORY
// =============================================================================

// Role controls approval authority. Managers decide for their location,
// admins for everyone.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Employee is the directory record the engine consumes.
type Employee struct {
	ID          leave.EmployeeID
	Name        string
	LocationID  leave.LocationID
	Role        Role
	Entitlement int
}

type MemoryDirectory struct {
	mu        sync.RWMutex
	employees map[leave.EmployeeID]Employee
}

func NewMemoryDirectory(employees ...Employee) *MemoryDirectory {
	d := &MemoryDirectory{employees: make(map[leave.EmployeeID]Employee)}
	for _, e := range employees {
		d.employees[e.ID] = e
	}
	return d
}

func (d *MemoryDirectory) Put(e Employee) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees[e.ID] = e
}

func (d *MemoryDirectory) get(id leave.EmployeeID) (Employee, error) {
	e, ok := d.employees[id]
	if !ok {
		return Employee{}, &leave.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return e, nil
}

func (d *MemoryDirectory) Entitlement(_ context.Context, id leave.EmployeeID) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, err := d.get(id)
	if err != nil {
		return 0, err
	}
	return e.Entitlement, nil
}

func (d *MemoryDirectory) Location(_ context.Context, id leave.EmployeeID) (leave.LocationID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, err := d.get(id)
	if err != nil {
		return "", err
	}
	return e.LocationID, nil
}

func (d *MemoryDirectory) HasApprovalAuthorityOver(_ context.Context, reviewerID, employeeID leave.EmployeeID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	reviewer, err := d.get(reviewerID)
	if err != nil {
		return false, err
	}
	employee, err := d.get(employeeID)
	if err != nil {
		return false, err
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

func (d *MemoryDirectory) EmployeesAt(_ context.Context, locationID leave.LocationID) ([]leave.EmployeeID, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var ids []leave.EmployeeID
	for _, e := range d.employees {
		if e.LocationID == locationID {
			ids = append(ids, e.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// =============================================================================
// MEMORY AUDIT LOG
// =============================================================================

type MemoryAudit struct {
	mu      sync.RWMutex
	entries []leave.AuditEntry
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (m *MemoryAudit) Append(_ context.Context, entry leave.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryAudit) ByRequest(_ context.Context, id leave.RequestID) ([]leave.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []leave.AuditEntry
	for _, e := range m.entries {
		if e.RequestID == id {
			result = append(result, e)
		}
	}
	return result, nil
}

// All returns every entry, oldest first.
func (m *MemoryAudit) All() []leave.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]leave.AuditEntry, len(m.entries))
	copy(out, m.entries)
	return out
}
