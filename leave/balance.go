/*
balance.go - Derived balance computation

PURPOSE:
  The balance is a read model: it is always recomputed from the set of
  requests plus the entitlement supplied by the directory. There is no
  stored counter that can drift.

WHY DERIVED?
  The obvious alternative - decrement a counter on approval, increment on
  cancellation - drifts the moment any write is missed or doubled. Replaying
  the request set makes the balance self-healing: the requests ARE the
  truth.

SEMANTICS:
  Used    = sum of TotalDays over APPROVED annual-leave requests
  Pending = sum of TotalDays over PENDING annual-leave requests
  Remaining = Entitlement - Used - Pending

  "Used" counts all APPROVED requests regardless of whether the dates have
  elapsed: approved leave is committed. DENIED and CANCELLED requests count
  for nothing. Non-annual leave types never touch the balance.

SEE ALSO:
  - service.go: Serializes recompute-validate-persist per employee
*/
package leave

import "context"

// Calculator computes balance snapshots on demand.
type Calculator struct {
	Requests  RequestStore
	Directory Directory
}

func NewCalculator(requests RequestStore, directory Directory) *Calculator {
	return &Calculator{Requests: requests, Directory: directory}
}

// Snapshot recomputes the employee's balance from the authoritative request
// set. Callers needing atomicity with a subsequent write must hold the
// employee's lock (see service.go); the calculator itself takes none.
func (c *Calculator) Snapshot(ctx context.Context, employeeID EmployeeID) (BalanceSnapshot, error) {
	entitlement, err := c.Directory.Entitlement(ctx, employeeID)
	if err != nil {
		return BalanceSnapshot{}, err
	}

	requests, err := c.Requests.ListByEmployee(ctx, employeeID)
	if err != nil {
		return BalanceSnapshot{}, err
	}

	return computeSnapshot(employeeID, entitlement, requests), nil
}

// WouldExceed reports whether adding additionalDays would push the balance
// negative. The boundary is inclusive: a request that consumes exactly the
// remaining balance is allowed.
func (c *Calculator) WouldExceed(ctx context.Context, employeeID EmployeeID, additionalDays int) (bool, BalanceSnapshot, error) {
	snap, err := c.Snapshot(ctx, employeeID)
	if err != nil {
		return false, BalanceSnapshot{}, err
	}
	return additionalDays > snap.Remaining, snap, nil
}

func computeSnapshot(employeeID EmployeeID, entitlement int, requests []*Request) BalanceSnapshot {
	snap := BalanceSnapshot{EmployeeID: employeeID, Entitlement: entitlement}
	for _, req := range requests {
		if !req.Type.CountsAgainstBalance() {
			continue
		}
		switch req.Status {
		case StatusApproved:
			snap.Used += req.TotalDays
		case StatusPending:
			snap.Pending += req.TotalDays
		}
	}
	snap.Remaining = snap.Entitlement - snap.Used - snap.Pending
	return snap
}
