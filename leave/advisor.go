/*
advisor.go - Conflict advisor for manager decision support

PURPOSE:
  Answers "how much of this location is already away in that window?".
  Purely advisory: the lifecycle manager never consults it, and a high
  ratio never blocks creation. Callers surface a warning when the ratio
  crosses their configured threshold.
*/
package leave

import (
	"context"

	"github.com/shopspring/decimal"
)

// DefaultWarnThreshold flags windows where 30% or more of a location is
// already on leave.
var DefaultWarnThreshold = decimal.NewFromFloat(0.3)

// ConflictReport summarizes concurrent leave at a location for a window.
type ConflictReport struct {
	LocationID LocationID
	Range      DateRange
	OnLeave    int
	Headcount  int
	// Ratio = OnLeave / Headcount, in [0, 1]. Zero when the location is empty.
	Ratio          decimal.Decimal
	AboveThreshold bool
}

// Advisor computes concurrent-leave ratios.
type Advisor struct {
	Requests  RequestStore
	Directory Directory

	// WarnThreshold marks reports as AboveThreshold at or over this ratio.
	// Zero value falls back to DefaultWarnThreshold.
	WarnThreshold decimal.Decimal
}

func NewAdvisor(requests RequestStore, directory Directory) *Advisor {
	return &Advisor{Requests: requests, Directory: directory, WarnThreshold: DefaultWarnThreshold}
}

func (a *Advisor) threshold() decimal.Decimal {
	if a.WarnThreshold.IsZero() {
		return DefaultWarnThreshold
	}
	return a.WarnThreshold
}

// ConcurrentLeaveRatio reports the proportion of employees at the location
// with an open (PENDING or APPROVED) request overlapping [start, end].
func (a *Advisor) ConcurrentLeaveRatio(ctx context.Context, locationID LocationID, start, end Date) (ConflictReport, error) {
	window := DateRange{Start: start, End: end}
	report := ConflictReport{LocationID: locationID, Range: window}

	employees, err := a.Directory.EmployeesAt(ctx, locationID)
	if err != nil {
		return report, err
	}
	report.Headcount = len(employees)
	if report.Headcount == 0 {
		report.Ratio = decimal.Zero
		return report, nil
	}

	for _, emp := range employees {
		overlapping, err := a.Requests.FindOverlapping(ctx, emp, window)
		if err != nil {
			return report, err
		}
		if len(overlapping) > 0 {
			report.OnLeave++
		}
	}

	report.Ratio = decimal.NewFromInt(int64(report.OnLeave)).
		Div(decimal.NewFromInt(int64(report.Headcount)))
	report.AboveThreshold = report.Ratio.GreaterThanOrEqual(a.threshold())
	return report, nil
}
