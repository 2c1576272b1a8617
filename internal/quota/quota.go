// Package quota decides what a new job costs given the monthly included
// allowance.
package quota

import (
	"context"
	"fmt"
	"time"
)

// JobCounter counts a user's jobs created in [from, to).
type JobCounter interface {
	CountCreatedBetween(ctx context.Context, userID string, from, to time.Time) (int, error)
}

// Calculator holds the pricing knobs.
type Calculator struct {
	// Included is the number of free jobs per calendar month.
	Included int
	// StandardCost is charged once the allowance is used up.
	StandardCost int
	// Location fixes the month boundaries; nil means time.Local.
	Location *time.Location
}

// Decision is what the calculator concluded for one request.
type Decision struct {
	Cost           int
	Used           int
	Included       int
	WithinIncluded bool
}

// MonthRange returns the first instant of the month containing now and the
// first instant of the following month.
func (c *Calculator) MonthRange(now time.Time) (time.Time, time.Time) {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// MonthlyUsed counts the user's jobs created this month.
func (c *Calculator) MonthlyUsed(ctx context.Context, jobs JobCounter, userID string, now time.Time) (int, error) {
	start, end := c.MonthRange(now)
	n, err := jobs.CountCreatedBetween(ctx, userID, start, end)
	if err != nil {
		return 0, fmt.Errorf("quota: count monthly jobs: %w", err)
	}
	return n, nil
}

// IsWithinMonthlyIncluded reports whether the next job is still free.
func (c *Calculator) IsWithinMonthlyIncluded(ctx context.Context, jobs JobCounter, userID string, now time.Time) (bool, error) {
	used, err := c.MonthlyUsed(ctx, jobs, userID, now)
	if err != nil {
		return false, err
	}
	return used < c.Included, nil
}

// Decide computes the effective cost of the next job.
func (c *Calculator) Decide(ctx context.Context, jobs JobCounter, userID string, now time.Time) (Decision, error) {
	used, err := c.MonthlyUsed(ctx, jobs, userID, now)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{Used: used, Included: c.Included, WithinIncluded: used < c.Included}
	if !d.WithinIncluded {
		d.Cost = c.StandardCost
	}
	return d, nil
}
