// Package recurrence computes the next occurrence of a recurring task.
// It is pure: no clock, no store, no I/O.
package recurrence

import (
	"time"

	"todoflow/pkg/task"
)

// NextOccurrence returns the due date of the occurrence after from.
// Monthly and yearly use fixed 30- and 365-day spans rather than calendar
// arithmetic; an unknown or empty recurrence type advances one day.
// Interval is applied as-is: callers enforce interval >= 1 at the boundary.
func NextOccurrence(from time.Time, recurrenceType string, interval int) time.Time {
	const day = 24 * time.Hour
	switch recurrenceType {
	case task.RecurDaily:
		return from.Add(time.Duration(interval) * day)
	case task.RecurWeekly:
		return from.Add(time.Duration(7*interval) * day)
	case task.RecurMonthly:
		return from.Add(time.Duration(30*interval) * day)
	case task.RecurYearly:
		return from.Add(time.Duration(365*interval) * day)
	}
	return from.Add(day)
}

// DeriveChild assembles the next occurrence from a completed parent's
// snapshot. Title, description, priority, tags and the recurrence settings
// carry over verbatim; id, timestamps and the completed flag never do.
func DeriveChild(parent *task.Task, nextDue time.Time, userID string) *task.Task {
	parentID := parent.ID
	return &task.Task{
		UserID:             userID,
		Title:              parent.Title,
		Description:        parent.Description,
		Completed:          false,
		Priority:           parent.Priority,
		Tags:               append([]string(nil), parent.Tags...),
		DueDate:            &nextDue,
		IsRecurring:        true,
		RecurrenceType:     parent.RecurrenceType,
		RecurrenceInterval: parent.RecurrenceInterval,
		ParentTaskID:       &parentID,
	}
}
