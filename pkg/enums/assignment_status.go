package enums

import "fmt"

// AssignmentStatus tracks one collector's or crew's unit of work on an order.
type AssignmentStatus string

const (
	AssignmentStatusPending    AssignmentStatus = "pending"
	AssignmentStatusInProgress AssignmentStatus = "in_progress"
	AssignmentStatusCompleted  AssignmentStatus = "completed"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusPending,
	AssignmentStatusInProgress,
	AssignmentStatusCompleted,
}

// Assignments only move forward: pending -> in_progress -> completed.
var assignmentStatusTransitions = map[AssignmentStatus][]AssignmentStatus{
	AssignmentStatusPending:    {AssignmentStatusInProgress, AssignmentStatusCompleted},
	AssignmentStatusInProgress: {AssignmentStatusCompleted},
	AssignmentStatusCompleted:  {},
}

// String implements fmt.Stringer.
func (a AssignmentStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssignmentStatus.
func (a AssignmentStatus) IsValid() bool {
	for _, candidate := range validAssignmentStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the requested status is reachable from the
// current one.
func (a AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	for _, candidate := range assignmentStatusTransitions[a] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseAssignmentStatus converts raw input into an AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	for _, candidate := range validAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment status %q", value)
}
