package domain

import "fmt"

// TaskPriority represents a task priority level.
// This is a value object that enforces valid priority values.
type TaskPriority string

// Valid priority levels
const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

// NewTaskPriority creates a new TaskPriority value object with validation
func NewTaskPriority(value string) (TaskPriority, error) {
	p := TaskPriority(value)
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// Validate checks if the priority is valid
func (p TaskPriority) Validate() error {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return nil
	default:
		return fmt.Errorf("invalid priority %q: must be LOW, MEDIUM, HIGH, or URGENT", string(p))
	}
}

// String returns the string representation
func (p TaskPriority) String() string {
	return string(p)
}

// IsHigherThan checks if this priority is higher than another
func (p TaskPriority) IsHigherThan(other TaskPriority) bool {
	return priorityRank(p) > priorityRank(other)
}

// IsLowerThan checks if this priority is lower than another
func (p TaskPriority) IsLowerThan(other TaskPriority) bool {
	return priorityRank(p) < priorityRank(other)
}

// priorityRank returns the numeric rank of a priority (higher = more important)
func priorityRank(p TaskPriority) int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// TaskType categorizes a task. The empty value means unset.
type TaskType string

const (
	TaskTypeBug         TaskType = "BUG"
	TaskTypeEnhancement TaskType = "ENHANCEMENT"
	TaskTypeNewFeature  TaskType = "NEW_FEATURE"
)

// Validate accepts the known types and the empty value.
func (t TaskType) Validate() error {
	switch t {
	case "", TaskTypeBug, TaskTypeEnhancement, TaskTypeNewFeature:
		return nil
	default:
		return fmt.Errorf("invalid task type %q: must be BUG, ENHANCEMENT, or NEW_FEATURE", string(t))
	}
}
