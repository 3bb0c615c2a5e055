package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// TaskCode is the human-facing identifier of a task, such as "DQ-142".
// This is a value object that enforces valid code formats.
type TaskCode string

// maxTaskCodeLength is the maximum allowed length for a task code
const maxTaskCodeLength = 50

// NewTaskCode creates a new TaskCode value object with validation.
// Surrounding whitespace is trimmed.
func NewTaskCode(value string) (TaskCode, error) {
	code := TaskCode(strings.TrimSpace(value))
	if err := code.Validate(); err != nil {
		return "", err
	}
	return code, nil
}

// Validate checks if the task code is valid
func (c TaskCode) Validate() error {
	s := string(c)

	if s == "" {
		return fmt.Errorf("task code cannot be empty")
	}

	if len(s) > maxTaskCodeLength {
		return fmt.Errorf("task code %q exceeds maximum length of %d characters", s, maxTaskCodeLength)
	}

	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return fmt.Errorf("task code %q cannot contain whitespace", s)
	}

	return nil
}

// String returns the string representation
func (c TaskCode) String() string {
	return string(c)
}

// Equals compares codes case-insensitively
func (c TaskCode) Equals(other TaskCode) bool {
	return strings.EqualFold(string(c), string(other))
}
