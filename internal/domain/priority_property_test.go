package domain

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// genValidPriority generates valid TaskPriority values for property testing
func genValidPriority() *rapid.Generator[TaskPriority] {
	return rapid.SampledFrom([]TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent})
}

func isValidPriorityString(s string) bool {
	switch s {
	case "LOW", "MEDIUM", "HIGH", "URGENT":
		return true
	}
	return false
}

// TestTaskPriority_InvalidPrioritiesFail tests that invalid priorities fail validation
func TestTaskPriority_InvalidPrioritiesFail(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.OneOf(
			rapid.SampledFrom([]string{"", "low", "High ", " URGENT", "P0", "CRITICAL"}),
			rapid.StringMatching(`[A-Za-z]{1,10}`),
		).Filter(func(s string) bool { return !isValidPriorityString(s) }).Draw(t, "invalid_priority")

		err := TaskPriority(s).Validate()
		if err == nil {
			t.Fatalf("invalid priority %q should fail validation", s)
		}
		if !strings.Contains(err.Error(), "must be LOW, MEDIUM, HIGH, or URGENT") {
			t.Errorf("error should mention valid values: %v", err)
		}
	})
}

// TestTaskPriority_ComparisonIsAntisymmetric tests that a > b implies !(b > a)
func TestTaskPriority_ComparisonIsAntisymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genValidPriority().Draw(t, "a")
		b := genValidPriority().Draw(t, "b")

		if a.IsHigherThan(b) && b.IsHigherThan(a) {
			t.Fatalf("%s and %s are both higher than each other", a, b)
		}
		if a.IsHigherThan(b) != b.IsLowerThan(a) {
			t.Fatalf("IsHigherThan and IsLowerThan disagree for %s, %s", a, b)
		}
	})
}

// TestTaskPriority_ComparisonIsTransitive tests that a > b and b > c imply a > c
func TestTaskPriority_ComparisonIsTransitive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := genValidPriority().Draw(t, "a")
		b := genValidPriority().Draw(t, "b")
		c := genValidPriority().Draw(t, "c")

		if a.IsHigherThan(b) && b.IsHigherThan(c) && !a.IsHigherThan(c) {
			t.Fatalf("transitivity violated: %s > %s > %s", a, b, c)
		}
	})
}

// TestTaskPriority_RoundTripThroughString tests that priorities survive String()
func TestTaskPriority_RoundTripThroughString(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := genValidPriority().Draw(t, "priority")

		back, err := NewTaskPriority(p.String())
		if err != nil {
			t.Fatalf("round-trip should not produce error: %v", err)
		}
		if back != p {
			t.Fatalf("round-trip should preserve value: %q != %q", p, back)
		}
	})
}
