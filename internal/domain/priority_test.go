package domain

import (
	"testing"
)

func TestNewTaskPriority(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    TaskPriority
		wantErr bool
	}{
		{name: "valid LOW", value: "LOW", want: PriorityLow},
		{name: "valid MEDIUM", value: "MEDIUM", want: PriorityMedium},
		{name: "valid HIGH", value: "HIGH", want: PriorityHigh},
		{name: "valid URGENT", value: "URGENT", want: PriorityUrgent},
		{name: "invalid lowercase", value: "high", wantErr: true},
		{name: "invalid empty", value: "", wantErr: true},
		{name: "invalid CRITICAL", value: "CRITICAL", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTaskPriority(tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewTaskPriority() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("NewTaskPriority() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTaskPriority_Ordering(t *testing.T) {
	ordered := []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

	for i := 0; i < len(ordered)-1; i++ {
		lower, higher := ordered[i], ordered[i+1]
		if !higher.IsHigherThan(lower) {
			t.Errorf("%s should be higher than %s", higher, lower)
		}
		if !lower.IsLowerThan(higher) {
			t.Errorf("%s should be lower than %s", lower, higher)
		}
	}
}

func TestTaskType_Validate(t *testing.T) {
	tests := []struct {
		taskType TaskType
		wantErr  bool
	}{
		{TaskTypeBug, false},
		{TaskTypeEnhancement, false},
		{TaskTypeNewFeature, false},
		{TaskType(""), false},
		{TaskType("CHORE"), true},
	}

	for _, tt := range tests {
		t.Run(string(tt.taskType), func(t *testing.T) {
			if err := tt.taskType.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
