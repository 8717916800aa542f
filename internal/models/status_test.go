package models

import "testing"

func TestProject(t *testing.T) {
	tests := []struct {
		name   string
		status AnalysisStatus
		want   PresentationState
	}{
		{"pending", StatusPending, StatePending},
		{"processing", StatusProcessing, StateProcessing},
		{"completed", StatusCompleted, StateCompleted},
		{"failed", StatusFailed, StateFailed},
		{"unrecognized maps to pending", AnalysisStatus("unknown"), StatePending},
		{"empty maps to pending", AnalysisStatus(""), StatePending},
		{"future status maps to pending", AnalysisStatus("queued_v2"), StatePending},
		{"case mismatch maps to pending", AnalysisStatus("Completed"), StatePending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Project(tt.status); got != tt.want {
				t.Errorf("Project(%q) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestAnalysisStatusCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from AnalysisStatus
		to   AnalysisStatus
		want bool
	}{
		{"pending to processing", StatusPending, StatusProcessing, true},
		{"pending to failed", StatusPending, StatusFailed, true},
		{"pending to completed skips processing", StatusPending, StatusCompleted, false},
		{"processing to completed", StatusProcessing, StatusCompleted, true},
		{"processing to failed", StatusProcessing, StatusFailed, true},
		{"processing back to pending", StatusProcessing, StatusPending, false},
		{"completed is terminal", StatusCompleted, StatusProcessing, false},
		{"failed is terminal", StatusFailed, StatusPending, false},
		{"completed to failed", StatusCompleted, StatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%v -> %v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestAnalysisStatusIsTerminal(t *testing.T) {
	if StatusPending.IsTerminal() || StatusProcessing.IsTerminal() {
		t.Error("pending and processing must not be terminal")
	}
	if !StatusCompleted.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Error("completed and failed must be terminal")
	}
}
