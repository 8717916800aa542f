package models

// PresentationState is the display classification derived from an
// AnalysisStatus. The rendering layer consumes this, never the raw status.
type PresentationState string

const (
	StatePending    PresentationState = "Pending"
	StateProcessing PresentationState = "Processing"
	StateCompleted  PresentationState = "Completed"
	StateFailed     PresentationState = "Failed"
)

// Project maps a raw analysis status onto its presentation state.
// The mapping is total: any status this build does not recognize projects
// to StatePending, so an item with an unknown status stays visible
// instead of disappearing from the list.
func Project(s AnalysisStatus) PresentationState {
	switch s {
	case StatusProcessing:
		return StateProcessing
	case StatusCompleted:
		return StateCompleted
	case StatusFailed:
		return StateFailed
	default:
		return StatePending
	}
}
