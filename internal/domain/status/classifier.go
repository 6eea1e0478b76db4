// Package status classifies progress counts into completion states.
// It is the only place in the system where a completion status is decided.
package status

// ══════════════════════════════════════════════════════════════════════════════
// STATUS VALUE OBJECT
// ══════════════════════════════════════════════════════════════════════════════

// Status is the completion state of a tracked category.
type Status string

const (
	// NotStarted - nothing completed, or nothing required.
	NotStarted Status = "not_started"

	// InProgress - some but not all required items completed.
	InProgress Status = "in_progress"

	// Complete - required items completed (over-completion included).
	Complete Status = "complete"
)

// String returns the machine value of the status.
func (s Status) String() string {
	return string(s)
}

// Label returns the human-readable form used in summaries.
func (s Status) Label() string {
	switch s {
	case Complete:
		return "Complete"
	case InProgress:
		return "In progress"
	default:
		return "Not started"
	}
}

// IsValid reports whether s is one of the three known states.
func (s Status) IsValid() bool {
	switch s {
	case NotStarted, InProgress, Complete:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CLASSIFIER
// ══════════════════════════════════════════════════════════════════════════════

// Classify maps (completed, total) to a Status.
//
//	total == 0          -> NotStarted
//	completed >= total  -> Complete
//	completed > 0       -> InProgress
//	otherwise           -> NotStarted
//
// Negative counts are treated as zero.
func Classify(completed, total int) Status {
	if completed < 0 {
		completed = 0
	}
	if total <= 0 {
		return NotStarted
	}
	if completed >= total {
		return Complete
	}
	if completed > 0 {
		return InProgress
	}
	return NotStarted
}
