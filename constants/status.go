package constants

// DocumentStatus is the lifecycle status stored on a document row.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	StatusUploaded   DocumentStatus = "UPLOADED"   // created, never processed
	StatusProcessing DocumentStatus = "PROCESSING" // a run is in flight
	StatusCompleted  DocumentStatus = "COMPLETED"  // last run succeeded
	StatusError      DocumentStatus = "ERROR"      // last run failed
)

// RunnableStatuses are the statuses a new processing run may start from.
// PROCESSING is excluded: a stuck run has to be reset first.
var RunnableStatuses = []DocumentStatus{StatusUploaded, StatusError, StatusCompleted}

// CanTransition reports whether from -> to is an edge of the lifecycle graph.
func CanTransition(from, to DocumentStatus) bool {
	switch to {
	case StatusProcessing:
		return from.Runnable()
	case StatusCompleted, StatusError:
		return from == StatusProcessing
	default:
		return false
	}
}

// Runnable reports whether a new run may start from s.
func (s DocumentStatus) Runnable() bool {
	for _, r := range RunnableStatuses {
		if s == r {
			return true
		}
	}
	return false
}

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusError:
		return true
	}
	return false
}
