package constants

import "fmt"

// Valid job status graph:
//
//	pending ──► paid ──► in_progress ──► completed
//	                          │
//	                          └──────────► failed
//
// completed and failed are terminal.
var validTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusPaid},
	JobStatusPaid:       {JobStatusInProgress},
	JobStatusInProgress: {JobStatusCompleted, JobStatusFailed},
}

// ParseJobStatus converts a raw string to a JobStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	st := JobStatus(s)
	switch st {
	case JobStatusPending, JobStatusPaid, JobStatusInProgress, JobStatusCompleted, JobStatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// IsTransitionAllowed reports whether from -> to is an edge of the graph.
func IsTransitionAllowed(from, to JobStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s JobStatus) bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanStart reports whether a job in status s may be claimed for processing.
func CanStart(s JobStatus) bool {
	return IsTransitionAllowed(s, JobStatusInProgress)
}
