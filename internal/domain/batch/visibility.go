package batch

import "time"

// ArchiveAfter is how long an approved batch stays in the active view.
const ArchiveAfter = 7 * 24 * time.Hour

type View string

const (
	ViewActive  View = "active"
	ViewQAQueue View = "qa-queue"
	ViewArchive View = "archive"
	ViewSamples View = "samples"
)

func ParseView(raw string) (View, error) {
	switch View(raw) {
	case ViewActive, ViewQAQueue, ViewArchive, ViewSamples:
		return View(raw), nil
	default:
		return "", &ValidationError{Field: "view", Reason: "must be active, qa-queue, archive or samples"}
	}
}

func approvedCutoff(now time.Time) time.Time {
	return now.Add(-ArchiveAfter)
}

// IsActive: open batches plus batches approved within the window.
func IsActive(status Status, lastUpdated time.Time, now time.Time) bool {
	switch status {
	case StatusMixing, StatusAwaitingQA, StatusOnHold:
		return true
	case StatusApproved:
		return !lastUpdated.Before(approvedCutoff(now))
	default:
		return false
	}
}

// IsArchived is the complement of IsActive for closed batches.
func IsArchived(status Status, lastUpdated time.Time, now time.Time) bool {
	switch status {
	case StatusRejected:
		return true
	case StatusApproved:
		return lastUpdated.Before(approvedCutoff(now))
	default:
		return false
	}
}

func InQAQueue(status Status) bool {
	return status == StatusAwaitingQA
}

// Visible reports whether a batch belongs to view at now.
func Visible(view View, status Status, lastUpdated time.Time, now time.Time) bool {
	switch view {
	case ViewActive:
		return IsActive(status, lastUpdated, now)
	case ViewArchive:
		return IsArchived(status, lastUpdated, now)
	case ViewQAQueue:
		return InQAQueue(status)
	default:
		return false
	}
}
