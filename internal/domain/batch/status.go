package batch

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusMixing     Status = "mixing"
	StatusAwaitingQA Status = "awaitingQA"
	StatusApproved   Status = "approved"
	StatusOnHold     Status = "onHold"
	StatusRejected   Status = "rejected"
)

// AllStatuses lists batch statuses in lifecycle order.
var AllStatuses = []Status{StatusMixing, StatusAwaitingQA, StatusOnHold, StatusApproved, StatusRejected}

// transitions is the only set of edges a batch status may follow.
var transitions = map[Status][]Status{
	StatusMixing:     {StatusAwaitingQA, StatusRejected},
	StatusAwaitingQA: {StatusAwaitingQA, StatusApproved, StatusOnHold, StatusRejected},
	StatusOnHold:     {StatusOnHold, StatusRejected},
}

func ParseStatus(raw string) (Status, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range AllStatuses {
		if strings.EqualFold(trimmed, string(s)) {
			return s, nil
		}
	}
	return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", raw)}
}

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether from -> to is a defined edge.
func CanTransition(from Status, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type SampleResult string

const (
	ResultPending  SampleResult = "pending"
	ResultApproved SampleResult = "approved"
	ResultDenied   SampleResult = "denied"
)

// ParseDecision accepts only the terminal results a QA decision may record.
func ParseDecision(raw string) (SampleResult, error) {
	switch SampleResult(strings.ToLower(strings.TrimSpace(raw))) {
	case ResultApproved:
		return ResultApproved, nil
	case ResultDenied:
		return ResultDenied, nil
	default:
		return "", &ValidationError{Field: "result", Reason: fmt.Sprintf("must be approved or denied, got %q", raw)}
	}
}
