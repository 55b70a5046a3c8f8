package batch

import (
	"fmt"
	"strings"
)

type Action string

const (
	ActionCreate            Action = "create"
	ActionSubmitSample      Action = "submit_sample"
	ActionClaim             Action = "claim"
	ActionDecide            Action = "decide"
	ActionHold              Action = "hold"
	ActionReject            Action = "reject"
	ActionReassignProcessor Action = "reassign_processor"
	ActionReassignQA        Action = "reassign_qa"
)

var permittedRoles = map[Action][]Role{
	ActionCreate:            {RoleProcessor},
	ActionSubmitSample:      {RoleProcessor},
	ActionClaim:             {RoleQA},
	ActionDecide:            {RoleQA},
	ActionHold:              {RoleQA, RoleAdmin},
	ActionReject:            {RoleQA, RoleAdmin},
	ActionReassignProcessor: {RoleAdmin},
	ActionReassignQA:        {RoleAdmin},
}

// Authorize is evaluated before any state guard.
func Authorize(actor Actor, action Action) error {
	for _, role := range permittedRoles[action] {
		if actor.Role == role {
			return nil
		}
	}
	return unauthorized(action, actor.Role)
}

// State is the slice of a batch the guards need.
type State struct {
	Status      Status
	QACurrentID string
}

// Transition is the outcome of a guard: the status the batch moves to.
type Transition struct {
	From Status
	To   Status
}

func (t Transition) Changed() bool { return t.From != t.To }

func guard(action Action, from Status, to Status, allowed ...Status) (Transition, error) {
	if from.IsTerminal() {
		return Transition{}, invalidState(action, from)
	}
	for _, s := range allowed {
		if s == from && CanTransition(from, to) {
			return Transition{From: from, To: to}, nil
		}
	}
	return Transition{}, invalidState(action, from)
}

func EvaluateSubmit(state State) (Transition, error) {
	return guard(ActionSubmitSample, state.Status, StatusAwaitingQA, StatusMixing, StatusAwaitingQA)
}

// EvaluateClaim lets the first QA claim win; later claims see ErrAlreadyClaimed.
func EvaluateClaim(state State) (Transition, error) {
	t, err := guard(ActionClaim, state.Status, StatusAwaitingQA, StatusAwaitingQA)
	if err != nil {
		return Transition{}, err
	}
	if strings.TrimSpace(state.QACurrentID) != "" {
		return Transition{}, fmt.Errorf("%w by %s", ErrAlreadyClaimed, state.QACurrentID)
	}
	return t, nil
}

// Decision is a QA verdict on one sample.
type Decision struct {
	SampleResult SampleResult
	Result       SampleResult
	Notes        string
}

// EvaluateDecision checks the batch and the targeted sample. The first
// approval ends the batch even when other samples are still pending.
func EvaluateDecision(state State, d Decision) (Transition, error) {
	if d.Result != ResultApproved && d.Result != ResultDenied {
		return Transition{}, &ValidationError{Field: "result", Reason: "must be approved or denied"}
	}
	if d.Result == ResultDenied && strings.TrimSpace(d.Notes) == "" {
		return Transition{}, &ValidationError{Field: "notes", Reason: "are required when denying a sample"}
	}

	to := StatusAwaitingQA
	if d.Result == ResultApproved {
		to = StatusApproved
	}
	t, err := guard(ActionDecide, state.Status, to, StatusAwaitingQA)
	if err != nil {
		return Transition{}, err
	}
	if d.SampleResult != ResultPending {
		return Transition{}, fmt.Errorf("%w: sample already %s", ErrInvalidState, d.SampleResult)
	}
	return t, nil
}

func EvaluateHold(state State) (Transition, error) {
	return guard(ActionHold, state.Status, StatusOnHold, StatusAwaitingQA, StatusOnHold)
}

func EvaluateReject(state State) (Transition, error) {
	return guard(ActionReject, state.Status, StatusRejected, StatusMixing, StatusAwaitingQA, StatusOnHold)
}

// EvaluateReassign permits staff changes in any open status without moving it.
func EvaluateReassign(action Action, state State) (Transition, error) {
	if state.Status.IsTerminal() {
		return Transition{}, invalidState(action, state.Status)
	}
	return Transition{From: state.Status, To: state.Status}, nil
}
