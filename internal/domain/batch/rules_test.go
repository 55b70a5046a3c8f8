package batch

import (
	"errors"
	"testing"

	"batchtrack/internal/errs"
)

func TestCanTransitionFollowsDefinedEdgesOnly(t *testing.T) {
	testCases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusMixing, StatusAwaitingQA, true},
		{StatusMixing, StatusRejected, true},
		{StatusMixing, StatusApproved, false},
		{StatusMixing, StatusOnHold, false},
		{StatusAwaitingQA, StatusAwaitingQA, true},
		{StatusAwaitingQA, StatusApproved, true},
		{StatusAwaitingQA, StatusOnHold, true},
		{StatusOnHold, StatusOnHold, true},
		{StatusOnHold, StatusAwaitingQA, false},
		{StatusOnHold, StatusApproved, false},
		{StatusApproved, StatusRejected, false},
		{StatusRejected, StatusMixing, false},
	}

	for _, tc := range testCases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestAuthorizeByRole(t *testing.T) {
	processor := Actor{ID: "p1", Role: RoleProcessor}
	qa := Actor{ID: "q1", Role: RoleQA}
	admin := Actor{ID: "a1", Role: RoleAdmin}

	allowed := []struct {
		actor  Actor
		action Action
	}{
		{processor, ActionCreate},
		{processor, ActionSubmitSample},
		{qa, ActionClaim},
		{qa, ActionDecide},
		{qa, ActionHold},
		{admin, ActionHold},
		{qa, ActionReject},
		{admin, ActionReject},
		{admin, ActionReassignProcessor},
		{admin, ActionReassignQA},
	}
	for _, tc := range allowed {
		if err := Authorize(tc.actor, tc.action); err != nil {
			t.Fatalf("Authorize(%s, %s) error = %v", tc.actor.Role, tc.action, err)
		}
	}

	denied := []struct {
		actor  Actor
		action Action
	}{
		{qa, ActionSubmitSample},
		{admin, ActionClaim},
		{processor, ActionDecide},
		{processor, ActionHold},
		{processor, ActionReject},
		{qa, ActionReassignQA},
		{processor, ActionReassignProcessor},
	}
	for _, tc := range denied {
		err := Authorize(tc.actor, tc.action)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("Authorize(%s, %s) error = %v, want ErrUnauthorized", tc.actor.Role, tc.action, err)
		}
		if errs.KindOf(err) != errs.KindUnauthorized {
			t.Fatalf("KindOf() = %q", errs.KindOf(err))
		}
	}
}

func TestEvaluateSubmit(t *testing.T) {
	for _, from := range []Status{StatusMixing, StatusAwaitingQA} {
		tr, err := EvaluateSubmit(State{Status: from})
		if err != nil {
			t.Fatalf("EvaluateSubmit(%s) error = %v", from, err)
		}
		if tr.To != StatusAwaitingQA {
			t.Fatalf("EvaluateSubmit(%s) to = %s", from, tr.To)
		}
	}

	for _, from := range []Status{StatusOnHold, StatusApproved, StatusRejected} {
		if _, err := EvaluateSubmit(State{Status: from}); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("EvaluateSubmit(%s) error = %v, want ErrInvalidState", from, err)
		}
	}
}

func TestEvaluateClaim(t *testing.T) {
	if _, err := EvaluateClaim(State{Status: StatusAwaitingQA}); err != nil {
		t.Fatalf("EvaluateClaim() error = %v", err)
	}

	_, err := EvaluateClaim(State{Status: StatusAwaitingQA, QACurrentID: "q1"})
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("EvaluateClaim(claimed) error = %v, want ErrAlreadyClaimed", err)
	}

	_, err = EvaluateClaim(State{Status: StatusMixing})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("EvaluateClaim(mixing) error = %v, want ErrInvalidState", err)
	}
}

func TestEvaluateDecision(t *testing.T) {
	open := State{Status: StatusAwaitingQA}

	tr, err := EvaluateDecision(open, Decision{SampleResult: ResultPending, Result: ResultApproved})
	if err != nil {
		t.Fatalf("EvaluateDecision(approve) error = %v", err)
	}
	if tr.To != StatusApproved {
		t.Fatalf("approve to = %s", tr.To)
	}

	tr, err = EvaluateDecision(open, Decision{SampleResult: ResultPending, Result: ResultDenied, Notes: "too viscous"})
	if err != nil {
		t.Fatalf("EvaluateDecision(deny) error = %v", err)
	}
	if tr.To != StatusAwaitingQA || tr.Changed() {
		t.Fatalf("deny transition = %+v", tr)
	}

	_, err = EvaluateDecision(open, Decision{SampleResult: ResultPending, Result: ResultDenied, Notes: "  "})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "notes" {
		t.Fatalf("EvaluateDecision(deny without notes) error = %v, want notes ValidationError", err)
	}

	_, err = EvaluateDecision(open, Decision{SampleResult: ResultDenied, Result: ResultApproved})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("EvaluateDecision(decided sample) error = %v, want ErrInvalidState", err)
	}

	_, err = EvaluateDecision(State{Status: StatusApproved}, Decision{SampleResult: ResultPending, Result: ResultApproved})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("EvaluateDecision(approved batch) error = %v, want ErrInvalidState", err)
	}

	_, err = EvaluateDecision(State{Status: StatusOnHold}, Decision{SampleResult: ResultPending, Result: ResultApproved})
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("EvaluateDecision(on hold) error = %v, want ErrInvalidState", err)
	}
}

func TestEvaluateHoldAndReject(t *testing.T) {
	if _, err := EvaluateHold(State{Status: StatusAwaitingQA}); err != nil {
		t.Fatalf("EvaluateHold(awaitingQA) error = %v", err)
	}
	tr, err := EvaluateHold(State{Status: StatusOnHold})
	if err != nil {
		t.Fatalf("EvaluateHold(onHold) error = %v", err)
	}
	if tr.Changed() {
		t.Fatalf("hold again should be a self-loop, got %+v", tr)
	}
	if _, err := EvaluateHold(State{Status: StatusMixing}); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("EvaluateHold(mixing) error = %v", err)
	}

	for _, from := range []Status{StatusMixing, StatusAwaitingQA, StatusOnHold} {
		if _, err := EvaluateReject(State{Status: from}); err != nil {
			t.Fatalf("EvaluateReject(%s) error = %v", from, err)
		}
	}
	for _, from := range []Status{StatusApproved, StatusRejected} {
		if _, err := EvaluateReject(State{Status: from}); !errors.Is(err, ErrInvalidState) {
			t.Fatalf("EvaluateReject(%s) error = %v", from, err)
		}
	}
}

func TestTerminalStatesRejectEveryIntent(t *testing.T) {
	for _, status := range []Status{StatusApproved, StatusRejected} {
		state := State{Status: status}
		checks := map[string]error{}
		_, checks["submit"] = EvaluateSubmit(state)
		_, checks["claim"] = EvaluateClaim(state)
		_, checks["decide"] = EvaluateDecision(state, Decision{SampleResult: ResultPending, Result: ResultApproved})
		_, checks["hold"] = EvaluateHold(state)
		_, checks["reject"] = EvaluateReject(state)
		_, checks["reassign"] = EvaluateReassign(ActionReassignQA, state)

		for name, err := range checks {
			if !errors.Is(err, ErrInvalidState) {
				t.Fatalf("%s on %s error = %v, want ErrInvalidState", name, status, err)
			}
		}
	}
}
