package boardconsole

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/usecase/batch"
	"batchtrack/internal/usecase/feed"
)

type boardReader struct {
	batches map[domainbatch.View][]batch.BatchView
	samples map[string][]batch.SampleView
}

func (r *boardReader) ListView(_ context.Context, view domainbatch.View) ([]batch.BatchView, error) {
	return r.batches[view], nil
}

func (r *boardReader) ListSamples(_ context.Context, batchID string) ([]batch.SampleView, error) {
	return r.samples[batchID], nil
}

type recordingOperator struct {
	mu        sync.Mutex
	reader    *boardReader
	claims    []string
	decisions []batch.DecideSampleInput
}

func (o *recordingOperator) ListSamples(ctx context.Context, batchID string) ([]batch.SampleView, error) {
	return o.reader.ListSamples(ctx, batchID)
}

func (o *recordingOperator) SubmitSample(context.Context, batch.SubmitSampleInput) (string, error) {
	return "sample-new", nil
}

func (o *recordingOperator) DecideSample(_ context.Context, input batch.DecideSampleInput) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decisions = append(o.decisions, input)
	return nil
}

func (o *recordingOperator) ClaimForTesting(_ context.Context, input batch.ClaimInput) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.claims = append(o.claims, input.BatchID)
	return nil
}

func (o *recordingOperator) SetOnHold(context.Context, batch.HoldInput) error { return nil }

func (o *recordingOperator) RejectBatch(context.Context, batch.RejectInput) error { return nil }

func newBoardFixture(t *testing.T) (*boardModel, *recordingOperator) {
	t.Helper()

	reader := &boardReader{
		batches: map[domainbatch.View][]batch.BatchView{
			domainbatch.ViewActive: {
				{BatchID: "b-1", Formula: "F1", Deck: "Deck A", BatchNumber: "7", Status: domainbatch.StatusAwaitingQA, SampleCount: 1},
				{BatchID: "b-2", Formula: "F2", Deck: "Deck B", BatchNumber: "8", Status: domainbatch.StatusMixing},
			},
			domainbatch.ViewQAQueue: {
				{BatchID: "b-1", Formula: "F1", Deck: "Deck A", BatchNumber: "7", Status: domainbatch.StatusAwaitingQA, SampleCount: 1},
			},
		},
		samples: map[string][]batch.SampleView{
			"b-1": {{SampleID: "s-1", BatchID: "b-1", Attempt: 1, Result: domainbatch.ResultPending, SubmitterID: "proc-1"}},
		},
	}
	hub := feed.NewHub(reader, nil, nil, 0)
	operator := &recordingOperator{reader: reader}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	model := NewBoardModel(ctx, hub, operator, BoardOptions{
		Actor: domainbatch.Actor{ID: "qa-1", Role: domainbatch.RoleQA},
	}).(*boardModel)
	t.Cleanup(model.cancelSubscription)
	return model, operator
}

func receiveSnapshot(t *testing.T, model *boardModel) snapshotMsg {
	t.Helper()
	select {
	case msg := <-model.updates:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot delivered")
		return snapshotMsg{}
	}
}

func runCmd(t *testing.T, model *boardModel, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	model.Update(cmd())
}

func TestBoardShowsSubscribedView(t *testing.T) {
	model, _ := newBoardFixture(t)
	model.Init()

	msg := receiveSnapshot(t, model)
	_, cmd := model.Update(msg)
	if cmd == nil {
		t.Fatalf("Update(snapshot) returned no follow-up command")
	}
	if len(model.batches) != 2 {
		t.Fatalf("len(batches) = %d, want 2", len(model.batches))
	}

	runCmd(t, model, model.loadSamplesCmd())
	if model.samplesFor != "b-1" || len(model.samples) != 1 {
		t.Fatalf("samples = %+v for %q, want one sample for b-1", model.samples, model.samplesFor)
	}

	view := model.View()
	for _, want := range []string{"Batch Board", "F1/Deck A #7 [awaitingQA]", "#1 pending"} {
		if !strings.Contains(view, want) {
			t.Fatalf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestBoardTabSwitchesViewAndDropsStaleSnapshots(t *testing.T) {
	model, _ := newBoardFixture(t)
	model.Init()
	stale := receiveSnapshot(t, model)

	model.Update(tea.KeyMsg{Type: tea.KeyTab})
	if model.view != domainbatch.ViewQAQueue {
		t.Fatalf("view = %q, want %q", model.view, domainbatch.ViewQAQueue)
	}

	model.Update(stale)
	if len(model.batches) != 0 {
		t.Fatalf("stale snapshot applied: %+v", model.batches)
	}

	model.Update(receiveSnapshot(t, model))
	if len(model.batches) != 1 || model.batches[0].BatchID != "b-1" {
		t.Fatalf("batches = %+v, want queue with b-1", model.batches)
	}
}

func TestBoardActionsTargetSelectedBatch(t *testing.T) {
	model, operator := newBoardFixture(t)
	model.Init()
	model.Update(receiveSnapshot(t, model))
	runCmd(t, model, model.loadSamplesCmd())

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	runCmd(t, model, cmd)

	_, cmd = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	runCmd(t, model, cmd)

	if len(operator.claims) != 1 || operator.claims[0] != "b-1" {
		t.Fatalf("claims = %v, want [b-1]", operator.claims)
	}
	if len(operator.decisions) != 1 {
		t.Fatalf("len(decisions) = %d, want 1", len(operator.decisions))
	}
	decision := operator.decisions[0]
	if decision.SampleID != "s-1" || decision.Result != "denied" || decision.Notes == "" {
		t.Fatalf("decision = %+v, want denied s-1 with notes", decision)
	}
	if len(model.auditLogs) != 2 {
		t.Fatalf("len(auditLogs) = %d, want 2", len(model.auditLogs))
	}
}

func TestBoardDecideWithoutPendingSample(t *testing.T) {
	model, operator := newBoardFixture(t)
	model.Init()
	model.Update(receiveSnapshot(t, model))

	model.Update(tea.KeyMsg{Type: tea.KeyDown})
	runCmd(t, model, model.loadSamplesCmd())

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")})
	if cmd != nil {
		t.Fatalf("approve without pending sample returned a command")
	}
	if model.status != "no pending sample" {
		t.Fatalf("status = %q, want %q", model.status, "no pending sample")
	}
	if len(operator.decisions) != 0 {
		t.Fatalf("decisions = %+v, want none", operator.decisions)
	}
}

func TestNextViewCycles(t *testing.T) {
	got := []domainbatch.View{}
	view := domainbatch.ViewActive
	for range boardViews {
		view = nextView(view)
		got = append(got, view)
	}
	want := []domainbatch.View{domainbatch.ViewQAQueue, domainbatch.ViewArchive, domainbatch.ViewActive}
	for index := range want {
		if got[index] != want[index] {
			t.Fatalf("nextView sequence = %v, want %v", got, want)
		}
	}
}
