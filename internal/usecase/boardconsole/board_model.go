package boardconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/usecase/batch"
	"batchtrack/internal/usecase/feed"
)

const maxAuditLines = 8
const maxShownSamples = 6

const consoleDenyNote = "denied from console"

// Feed is the subscription side of the feed hub.
type Feed interface {
	Subscribe(view domainbatch.View, batchID string, callback func(feed.Snapshot)) (*feed.Subscription, error)
}

// Operator is the subset of the batch service the board drives.
type Operator interface {
	ListSamples(ctx context.Context, batchID string) ([]batch.SampleView, error)
	SubmitSample(ctx context.Context, input batch.SubmitSampleInput) (string, error)
	DecideSample(ctx context.Context, input batch.DecideSampleInput) error
	ClaimForTesting(ctx context.Context, input batch.ClaimInput) error
	SetOnHold(ctx context.Context, input batch.HoldInput) error
	RejectBatch(ctx context.Context, input batch.RejectInput) error
}

type BoardOptions struct {
	Actor domainbatch.Actor
	View  domainbatch.View
}

var boardViews = []domainbatch.View{domainbatch.ViewActive, domainbatch.ViewQAQueue, domainbatch.ViewArchive}

type boardModel struct {
	ctx      context.Context
	feed     Feed
	operator Operator
	actor    domainbatch.Actor
	view     domainbatch.View

	sub        *feed.Subscription
	generation int
	updates    chan snapshotMsg

	batches       []batch.BatchView
	selectedIndex int
	samples       []batch.SampleView
	samplesFor    string
	status        string
	auditLogs     []string
}

type snapshotMsg struct {
	generation int
	snapshot   feed.Snapshot
}

type samplesLoadedMsg struct {
	batchID string
	samples []batch.SampleView
	err     error
}

type subscribeFailedMsg struct {
	err error
}

type actionDoneMsg struct {
	action  string
	batchID string
	result  string
	err     error
}

func NewBoardModel(ctx context.Context, hub Feed, operator Operator, options BoardOptions) tea.Model {
	view := options.View
	if view == "" || view == domainbatch.ViewSamples {
		view = domainbatch.ViewActive
	}
	return &boardModel{
		ctx:      ctx,
		feed:     hub,
		operator: operator,
		actor:    options.Actor,
		view:     view,
		updates:  make(chan snapshotMsg, 1),
		status:   "connecting",
	}
}

func (m *boardModel) Init() tea.Cmd {
	return tea.Batch(m.subscribeCmd(), m.waitForSnapshotCmd())
}

func (m *boardModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case snapshotMsg:
		next := m.waitForSnapshotCmd()
		if msg.generation != m.generation {
			return m, next
		}
		if msg.snapshot.Err != nil {
			m.status = "feed closed: " + msg.snapshot.Err.Error()
			return m, next
		}
		m.batches = msg.snapshot.Batches
		m.clampSelection()
		m.status = fmt.Sprintf("%s: %d batches at %s", m.view, len(m.batches), msg.snapshot.At.Format(time.Kitchen))
		return m, tea.Batch(next, m.loadSamplesCmd())
	case subscribeFailedMsg:
		m.status = "subscribe failed: " + msg.err.Error()
		return m, nil
	case samplesLoadedMsg:
		selected, ok := m.selectedBatch()
		if !ok || selected.BatchID != msg.batchID {
			return m, nil
		}
		if msg.err != nil {
			m.samples = nil
			m.samplesFor = ""
			m.status = "samples failed: " + msg.err.Error()
			return m, nil
		}
		m.samples = msg.samples
		m.samplesFor = msg.batchID
		return m, nil
	case actionDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
		} else {
			m.status = fmt.Sprintf("%s done: %s", msg.action, msg.result)
		}
		m.appendAuditLog(msg.action, msg.batchID, msg.result, msg.err)
		return m, m.loadSamplesCmd()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancelSubscription()
			return m, tea.Quit
		case "tab":
			m.view = nextView(m.view)
			m.batches = nil
			m.samples = nil
			m.selectedIndex = 0
			m.status = "switching to " + string(m.view)
			return m, m.subscribeCmd()
		case "up", "k":
			if m.selectedIndex > 0 {
				m.selectedIndex--
				return m, m.loadSamplesCmd()
			}
			return m, nil
		case "down", "j":
			if m.selectedIndex < len(m.batches)-1 {
				m.selectedIndex++
				return m, m.loadSamplesCmd()
			}
			return m, nil
		case "s":
			return m, m.submitCmd()
		case "c":
			return m, m.claimCmd()
		case "a":
			return m, m.decideCmd(string(domainbatch.ResultApproved), "")
		case "d":
			return m, m.decideCmd(string(domainbatch.ResultDenied), consoleDenyNote)
		case "h":
			return m, m.holdCmd()
		case "x":
			return m, m.rejectCmd()
		}
	}
	return m, nil
}

func (m *boardModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Batch Board"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf("view=%s actor=%s role=%s", m.view, firstNonEmpty(m.actor.ID, "-"), firstNonEmpty(string(m.actor.Role), "-"))))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Batches"))
	builder.WriteString("\n")
	if len(m.batches) == 0 {
		builder.WriteString(dimStyle.Render("- no batches"))
		builder.WriteString("\n\n")
	} else {
		for index, item := range m.batches {
			line := formatBatchLine(item)
			if index == m.selectedIndex {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Samples"))
	builder.WriteString("\n")
	if len(m.samples) == 0 {
		builder.WriteString(dimStyle.Render("- none"))
		builder.WriteString("\n")
	} else {
		start := len(m.samples) - maxShownSamples
		if start < 0 {
			start = 0
		}
		for _, sample := range m.samples[start:] {
			builder.WriteString(fmt.Sprintf("- #%d %s by=%s qa=%s %s\n",
				sample.Attempt,
				sample.Result,
				sample.SubmitterID,
				firstNonEmpty(sample.QAID, "-"),
				firstNonEmpty(sample.Notes, ""),
			))
		}
	}
	builder.WriteString("\n")

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	builder.WriteString("- " + firstNonEmpty(m.status, "ready"))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Audit Log"))
	builder.WriteString("\n")
	if len(m.auditLogs) == 0 {
		builder.WriteString(dimStyle.Render("- no actions"))
		builder.WriteString("\n\n")
	} else {
		for _, line := range m.auditLogs {
			builder.WriteString("- " + line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  tab view  s submit  c claim  a approve  d deny  h hold  x reject  q quit"))
	return builder.String()
}

// subscribeCmd replaces the current subscription. Snapshots from older
// generations are dropped in Update.
func (m *boardModel) subscribeCmd() tea.Cmd {
	m.cancelSubscription()
	m.generation++
	generation := m.generation
	updates := m.updates
	view := m.view

	sub, err := m.feed.Subscribe(view, "", func(snap feed.Snapshot) {
		msg := snapshotMsg{generation: generation, snapshot: snap}
		for {
			select {
			case updates <- msg:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	})
	if err != nil {
		return func() tea.Msg { return subscribeFailedMsg{err: err} }
	}
	m.sub = sub
	return nil
}

func (m *boardModel) cancelSubscription() {
	if m.sub != nil {
		m.sub.Cancel()
		m.sub = nil
	}
}

func (m *boardModel) waitForSnapshotCmd() tea.Cmd {
	updates := m.updates
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case msg := <-updates:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}

func (m *boardModel) loadSamplesCmd() tea.Cmd {
	selected, ok := m.selectedBatch()
	if !ok {
		m.samples = nil
		m.samplesFor = ""
		return nil
	}
	return func() tea.Msg {
		samples, err := m.operator.ListSamples(m.ctx, selected.BatchID)
		return samplesLoadedMsg{batchID: selected.BatchID, samples: samples, err: err}
	}
}

func (m *boardModel) submitCmd() tea.Cmd {
	return m.batchAction("submit", func(batchID string) (string, error) {
		return m.operator.SubmitSample(m.ctx, batch.SubmitSampleInput{Actor: m.actor, BatchID: batchID})
	})
}

func (m *boardModel) claimCmd() tea.Cmd {
	return m.batchAction("claim", func(batchID string) (string, error) {
		if err := m.operator.ClaimForTesting(m.ctx, batch.ClaimInput{Actor: m.actor, BatchID: batchID}); err != nil {
			return "", err
		}
		return string(domainbatch.StatusAwaitingQA), nil
	})
}

func (m *boardModel) holdCmd() tea.Cmd {
	return m.batchAction("hold", func(batchID string) (string, error) {
		if err := m.operator.SetOnHold(m.ctx, batch.HoldInput{Actor: m.actor, BatchID: batchID}); err != nil {
			return "", err
		}
		return string(domainbatch.StatusOnHold), nil
	})
}

func (m *boardModel) rejectCmd() tea.Cmd {
	return m.batchAction("reject", func(batchID string) (string, error) {
		if err := m.operator.RejectBatch(m.ctx, batch.RejectInput{Actor: m.actor, BatchID: batchID}); err != nil {
			return "", err
		}
		return string(domainbatch.StatusRejected), nil
	})
}

// decideCmd decides the latest pending sample of the selected batch.
func (m *boardModel) decideCmd(result string, notes string) tea.Cmd {
	selected, ok := m.selectedBatch()
	if !ok {
		m.status = "no batch selected"
		return nil
	}
	sample, ok := latestPending(m.samples, selected.BatchID)
	if !ok {
		m.status = "no pending sample"
		return nil
	}
	m.status = result + " in progress"
	return func() tea.Msg {
		err := m.operator.DecideSample(m.ctx, batch.DecideSampleInput{
			Actor:    m.actor,
			BatchID:  selected.BatchID,
			SampleID: sample.SampleID,
			Result:   result,
			Notes:    notes,
		})
		if err != nil {
			return actionDoneMsg{action: result, batchID: selected.BatchID, err: err}
		}
		return actionDoneMsg{action: result, batchID: selected.BatchID, result: fmt.Sprintf("attempt %d", sample.Attempt)}
	}
}

func (m *boardModel) batchAction(action string, run func(batchID string) (string, error)) tea.Cmd {
	selected, ok := m.selectedBatch()
	if !ok {
		m.status = "no batch selected"
		return nil
	}
	m.status = action + " in progress"
	return func() tea.Msg {
		result, err := run(selected.BatchID)
		return actionDoneMsg{action: action, batchID: selected.BatchID, result: result, err: err}
	}
}

func (m *boardModel) selectedBatch() (batch.BatchView, bool) {
	if m.selectedIndex < 0 || m.selectedIndex >= len(m.batches) {
		return batch.BatchView{}, false
	}
	return m.batches[m.selectedIndex], true
}

func (m *boardModel) clampSelection() {
	if m.selectedIndex >= len(m.batches) {
		m.selectedIndex = len(m.batches) - 1
	}
	if m.selectedIndex < 0 {
		m.selectedIndex = 0
	}
}

func (m *boardModel) appendAuditLog(action string, batchID string, result string, opErr error) {
	outcome := strings.TrimSpace(result)
	if opErr != nil {
		outcome = "error: " + opErr.Error()
	}
	if outcome == "" {
		outcome = "ok"
	}

	timestamp := time.Now().UTC().Format(time.RFC3339)
	line := fmt.Sprintf("%s batch=%s action=%s result=%s", timestamp, batchID, action, outcome)
	m.auditLogs = append([]string{line}, m.auditLogs...)
	if len(m.auditLogs) > maxAuditLines {
		m.auditLogs = m.auditLogs[:maxAuditLines]
	}

	logging.Info(m.ctx, "board console action",
		slog.String("actor", m.actor.ID),
		slog.String("role", string(m.actor.Role)),
		slog.String("batch_id", batchID),
		slog.String("action", action),
		slog.String("result", outcome),
	)
}

func nextView(current domainbatch.View) domainbatch.View {
	for index, view := range boardViews {
		if view == current {
			return boardViews[(index+1)%len(boardViews)]
		}
	}
	return boardViews[0]
}

func latestPending(samples []batch.SampleView, batchID string) (batch.SampleView, bool) {
	for index := len(samples) - 1; index >= 0; index-- {
		sample := samples[index]
		if sample.BatchID == batchID && sample.Result == domainbatch.ResultPending {
			return sample, true
		}
	}
	return batch.SampleView{}, false
}

func formatBatchLine(item batch.BatchView) string {
	claimed := "-"
	if item.QACurrentID != "" {
		claimed = item.QACurrentID
	}
	return fmt.Sprintf("%s/%s #%s [%s] processor=%s qa=%s samples=%d",
		item.Formula,
		item.Deck,
		item.BatchNumber,
		item.Status,
		firstNonEmpty(item.CurrentProcessorID, "-"),
		claimed,
		item.SampleCount,
	)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		normalized := strings.TrimSpace(value)
		if normalized != "" {
			return normalized
		}
	}
	return ""
}
