package batch

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/errs"
	"batchtrack/internal/ports"
)

// requestKeyTTL bounds how long a retried intent is recognised.
const requestKeyTTL = 24 * time.Hour

type Service struct {
	repo     ports.BatchRepository
	uow      ports.UnitOfWork
	kv       ports.KeyValueStore
	bus      ports.ChangeBus
	observer ports.TransitionObserver
	now      func() time.Time
	newID    func() string
}

// NewService wires batch usecases. kv, bus and observer may be nil.
func NewService(
	repo ports.BatchRepository,
	uow ports.UnitOfWork,
	kv ports.KeyValueStore,
	bus ports.ChangeBus,
	observer ports.TransitionObserver,
) *Service {
	return &Service{
		repo:     repo,
		uow:      uow,
		kv:       kv,
		bus:      bus,
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

type CreateBatchInput struct {
	Actor       domainbatch.Actor
	Formula     string
	Deck        string
	BatchNumber string
}

type SubmitSampleInput struct {
	Actor      domainbatch.Actor
	BatchID    string
	Notes      string
	RequestKey string
}

type DecideSampleInput struct {
	Actor      domainbatch.Actor
	BatchID    string
	SampleID   string
	Result     string
	Notes      string
	RequestKey string
}

type ClaimInput struct {
	Actor   domainbatch.Actor
	BatchID string
}

type HoldInput struct {
	Actor   domainbatch.Actor
	BatchID string
	Notes   string
}

type RejectInput struct {
	Actor   domainbatch.Actor
	BatchID string
	Notes   string
}

type ReassignInput struct {
	Actor      domainbatch.Actor
	BatchID    string
	NewActorID string
}

type BatchView struct {
	BatchID            string             `json:"id"`
	Formula            string             `json:"formula"`
	Deck               string             `json:"deck"`
	BatchNumber        string             `json:"batch_number"`
	Status             domainbatch.Status `json:"status"`
	CurrentProcessorID string             `json:"current_processor_id"`
	QACurrentID        string             `json:"qa_current_id,omitempty"`
	ProcessorHistory   []string           `json:"processor_history"`
	QAHistory          []string           `json:"qa_history"`
	SampleCount        int                `json:"sample_count"`
	StartedAt          time.Time          `json:"started_at"`
	LastUpdated        time.Time          `json:"last_updated"`
}

type SampleView struct {
	SampleID    string                   `json:"id"`
	BatchID     string                   `json:"batch_id"`
	Attempt     int                      `json:"attempt"`
	SubmitterID string                   `json:"submitter_id"`
	QAID        string                   `json:"qa_id,omitempty"`
	Result      domainbatch.SampleResult `json:"result"`
	Notes       string                   `json:"notes,omitempty"`
	SubmittedAt time.Time                `json:"submitted_at"`
	DecidedAt   *time.Time               `json:"decided_at,omitempty"`
}

type EventItem struct {
	EventID    uint64    `json:"id"`
	SampleID   string    `json:"sample_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	Role       string    `json:"role"`
	Action     string    `json:"action"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type BatchDetail struct {
	Batch   BatchView    `json:"batch"`
	Samples []SampleView `json:"samples"`
	Events  []EventItem  `json:"events"`
}

func (s *Service) ready(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("batch repository is required")
	}
	if s.uow == nil {
		return errors.New("batch unit of work is required")
	}
	return nil
}

// finish records the outcome of one intent.
func (s *Service) finish(ctx context.Context, action domainbatch.Action, batchID string, started time.Time, err error) {
	elapsed := time.Since(started)
	if s.observer != nil {
		s.observer.ObserveTransition(string(action), errs.KindOf(err), elapsed)
	}
	if ctx == nil {
		return
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.batch"),
		slog.String("action", string(action)),
		slog.String("batch_id", batchID),
	)
	if err != nil {
		logging.Warn(logCtx, "transition refused", slog.Any("err", errs.Loggable(err)))
		return
	}
	logging.Debug(logCtx, "transition applied", slog.Duration("elapsed", elapsed))
}

// publishBestEffort announces a committed change. The write already
// succeeded, so a bus failure is only logged.
func (s *Service) publishBestEffort(ctx context.Context, change ports.BatchChange) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, change); err != nil {
		logging.Warn(
			logging.WithAttrs(ctx, slog.String("component", "usecase.batch")),
			"publish batch change failed",
			slog.String("batch_id", change.BatchID),
			slog.Any("err", errs.Loggable(err)),
		)
	}
}
