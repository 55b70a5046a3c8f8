package batch

import (
	"context"
	"time"

	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/ports"
)

// CreateBatch opens a batch in mixing owned by the calling processor.
func (s *Service) CreateBatch(ctx context.Context, input CreateBatchInput) (batchID string, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, domainbatch.ActionCreate, batchID, started, err) }()

	if err := s.ready(ctx); err != nil {
		return "", err
	}
	ctx = logging.WithActor(ctx, input.Actor.ID, string(input.Actor.Role))

	actor, err := authorize(input.Actor, domainbatch.ActionCreate)
	if err != nil {
		return "", err
	}

	fields, err := domainbatch.NormalizeNewBatch(domainbatch.NewBatch{
		Formula:     input.Formula,
		Deck:        input.Deck,
		BatchNumber: input.BatchNumber,
		ProcessorID: actor.ID,
	})
	if err != nil {
		return "", err
	}

	id := s.newID()
	now := s.now()
	t := domainbatch.Transition{To: domainbatch.StatusMixing}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.CreateBatch(txCtx, ports.BatchRecord{
			BatchID:            id,
			Formula:            fields.Formula,
			Deck:               fields.Deck,
			BatchNumber:        fields.BatchNumber,
			Status:             domainbatch.StatusMixing,
			CurrentProcessorID: fields.ProcessorID,
			ProcessorHistory:   []string{fields.ProcessorID},
			StartedAt:          now,
			LastUpdated:        now,
		}); err != nil {
			return err
		}

		return appendEventTx(txCtx, s.repo, eventInput{
			batchID:    id,
			actor:      actor,
			action:     domainbatch.ActionCreate,
			transition: t,
			at:         now,
		})
	}); err != nil {
		return "", err
	}

	s.publishBestEffort(ctx, ports.BatchChange{
		BatchID: id,
		Action:  string(domainbatch.ActionCreate),
		Status:  string(domainbatch.StatusMixing),
		At:      now,
	})
	return id, nil
}
