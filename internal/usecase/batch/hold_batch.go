package batch

import (
	"context"
	"strings"
	"time"

	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/ports"
)

// SetOnHold parks a batch awaiting QA. Holding a held batch is a no-op
// transition that still refreshes last_updated.
func (s *Service) SetOnHold(ctx context.Context, input HoldInput) (err error) {
	started := time.Now()
	defer func() { s.finish(ctx, domainbatch.ActionHold, input.BatchID, started, err) }()

	if err := s.ready(ctx); err != nil {
		return err
	}
	ctx = logging.WithActor(ctx, input.Actor.ID, string(input.Actor.Role))

	actor, err := authorize(input.Actor, domainbatch.ActionHold)
	if err != nil {
		return err
	}
	batchID, err := domainbatch.RequireID("batch_id", input.BatchID)
	if err != nil {
		return err
	}

	now := s.now()
	var t domainbatch.Transition
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		batch, err := s.repo.LockBatch(txCtx, batchID)
		if err != nil {
			return err
		}
		t, err = domainbatch.EvaluateHold(stateOf(batch))
		if err != nil {
			return err
		}

		if err := applyTransitionTx(txCtx, s.repo, batchID, t, ports.BatchUpdate{}, now); err != nil {
			return err
		}
		return appendEventTx(txCtx, s.repo, eventInput{
			batchID:    batchID,
			actor:      actor,
			action:     domainbatch.ActionHold,
			transition: t,
			notes:      strings.TrimSpace(input.Notes),
			at:         now,
		})
	}); err != nil {
		return err
	}

	s.publishBestEffort(ctx, ports.BatchChange{
		BatchID: batchID,
		Action:  string(domainbatch.ActionHold),
		Status:  string(t.To),
		At:      now,
	})
	return nil
}
