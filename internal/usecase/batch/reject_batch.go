package batch

import (
	"context"
	"strings"
	"time"

	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/ports"
)

// RejectBatch closes an open batch for good.
func (s *Service) RejectBatch(ctx context.Context, input RejectInput) (err error) {
	started := time.Now()
	defer func() { s.finish(ctx, domainbatch.ActionReject, input.BatchID, started, err) }()

	if err := s.ready(ctx); err != nil {
		return err
	}
	ctx = logging.WithActor(ctx, input.Actor.ID, string(input.Actor.Role))

	actor, err := authorize(input.Actor, domainbatch.ActionReject)
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
		t, err = domainbatch.EvaluateReject(stateOf(batch))
		if err != nil {
			return err
		}

		if err := applyTransitionTx(txCtx, s.repo, batchID, t, ports.BatchUpdate{}, now); err != nil {
			return err
		}
		return appendEventTx(txCtx, s.repo, eventInput{
			batchID:    batchID,
			actor:      actor,
			action:     domainbatch.ActionReject,
			transition: t,
			notes:      strings.TrimSpace(input.Notes),
			at:         now,
		})
	}); err != nil {
		return err
	}

	s.publishBestEffort(ctx, ports.BatchChange{
		BatchID: batchID,
		Action:  string(domainbatch.ActionReject),
		Status:  string(t.To),
		At:      now,
	})
	return nil
}
