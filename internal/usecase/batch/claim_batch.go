package batch

import (
	"context"
	"time"

	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/ports"
)

// ClaimForTesting assigns the calling QA to an unclaimed batch. Of two racing
// claims exactly one wins; the other fails with ErrAlreadyClaimed.
func (s *Service) ClaimForTesting(ctx context.Context, input ClaimInput) (err error) {
	started := time.Now()
	defer func() { s.finish(ctx, domainbatch.ActionClaim, input.BatchID, started, err) }()

	if err := s.ready(ctx); err != nil {
		return err
	}
	ctx = logging.WithActor(ctx, input.Actor.ID, string(input.Actor.Role))

	actor, err := authorize(input.Actor, domainbatch.ActionClaim)
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
		t, err = domainbatch.EvaluateClaim(stateOf(batch))
		if err != nil {
			return err
		}

		ok, err := s.repo.ClaimBatch(txCtx, batchID, actor.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return s.explainLostClaimTx(txCtx, batchID)
		}

		if err := s.repo.AppendStaff(txCtx, batchID, ports.StaffQA, actor.ID); err != nil {
			return err
		}
		return appendEventTx(txCtx, s.repo, eventInput{
			batchID:    batchID,
			actor:      actor,
			action:     domainbatch.ActionClaim,
			transition: t,
			at:         now,
		})
	}); err != nil {
		return err
	}

	s.publishBestEffort(ctx, ports.BatchChange{
		BatchID: batchID,
		Action:  string(domainbatch.ActionClaim),
		Status:  string(t.To),
		At:      now,
	})
	return nil
}

// explainLostClaimTx re-reads a batch whose conditional claim matched no row
// and reports why.
func (s *Service) explainLostClaimTx(ctx context.Context, batchID string) error {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if _, err := domainbatch.EvaluateClaim(stateOf(batch)); err != nil {
		return err
	}
	return domainbatch.ErrAlreadyClaimed
}
