package batch

import (
	"context"
	"time"

	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/ports"
)

// ReassignProcessor hands an open batch to another processor.
func (s *Service) ReassignProcessor(ctx context.Context, input ReassignInput) error {
	return s.reassign(ctx, domainbatch.ActionReassignProcessor, input)
}

// ReassignQA makes another QA the current tester of an open batch.
func (s *Service) ReassignQA(ctx context.Context, input ReassignInput) error {
	return s.reassign(ctx, domainbatch.ActionReassignQA, input)
}

func (s *Service) reassign(ctx context.Context, action domainbatch.Action, input ReassignInput) (err error) {
	started := time.Now()
	defer func() { s.finish(ctx, action, input.BatchID, started, err) }()

	if err := s.ready(ctx); err != nil {
		return err
	}
	ctx = logging.WithActor(ctx, input.Actor.ID, string(input.Actor.Role))

	actor, err := authorize(input.Actor, action)
	if err != nil {
		return err
	}
	batchID, err := domainbatch.RequireID("batch_id", input.BatchID)
	if err != nil {
		return err
	}
	target, err := domainbatch.RequireID("new_actor_id", input.NewActorID)
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
		t, err = domainbatch.EvaluateReassign(action, stateOf(batch))
		if err != nil {
			return err
		}

		update := ports.BatchUpdate{}
		kind := ports.StaffProcessor
		if action == domainbatch.ActionReassignQA {
			update.QACurrentID = &target
			kind = ports.StaffQA
		} else {
			update.CurrentProcessorID = &target
		}

		if err := applyTransitionTx(txCtx, s.repo, batchID, t, update, now); err != nil {
			return err
		}
		if err := s.repo.AppendStaff(txCtx, batchID, kind, target); err != nil {
			return err
		}
		return appendEventTx(txCtx, s.repo, eventInput{
			batchID:    batchID,
			actor:      actor,
			action:     action,
			transition: t,
			notes:      target,
			at:         now,
		})
	}); err != nil {
		return err
	}

	s.publishBestEffort(ctx, ports.BatchChange{
		BatchID: batchID,
		Action:  string(action),
		Status:  string(t.To),
		At:      now,
	})
	return nil
}
