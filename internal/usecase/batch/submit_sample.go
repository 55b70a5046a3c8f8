package batch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/ports"
)

var submittableStatuses = []domainbatch.Status{domainbatch.StatusMixing, domainbatch.StatusAwaitingQA}

// SubmitSample records the next attempt for a batch and moves it to awaitingQA.
// The attempt number is reserved by an atomic counter update before the
// status is read, so concurrent submissions never share or skip a number and
// none is refused because another one moved the batch first.
func (s *Service) SubmitSample(ctx context.Context, input SubmitSampleInput) (sampleID string, err error) {
	started := time.Now()
	defer func() { s.finish(ctx, domainbatch.ActionSubmitSample, input.BatchID, started, err) }()

	if err := s.ready(ctx); err != nil {
		return "", err
	}
	ctx = logging.WithActor(ctx, input.Actor.ID, string(input.Actor.Role))

	actor, err := authorize(input.Actor, domainbatch.ActionSubmitSample)
	if err != nil {
		return "", err
	}
	batchID, err := domainbatch.RequireID("batch_id", input.BatchID)
	if err != nil {
		return "", err
	}

	key := requestKeyName(domainbatch.ActionSubmitSample, batchID, input.RequestKey)
	notes := strings.TrimSpace(input.Notes)
	now := s.now()
	newID := s.newID()
	replayed := false

	var t domainbatch.Transition
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if previous, found, err := s.recallRequestTx(txCtx, key); err != nil {
			return err
		} else if found {
			sampleID = previous
			replayed = true
			return nil
		}

		attempt, ok, err := s.repo.ReserveAttempt(txCtx, batchID, submittableStatuses)
		if err != nil {
			return err
		}
		if !ok {
			return s.explainRefusedSubmitTx(txCtx, batchID)
		}

		// The reservation holds the row, so the status read here is the one
		// the transition starts from.
		batch, err := s.repo.LockBatch(txCtx, batchID)
		if err != nil {
			return err
		}
		t, err = domainbatch.EvaluateSubmit(stateOf(batch))
		if err != nil {
			return err
		}

		if _, err := s.repo.CreateSample(txCtx, ports.SampleRecord{
			SampleID:    newID,
			BatchID:     batchID,
			Attempt:     attempt,
			SubmitterID: actor.ID,
			Result:      domainbatch.ResultPending,
			Notes:       notes,
			SubmittedAt: now,
		}); err != nil {
			return err
		}

		if err := applyTransitionTx(txCtx, s.repo, batchID, t, ports.BatchUpdate{}, now); err != nil {
			return err
		}
		if err := appendEventTx(txCtx, s.repo, eventInput{
			batchID:    batchID,
			sampleID:   newID,
			actor:      actor,
			action:     domainbatch.ActionSubmitSample,
			transition: t,
			notes:      notes,
			at:         now,
		}); err != nil {
			return err
		}

		sampleID = newID
		return s.rememberRequestTx(txCtx, key, newID)
	}); err != nil {
		return "", err
	}

	if !replayed {
		s.publishBestEffort(ctx, ports.BatchChange{
			BatchID:  batchID,
			SampleID: sampleID,
			Action:   string(domainbatch.ActionSubmitSample),
			Status:   string(t.To),
			At:       now,
		})
	}
	return sampleID, nil
}

// explainRefusedSubmitTx reports why a batch refused an attempt reservation.
func (s *Service) explainRefusedSubmitTx(ctx context.Context, batchID string) error {
	batch, err := s.repo.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if _, err := domainbatch.EvaluateSubmit(stateOf(batch)); err != nil {
		return err
	}
	return fmt.Errorf("%w: batch %s changed while the attempt was reserved", domainbatch.ErrInvalidState, batchID)
}
