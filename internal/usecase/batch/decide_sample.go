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

// DecideSample records a QA verdict. An approval ends the batch; a denial
// leaves it awaiting another sample.
func (s *Service) DecideSample(ctx context.Context, input DecideSampleInput) (err error) {
	started := time.Now()
	defer func() { s.finish(ctx, domainbatch.ActionDecide, input.BatchID, started, err) }()

	if err := s.ready(ctx); err != nil {
		return err
	}
	ctx = logging.WithActor(ctx, input.Actor.ID, string(input.Actor.Role))

	actor, err := authorize(input.Actor, domainbatch.ActionDecide)
	if err != nil {
		return err
	}
	batchID, err := domainbatch.RequireID("batch_id", input.BatchID)
	if err != nil {
		return err
	}
	sampleID, err := domainbatch.RequireID("sample_id", input.SampleID)
	if err != nil {
		return err
	}
	result, err := domainbatch.ParseDecision(input.Result)
	if err != nil {
		return err
	}

	key := requestKeyName(domainbatch.ActionDecide, batchID, input.RequestKey)
	notes := strings.TrimSpace(input.Notes)
	now := s.now()
	replayed := false

	var t domainbatch.Transition
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if _, found, err := s.recallRequestTx(txCtx, key); err != nil {
			return err
		} else if found {
			replayed = true
			return nil
		}

		batch, err := s.repo.LockBatch(txCtx, batchID)
		if err != nil {
			return err
		}
		sample, err := s.repo.GetSample(txCtx, batchID, sampleID)
		if err != nil {
			return err
		}

		t, err = domainbatch.EvaluateDecision(stateOf(batch), domainbatch.Decision{
			SampleResult: sample.Result,
			Result:       result,
			Notes:        notes,
		})
		if err != nil {
			return err
		}

		stored := notes
		if stored == "" {
			stored = sample.Notes
		}
		ok, err := s.repo.DecideSample(txCtx, batchID, sampleID, ports.SampleDecision{
			QAID:      actor.ID,
			Result:    result,
			Notes:     stored,
			DecidedAt: now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: sample %s was decided concurrently", domainbatch.ErrInvalidState, sampleID)
		}

		qaID := actor.ID
		if err := applyTransitionTx(txCtx, s.repo, batchID, t, ports.BatchUpdate{QACurrentID: &qaID}, now); err != nil {
			return err
		}
		if err := s.repo.AppendStaff(txCtx, batchID, ports.StaffQA, actor.ID); err != nil {
			return err
		}
		if err := appendEventTx(txCtx, s.repo, eventInput{
			batchID:    batchID,
			sampleID:   sampleID,
			actor:      actor,
			action:     domainbatch.ActionDecide,
			transition: t,
			notes:      decisionNote(result, notes),
			at:         now,
		}); err != nil {
			return err
		}

		return s.rememberRequestTx(txCtx, key, string(result))
	}); err != nil {
		return err
	}

	if !replayed {
		s.publishBestEffort(ctx, ports.BatchChange{
			BatchID:  batchID,
			SampleID: sampleID,
			Action:   string(domainbatch.ActionDecide),
			Status:   string(t.To),
			At:       now,
		})
	}
	return nil
}

func decisionNote(result domainbatch.SampleResult, notes string) string {
	if notes == "" {
		return string(result)
	}
	return string(result) + ": " + notes
}
