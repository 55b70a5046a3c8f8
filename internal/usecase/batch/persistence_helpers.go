package batch

import (
	"context"
	"strings"
	"time"

	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/ports"
)

// applyTransitionTx moves the batch along t and stamps last_updated. The
// update is conditional on the status the guard saw.
func applyTransitionTx(ctx context.Context, repo ports.BatchRepository, batchID string, t domainbatch.Transition, update ports.BatchUpdate, at time.Time) error {
	from := t.From
	to := t.To
	update.ExpectStatus = &from
	update.Status = &to
	update.LastUpdated = at
	return repo.UpdateBatch(ctx, batchID, update)
}

type eventInput struct {
	batchID    string
	sampleID   string
	actor      domainbatch.Actor
	action     domainbatch.Action
	transition domainbatch.Transition
	notes      string
	at         time.Time
}

func appendEventTx(ctx context.Context, repo ports.BatchRepository, in eventInput) error {
	return repo.AppendEvent(ctx, ports.BatchEventCreate{
		BatchID:    in.batchID,
		SampleID:   in.sampleID,
		ActorID:    in.actor.ID,
		Role:       string(in.actor.Role),
		Action:     string(in.action),
		FromStatus: string(in.transition.From),
		ToStatus:   string(in.transition.To),
		Notes:      strings.TrimSpace(in.notes),
		CreatedAt:  in.at,
	})
}

// recallRequestTx returns the stored result of an earlier intent with the same key.
func (s *Service) recallRequestTx(ctx context.Context, key string) (string, bool, error) {
	if key == "" || s.kv == nil {
		return "", false, nil
	}
	return s.kv.Get(ctx, key)
}

func (s *Service) rememberRequestTx(ctx context.Context, key string, result string) error {
	if key == "" || s.kv == nil {
		return nil
	}
	return s.kv.Set(ctx, key, result, requestKeyTTL)
}
