package batch

import (
	"context"
	"errors"

	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/errs"
	"batchtrack/internal/ports"
)

var (
	activeCandidates  = []domainbatch.Status{domainbatch.StatusMixing, domainbatch.StatusAwaitingQA, domainbatch.StatusOnHold, domainbatch.StatusApproved}
	archiveCandidates = []domainbatch.Status{domainbatch.StatusApproved, domainbatch.StatusRejected}
	queueCandidates   = []domainbatch.Status{domainbatch.StatusAwaitingQA}
)

func (s *Service) readReady(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return errors.New("batch repository is required")
	}
	return nil
}

// ActiveBatches lists open batches and batches approved within the last
// seven days, most recently updated first.
func (s *Service) ActiveBatches(ctx context.Context) ([]BatchView, error) {
	return s.ListView(ctx, domainbatch.ViewActive)
}

// ArchivedBatches lists rejected batches and approvals older than seven days,
// most recently updated first.
func (s *Service) ArchivedBatches(ctx context.Context) ([]BatchView, error) {
	return s.ListView(ctx, domainbatch.ViewArchive)
}

// QAQueue lists batches awaiting QA, oldest first, whether claimed or not.
func (s *Service) QAQueue(ctx context.Context) ([]BatchView, error) {
	return s.ListView(ctx, domainbatch.ViewQAQueue)
}

// ListView evaluates a batch view against the live store at the current time.
func (s *Service) ListView(ctx context.Context, view domainbatch.View) ([]BatchView, error) {
	if err := s.readReady(ctx); err != nil {
		return nil, err
	}

	var candidates []domainbatch.Status
	newestFirst := true
	switch view {
	case domainbatch.ViewActive:
		candidates = activeCandidates
	case domainbatch.ViewArchive:
		candidates = archiveCandidates
	case domainbatch.ViewQAQueue:
		candidates = queueCandidates
		newestFirst = false
	default:
		return nil, &domainbatch.ValidationError{Field: "view", Reason: "must be active, qa-queue or archive"}
	}

	records, err := s.repo.ListBatches(ctx, ports.BatchFilter{Statuses: candidates})
	if err != nil {
		return nil, errs.Wrapf(err, "list %s batches", view)
	}

	now := s.now()
	items := make([]BatchView, 0, len(records))
	for _, record := range records {
		if !domainbatch.Visible(view, record.Status, record.LastUpdated, now) {
			continue
		}
		items = append(items, toBatchView(record))
	}
	sortByLastUpdated(items, newestFirst)
	return items, nil
}

// ListSamples returns the samples of one batch ordered by attempt.
func (s *Service) ListSamples(ctx context.Context, batchID string) ([]SampleView, error) {
	if err := s.readReady(ctx); err != nil {
		return nil, err
	}
	id, err := domainbatch.RequireID("batch_id", batchID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetBatch(ctx, id); err != nil {
		return nil, err
	}
	records, err := s.repo.ListSamples(ctx, id)
	if err != nil {
		return nil, errs.Wrap(err, "list samples")
	}

	items := make([]SampleView, 0, len(records))
	for _, record := range records {
		items = append(items, toSampleView(record))
	}
	return items, nil
}

// GetBatch returns a batch with its samples and audit trail.
func (s *Service) GetBatch(ctx context.Context, batchID string) (BatchDetail, error) {
	if err := s.readReady(ctx); err != nil {
		return BatchDetail{}, err
	}
	id, err := domainbatch.RequireID("batch_id", batchID)
	if err != nil {
		return BatchDetail{}, err
	}

	record, err := s.repo.GetBatch(ctx, id)
	if err != nil {
		return BatchDetail{}, err
	}
	samples, err := s.repo.ListSamples(ctx, id)
	if err != nil {
		return BatchDetail{}, errs.Wrap(err, "list samples")
	}
	events, err := s.repo.ListBatchEvents(ctx, id)
	if err != nil {
		return BatchDetail{}, errs.Wrap(err, "list batch events")
	}

	detail := BatchDetail{
		Batch:   toBatchView(record),
		Samples: make([]SampleView, 0, len(samples)),
		Events:  make([]EventItem, 0, len(events)),
	}
	for _, sample := range samples {
		detail.Samples = append(detail.Samples, toSampleView(sample))
	}
	for _, event := range events {
		detail.Events = append(detail.Events, EventItem{
			EventID:    event.EventID,
			SampleID:   event.SampleID,
			ActorID:    event.ActorID,
			Role:       event.Role,
			Action:     event.Action,
			FromStatus: event.FromStatus,
			ToStatus:   event.ToStatus,
			Notes:      event.Notes,
			CreatedAt:  event.CreatedAt,
		})
	}
	return detail, nil
}
