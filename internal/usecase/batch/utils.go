package batch

import (
	"sort"
	"strings"

	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/ports"
)

func authorize(actor domainbatch.Actor, action domainbatch.Action) (domainbatch.Actor, error) {
	normalized, err := actor.Normalize()
	if err != nil {
		return domainbatch.Actor{}, err
	}
	if err := domainbatch.Authorize(normalized, action); err != nil {
		return domainbatch.Actor{}, err
	}
	return normalized, nil
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func stateOf(batch ports.BatchRecord) domainbatch.State {
	return domainbatch.State{
		Status:      batch.Status,
		QACurrentID: derefString(batch.QACurrentID),
	}
}

func requestKeyName(action domainbatch.Action, batchID string, key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	return "request:" + string(action) + ":" + batchID + ":" + key
}

func toBatchView(b ports.BatchRecord) BatchView {
	return BatchView{
		BatchID:            b.BatchID,
		Formula:            b.Formula,
		Deck:               b.Deck,
		BatchNumber:        b.BatchNumber,
		Status:             b.Status,
		CurrentProcessorID: b.CurrentProcessorID,
		QACurrentID:        derefString(b.QACurrentID),
		ProcessorHistory:   nonNil(b.ProcessorHistory),
		QAHistory:          nonNil(b.QAHistory),
		SampleCount:        b.SampleCount,
		StartedAt:          b.StartedAt,
		LastUpdated:        b.LastUpdated,
	}
}

func toSampleView(s ports.SampleRecord) SampleView {
	return SampleView{
		SampleID:    s.SampleID,
		BatchID:     s.BatchID,
		Attempt:     s.Attempt,
		SubmitterID: s.SubmitterID,
		QAID:        derefString(s.QAID),
		Result:      s.Result,
		Notes:       s.Notes,
		SubmittedAt: s.SubmittedAt,
		DecidedAt:   s.DecidedAt,
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

// sortByLastUpdated orders views by last update, ties broken by id.
func sortByLastUpdated(items []BatchView, newestFirst bool) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if !a.LastUpdated.Equal(b.LastUpdated) {
			if newestFirst {
				return a.LastUpdated.After(b.LastUpdated)
			}
			return a.LastUpdated.Before(b.LastUpdated)
		}
		return a.BatchID < b.BatchID
	})
}
