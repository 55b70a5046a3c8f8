package ports

import (
	"context"
	"time"

	"batchtrack/internal/errs"
)

var ErrSubscription = errs.NewKind(errs.KindSubscription, "change subscription failed")

// BatchChange announces a committed mutation of one batch or its samples.
type BatchChange struct {
	BatchID  string    `json:"batch_id"`
	SampleID string    `json:"sample_id,omitempty"`
	Action   string    `json:"action"`
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
}

// ChangeBus carries committed changes to every listener, possibly across processes.
type ChangeBus interface {
	Publish(ctx context.Context, change BatchChange) error
	// Listen forwards changes to handler until ctx is done. The returned channel
	// yields the error that ended forwarding (nil after ctx cancellation) and is then closed.
	Listen(ctx context.Context, handler func(BatchChange)) (<-chan error, error)
	Close() error
}

// TransitionObserver records the outcome of transition intents.
type TransitionObserver interface {
	ObserveTransition(action string, outcome errs.Kind, elapsed time.Duration)
}

// FeedObserver records subscription activity.
type FeedObserver interface {
	SubscriptionOpened(view string)
	SubscriptionClosed(view string)
	SnapshotDelivered(view string, failed bool)
}
