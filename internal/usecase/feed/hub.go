package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"batchtrack/internal/bootstrap/logging"
	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/errs"
	"batchtrack/internal/ports"
	"batchtrack/internal/usecase/batch"
)

// Reader is the read side of the batch service.
type Reader interface {
	ListView(ctx context.Context, view domainbatch.View) ([]batch.BatchView, error)
	ListSamples(ctx context.Context, batchID string) ([]batch.SampleView, error)
}

// Snapshot is the full, current content of one subscribed view.
type Snapshot struct {
	View    domainbatch.View   `json:"view"`
	BatchID string             `json:"batch_id,omitempty"`
	Batches []batch.BatchView  `json:"batches,omitempty"`
	Samples []batch.SampleView `json:"samples,omitempty"`
	At      time.Time          `json:"at"`
	// Err is set on the last snapshot of a subscription that failed.
	Err error `json:"-"`
}

// Hub fans committed batch changes out to view subscriptions.
type Hub struct {
	reader   Reader
	bus      ports.ChangeBus
	observer ports.FeedObserver
	refresh  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	subs    map[uint64]*Subscription
	nextID  uint64
	failure error
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewHub builds a hub. bus and observer may be nil; a zero refresh disables
// periodic re-reads.
func NewHub(reader Reader, bus ports.ChangeBus, observer ports.FeedObserver, refresh time.Duration) *Hub {
	return &Hub{
		reader:   reader,
		bus:      bus,
		observer: observer,
		refresh:  refresh,
		now:      func() time.Time { return time.Now().UTC() },
		subs:     make(map[uint64]*Subscription),
	}
}

// Start listens on the change bus until Stop or ctx cancellation.
func (h *Hub) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if h.bus == nil {
		return nil
	}

	h.mu.Lock()
	if h.cancel != nil {
		h.mu.Unlock()
		return errors.New("feed hub already started")
	}
	listenCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.mu.Unlock()

	done, err := h.bus.Listen(listenCtx, h.Notify)
	if err != nil {
		cancel()
		return err
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.feed"))
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		err, ok := <-done
		if !ok || err == nil {
			return
		}
		logging.Error(logCtx, "change bus stopped", slog.Any("err", errs.Loggable(err)))
		h.failAll(err)
	}()
	return nil
}

// Stop ends bus listening and cancels every open subscription.
func (h *Hub) Stop() {
	h.mu.Lock()
	cancel := h.cancel
	subs := make([]*Subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, sub := range subs {
		sub.Cancel()
	}
	h.wg.Wait()
}

// Notify triggers every subscription the change may affect. It never blocks:
// pending triggers coalesce into one re-read.
func (h *Hub) Notify(change ports.BatchChange) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.view == domainbatch.ViewSamples && sub.batchID != change.BatchID {
			continue
		}
		sub.poke()
	}
}

func (h *Hub) SubscribeActiveBatches(callback func(Snapshot)) (*Subscription, error) {
	return h.Subscribe(domainbatch.ViewActive, "", callback)
}

func (h *Hub) SubscribeQAQueue(callback func(Snapshot)) (*Subscription, error) {
	return h.Subscribe(domainbatch.ViewQAQueue, "", callback)
}

func (h *Hub) SubscribeArchive(callback func(Snapshot)) (*Subscription, error) {
	return h.Subscribe(domainbatch.ViewArchive, "", callback)
}

func (h *Hub) SubscribeSamples(batchID string, callback func(Snapshot)) (*Subscription, error) {
	return h.Subscribe(domainbatch.ViewSamples, batchID, callback)
}

// Subscribe delivers an initial snapshot of view and a fresh one after every
// relevant change. Callbacks for one subscription never run concurrently.
func (h *Hub) Subscribe(view domainbatch.View, batchID string, callback func(Snapshot)) (*Subscription, error) {
	if h.reader == nil {
		return nil, errors.New("feed reader is required")
	}
	if callback == nil {
		return nil, errors.New("callback is required")
	}
	if _, err := domainbatch.ParseView(string(view)); err != nil {
		return nil, err
	}
	if view == domainbatch.ViewSamples {
		id, err := domainbatch.RequireID("batch_id", batchID)
		if err != nil {
			return nil, err
		}
		batchID = id
	}

	h.mu.Lock()
	if h.failure != nil {
		err := h.failure
		h.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ports.ErrSubscription, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{
		id:       h.nextID,
		hub:      h,
		view:     view,
		batchID:  batchID,
		callback: callback,
		ctx:      ctx,
		cancel:   cancel,
		trigger:  make(chan struct{}, 1),
		failed:   make(chan error, 1),
		done:     make(chan struct{}),
	}
	h.nextID++
	h.subs[sub.id] = sub
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.SubscriptionOpened(string(view))
	}
	go sub.run(h.refresh)
	return sub, nil
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	_, ok := h.subs[sub.id]
	delete(h.subs, sub.id)
	h.mu.Unlock()

	if ok && h.observer != nil {
		h.observer.SubscriptionClosed(string(sub.view))
	}
}

func (h *Hub) failAll(err error) {
	h.mu.Lock()
	h.failure = err
	for _, sub := range h.subs {
		select {
		case sub.failed <- err:
		default:
		}
	}
	h.mu.Unlock()
}

func (h *Hub) read(ctx context.Context, view domainbatch.View, batchID string) (Snapshot, error) {
	snap := Snapshot{View: view, BatchID: batchID, At: h.now()}
	if view == domainbatch.ViewSamples {
		samples, err := h.reader.ListSamples(ctx, batchID)
		if err != nil {
			return snap, err
		}
		snap.Samples = samples
		return snap, nil
	}

	items, err := h.reader.ListView(ctx, view)
	if err != nil {
		return snap, err
	}
	snap.Batches = items
	return snap, nil
}

// ViewSnapshot reads view once without subscribing.
func (h *Hub) ViewSnapshot(ctx context.Context, view domainbatch.View, batchID string) (Snapshot, error) {
	if h.reader == nil {
		return Snapshot{}, errors.New("feed reader is required")
	}
	return h.read(ctx, view, batchID)
}
