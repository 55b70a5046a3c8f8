package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainbatch "batchtrack/internal/domain/batch"
	"batchtrack/internal/ports"
)

// Subscription is one live view. It owns a single delivery goroutine.
type Subscription struct {
	id       uint64
	hub      *Hub
	view     domainbatch.View
	batchID  string
	callback func(Snapshot)

	ctx     context.Context
	cancel  context.CancelFunc
	trigger chan struct{}
	failed  chan error
	done    chan struct{}
	once    sync.Once
}

func (s *Subscription) View() domainbatch.View { return s.view }

// Done is closed once the subscription delivers nothing more.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Cancel stops delivery and returns after the delivery goroutine exited, so no
// callback runs after Cancel returns. It must not be called from the callback.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		s.cancel()
	})
	<-s.done
	s.hub.remove(s)
}

func (s *Subscription) poke() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Subscription) run(refresh time.Duration) {
	defer close(s.done)
	defer s.hub.remove(s)

	var tick <-chan time.Time
	if refresh > 0 {
		ticker := time.NewTicker(refresh)
		defer ticker.Stop()
		tick = ticker.C
	}

	if !s.deliver() {
		return
	}
	for {
		select {
		case <-s.ctx.Done():
			return
		case err := <-s.failed:
			s.emit(Snapshot{
				View:    s.view,
				BatchID: s.batchID,
				At:      s.hub.now(),
				Err:     fmt.Errorf("%w: %w", ports.ErrSubscription, err),
			})
			return
		case <-s.trigger:
		case <-tick:
		}
		if !s.deliver() {
			return
		}
	}
}

// deliver re-reads the view and reports whether the subscription stays open.
func (s *Subscription) deliver() bool {
	snap, err := s.hub.read(s.ctx, s.view, s.batchID)
	if s.ctx.Err() != nil {
		return false
	}
	if err != nil {
		snap.Err = fmt.Errorf("%w: %w", ports.ErrSubscription, err)
		s.emit(snap)
		return false
	}
	s.emit(snap)
	return true
}

func (s *Subscription) emit(snap Snapshot) {
	if s.hub.observer != nil {
		s.hub.observer.SnapshotDelivered(string(s.view), snap.Err != nil)
	}
	s.callback(snap)
}
