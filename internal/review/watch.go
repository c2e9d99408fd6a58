package review

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Subscription delivers a deck's due count whenever it changes.
// Only the latest count is buffered; a slow reader skips intermediate values.
type Subscription struct {
	deckID string
	asOf   time.Time // zero means "now" at each evaluation

	ch   chan int
	done chan struct{}

	// evalMu serializes count-then-deliver so an older count never overtakes a newer one
	evalMu sync.Mutex

	mu        sync.Mutex
	closed    bool
	last      int
	delivered bool

	cancelOnce sync.Once
	unregister func()
}

// C returns the channel of counts. It is closed by Cancel.
func (sub *Subscription) C() <-chan int {
	return sub.ch
}

// DeckID returns the watched deck
func (sub *Subscription) DeckID() string {
	return sub.deckID
}

// Done is closed once the subscription is cancelled
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Cancel unregisters the subscription. No count is delivered after Cancel returns.
func (sub *Subscription) Cancel() {
	sub.cancelOnce.Do(func() {
		sub.unregister()

		sub.mu.Lock()
		sub.closed = true
		close(sub.ch)
		sub.mu.Unlock()

		close(sub.done)
	})
}

// offer delivers count unless it equals the last delivered value
func (sub *Subscription) offer(count int) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	if sub.closed || (sub.delivered && count == sub.last) {
		return
	}
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- count
	sub.last = count
	sub.delivered = true
}

type registry struct {
	mu     sync.RWMutex
	byDeck map[string]map[*Subscription]struct{}
}

func newRegistry() *registry {
	return &registry{byDeck: make(map[string]map[*Subscription]struct{})}
}

func (r *registry) add(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.byDeck[sub.deckID]
	if !ok {
		set = make(map[*Subscription]struct{})
		r.byDeck[sub.deckID] = set
	}
	set[sub] = struct{}{}
}

func (r *registry) remove(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.byDeck[sub.deckID]
	delete(set, sub)
	if len(set) == 0 {
		delete(r.byDeck, sub.deckID)
	}
}

func (r *registry) forDeck(deckID string) []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subs := make([]*Subscription, 0, len(r.byDeck[deckID]))
	for sub := range r.byDeck[deckID] {
		subs = append(subs, sub)
	}
	return subs
}

func (r *registry) all() []*Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var subs []*Subscription
	for _, set := range r.byDeck {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	return subs
}

func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, set := range r.byDeck {
		n += len(set)
	}
	return n
}

// Watch subscribes to the due count of deckID at asOf (zero asOf follows the clock).
// The current count is delivered immediately. The subscription ends on Cancel or
// when ctx is done.
func (s *Scheduler) Watch(ctx context.Context, deckID string, asOf time.Time) (*Subscription, error) {
	sub := &Subscription{
		deckID: deckID,
		asOf:   asOf,
		ch:     make(chan int, 1),
		done:   make(chan struct{}),
	}
	sub.unregister = func() { s.watchers.remove(sub) }

	s.watchers.add(sub)
	if err := s.evaluate(ctx, sub); err != nil {
		sub.Cancel()
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.done:
		}
	}()

	s.log.Debug("due count watch started", "deck_id", deckID, "watchers", s.watchers.count())
	return sub, nil
}

// Refresh re-evaluates every live subscription so counts follow the clock across due boundaries
func (s *Scheduler) Refresh(ctx context.Context) error {
	var errs []error
	for _, sub := range s.watchers.all() {
		if err := s.evaluate(ctx, sub); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Watchers returns the number of live subscriptions
func (s *Scheduler) Watchers() int {
	return s.watchers.count()
}

func (s *Scheduler) notify(ctx context.Context, deckID string) {
	for _, sub := range s.watchers.forDeck(deckID) {
		if err := s.evaluate(ctx, sub); err != nil {
			s.log.Warn("failed to re-evaluate due count", "deck_id", deckID, "error", err)
		}
	}
}

func (s *Scheduler) evaluate(ctx context.Context, sub *Subscription) error {
	sub.evalMu.Lock()
	defer sub.evalMu.Unlock()

	count, err := s.store.CountDue(ctx, sub.deckID, s.at(sub.asOf))
	if err != nil {
		return err
	}
	sub.offer(count)
	return nil
}
