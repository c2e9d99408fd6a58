package review

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/lingua/internal/apperr"
	"github.com/example/lingua/internal/logger"
	"github.com/example/lingua/internal/spaced_repetition"
	"github.com/example/lingua/pkg/models"
)

// Scheduler owns the due/not-due state of cards
type Scheduler struct {
	store    Store
	algo     *spaced_repetition.SM2
	now      func() time.Time
	log      *logger.Logger
	watchers *registry
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithLogger(log *logger.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithAlgorithm replaces the default SM-2 settings. Settings that fail
// Validate are ignored with a warning.
func WithAlgorithm(algo *spaced_repetition.SM2) Option {
	return func(s *Scheduler) { s.algo = algo }
}

// NewScheduler creates a scheduler over store
func NewScheduler(store Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    store,
		algo:     spaced_repetition.NewSM2(),
		now:      time.Now,
		log:      logger.Nop(),
		watchers: newRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.algo == nil {
		s.algo = spaced_repetition.NewSM2()
	} else if err := s.algo.Validate(); err != nil {
		s.log.Warn("invalid review algorithm settings, using defaults", "error", err)
		s.algo = spaced_repetition.NewSM2()
	}
	return s
}

// at resolves a zero asOf to the scheduler clock
func (s *Scheduler) at(asOf time.Time) time.Time {
	if asOf.IsZero() {
		return s.now().UTC()
	}
	return asOf.UTC()
}

// DueCount returns how many cards of deckID are due at asOf. A zero asOf means now.
func (s *Scheduler) DueCount(ctx context.Context, deckID string, asOf time.Time) (int, error) {
	return s.store.CountDue(ctx, deckID, s.at(asOf))
}

// DueCards returns the due cards of deckID, most overdue first
func (s *Scheduler) DueCards(ctx context.Context, deckID string, asOf time.Time, limit int) ([]models.Card, error) {
	return s.store.ListDue(ctx, deckID, s.at(asOf), limit)
}

// RecordOutcome applies a review outcome to a card and reschedules it
func (s *Scheduler) RecordOutcome(ctx context.Context, cardID string, outcome models.Outcome, asOf time.Time) (models.Card, error) {
	if !outcome.IsValid() {
		return models.Card{}, apperr.Validation("outcome", fmt.Sprintf("unknown outcome %d", int(outcome)))
	}
	asOf = s.at(asOf)

	card, err := s.store.UpdateCard(ctx, cardID, func(c *models.Card) error {
		next, err := s.algo.Apply(*c, outcome, asOf)
		if err != nil {
			return err
		}
		*c = next
		return nil
	})
	if err != nil {
		return models.Card{}, err
	}

	s.log.Debug("review recorded",
		"card_id", card.ID,
		"deck_id", card.DeckID,
		"outcome", outcome.String(),
		"interval_days", card.IntervalDays,
		"due_at", card.DueAt,
	)
	s.notify(ctx, card.DeckID)
	return card, nil
}

// CreateDeck returns the active deck with this name, creating it when missing
func (s *Scheduler) CreateDeck(ctx context.Context, name string) (models.Deck, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Deck{}, false, apperr.Validation("name", "must not be empty")
	}
	deck := models.Deck{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	deck, created, err := s.store.EnsureDeck(ctx, deck)
	if err != nil {
		return models.Deck{}, false, err
	}
	if created {
		s.log.Info("deck created", "deck_id", deck.ID, "name", deck.Name)
	}
	return deck, created, nil
}

// Decks lists active decks
func (s *Scheduler) Decks(ctx context.Context) ([]models.Deck, error) {
	return s.store.ListDecks(ctx)
}

// ArchiveDeck archives a deck together with its cards; nothing is deleted
func (s *Scheduler) ArchiveDeck(ctx context.Context, deckID string) error {
	if err := s.store.ArchiveDeck(ctx, deckID); err != nil {
		return err
	}
	s.log.Info("deck archived", "deck_id", deckID)
	s.notify(ctx, deckID)
	return nil
}

// AddCard puts a term into a deck. The card is due at once. Adding a term the
// deck already holds only updates its translation.
func (s *Scheduler) AddCard(ctx context.Context, deckID, term, translation string) (models.Card, bool, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return models.Card{}, false, apperr.Validation("term", "must not be empty")
	}
	if _, err := s.store.GetDeck(ctx, deckID); err != nil {
		return models.Card{}, false, err
	}

	card := models.NewCard(uuid.NewString(), deckID, term, strings.TrimSpace(translation), s.now())
	card, created, err := s.store.UpsertCard(ctx, card)
	if err != nil {
		return models.Card{}, false, err
	}
	if created {
		s.notify(ctx, deckID)
	}
	return card, created, nil
}

// EnsureDeck and AddTerm let the spreadsheet importer write through the scheduler
func (s *Scheduler) EnsureDeck(ctx context.Context, name string) (models.Deck, bool, error) {
	return s.CreateDeck(ctx, name)
}

func (s *Scheduler) AddTerm(ctx context.Context, deckID, term, translation string) (bool, error) {
	_, created, err := s.AddCard(ctx, deckID, term, translation)
	return created, err
}
