package review

import (
	"context"
	"time"

	"github.com/example/lingua/pkg/models"
)

// Store is the card storage the scheduler runs on. Implementations return
// apperr.NotFoundError for unknown or archived cards and decks.
type Store interface {
	// CountDue counts non-archived cards of deckID with DueAt <= asOf in one consistent read
	CountDue(ctx context.Context, deckID string, asOf time.Time) (int, error)
	// ListDue returns the same cards ordered by DueAt ascending; limit <= 0 means all
	ListDue(ctx context.Context, deckID string, asOf time.Time, limit int) ([]models.Card, error)
	// UpdateCard loads a card, applies fn and writes it back as one atomic unit
	UpdateCard(ctx context.Context, id string, fn func(*models.Card) error) (models.Card, error)
	// UpsertCard inserts card or, when the deck already holds the term, updates its translation only
	UpsertCard(ctx context.Context, card models.Card) (models.Card, bool, error)

	// EnsureDeck returns the active deck called deck.Name, inserting deck if there is none
	EnsureDeck(ctx context.Context, deck models.Deck) (models.Deck, bool, error)
	GetDeck(ctx context.Context, id string) (models.Deck, error)
	ListDecks(ctx context.Context) ([]models.Deck, error)
	// ArchiveDeck archives the deck and all of its cards
	ArchiveDeck(ctx context.Context, id string) error
}
