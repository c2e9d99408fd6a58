package review

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/lingua/internal/apperr"
	"github.com/example/lingua/pkg/models"
)

// memStore is an in-memory Store guarded by a single mutex
type memStore struct {
	mu     sync.Mutex
	cards  map[string]models.Card
	decks  map[string]models.Deck
	counts int // number of CountDue calls
}

func newMemStore() *memStore {
	return &memStore{
		cards: make(map[string]models.Card),
		decks: make(map[string]models.Deck),
	}
}

func (m *memStore) put(c models.Card) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[c.ID] = c
}

func (m *memStore) CountDue(_ context.Context, deckID string, asOf time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts++
	n := 0
	for _, c := range m.cards {
		if c.DeckID == deckID && c.IsDue(asOf) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListDue(_ context.Context, deckID string, asOf time.Time, limit int) ([]models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []models.Card
	for _, c := range m.cards {
		if c.DeckID == deckID && c.IsDue(asOf) {
			due = append(due, c)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].DueAt.Equal(due[j].DueAt) {
			return due[i].DueAt.Before(due[j].DueAt)
		}
		return due[i].ID < due[j].ID
	})
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *memStore) UpdateCard(_ context.Context, id string, fn func(*models.Card) error) (models.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cards[id]
	if !ok || c.Archived {
		return models.Card{}, apperr.NotFound("card", id)
	}
	if err := fn(&c); err != nil {
		return models.Card{}, err
	}
	m.cards[id] = c
	return c, nil
}

func (m *memStore) UpsertCard(_ context.Context, card models.Card) (models.Card, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.cards {
		if c.DeckID == card.DeckID && c.Term == card.Term && !c.Archived {
			c.Translation = card.Translation
			m.cards[id] = c
			return c, false, nil
		}
	}
	m.cards[card.ID] = card
	return card, true, nil
}

func (m *memStore) EnsureDeck(_ context.Context, deck models.Deck) (models.Deck, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.decks {
		if models.DeckKey(d.Name) == models.DeckKey(deck.Name) && !d.Archived {
			return d, false, nil
		}
	}
	m.decks[deck.ID] = deck
	return deck, true, nil
}

func (m *memStore) GetDeck(_ context.Context, id string) (models.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[id]
	if !ok || d.Archived {
		return models.Deck{}, apperr.NotFound("deck", id)
	}
	return d, nil
}

func (m *memStore) ListDecks(_ context.Context) ([]models.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Deck
	for _, d := range m.decks {
		if !d.Archived {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memStore) ArchiveDeck(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[id]
	if !ok || d.Archived {
		return apperr.NotFound("deck", id)
	}
	d.Archived = true
	m.decks[id] = d
	for cid, c := range m.cards {
		if c.DeckID == id {
			c.Archived = true
			m.cards[cid] = c
		}
	}
	return nil
}
