package models

import (
	"strings"
	"time"
)

// Deck is a named collection of cards
type Deck struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Archived  bool      `json:"archived"`
	CreatedAt time.Time `json:"created_at"`
}

// DeckKey folds a deck name for lookups; names differing only in case or
// surrounding space refer to the same deck.
func DeckKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
