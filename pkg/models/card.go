package models

import "time"

// Card is one schedulable review unit inside a deck
type Card struct {
	ID           string    `json:"id"`
	DeckID       string    `json:"deck_id"`
	Term         string    `json:"term"`
	Translation  string    `json:"translation"`
	DueAt        time.Time `json:"due_at"`
	IntervalDays float64   `json:"interval_days"` // Current spacing interval in days
	EaseFactor   float64   `json:"ease_factor"`   // Interval growth multiplier
	Lapses       int       `json:"lapses"`        // Number of failed reviews
	Reps         int       `json:"reps"`          // Number of reviews of any outcome
	Archived     bool      `json:"archived"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultEaseFactor is the ease a freshly created card starts with
const DefaultEaseFactor = 2.5

// NewCard returns a card that is due immediately at createdAt
func NewCard(id, deckID, term, translation string, createdAt time.Time) Card {
	createdAt = createdAt.UTC()
	return Card{
		ID:           id,
		DeckID:       deckID,
		Term:         term,
		Translation:  translation,
		DueAt:        createdAt,
		IntervalDays: 0,
		EaseFactor:   DefaultEaseFactor,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

// IsDue reports whether the card is eligible for review at asOf
func (c Card) IsDue(asOf time.Time) bool {
	return !c.Archived && !c.DueAt.After(asOf)
}
