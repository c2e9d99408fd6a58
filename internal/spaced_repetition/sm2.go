package spaced_repetition

import (
	"fmt"
	"math"
	"time"

	"github.com/example/lingua/pkg/models"
)

// SM2 implements a four-button variant of the SuperMemo-2 algorithm
type SM2 struct {
	// Smallest interval a card can get, also the reset interval after a lapse
	MinInterval float64
	// Largest interval in days
	MaxInterval float64
	// Ease never drops below this floor
	MinEase float64
	// Ease penalty applied on a lapse
	LapseEasePenalty float64
	// Per-outcome interval multipliers, hard < good < easy
	HardMultiplier float64
	GoodMultiplier float64
	EasyMultiplier float64
	// Per-outcome ease adjustments
	HardEaseDelta float64
	EasyEaseDelta float64
}

// NewSM2 returns the default settings
func NewSM2() *SM2 {
	return &SM2{
		MinInterval:      1,
		MaxInterval:      365, // one year
		MinEase:          1.3,
		LapseEasePenalty: 0.2,
		HardMultiplier:   0.5,
		GoodMultiplier:   1.0,
		EasyMultiplier:   1.3,
		HardEaseDelta:    -0.15,
		EasyEaseDelta:    0.15,
	}
}

// Validate checks the invariants the algorithm relies on
func (sm *SM2) Validate() error {
	if sm.MinInterval <= 0 || sm.MaxInterval < sm.MinInterval {
		return fmt.Errorf("interval bounds out of order: min=%v max=%v", sm.MinInterval, sm.MaxInterval)
	}
	if sm.MinEase <= 0 {
		return fmt.Errorf("minimum ease must be positive: %v", sm.MinEase)
	}
	if !(sm.HardMultiplier < sm.GoodMultiplier && sm.GoodMultiplier < sm.EasyMultiplier) {
		return fmt.Errorf("multipliers must satisfy hard < good < easy")
	}
	return nil
}

// Multiplier returns the interval multiplier for a passing outcome
func (sm *SM2) Multiplier(outcome models.Outcome) float64 {
	switch outcome {
	case models.OutcomeHard:
		return sm.HardMultiplier
	case models.OutcomeEasy:
		return sm.EasyMultiplier
	default:
		return sm.GoodMultiplier
	}
}

// Apply returns card after a review with the given outcome at asOf.
// DueAt and IntervalDays are always set together here and nowhere else.
func (sm *SM2) Apply(card models.Card, outcome models.Outcome, asOf time.Time) (models.Card, error) {
	if !outcome.IsValid() {
		return card, fmt.Errorf("invalid outcome: %v", outcome)
	}

	ease := card.EaseFactor
	if ease < sm.MinEase {
		ease = sm.MinEase
	}

	var interval float64
	switch outcome {
	case models.OutcomeAgain:
		card.Lapses++
		interval = sm.MinInterval
		ease = math.Max(sm.MinEase, ease-sm.LapseEasePenalty)
	default:
		// Grow with the ease the card had before this review. A card that has
		// never passed grows from MinInterval so the first grade moves DueAt.
		base := math.Max(card.IntervalDays, sm.MinInterval)
		interval = base * ease * sm.Multiplier(outcome)
		interval = math.Min(math.Max(interval, sm.MinInterval), sm.MaxInterval)

		switch outcome {
		case models.OutcomeHard:
			ease = math.Max(sm.MinEase, ease+sm.HardEaseDelta)
		case models.OutcomeEasy:
			ease += sm.EasyEaseDelta
		}
	}

	asOf = asOf.UTC()
	card.Reps++
	card.EaseFactor = ease
	card.IntervalDays = interval
	card.DueAt = asOf.Add(DaysToDuration(interval))
	card.UpdatedAt = asOf
	return card, nil
}

// DaysToDuration converts a fractional day count to a duration rounded to the millisecond
func DaysToDuration(days float64) time.Duration {
	return time.Duration(math.Round(days*24*float64(time.Hour)/float64(time.Millisecond))) * time.Millisecond
}

// IsMastered reports whether a card has settled into long intervals
func (sm *SM2) IsMastered(card models.Card) bool {
	return card.Reps >= 5 && card.IntervalDays >= 30
}
