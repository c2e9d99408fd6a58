package spaced_repetition

import (
	"math"
	"testing"
	"time"

	"github.com/example/lingua/pkg/models"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func reviewedCard(interval, ease float64) models.Card {
	c := models.NewCard("c1", "d1", "el tenedor", "fork", t0.AddDate(0, 0, -30))
	c.IntervalDays = interval
	c.EaseFactor = ease
	c.DueAt = t0.AddDate(0, 0, -1)
	return c
}

func assertFloat(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func TestDefaultsAreValid(t *testing.T) {
	if err := NewSM2().Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	sm := NewSM2()
	sm.EasyMultiplier = sm.HardMultiplier
	if err := sm.Validate(); err == nil {
		t.Fatal("Validate should reject unordered multipliers")
	}
}

func TestAgainResetsInterval(t *testing.T) {
	sm := NewSM2()
	card := reviewedCard(20, 2.5)

	got, err := sm.Apply(card, models.OutcomeAgain, t0)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got.Lapses != card.Lapses+1 {
		t.Errorf("Lapses = %d, want %d", got.Lapses, card.Lapses+1)
	}
	assertFloat(t, "IntervalDays", got.IntervalDays, 1)
	assertFloat(t, "EaseFactor", got.EaseFactor, 2.3)
	if !got.DueAt.Equal(t0.Add(24 * time.Hour)) {
		t.Errorf("DueAt = %v, want %v", got.DueAt, t0.Add(24*time.Hour))
	}
}

func TestAgainEaseFloor(t *testing.T) {
	sm := NewSM2()
	card := reviewedCard(3, 1.35)
	for i := 0; i < 5; i++ {
		var err error
		card, err = sm.Apply(card, models.OutcomeAgain, t0)
		if err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	assertFloat(t, "EaseFactor", card.EaseFactor, 1.3)
	if card.Lapses != 5 {
		t.Errorf("Lapses = %d, want 5", card.Lapses)
	}
}

func TestPassingOutcomes(t *testing.T) {
	cases := []struct {
		outcome      models.Outcome
		wantInterval float64
		wantEase     float64
	}{
		{models.OutcomeHard, 10 * 2.5 * 0.5, 2.35},
		{models.OutcomeGood, 10 * 2.5 * 1.0, 2.5},
		{models.OutcomeEasy, 10 * 2.5 * 1.3, 2.65},
	}
	sm := NewSM2()
	for _, tc := range cases {
		t.Run(tc.outcome.String(), func(t *testing.T) {
			got, err := sm.Apply(reviewedCard(10, 2.5), tc.outcome, t0)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			assertFloat(t, "IntervalDays", got.IntervalDays, tc.wantInterval)
			assertFloat(t, "EaseFactor", got.EaseFactor, tc.wantEase)
			if got.Lapses != 0 {
				t.Errorf("Lapses = %d, want 0", got.Lapses)
			}
			want := t0.Add(DaysToDuration(tc.wantInterval))
			if !got.DueAt.Equal(want) {
				t.Errorf("DueAt = %v, want %v", got.DueAt, want)
			}
		})
	}
}

func TestOverdueNewCardGoodIsDueInFuture(t *testing.T) {
	sm := NewSM2()
	card := models.NewCard("c1", "d1", "la sartén", "pan", t0.AddDate(0, 0, -1))

	got, err := sm.Apply(card, models.OutcomeGood, t0)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !got.DueAt.After(t0) {
		t.Fatalf("DueAt = %v, want strictly after %v", got.DueAt, t0)
	}
	assertFloat(t, "IntervalDays", got.IntervalDays, 2.5)
}

func TestFirstReviewGradesSpreadDueDates(t *testing.T) {
	sm := NewSM2()
	cases := []struct {
		outcome      models.Outcome
		wantInterval float64
	}{
		{models.OutcomeAgain, 1},
		{models.OutcomeHard, 1 * 2.5 * 0.5},
		{models.OutcomeGood, 1 * 2.5 * 1.0},
		{models.OutcomeEasy, 1 * 2.5 * 1.3},
	}
	var prev time.Time
	for _, tc := range cases {
		t.Run(tc.outcome.String(), func(t *testing.T) {
			card := models.NewCard("c1", "d1", "el horno", "oven", t0)
			got, err := sm.Apply(card, tc.outcome, t0)
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			assertFloat(t, "IntervalDays", got.IntervalDays, tc.wantInterval)
			if !got.DueAt.After(prev) {
				t.Fatalf("DueAt = %v, want after %v", got.DueAt, prev)
			}
			prev = got.DueAt
		})
	}
}

func TestIntervalClampedToMax(t *testing.T) {
	sm := NewSM2()
	got, err := sm.Apply(reviewedCard(300, 2.5), models.OutcomeEasy, t0)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	assertFloat(t, "IntervalDays", got.IntervalDays, 365)
}

func TestInvalidOutcomeLeavesCardUntouched(t *testing.T) {
	sm := NewSM2()
	card := reviewedCard(10, 2.5)
	got, err := sm.Apply(card, models.Outcome(0), t0)
	if err == nil {
		t.Fatal("expected error for invalid outcome")
	}
	if got != card {
		t.Fatal("card changed on invalid outcome")
	}
}
