package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestOutcomeRoundTripsThroughJSON(t *testing.T) {
	var got struct {
		Outcome Outcome `json:"outcome"`
	}
	if err := json.Unmarshal([]byte(`{"outcome":"Good"}`), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Outcome != OutcomeGood {
		t.Fatalf("Outcome: want=%v got=%v", OutcomeGood, got.Outcome)
	}
	if err := json.Unmarshal([]byte(`{"outcome":"meh"}`), &got); err == nil {
		t.Fatal("expected error for unknown outcome")
	}
	if _, err := json.Marshal(Outcome(9)); err == nil {
		t.Fatal("expected error marshalling invalid outcome")
	}
}

func TestLessonRequestValidate(t *testing.T) {
	valid := LessonRequest{Language: "Spanish", NativeLanguage: "English", Level: LevelA1, Topic: "kitchen items"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cases := map[string]func(r *LessonRequest){
		"empty topic":    func(r *LessonRequest) { r.Topic = "  " },
		"unknown level":  func(r *LessonRequest) { r.Level = "D1" },
		"empty language": func(r *LessonRequest) { r.Language = "" },
		"empty native":   func(r *LessonRequest) { r.NativeLanguage = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			r := valid
			mutate(&r)
			err := r.Validate()
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("want FieldError, got %v", err)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel(" b2 ")
	if err != nil || l != LevelB2 {
		t.Fatalf("ParseLevel: want=B2 got=%q err=%v", l, err)
	}
	var fe *FieldError
	if _, err := ParseLevel("Z9"); !errors.As(err, &fe) || fe.Field != "level" {
		t.Fatalf("want level FieldError, got %v", err)
	}
}

func TestNewCardIsDueAtCreation(t *testing.T) {
	t0 := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	c := NewCard("c1", "d1", "la cuchara", "spoon", t0)
	if !c.IsDue(t0) {
		t.Fatal("new card should be due at creation")
	}
	if c.IsDue(t0.Add(-time.Second)) {
		t.Fatal("new card should not be due before creation")
	}
	c.Archived = true
	if c.IsDue(t0) {
		t.Fatal("archived card is never due")
	}
}
