package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Outcome is the recall quality reported after reviewing a card
type Outcome int

const (
	// OutcomeAgain means the card was forgotten
	OutcomeAgain Outcome = iota + 1
	// OutcomeHard means the card was recalled with serious effort
	OutcomeHard
	// OutcomeGood means the card was recalled with some hesitation
	OutcomeGood
	// OutcomeEasy means the card was recalled instantly
	OutcomeEasy
)

var outcomeNames = [...]string{
	OutcomeAgain: "again",
	OutcomeHard:  "hard",
	OutcomeGood:  "good",
	OutcomeEasy:  "easy",
}

// IsValid reports whether o is one of the four known outcomes
func (o Outcome) IsValid() bool {
	return o >= OutcomeAgain && o <= OutcomeEasy
}

func (o Outcome) String() string {
	if o.IsValid() {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// ParseOutcome converts "again", "hard", "good" or "easy" (any case) to an Outcome
func ParseOutcome(s string) (Outcome, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for o := OutcomeAgain; o <= OutcomeEasy; o++ {
		if outcomeNames[o] == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// MarshalText implements encoding.TextMarshaler
func (o Outcome) MarshalText() ([]byte, error) {
	if !o.IsValid() {
		return nil, fmt.Errorf("invalid outcome: %d", int(o))
	}
	return []byte(outcomeNames[o]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (o *Outcome) UnmarshalText(text []byte) error {
	v, err := ParseOutcome(string(text))
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// MarshalJSON writes the outcome as a JSON string
func (o Outcome) MarshalJSON() ([]byte, error) {
	text, err := o.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON reads the outcome from a JSON string
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("outcome must be a string: %s", data)
	}
	return o.UnmarshalText([]byte(s))
}
