package models

import (
	"fmt"
	"strings"
	"time"
)

// FieldError names the request field that failed validation
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Level is a CEFR proficiency band
type Level string

const (
	LevelA1 Level = "A1"
	LevelA2 Level = "A2"
	LevelB1 Level = "B1"
	LevelB2 Level = "B2"
	LevelC1 Level = "C1"
	LevelC2 Level = "C2"
)

// Levels lists the bands from beginner to mastery
var Levels = []Level{LevelA1, LevelA2, LevelB1, LevelB2, LevelC1, LevelC2}

// IsValid reports whether l is one of the six known bands
func (l Level) IsValid() bool {
	for _, known := range Levels {
		if l == known {
			return true
		}
	}
	return false
}

// ParseLevel accepts a band in any case, e.g. "b1"
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToUpper(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", &FieldError{Field: "level", Reason: "unknown level " + s}
	}
	return l, nil
}

// LessonRequest identifies one generation call
type LessonRequest struct {
	Language       string `json:"language"`
	NativeLanguage string `json:"nativeLanguage"`
	Level          Level  `json:"level"`
	Topic          string `json:"topic"`
}

// Validate checks that every field is present and the level is known
func (r LessonRequest) Validate() error {
	if strings.TrimSpace(r.Language) == "" {
		return &FieldError{Field: "language", Reason: "must not be empty"}
	}
	if strings.TrimSpace(r.NativeLanguage) == "" {
		return &FieldError{Field: "nativeLanguage", Reason: "must not be empty"}
	}
	if !r.Level.IsValid() {
		return &FieldError{Field: "level", Reason: "unknown level " + string(r.Level)}
	}
	if strings.TrimSpace(r.Topic) == "" {
		return &FieldError{Field: "topic", Reason: "must not be empty"}
	}
	return nil
}

// Focus names the vocabulary and grammar an item targets
type Focus struct {
	Terms    []string `json:"terms,omitempty"`
	Concepts []string `json:"concepts,omitempty"`
}

// LessonItem is one practice prompt produced by the generator
type LessonItem struct {
	ID              string `json:"id"`
	Prompt          string `json:"prompt"`
	SuggestedAnswer string `json:"suggestedAnswer"`
	Focus           Focus  `json:"focus"`
}

// GeneratedLesson is what the generation collaborator returns
type GeneratedLesson struct {
	LessonID string        `json:"lessonId,omitempty"`
	Request  LessonRequest `json:"request"`
	Items    []LessonItem  `json:"items"`
}

// Attempt is one free-text answer sent to the scoring collaborator
type Attempt struct {
	LessonID string `json:"lessonId"`
	ItemID   string `json:"itemId"`
	Answer   string `json:"answer"`
}

// Scores are on a 0-100 scale everywhere in this module
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Feedback is the grader's verdict on an attempt
type Feedback struct {
	CorrectedAnswer string  `json:"correctedAnswer"`
	SpellingScore   float64 `json:"spellingScore"`
	GrammarScore    float64 `json:"grammarScore"`
	Notes           string  `json:"notes,omitempty"`
}

// Score returns the spelling/grammar pair recorded per graded attempt
func (f Feedback) Score() Score {
	return Score{Spelling: f.SpellingScore, Grammar: f.GrammarScore}
}

// Grade is what the scoring collaborator returns
type Grade struct {
	Feedback  Feedback     `json:"feedback"`
	NextItems []LessonItem `json:"nextItems,omitempty"`
}

// Score is one graded attempt
type Score struct {
	Spelling float64 `json:"spelling"`
	Grammar  float64 `json:"grammar"`
}

// Mean is the average of the two scores
func (s Score) Mean() float64 {
	return (s.Spelling + s.Grammar) / 2
}

// LessonRecord is the history row written when a lesson completes
type LessonRecord struct {
	LessonID     string        `json:"lessonId"`
	Request      LessonRequest `json:"request"`
	ItemCount    int           `json:"itemCount"`
	MeanSpelling float64       `json:"meanSpelling"`
	MeanGrammar  float64       `json:"meanGrammar"`
	StartedAt    time.Time     `json:"startedAt"`
	CompletedAt  time.Time     `json:"completedAt"`
}

// AttemptRecord is everything one graded attempt writes, persisted as a unit
type AttemptRecord struct {
	LessonID  string
	ItemID    string
	Score     Score
	Library   []LibraryChange
	Completed *LessonRecord // set when the attempt finished the lesson
	At        time.Time
}
