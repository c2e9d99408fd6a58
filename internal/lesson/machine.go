// Package lesson runs one generated lesson at a time: start, answer each
// item, complete, and fold the graded answers into the durable library.
package lesson

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/lingua/internal/apperr"
	"github.com/example/lingua/internal/logger"
	"github.com/example/lingua/pkg/models"
)

// Collaborator names used in CollaboratorError
const (
	GeneratorName = "lesson generator"
	ScorerName    = "attempt scorer"
)

// DefaultRecentScoresLimit bounds the in-memory score window
const DefaultRecentScoresLimit = 50

// Generator produces lesson items for a request
type Generator interface {
	GenerateLesson(ctx context.Context, req models.LessonRequest) (*models.GeneratedLesson, error)
}

// Scorer grades a free-text answer
type Scorer interface {
	ScoreAttempt(ctx context.Context, attempt models.Attempt) (*models.Grade, error)
}

// Store persists what outlives a session
type Store interface {
	LoadLibrary(ctx context.Context) (models.Library, error)
	// RecentScores returns up to limit scores, oldest first; limit <= 0 means all
	RecentScores(ctx context.Context, limit int) ([]models.Score, error)
	// SaveAttempt writes a graded attempt as a single transaction
	SaveAttempt(ctx context.Context, rec models.AttemptRecord) error
}

// AttemptResult is returned by a successful SubmitAttempt
type AttemptResult struct {
	ItemID   string
	Feedback models.Feedback
	Changes  []models.LibraryChange
	State    State
}

// Machine is the lesson session state machine
type Machine struct {
	gen         Generator
	scorer      Scorer
	store       Store
	policy      Policy
	scoresLimit int
	callTimeout time.Duration
	log         *logger.Logger
	now         func() time.Time

	// opMu serializes transitions; mu guards the fields below for readers
	opMu sync.Mutex

	mu           sync.RWMutex
	state        State
	recentScores []models.Score
	library      models.Library
}

// Option configures a Machine
type Option func(*Machine)

// WithPolicy replaces the library merge policy. A policy that fails Validate
// is ignored with a warning.
func WithPolicy(p Policy) Option {
	return func(m *Machine) { m.policy = p }
}

// WithRecentScoresLimit bounds recent scores; 0 keeps all of them
func WithRecentScoresLimit(n int) Option {
	return func(m *Machine) { m.scoresLimit = n }
}

// WithCallTimeout bounds each collaborator call. A timeout is reported like any other collaborator failure.
func WithCallTimeout(d time.Duration) Option {
	return func(m *Machine) { m.callTimeout = d }
}

func WithLogger(log *logger.Logger) Option {
	return func(m *Machine) { m.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine creates an idle machine with an empty library
func NewMachine(gen Generator, scorer Scorer, store Store, opts ...Option) *Machine {
	m := &Machine{
		gen:         gen,
		scorer:      scorer,
		store:       store,
		policy:      DefaultPolicy(),
		scoresLimit: DefaultRecentScoresLimit,
		log:         logger.Nop(),
		now:         time.Now,
		state:       Idle{},
		library:     models.NewLibrary(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.policy.Validate(); err != nil {
		m.log.Warn("invalid lesson policy, using defaults", "error", err)
		m.policy = DefaultPolicy()
	}
	return m
}

// Restore loads the library and recent scores from the store
func (m *Machine) Restore(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	lib, err := m.store.LoadLibrary(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore library: %w", err)
	}
	scores, err := m.store.RecentScores(ctx, m.scoresLimit)
	if err != nil {
		return fmt.Errorf("failed to restore recent scores: %w", err)
	}
	if lib.Terms == nil || lib.Concepts == nil {
		lib = lib.Clone()
	}

	m.mu.Lock()
	m.library = lib
	m.recentScores = scores
	m.mu.Unlock()

	m.log.Info("lesson state restored",
		"terms", len(lib.Terms),
		"concepts", len(lib.Concepts),
		"recent_scores", len(scores),
	)
	return nil
}

// Start generates a lesson for req. Only valid while idle.
func (m *Machine) Start(ctx context.Context, req models.LessonRequest) (ActiveLesson, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if st := m.current(); st.Status() != StatusIdle {
		return ActiveLesson{}, apperr.InvalidState("start", string(st.Status()))
	}
	if err := req.Validate(); err != nil {
		var fe *models.FieldError
		if errors.As(err, &fe) {
			return ActiveLesson{}, apperr.Validation(fe.Field, fe.Reason)
		}
		return ActiveLesson{}, apperr.Validation("request", err.Error())
	}

	callCtx, cancel := m.callContext(ctx)
	generated, err := m.gen.GenerateLesson(callCtx, req)
	cancel()
	if err != nil {
		return ActiveLesson{}, apperr.Collaborator(GeneratorName, "generate lesson", err)
	}
	if err := checkGenerated(generated); err != nil {
		return ActiveLesson{}, apperr.Collaborator(GeneratorName, "generate lesson", err)
	}

	id := generated.LessonID
	if id == "" {
		id = uuid.NewString()
	}
	lesson := ActiveLesson{
		ID:        id,
		Request:   req,
		Items:     generated.Items,
		StartedAt: m.now().UTC(),
	}
	lesson = lesson.clone()

	m.mu.Lock()
	m.state = InProgress{Lesson: lesson}
	m.mu.Unlock()

	m.log.Info("lesson started",
		"lesson_id", lesson.ID,
		"language", req.Language,
		"level", string(req.Level),
		"topic", req.Topic,
		"items", len(lesson.Items),
	)
	return lesson.clone(), nil
}

func checkGenerated(g *models.GeneratedLesson) error {
	if g == nil || len(g.Items) == 0 {
		return errors.New("no items returned")
	}
	seen := make(map[string]bool, len(g.Items))
	for i, item := range g.Items {
		if item.ID == "" {
			return fmt.Errorf("item %d has no id", i)
		}
		if seen[item.ID] {
			return fmt.Errorf("duplicate item id %q", item.ID)
		}
		seen[item.ID] = true
	}
	return nil
}

// SubmitAttempt grades answer against the current item and advances the lesson.
// Nothing changes, in memory or in the store, unless the whole attempt succeeds.
func (m *Machine) SubmitAttempt(ctx context.Context, answer string) (AttemptResult, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	st := m.current()
	inProgress, ok := st.(InProgress)
	if !ok {
		return AttemptResult{}, apperr.InvalidState("submit attempt", string(st.Status()))
	}
	item, ok := inProgress.Lesson.CurrentItem()
	if !ok {
		return AttemptResult{}, apperr.InvalidState("submit attempt", string(StatusComplete))
	}
	if strings.TrimSpace(answer) == "" {
		return AttemptResult{}, apperr.Validation("answer", "must not be empty")
	}

	attempt := models.Attempt{LessonID: inProgress.Lesson.ID, ItemID: item.ID, Answer: answer}
	callCtx, cancel := m.callContext(ctx)
	grade, err := m.scorer.ScoreAttempt(callCtx, attempt)
	cancel()
	if err != nil {
		return AttemptResult{}, apperr.Collaborator(ScorerName, "score attempt", err)
	}
	if err := checkGrade(grade); err != nil {
		return AttemptResult{}, apperr.Collaborator(ScorerName, "score attempt", err)
	}
	score := grade.Feedback.Score()
	at := m.now().UTC()

	library := m.library.Clone()
	changes := m.policy.Merge(library, item.Focus, score)
	recent := boundScores(append(append([]models.Score(nil), m.recentScores...), score), m.scoresLimit)

	next := inProgress.Lesson.clone()
	next.CurrentIndex++
	next.Scores = append(next.Scores, score)
	feedback := grade.Feedback
	next.LastFeedback = &feedback

	rec := models.AttemptRecord{
		LessonID: next.ID,
		ItemID:   item.ID,
		Score:    score,
		Library:  changes,
		At:       at,
	}
	var nextState State = InProgress{Lesson: next}
	if next.Done() {
		rec.Completed = next.record(at)
		nextState = Complete{Lesson: next}
	}

	if err := m.store.SaveAttempt(ctx, rec); err != nil {
		return AttemptResult{}, fmt.Errorf("failed to save attempt: %w", err)
	}

	m.mu.Lock()
	m.state = nextState
	m.library = library
	m.recentScores = recent
	m.mu.Unlock()

	m.log.Debug("attempt graded",
		"lesson_id", next.ID,
		"item_id", item.ID,
		"spelling", score.Spelling,
		"grammar", score.Grammar,
		"library_changes", len(changes),
	)
	if rec.Completed != nil {
		m.log.Info("lesson complete",
			"lesson_id", next.ID,
			"mean_spelling", rec.Completed.MeanSpelling,
			"mean_grammar", rec.Completed.MeanGrammar,
		)
	}

	return AttemptResult{
		ItemID:   item.ID,
		Feedback: feedback,
		Changes:  changes,
		State:    cloneState(nextState),
	}, nil
}

func checkGrade(g *models.Grade) error {
	if g == nil {
		return errors.New("no feedback returned")
	}
	for _, v := range []struct {
		name  string
		value float64
	}{
		{"spelling", g.Feedback.SpellingScore},
		{"grammar", g.Feedback.GrammarScore},
	} {
		if math.IsNaN(v.value) || v.value < models.MinScore || v.value > models.MaxScore {
			return fmt.Errorf("%s score %v outside [%v, %v]", v.name, v.value, models.MinScore, models.MaxScore)
		}
	}
	return nil
}

// Abandon returns to idle from in_progress or complete. The library and
// recent scores are kept.
func (m *Machine) Abandon() error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	st := m.current()
	lesson, ok := lessonOf(st)
	if !ok {
		return apperr.InvalidState("abandon", string(st.Status()))
	}

	m.mu.Lock()
	m.state = Idle{}
	m.mu.Unlock()

	m.log.Info("lesson abandoned",
		"lesson_id", lesson.ID,
		"from", string(st.Status()),
		"answered", lesson.CurrentIndex,
	)
	return nil
}

// Snapshot returns a copy of the session that the caller may keep
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		State:        cloneState(m.state),
		RecentScores: append([]models.Score(nil), m.recentScores...),
		Library:      m.library.Clone(),
	}
}

func (m *Machine) current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Machine) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.callTimeout > 0 {
		return context.WithTimeout(ctx, m.callTimeout)
	}
	return context.WithCancel(ctx)
}

// boundScores keeps the newest limit scores
func boundScores(scores []models.Score, limit int) []models.Score {
	if limit > 0 && len(scores) > limit {
		return append([]models.Score(nil), scores[len(scores)-limit:]...)
	}
	return scores
}
