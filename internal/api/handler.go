package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/lingua/internal/apperr"
	"github.com/example/lingua/internal/lesson"
	"github.com/example/lingua/internal/logger"
	"github.com/example/lingua/internal/review"
	"github.com/example/lingua/pkg/models"
)

// Reviews is the review scheduler as seen by the HTTP layer
type Reviews interface {
	DueCount(ctx context.Context, deckID string, asOf time.Time) (int, error)
	DueCards(ctx context.Context, deckID string, asOf time.Time, limit int) ([]models.Card, error)
	RecordOutcome(ctx context.Context, cardID string, outcome models.Outcome, asOf time.Time) (models.Card, error)
	CreateDeck(ctx context.Context, name string) (models.Deck, bool, error)
	Decks(ctx context.Context) ([]models.Deck, error)
	ArchiveDeck(ctx context.Context, deckID string) error
	AddCard(ctx context.Context, deckID, term, translation string) (models.Card, bool, error)
	Watch(ctx context.Context, deckID string, asOf time.Time) (*review.Subscription, error)
}

// Lessons is the lesson state machine as seen by the HTTP layer
type Lessons interface {
	Start(ctx context.Context, req models.LessonRequest) (lesson.ActiveLesson, error)
	SubmitAttempt(ctx context.Context, answer string) (lesson.AttemptResult, error)
	Abandon() error
	Snapshot() lesson.Snapshot
}

// History reads completed lessons
type History interface {
	LessonHistory(ctx context.Context, limit int) ([]models.LessonRecord, error)
}

const (
	defaultHistoryLimit = 20
	writeWait           = 10 * time.Second
)

// Handler serves every API endpoint
type Handler struct {
	reviews  Reviews
	lessons  Lessons
	history  History
	log      *logger.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new API handler
func NewHandler(reviews Reviews, lessons Lessons, history History, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{
		reviews: reviews,
		lessons: lessons,
		history: history,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, map[string]string{"error": message}, status)
}

// writeError maps the error taxonomy onto HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperr.IsValidation(err):
		errorResponse(w, err.Error(), http.StatusBadRequest)
	case apperr.IsNotFound(err):
		errorResponse(w, err.Error(), http.StatusNotFound)
	case apperr.IsInvalidState(err):
		errorResponse(w, err.Error(), http.StatusConflict)
	case apperr.IsCollaborator(err):
		h.log.Warn("collaborator failure", "path", r.URL.Path, "error", err)
		errorResponse(w, err.Error(), http.StatusBadGateway)
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		errorResponse(w, "internal error", http.StatusInternalServerError)
	}
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.Validation("body", err.Error())
	}
	return nil
}

// asOfParam reads ?asOf=RFC3339; absent means now
func asOfParam(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("asOf")
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("asOf", "must be an RFC3339 timestamp")
	}
	return t, nil
}

func limitParam(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("limit", "must be a non-negative integer")
	}
	return n, nil
}

// === System ===

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, map[string]interface{}{
		"status":    "ok",
		"lesson":    h.lessons.Snapshot().State.Status(),
		"timestamp": time.Now().UTC(),
	}, http.StatusOK)
}

// === Decks and cards ===

func (h *Handler) GetDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := h.reviews.Decks(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonResponse(w, decks, http.StatusOK)
}

func (h *Handler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	deck, created, err := h.reviews.CreateDeck(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	jsonResponse(w, deck, status)
}

// DeleteDeck archives the deck and its cards
func (h *Handler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	if err := h.reviews.ArchiveDeck(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) AddCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Term        string `json:"term"`
		Translation string `json:"translation"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	card, created, err := h.reviews.AddCard(r.Context(), mux.Vars(r)["id"], req.Term, req.Translation)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	jsonResponse(w, card, status)
}

func (h *Handler) GetDueCount(w http.ResponseWriter, r *http.Request) {
	deckID := mux.Vars(r)["id"]
	asOf, err := asOfParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	count, err := h.reviews.DueCount(r.Context(), deckID, asOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonResponse(w, dueMessage{DeckID: deckID, Count: count}, http.StatusOK)
}

func (h *Handler) GetDueCards(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	limit, err := limitParam(r, 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cards, err := h.reviews.DueCards(r.Context(), mux.Vars(r)["id"], asOf, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if cards == nil {
		cards = []models.Card{}
	}
	jsonResponse(w, cards, http.StatusOK)
}

type dueMessage struct {
	DeckID string `json:"deckId"`
	Count  int    `json:"count"`
}

// WatchDue streams the deck's due count over a websocket whenever it changes
func (h *Handler) WatchDue(w http.ResponseWriter, r *http.Request) {
	deckID := mux.Vars(r)["id"]
	asOf, err := asOfParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.reviews.Watch(ctx, deckID, asOf)
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"error": err.Error()})
		return
	}
	defer sub.Cancel()

	// The client only ever closes; any read error ends the stream
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case count, ok := <-sub.C():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(dueMessage{DeckID: deckID, Count: count}); err != nil {
				h.log.Debug("due watch closed", "deck_id", deckID, "error", err)
				return
			}
		}
	}
}

func (h *Handler) ReviewCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Outcome models.Outcome `json:"outcome"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	asOf, err := asOfParam(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	card, err := h.reviews.RecordOutcome(r.Context(), mux.Vars(r)["id"], req.Outcome, asOf)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonResponse(w, card, http.StatusOK)
}

// === Lesson session ===

// itemView hides the suggested answer from clients
type itemView struct {
	ID     string       `json:"id"`
	Prompt string       `json:"prompt"`
	Focus  models.Focus `json:"focus"`
}

type lessonView struct {
	ID           string               `json:"id"`
	Request      models.LessonRequest `json:"request"`
	Items        []itemView           `json:"items"`
	CurrentIndex int                  `json:"currentIndex"`
	CurrentItem  *itemView            `json:"currentItem,omitempty"`
	LastFeedback *models.Feedback     `json:"lastFeedback,omitempty"`
}

type sessionView struct {
	Status       lesson.Status  `json:"status"`
	Lesson       *lessonView    `json:"lesson,omitempty"`
	RecentScores []models.Score `json:"recentScores"`
}

func newLessonView(l lesson.ActiveLesson) *lessonView {
	v := &lessonView{
		ID:           l.ID,
		Request:      l.Request,
		Items:        make([]itemView, len(l.Items)),
		CurrentIndex: l.CurrentIndex,
		LastFeedback: l.LastFeedback,
	}
	for i, item := range l.Items {
		v.Items[i] = itemView{ID: item.ID, Prompt: item.Prompt, Focus: item.Focus}
	}
	if l.CurrentIndex < len(v.Items) {
		current := v.Items[l.CurrentIndex]
		v.CurrentItem = &current
	}
	return v
}

func newSessionView(snap lesson.Snapshot) sessionView {
	v := sessionView{Status: snap.State.Status(), RecentScores: snap.RecentScores}
	if v.RecentScores == nil {
		v.RecentScores = []models.Score{}
	}
	if l, ok := snap.Lesson(); ok {
		v.Lesson = newLessonView(l)
	}
	return v
}

func (h *Handler) GetLesson(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, newSessionView(h.lessons.Snapshot()), http.StatusOK)
}

func (h *Handler) StartLesson(w http.ResponseWriter, r *http.Request) {
	var req models.LessonRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if level, err := models.ParseLevel(string(req.Level)); err == nil {
		req.Level = level
	}
	if _, err := h.lessons.Start(r.Context(), req); err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonResponse(w, newSessionView(h.lessons.Snapshot()), http.StatusCreated)
}

func (h *Handler) SubmitAttempt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answer string `json:"answer"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.lessons.SubmitAttempt(r.Context(), req.Answer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	changes := make([]map[string]interface{}, 0, len(res.Changes))
	for _, c := range res.Changes {
		changes = append(changes, map[string]interface{}{
			"partition":  c.Partition,
			"value":      c.Entry.Value,
			"focusLevel": c.Entry.FocusLevel,
		})
	}
	jsonResponse(w, map[string]interface{}{
		"itemId":   res.ItemID,
		"feedback": res.Feedback,
		"library":  changes,
		"session":  newSessionView(h.lessons.Snapshot()),
	}, http.StatusOK)
}

func (h *Handler) AbandonLesson(w http.ResponseWriter, r *http.Request) {
	if err := h.lessons.Abandon(); err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonResponse(w, newSessionView(h.lessons.Snapshot()), http.StatusOK)
}

func (h *Handler) GetLibrary(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, h.lessons.Snapshot().Library, http.StatusOK)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultHistoryLimit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	records, err := h.history.LessonHistory(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []models.LessonRecord{}
	}
	jsonResponse(w, records, http.StatusOK)
}
