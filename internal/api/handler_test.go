package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/lingua/internal/ai"
	"github.com/example/lingua/internal/database"
	"github.com/example/lingua/internal/lesson"
	"github.com/example/lingua/internal/review"
	"github.com/example/lingua/pkg/models"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type testEnv struct {
	srv     *httptest.Server
	reviews *review.Scheduler
}

func newTestEnv(t *testing.T, gen lesson.Generator, scorer lesson.Scorer) *testEnv {
	t.Helper()
	db, err := database.Open(database.Options{Type: "sqlite", Path: ":memory:"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	clock := func() time.Time { return t0 }
	reviews := review.NewScheduler(database.NewReviewStore(db), review.WithClock(clock))
	history := database.NewLessonRepository(db)
	machine := lesson.NewMachine(gen, scorer, history, lesson.WithClock(clock))

	srv := httptest.NewServer(NewRouter(NewHandler(reviews, machine, history, nil)))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, reviews: reviews}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+"/api/v1"+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func expectStatus(t *testing.T, what string, want, got int) {
	t.Helper()
	if want != got {
		t.Fatalf("%s: want=%d got=%d", what, want, got)
	}
}

func TestDeckAndReviewFlow(t *testing.T) {
	mock := ai.NewMock(3)
	env := newTestEnv(t, mock, mock)

	var deck models.Deck
	expectStatus(t, "create deck", http.StatusCreated, env.do(t, "POST", "/decks", map[string]string{"name": "Kitchen"}, &deck))
	var again models.Deck
	expectStatus(t, "create deck again", http.StatusOK, env.do(t, "POST", "/decks", map[string]string{"name": "Kitchen"}, &again))
	if again.ID != deck.ID {
		t.Fatalf("deck id: want=%q got=%q", deck.ID, again.ID)
	}
	expectStatus(t, "blank deck", http.StatusBadRequest, env.do(t, "POST", "/decks", map[string]string{"name": " "}, nil))

	var card models.Card
	expectStatus(t, "add card", http.StatusCreated, env.do(t, "POST", "/decks/"+deck.ID+"/cards", map[string]string{"term": "cuchillo", "translation": "knife"}, &card))
	expectStatus(t, "add card", http.StatusCreated, env.do(t, "POST", "/decks/"+deck.ID+"/cards", map[string]string{"term": "cuchara", "translation": "spoon"}, nil))
	expectStatus(t, "add to missing deck", http.StatusNotFound, env.do(t, "POST", "/decks/nope/cards", map[string]string{"term": "x"}, nil))

	var due dueMessage
	expectStatus(t, "due count", http.StatusOK, env.do(t, "GET", "/decks/"+deck.ID+"/due", nil, &due))
	if due.Count != 2 {
		t.Fatalf("due count: want=2 got=%d", due.Count)
	}
	var before dueMessage
	env.do(t, "GET", "/decks/"+deck.ID+"/due?asOf=2025-06-14T10:00:00Z", nil, &before)
	if before.Count != 0 {
		t.Fatalf("due count before creation: want=0 got=%d", before.Count)
	}
	expectStatus(t, "bad asOf", http.StatusBadRequest, env.do(t, "GET", "/decks/"+deck.ID+"/due?asOf=yesterday", nil, nil))

	var cards []models.Card
	expectStatus(t, "due cards", http.StatusOK, env.do(t, "GET", "/decks/"+deck.ID+"/due/cards?limit=1", nil, &cards))
	if len(cards) != 1 {
		t.Fatalf("due cards: want=1 got=%d", len(cards))
	}

	var reviewed models.Card
	expectStatus(t, "review", http.StatusOK, env.do(t, "POST", "/cards/"+card.ID+"/review", map[string]string{"outcome": "good"}, &reviewed))
	if !reviewed.DueAt.After(t0) {
		t.Fatalf("due at: want after %v got=%v", t0, reviewed.DueAt)
	}
	env.do(t, "GET", "/decks/"+deck.ID+"/due", nil, &due)
	if due.Count != 1 {
		t.Fatalf("due count after review: want=1 got=%d", due.Count)
	}

	expectStatus(t, "bad outcome", http.StatusBadRequest, env.do(t, "POST", "/cards/"+card.ID+"/review", map[string]string{"outcome": "meh"}, nil))
	expectStatus(t, "missing card", http.StatusNotFound, env.do(t, "POST", "/cards/nope/review", map[string]string{"outcome": "again"}, nil))

	expectStatus(t, "archive", http.StatusNoContent, env.do(t, "DELETE", "/decks/"+deck.ID, nil, nil))
	expectStatus(t, "archive twice", http.StatusNotFound, env.do(t, "DELETE", "/decks/"+deck.ID, nil, nil))
	var decks []models.Deck
	env.do(t, "GET", "/decks", nil, &decks)
	if len(decks) != 0 {
		t.Fatalf("decks after archive: want none got=%v", decks)
	}
}

func TestWatchDueOverWebsocket(t *testing.T) {
	mock := ai.NewMock(3)
	env := newTestEnv(t, mock, mock)

	var deck models.Deck
	env.do(t, "POST", "/decks", map[string]string{"name": "Kitchen"}, &deck)
	var card models.Card
	env.do(t, "POST", "/decks/"+deck.ID+"/cards", map[string]string{"term": "vaso"}, &card)
	env.do(t, "POST", "/decks/"+deck.ID+"/cards", map[string]string{"term": "plato"}, nil)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/v1/decks/" + deck.ID + "/due/watch"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	read := func() dueMessage {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg dueMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ReadJSON: %v", err)
		}
		return msg
	}

	if msg := read(); msg.Count != 2 || msg.DeckID != deck.ID {
		t.Fatalf("initial count: want 2 for %s got=%+v", deck.ID, msg)
	}
	env.do(t, "POST", "/cards/"+card.ID+"/review", map[string]string{"outcome": "easy"}, nil)
	if msg := read(); msg.Count != 1 {
		t.Fatalf("count after review: want=1 got=%d", msg.Count)
	}

	_ = conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for env.reviews.Watchers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("watchers after close: want=0 got=%d", env.reviews.Watchers())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type sessionResponse struct {
	Status string `json:"status"`
	Lesson *struct {
		ID           string `json:"id"`
		CurrentIndex int    `json:"currentIndex"`
		Items        []struct {
			ID string `json:"id"`
		} `json:"items"`
		CurrentItem *struct {
			ID string `json:"id"`
		} `json:"currentItem"`
	} `json:"lesson"`
	RecentScores []models.Score `json:"recentScores"`
}

func TestLessonFlow(t *testing.T) {
	mock := ai.NewMock(3)
	env := newTestEnv(t, mock, mock)

	var session sessionResponse
	env.do(t, "GET", "/lesson", nil, &session)
	if session.Status != "idle" || session.Lesson != nil {
		t.Fatalf("initial session: got=%+v", session)
	}
	expectStatus(t, "attempt while idle", http.StatusConflict, env.do(t, "POST", "/lesson/attempt", map[string]string{"answer": "hola"}, nil))
	expectStatus(t, "abandon while idle", http.StatusConflict, env.do(t, "POST", "/lesson/abandon", nil, nil))

	bad := map[string]string{"language": "Spanish", "nativeLanguage": "English", "level": "A1", "topic": ""}
	expectStatus(t, "start without topic", http.StatusBadRequest, env.do(t, "POST", "/lesson/start", bad, nil))

	req := map[string]string{"language": "Spanish", "nativeLanguage": "English", "level": "a1", "topic": "kitchen items"}
	expectStatus(t, "start", http.StatusCreated, env.do(t, "POST", "/lesson/start", req, &session))
	if session.Status != "in_progress" || session.Lesson == nil || len(session.Lesson.Items) != 3 {
		t.Fatalf("started session: got=%+v", session)
	}
	if session.Lesson.CurrentItem == nil || session.Lesson.CurrentItem.ID != "item-1" {
		t.Fatalf("current item: got=%+v", session.Lesson.CurrentItem)
	}
	expectStatus(t, "start twice", http.StatusConflict, env.do(t, "POST", "/lesson/start", req, nil))

	resp, err := http.Get(env.srv.URL + "/api/v1/lesson")
	if err != nil {
		t.Fatalf("GET lesson: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if strings.Contains(string(raw), "suggestedAnswer") || strings.Contains(string(raw), "cuchillo está") {
		t.Fatalf("lesson view leaks suggested answers: %s", raw)
	}

	answers := []string{"El cuchillo está en la mesa.", "Necesito una cuchara.", "Los platos"}
	for i, answer := range answers {
		var out struct {
			ItemID   string          `json:"itemId"`
			Feedback models.Feedback `json:"feedback"`
			Session  sessionResponse `json:"session"`
		}
		expectStatus(t, "attempt", http.StatusOK, env.do(t, "POST", "/lesson/attempt", map[string]string{"answer": answer}, &out))
		if out.Session.Lesson == nil || out.Session.Lesson.CurrentIndex != i+1 {
			t.Fatalf("attempt %d: session=%+v", i, out.Session)
		}
		session = out.Session
	}
	if session.Status != "complete" || len(session.RecentScores) != 3 {
		t.Fatalf("finished session: got=%+v", session)
	}
	if session.RecentScores[0].Spelling != 100 {
		t.Fatalf("first score: want spelling 100 got=%+v", session.RecentScores[0])
	}

	var lib models.Library
	env.do(t, "GET", "/library", nil, &lib)
	if lib.Terms["cuchillo"].FocusLevel != 1 {
		t.Fatalf("cuchillo focus: want=1 got=%v", lib.Terms["cuchillo"].FocusLevel)
	}
	if _, ok := lib.Concepts["plural agreement"]; !ok {
		t.Fatalf("library concepts: want %q got=%v", "plural agreement", lib.Concepts)
	}

	var history []models.LessonRecord
	env.do(t, "GET", "/lessons/history", nil, &history)
	if len(history) != 1 || history[0].ItemCount != 3 || history[0].Request.Level != models.LevelA1 {
		t.Fatalf("history: got=%+v", history)
	}

	expectStatus(t, "abandon", http.StatusOK, env.do(t, "POST", "/lesson/abandon", nil, &session))
	if session.Status != "idle" || len(session.RecentScores) != 3 {
		t.Fatalf("abandoned session: got=%+v", session)
	}
	expectStatus(t, "abandon twice", http.StatusConflict, env.do(t, "POST", "/lesson/abandon", nil, nil))
}

type failingGenerator struct{}

func (failingGenerator) GenerateLesson(context.Context, models.LessonRequest) (*models.GeneratedLesson, error) {
	return nil, errors.New("upstream unavailable")
}

func TestCollaboratorFailureIsBadGateway(t *testing.T) {
	env := newTestEnv(t, failingGenerator{}, ai.NewMock(1))

	req := map[string]string{"language": "Spanish", "nativeLanguage": "English", "level": "B2", "topic": "travel"}
	expectStatus(t, "start", http.StatusBadGateway, env.do(t, "POST", "/lesson/start", req, nil))

	var session sessionResponse
	env.do(t, "GET", "/lesson", nil, &session)
	if session.Status != "idle" {
		t.Fatalf("status after failed start: want=idle got=%q", session.Status)
	}
}

func TestHealth(t *testing.T) {
	mock := ai.NewMock(1)
	env := newTestEnv(t, mock, mock)
	var out map[string]interface{}
	expectStatus(t, "health", http.StatusOK, env.do(t, "GET", "/health", nil, &out))
	if out["status"] != "ok" {
		t.Fatalf("health: got=%v", out)
	}
}
