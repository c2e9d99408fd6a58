package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates the HTTP router with all endpoints
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(h.logRequests)

	// System
	api.HandleFunc("/health", h.HealthCheck).Methods("GET")

	// Decks and cards
	api.HandleFunc("/decks", h.GetDecks).Methods("GET")
	api.HandleFunc("/decks", h.CreateDeck).Methods("POST")
	api.HandleFunc("/decks/{id}", h.DeleteDeck).Methods("DELETE")
	api.HandleFunc("/decks/{id}/cards", h.AddCard).Methods("POST")
	api.HandleFunc("/decks/{id}/due", h.GetDueCount).Methods("GET")
	api.HandleFunc("/decks/{id}/due/cards", h.GetDueCards).Methods("GET")
	api.HandleFunc("/decks/{id}/due/watch", h.WatchDue).Methods("GET")
	api.HandleFunc("/cards/{id}/review", h.ReviewCard).Methods("POST")

	// Lesson session
	api.HandleFunc("/lesson", h.GetLesson).Methods("GET")
	api.HandleFunc("/lesson/start", h.StartLesson).Methods("POST")
	api.HandleFunc("/lesson/attempt", h.SubmitAttempt).Methods("POST")
	api.HandleFunc("/lesson/abandon", h.AbandonLesson).Methods("POST")
	api.HandleFunc("/library", h.GetLibrary).Methods("GET")
	api.HandleFunc("/lessons/history", h.GetHistory).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	return c.Handler(r)
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.log.Debug("request",
			"method", r.Method,
			"path", trimmedPath(r),
			"duration", time.Since(start).String(),
		)
	})
}

// trimmedPath drops the version prefix in request logs
func trimmedPath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/api/v1")
}
