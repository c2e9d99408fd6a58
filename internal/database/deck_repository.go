package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/lingua/internal/apperr"
	"github.com/example/lingua/pkg/models"
)

type deckRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	NameKey   string `db:"name_key"`
	Archived  bool   `db:"archived"`
	CreatedAt int64  `db:"created_at"`
}

func (r deckRow) toModel() models.Deck {
	return models.Deck{
		ID:        r.ID,
		Name:      r.Name,
		Archived:  r.Archived,
		CreatedAt: fromMillis(r.CreatedAt),
	}
}

// DeckRepository handles database operations for decks
type DeckRepository struct {
	db *DB
}

// NewDeckRepository creates a new repository instance
func NewDeckRepository(db *DB) *DeckRepository {
	return &DeckRepository{db: db}
}

// EnsureDeck returns the active deck whose name matches deck.Name ignoring case, or inserts deck
func (r *DeckRepository) EnsureDeck(ctx context.Context, deck models.Deck) (models.Deck, bool, error) {
	var (
		out     models.Deck
		created bool
	)
	err := r.db.inTx(ctx, func(tx *sqlx.Tx) error {
		var row deckRow
		err := tx.GetContext(ctx, &row,
			tx.Rebind(`SELECT id, name, archived, created_at FROM decks WHERE name_key = ? AND NOT archived`),
			models.DeckKey(deck.Name),
		)
		if err == nil {
			out = row.toModel()
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("failed to get deck by name: %w", err)
		}

		row = deckRow{ID: deck.ID, Name: deck.Name, NameKey: models.DeckKey(deck.Name), CreatedAt: toMillis(deck.CreatedAt)}
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO decks (id, name, name_key, archived, created_at)
			VALUES (:id, :name, :name_key, :archived, :created_at)`,
			row,
		); err != nil {
			return fmt.Errorf("failed to create deck: %w", err)
		}
		out = row.toModel()
		created = true
		return nil
	})
	if err != nil {
		return models.Deck{}, false, err
	}
	return out, created, nil
}

// GetDeck returns an active deck by ID
func (r *DeckRepository) GetDeck(ctx context.Context, id string) (models.Deck, error) {
	var row deckRow
	err := r.db.GetContext(ctx, &row,
		r.db.Rebind(`SELECT id, name, archived, created_at FROM decks WHERE id = ? AND NOT archived`),
		id,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Deck{}, apperr.NotFound("deck", id)
		}
		return models.Deck{}, fmt.Errorf("failed to get deck: %w", err)
	}
	return row.toModel(), nil
}

// ListDecks returns active decks ordered by name
func (r *DeckRepository) ListDecks(ctx context.Context) ([]models.Deck, error) {
	var rows []deckRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT id, name, archived, created_at FROM decks WHERE NOT archived ORDER BY name`,
	); err != nil {
		return nil, fmt.Errorf("failed to get decks: %w", err)
	}
	decks := make([]models.Deck, 0, len(rows))
	for _, row := range rows {
		decks = append(decks, row.toModel())
	}
	return decks, nil
}

// ArchiveDeck archives a deck and its cards. Rows are kept.
func (r *DeckRepository) ArchiveDeck(ctx context.Context, id string) error {
	return r.db.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE decks SET archived = ? WHERE id = ? AND NOT archived`),
			true, id,
		)
		if err != nil {
			return fmt.Errorf("failed to archive deck: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if n == 0 {
			return apperr.NotFound("deck", id)
		}

		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`UPDATE cards SET archived = ? WHERE deck_id = ?`),
			true, id,
		); err != nil {
			return fmt.Errorf("failed to archive cards: %w", err)
		}
		return nil
	})
}

// ReviewStore is the review.Store backed by this database
type ReviewStore struct {
	*CardRepository
	*DeckRepository
}

// NewReviewStore combines the card and deck repositories
func NewReviewStore(db *DB) *ReviewStore {
	return &ReviewStore{
		CardRepository: NewCardRepository(db),
		DeckRepository: NewDeckRepository(db),
	}
}
