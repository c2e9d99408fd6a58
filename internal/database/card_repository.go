package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/lingua/internal/apperr"
	"github.com/example/lingua/pkg/models"
)

// cardRow mirrors the cards table
type cardRow struct {
	ID           string  `db:"id"`
	DeckID       string  `db:"deck_id"`
	Term         string  `db:"term"`
	Translation  string  `db:"translation"`
	DueAt        int64   `db:"due_at"`
	IntervalDays float64 `db:"interval_days"`
	EaseFactor   float64 `db:"ease_factor"`
	Lapses       int     `db:"lapses"`
	Reps         int     `db:"reps"`
	Archived     bool    `db:"archived"`
	CreatedAt    int64   `db:"created_at"`
	UpdatedAt    int64   `db:"updated_at"`
}

func (r cardRow) toModel() models.Card {
	return models.Card{
		ID:           r.ID,
		DeckID:       r.DeckID,
		Term:         r.Term,
		Translation:  r.Translation,
		DueAt:        fromMillis(r.DueAt),
		IntervalDays: r.IntervalDays,
		EaseFactor:   r.EaseFactor,
		Lapses:       r.Lapses,
		Reps:         r.Reps,
		Archived:     r.Archived,
		CreatedAt:    fromMillis(r.CreatedAt),
		UpdatedAt:    fromMillis(r.UpdatedAt),
	}
}

func newCardRow(c models.Card) cardRow {
	return cardRow{
		ID:           c.ID,
		DeckID:       c.DeckID,
		Term:         c.Term,
		Translation:  c.Translation,
		DueAt:        toMillis(c.DueAt),
		IntervalDays: c.IntervalDays,
		EaseFactor:   c.EaseFactor,
		Lapses:       c.Lapses,
		Reps:         c.Reps,
		Archived:     c.Archived,
		CreatedAt:    toMillis(c.CreatedAt),
		UpdatedAt:    toMillis(c.UpdatedAt),
	}
}

const cardColumns = `id, deck_id, term, translation, due_at, interval_days, ease_factor,
	lapses, reps, archived, created_at, updated_at`

// CardRepository handles database operations for cards
type CardRepository struct {
	db *DB
}

// NewCardRepository creates a new repository instance
func NewCardRepository(db *DB) *CardRepository {
	return &CardRepository{db: db}
}

// CountDue counts active cards of a deck due at asOf
func (r *CardRepository) CountDue(ctx context.Context, deckID string, asOf time.Time) (int, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM cards WHERE deck_id = ? AND NOT archived AND due_at <= ?`)
	if err := r.db.GetContext(ctx, &count, query, deckID, toMillis(asOf)); err != nil {
		return 0, fmt.Errorf("failed to count due cards: %w", err)
	}
	return count, nil
}

// ListDue returns active cards of a deck due at asOf, earliest due first
func (r *CardRepository) ListDue(ctx context.Context, deckID string, asOf time.Time, limit int) ([]models.Card, error) {
	query := `SELECT ` + cardColumns + ` FROM cards
		WHERE deck_id = ? AND NOT archived AND due_at <= ?
		ORDER BY due_at ASC, id ASC`
	args := []interface{}{deckID, toMillis(asOf)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []cardRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get due cards: %w", err)
	}
	cards := make([]models.Card, 0, len(rows))
	for _, row := range rows {
		cards = append(cards, row.toModel())
	}
	return cards, nil
}

// GetCard returns a card by ID, archived or not
func (r *CardRepository) GetCard(ctx context.Context, id string) (models.Card, error) {
	var row cardRow
	query := r.db.Rebind(`SELECT ` + cardColumns + ` FROM cards WHERE id = ?`)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Card{}, apperr.NotFound("card", id)
		}
		return models.Card{}, fmt.Errorf("failed to get card: %w", err)
	}
	return row.toModel(), nil
}

// UpdateCard reads a card, applies fn and writes the result in one transaction.
// Postgres locks the row; sqlite is already serialized by its single connection.
func (r *CardRepository) UpdateCard(ctx context.Context, id string, fn func(*models.Card) error) (models.Card, error) {
	var updated models.Card
	err := r.db.inTx(ctx, func(tx *sqlx.Tx) error {
		query := `SELECT ` + cardColumns + ` FROM cards WHERE id = ?`
		if r.db.isPostgres() {
			query += ` FOR UPDATE`
		}
		var row cardRow
		if err := tx.GetContext(ctx, &row, tx.Rebind(query), id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperr.NotFound("card", id)
			}
			return fmt.Errorf("failed to get card: %w", err)
		}
		if row.Archived {
			return apperr.NotFound("card", id)
		}

		card := row.toModel()
		if err := fn(&card); err != nil {
			return err
		}
		next := newCardRow(card)

		_, err := tx.ExecContext(ctx, tx.Rebind(`
			UPDATE cards SET
				due_at = ?,
				interval_days = ?,
				ease_factor = ?,
				lapses = ?,
				reps = ?,
				updated_at = ?
			WHERE id = ?`),
			next.DueAt, next.IntervalDays, next.EaseFactor, next.Lapses, next.Reps, next.UpdatedAt, id,
		)
		if err != nil {
			return fmt.Errorf("failed to update card: %w", err)
		}
		updated = next.toModel()
		return nil
	})
	if err != nil {
		return models.Card{}, err
	}
	return updated, nil
}

// UpsertCard inserts a card or, if the deck already has the term, refreshes its translation.
// The schedule of an existing card is never touched here.
func (r *CardRepository) UpsertCard(ctx context.Context, card models.Card) (models.Card, bool, error) {
	var (
		out     models.Card
		created bool
	)
	err := r.db.inTx(ctx, func(tx *sqlx.Tx) error {
		var row cardRow
		err := tx.GetContext(ctx, &row,
			tx.Rebind(`SELECT `+cardColumns+` FROM cards WHERE deck_id = ? AND term = ?`),
			card.DeckID, card.Term,
		)
		switch {
		case err == nil:
			row.Translation = card.Translation
			row.UpdatedAt = toMillis(card.UpdatedAt)
			if _, err := tx.ExecContext(ctx,
				tx.Rebind(`UPDATE cards SET translation = ?, updated_at = ? WHERE id = ?`),
				row.Translation, row.UpdatedAt, row.ID,
			); err != nil {
				return fmt.Errorf("failed to update card: %w", err)
			}
			out = row.toModel()
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to look up card: %w", err)
		}

		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO cards (`+cardColumns+`)
			VALUES (:id, :deck_id, :term, :translation, :due_at, :interval_days, :ease_factor,
				:lapses, :reps, :archived, :created_at, :updated_at)`,
			newCardRow(card),
		); err != nil {
			return fmt.Errorf("failed to create card: %w", err)
		}
		out = newCardRow(card).toModel()
		created = true
		return nil
	})
	if err != nil {
		return models.Card{}, false, err
	}
	return out, created, nil
}

// inTx runs fn in a transaction, committing only if it returns nil
func (db *DB) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
