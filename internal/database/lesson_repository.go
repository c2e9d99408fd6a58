package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/example/lingua/pkg/models"
)

type libraryRow struct {
	Kind        string  `db:"kind"`
	Value       string  `db:"value"`
	Translation string  `db:"translation"`
	FocusLevel  float64 `db:"focus_level"`
	UpdatedAt   int64   `db:"updated_at"`
}

type scoreRow struct {
	ID        string  `db:"id"`
	Seq       int64   `db:"seq"`
	LessonID  string  `db:"lesson_id"`
	ItemID    string  `db:"item_id"`
	Spelling  float64 `db:"spelling"`
	Grammar   float64 `db:"grammar"`
	CreatedAt int64   `db:"created_at"`
}

// lessonRow is keyed by its own id; lesson_id comes from the generator and may repeat
type lessonRow struct {
	ID             string  `db:"id"`
	LessonID       string  `db:"lesson_id"`
	Language       string  `db:"language"`
	NativeLanguage string  `db:"native_language"`
	Level          string  `db:"level"`
	Topic          string  `db:"topic"`
	ItemCount      int     `db:"item_count"`
	MeanSpelling   float64 `db:"mean_spelling"`
	MeanGrammar    float64 `db:"mean_grammar"`
	StartedAt      int64   `db:"started_at"`
	CompletedAt    int64   `db:"completed_at"`
}

func (r lessonRow) toModel() models.LessonRecord {
	return models.LessonRecord{
		LessonID: r.LessonID,
		Request: models.LessonRequest{
			Language:       r.Language,
			NativeLanguage: r.NativeLanguage,
			Level:          models.Level(r.Level),
			Topic:          r.Topic,
		},
		ItemCount:    r.ItemCount,
		MeanSpelling: r.MeanSpelling,
		MeanGrammar:  r.MeanGrammar,
		StartedAt:    fromMillis(r.StartedAt),
		CompletedAt:  fromMillis(r.CompletedAt),
	}
}

// LessonRepository persists the library, graded scores and completed lessons
type LessonRepository struct {
	db *DB
}

// NewLessonRepository creates a new repository instance
func NewLessonRepository(db *DB) *LessonRepository {
	return &LessonRepository{db: db}
}

// LoadLibrary reads every library entry
func (r *LessonRepository) LoadLibrary(ctx context.Context) (models.Library, error) {
	var rows []libraryRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT kind, value, translation, focus_level, updated_at FROM library_entries`,
	); err != nil {
		return models.Library{}, fmt.Errorf("failed to get library: %w", err)
	}

	lib := models.NewLibrary()
	for _, row := range rows {
		lib.Partition(models.Partition(row.Kind))[row.Value] = models.LibraryEntry{
			Value:       row.Value,
			Translation: row.Translation,
			FocusLevel:  row.FocusLevel,
		}
	}
	return lib, nil
}

// RecentScores returns up to limit most recent scores, oldest first. limit <= 0 returns all.
func (r *LessonRepository) RecentScores(ctx context.Context, limit int) ([]models.Score, error) {
	query := `SELECT spelling, grammar FROM attempt_scores ORDER BY seq DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []struct {
		Spelling float64 `db:"spelling"`
		Grammar  float64 `db:"grammar"`
	}
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get recent scores: %w", err)
	}

	scores := make([]models.Score, len(rows))
	for i, row := range rows {
		scores[len(rows)-1-i] = models.Score{Spelling: row.Spelling, Grammar: row.Grammar}
	}
	return scores, nil
}

// SaveAttempt writes the score, the library changes and, when present, the
// completed lesson in a single transaction
func (r *LessonRepository) SaveAttempt(ctx context.Context, rec models.AttemptRecord) error {
	at := toMillis(rec.At)
	return r.db.inTx(ctx, func(tx *sqlx.Tx) error {
		var seq int64
		if err := tx.GetContext(ctx, &seq, `SELECT COALESCE(MAX(seq), 0) + 1 FROM attempt_scores`); err != nil {
			return fmt.Errorf("failed to get next score sequence: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO attempt_scores (id, seq, lesson_id, item_id, spelling, grammar, created_at)
			VALUES (:id, :seq, :lesson_id, :item_id, :spelling, :grammar, :created_at)`,
			scoreRow{
				ID:        uuid.NewString(),
				Seq:       seq,
				LessonID:  rec.LessonID,
				ItemID:    rec.ItemID,
				Spelling:  rec.Score.Spelling,
				Grammar:   rec.Score.Grammar,
				CreatedAt: at,
			},
		); err != nil {
			return fmt.Errorf("failed to save score: %w", err)
		}

		for _, change := range rec.Library {
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO library_entries (kind, value, translation, focus_level, updated_at)
				VALUES (:kind, :value, :translation, :focus_level, :updated_at)
				ON CONFLICT (kind, value) DO UPDATE SET
					translation = EXCLUDED.translation,
					focus_level = EXCLUDED.focus_level,
					updated_at = EXCLUDED.updated_at`,
				libraryRow{
					Kind:        string(change.Partition),
					Value:       change.Entry.Value,
					Translation: change.Entry.Translation,
					FocusLevel:  change.Entry.FocusLevel,
					UpdatedAt:   at,
				},
			); err != nil {
				return fmt.Errorf("failed to save library entry %q: %w", change.Entry.Value, err)
			}
		}

		if c := rec.Completed; c != nil {
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO lessons (id, lesson_id, language, native_language, level, topic, item_count,
					mean_spelling, mean_grammar, started_at, completed_at)
				VALUES (:id, :lesson_id, :language, :native_language, :level, :topic, :item_count,
					:mean_spelling, :mean_grammar, :started_at, :completed_at)`,
				lessonRow{
					ID:             uuid.NewString(),
					LessonID:       c.LessonID,
					Language:       c.Request.Language,
					NativeLanguage: c.Request.NativeLanguage,
					Level:          string(c.Request.Level),
					Topic:          c.Request.Topic,
					ItemCount:      c.ItemCount,
					MeanSpelling:   c.MeanSpelling,
					MeanGrammar:    c.MeanGrammar,
					StartedAt:      toMillis(c.StartedAt),
					CompletedAt:    toMillis(c.CompletedAt),
				},
			); err != nil {
				return fmt.Errorf("failed to save lesson: %w", err)
			}
		}
		return nil
	})
}

// LessonHistory returns completed lessons, newest first
func (r *LessonRepository) LessonHistory(ctx context.Context, limit int) ([]models.LessonRecord, error) {
	query := `SELECT id, lesson_id, language, native_language, level, topic, item_count,
		mean_spelling, mean_grammar, started_at, completed_at
		FROM lessons ORDER BY completed_at DESC, id`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []lessonRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get lesson history: %w", err)
	}
	records := make([]models.LessonRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toModel())
	}
	return records, nil
}
