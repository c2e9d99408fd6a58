package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/example/lingua/pkg/models"
)

// Target receives imported decks and cards
type Target interface {
	EnsureDeck(ctx context.Context, name string) (models.Deck, bool, error)
	AddTerm(ctx context.Context, deckID, term, translation string) (bool, error)
}

// ImportConfig defines the import configuration
type ImportConfig struct {
	FilePath          string // Path to the Excel or CSV file
	TermColumn        string // Column with the term
	TranslationColumn string // Column with the translation
	DeckColumn        string // Column with the deck name, may be empty
	SheetName         string // Name of the sheet to import
	StartRow          int    // The row to start importing from (1-based index)
	DefaultDeck       string // Deck for rows that name none
}

// DefaultImportConfig returns the default import configuration
func DefaultImportConfig() ImportConfig {
	return ImportConfig{
		TermColumn:        "A",
		TranslationColumn: "B",
		DeckColumn:        "C",
		SheetName:         "Sheet1",
		StartRow:          2, // By default, start from the second row (skip header)
		DefaultDeck:       "Imported",
	}
}

// ImportResult holds the result of an import operation
type ImportResult struct {
	TotalProcessed int
	DecksCreated   int
	Created        int
	Updated        int
	Skipped        int
	Errors         []string
}

// ImportCards imports cards from an Excel or CSV file
func ImportCards(ctx context.Context, target Target, config ImportConfig) (*ImportResult, error) {
	if strings.ToLower(filepath.Ext(config.FilePath)) == ".csv" {
		file, err := os.Open(config.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open CSV file: %w", err)
		}
		defer file.Close()
		return ImportCSV(ctx, target, file, config)
	}

	f, err := excelize.OpenFile(config.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := config.SheetName
	if sheet == "" {
		sheet = f.GetSheetName(f.GetActiveSheetIndex())
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows: %w", err)
	}
	return newImporter(target, config).run(ctx, rows)
}

// ImportCSV imports cards from CSV data
func ImportCSV(ctx context.Context, target Target, r io.Reader, config ImportConfig) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("error reading CSV: %w", err)
	}
	return newImporter(target, config).run(ctx, rows)
}

type importer struct {
	target      Target
	config      ImportConfig
	decks       map[string]string // models.DeckKey -> deck id
	currentDeck string
	result      *ImportResult
}

func newImporter(target Target, config ImportConfig) *importer {
	if config.StartRow < 1 {
		config.StartRow = 1
	}
	return &importer{
		target: target,
		config: config,
		decks:  make(map[string]string),
		result: &ImportResult{Errors: make([]string, 0)},
	}
}

func (im *importer) run(ctx context.Context, rows [][]string) (*ImportResult, error) {
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return im.result, err
		}
		rowNum := i + 1
		// Skip header rows
		if rowNum < im.config.StartRow {
			continue
		}
		if err := im.processRow(ctx, row, rowNum); err != nil {
			im.result.Errors = append(im.result.Errors, fmt.Sprintf("Row %d: %v", rowNum, err))
		}
	}
	return im.result, nil
}

func (im *importer) processRow(ctx context.Context, row []string, rowNum int) error {
	term := cleanWord(cell(row, im.config.TermColumn))
	translation := strings.TrimSpace(cell(row, im.config.TranslationColumn))
	deckName := ""
	if im.config.DeckColumn != "" {
		deckName = strings.TrimSpace(cell(row, im.config.DeckColumn))
	}

	// A row with only a name in the term column starts a section: "Kitchen,,"
	if term != "" && translation == "" && deckName == "" {
		im.currentDeck = strings.Trim(term, "\"")
		return nil
	}

	im.result.TotalProcessed++
	if term == "" && translation == "" {
		im.result.Skipped++
		return nil
	}
	if term == "" {
		im.result.Skipped++
		return fmt.Errorf("term cannot be empty")
	}
	if translation == "" {
		im.result.Skipped++
		return fmt.Errorf("translation cannot be empty")
	}

	if deckName == "" {
		deckName = im.currentDeck
	}
	if deckName == "" {
		deckName = im.config.DefaultDeck
	}
	if deckName == "" {
		im.result.Skipped++
		return fmt.Errorf("no deck for %q", term)
	}

	deckID, err := im.deckID(ctx, deckName)
	if err != nil {
		return fmt.Errorf("failed to process deck: %w", err)
	}
	created, err := im.target.AddTerm(ctx, deckID, term, translation)
	if err != nil {
		return fmt.Errorf("failed to add %q: %w", term, err)
	}
	if created {
		im.result.Created++
	} else {
		im.result.Updated++
	}
	return nil
}

// deckID gets a deck by name or creates a new one if it doesn't exist
func (im *importer) deckID(ctx context.Context, name string) (string, error) {
	key := models.DeckKey(name)
	if id, ok := im.decks[key]; ok {
		return id, nil
	}
	deck, created, err := im.target.EnsureDeck(ctx, name)
	if err != nil {
		return "", err
	}
	if created {
		im.result.DecksCreated++
	}
	im.decks[key] = deck.ID
	return deck.ID, nil
}

func cell(row []string, column string) string {
	if column == "" {
		return ""
	}
	if idx := columnToIndex(column); idx >= 0 && idx < len(row) {
		return row[idx]
	}
	return ""
}

// cleanWord drops trailing notes in parentheses: "ir (fui, ido)" -> "ir"
func cleanWord(word string) string {
	if i := strings.Index(word, "("); i > 0 {
		return strings.TrimSpace(word[:i])
	}
	return strings.TrimSpace(word)
}

// Helper function to convert Excel column letter to index
func columnToIndex(column string) int {
	column = strings.ToUpper(strings.TrimSpace(column))
	index := 0
	for i := 0; i < len(column); i++ {
		if column[i] < 'A' || column[i] > 'Z' {
			return -1
		}
		index = index*26 + int(column[i]-'A'+1)
	}
	return index - 1
}
