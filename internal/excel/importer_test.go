package excel

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/example/lingua/pkg/models"
)

type fakeTarget struct {
	decks map[string]models.Deck // by models.DeckKey
	cards map[string]string       // deckID/term -> translation
	fail  map[string]bool         // terms that fail to add
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{decks: map[string]models.Deck{}, cards: map[string]string{}, fail: map[string]bool{}}
}

func (f *fakeTarget) EnsureDeck(_ context.Context, name string) (models.Deck, bool, error) {
	if d, ok := f.decks[models.DeckKey(name)]; ok {
		return d, false, nil
	}
	d := models.Deck{ID: fmt.Sprintf("deck-%d", len(f.decks)+1), Name: name}
	f.decks[models.DeckKey(name)] = d
	return d, true, nil
}

func (f *fakeTarget) AddTerm(_ context.Context, deckID, term, translation string) (bool, error) {
	if f.fail[term] {
		return false, fmt.Errorf("store unavailable")
	}
	key := deckID + "/" + term
	_, exists := f.cards[key]
	f.cards[key] = translation
	return !exists, nil
}

func TestImportCSV(t *testing.T) {
	data := strings.Join([]string{
		"term,translation,deck",
		"cuchillo,knife,Kitchen",
		"cuchara,spoon,Kitchen",
		"cuchillo,blade,Kitchen",
		"Travel,,",
		`"ir (fui, ido)",to go,`,
		"billete,ticket",
		",orphan,Kitchen",
		"maleta,,Travel",
		"broken,x,Kitchen",
	}, "\n")

	target := newFakeTarget()
	target.fail["broken"] = true
	res, err := ImportCSV(context.Background(), target, strings.NewReader(data), DefaultImportConfig())
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}

	if res.TotalProcessed != 8 {
		t.Fatalf("processed: want=8 got=%d", res.TotalProcessed)
	}
	if res.DecksCreated != 2 {
		t.Fatalf("decks created: want=2 got=%d", res.DecksCreated)
	}
	if res.Created != 4 || res.Updated != 1 {
		t.Fatalf("created/updated: want=4/1 got=%d/%d", res.Created, res.Updated)
	}
	if res.Skipped != 2 {
		t.Fatalf("skipped: want=2 got=%d", res.Skipped)
	}
	if len(res.Errors) != 3 {
		t.Fatalf("errors: want=3 got=%v", res.Errors)
	}

	kitchen := target.decks["kitchen"].ID
	travel := target.decks["travel"].ID
	if got := target.cards[kitchen+"/cuchillo"]; got != "blade" {
		t.Fatalf("cuchillo: want=%q got=%q", "blade", got)
	}
	if got := target.cards[travel+"/ir"]; got != "to go" {
		t.Fatalf("ir: want=%q got=%q", "to go", got)
	}
	if _, ok := target.cards[travel+"/billete"]; !ok {
		t.Fatalf("billete: want card in Travel section")
	}
}

func TestImportFoldsDeckNameCase(t *testing.T) {
	data := strings.Join([]string{
		"term,translation,deck",
		"plato,plate,Kitchen",
		"vaso,glass,kitchen",
		"taza,cup, KITCHEN",
	}, "\n")

	target := newFakeTarget()
	res, err := ImportCSV(context.Background(), target, strings.NewReader(data), DefaultImportConfig())
	if err != nil {
		t.Fatalf("ImportCSV: %v", err)
	}
	if res.DecksCreated != 1 || res.Created != 3 {
		t.Fatalf("decks/created: want=1/3 got=%d/%d", res.DecksCreated, res.Created)
	}
	deck := target.decks["kitchen"]
	if deck.Name != "Kitchen" {
		t.Fatalf("deck name: want=%q got=%q", "Kitchen", deck.Name)
	}
	for _, term := range []string{"plato", "vaso", "taza"} {
		if _, ok := target.cards[deck.ID+"/"+term]; !ok {
			t.Fatalf("%s: want card in %q", term, deck.Name)
		}
	}
}

func TestImportExcelFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decks.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"term", "translation", "deck"},
		{"plato", "plate", "Kitchen"},
		{"vaso", "glass"},
	}
	for i, row := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName: %v", err)
		}
		if err := f.SetSheetRow("Sheet1", cellName, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	_ = f.Close()

	target := newFakeTarget()
	cfg := DefaultImportConfig()
	cfg.FilePath = path
	res, err := ImportCards(context.Background(), target, cfg)
	if err != nil {
		t.Fatalf("ImportCards: %v", err)
	}
	if res.Created != 2 || len(res.Errors) != 0 {
		t.Fatalf("result: got=%+v", res)
	}
	if _, ok := target.decks["imported"]; !ok {
		t.Fatalf("row without deck: want default deck %q", "Imported")
	}
}

func TestImportMissingFile(t *testing.T) {
	cfg := DefaultImportConfig()
	cfg.FilePath = filepath.Join(t.TempDir(), "missing.csv")
	if _, err := ImportCards(context.Background(), newFakeTarget(), cfg); err == nil {
		t.Fatalf("ImportCards: want error for missing file")
	}
}

func TestColumnToIndex(t *testing.T) {
	cases := map[string]int{"A": 0, "b": 1, "Z": 25, "AA": 26, "1": -1}
	for col, want := range cases {
		if got := columnToIndex(col); got != want {
			t.Fatalf("columnToIndex(%q): want=%d got=%d", col, want, got)
		}
	}
}
