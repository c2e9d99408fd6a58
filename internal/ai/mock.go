package ai

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/example/lingua/pkg/models"
)

type phrase struct {
	native   string
	answer   string
	terms    []string
	concepts []string
}

var mockPhrases = []phrase{
	{"The knife is on the table.", "El cuchillo está en la mesa.", []string{"cuchillo", "mesa"}, []string{"estar for location"}},
	{"I need a spoon.", "Necesito una cuchara.", []string{"cuchara"}, []string{"indefinite articles"}},
	{"The plates are clean.", "Los platos están limpios.", []string{"plato", "limpio"}, []string{"plural agreement"}},
	{"Where is the glass?", "¿Dónde está el vaso?", []string{"vaso"}, []string{"questions with dónde"}},
	{"We cook in the kitchen.", "Cocinamos en la cocina.", []string{"cocina", "cocinar"}, []string{"present tense -ar verbs"}},
	{"The pot is very hot.", "La olla está muy caliente.", []string{"olla", "caliente"}, []string{"estar for states"}},
	{"Can you pass me the salt?", "¿Me pasas la sal?", []string{"sal", "pasar"}, []string{"indirect object pronouns"}},
	{"There are three forks.", "Hay tres tenedores.", []string{"tenedor"}, []string{"hay"}},
}

// Mock is an offline generator and scorer. Lessons come from a fixed
// phrasebook; answers are scored against the suggested answer by word overlap.
type Mock struct {
	items   int
	lessons *lessonCache
}

// NewMock creates a mock that returns lessons of n items
func NewMock(n int) *Mock {
	if n <= 0 || n > len(mockPhrases) {
		n = len(mockPhrases)
	}
	return &Mock{items: n, lessons: newLessonCache(32)}
}

func (m *Mock) GenerateLesson(ctx context.Context, req models.LessonRequest) (*models.GeneratedLesson, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items := make([]models.LessonItem, m.items)
	for i := range items {
		p := mockPhrases[i]
		items[i] = models.LessonItem{
			ID:              fmt.Sprintf("item-%d", i+1),
			Prompt:          fmt.Sprintf("Translate into %s: %s", req.Language, p.native),
			SuggestedAnswer: p.answer,
			Focus: models.Focus{
				Terms:    append([]string(nil), p.terms...),
				Concepts: append([]string(nil), p.concepts...),
			},
		}
	}

	lesson := &models.GeneratedLesson{LessonID: uuid.NewString(), Request: req, Items: items}
	m.lessons.put(lesson.LessonID, items)
	return lesson, nil
}

func (m *Mock) ScoreAttempt(ctx context.Context, attempt models.Attempt) (*models.Grade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	item, err := m.lessons.item(attempt.LessonID, attempt.ItemID)
	if err != nil {
		return nil, err
	}

	want := tokenize(item.SuggestedAnswer)
	got := tokenize(attempt.Answer)
	feedback := models.Feedback{
		CorrectedAnswer: item.SuggestedAnswer,
		SpellingScore:   overlapScore(want, got),
		GrammarScore:    orderScore(want, got),
	}
	if feedback.SpellingScore < models.MaxScore || feedback.GrammarScore < models.MaxScore {
		feedback.Notes = "Compare with: " + item.SuggestedAnswer
	}
	return &models.Grade{Feedback: feedback}, nil
}

// tokenize lowercases s and splits it on anything that is not a letter or digit
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// overlapScore is the share of expected words present in the answer
func overlapScore(want, got []string) float64 {
	if len(want) == 0 {
		return models.MaxScore
	}
	have := make(map[string]int, len(got))
	for _, w := range got {
		have[w]++
	}
	hits := 0
	for _, w := range want {
		if have[w] > 0 {
			have[w]--
			hits++
		}
	}
	return roundScore(float64(hits) / float64(len(want)))
}

// orderScore compares word order through the longest common subsequence
func orderScore(want, got []string) float64 {
	longest := len(want)
	if len(got) > longest {
		longest = len(got)
	}
	if longest == 0 {
		return models.MaxScore
	}

	prev := make([]int, len(got)+1)
	cur := make([]int, len(got)+1)
	for i := 1; i <= len(want); i++ {
		for j := 1; j <= len(got); j++ {
			switch {
			case want[i-1] == got[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return roundScore(float64(prev[len(got)]) / float64(longest))
}

func roundScore(ratio float64) float64 {
	return float64(int(ratio*models.MaxScore + 0.5))
}
