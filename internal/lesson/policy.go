package lesson

import (
	"errors"
	"math"
	"strings"

	"github.com/example/lingua/pkg/models"
)

// Policy decides how a graded attempt moves the focus level of library entries.
//
// With q = (spelling+grammar)/200, an attempt whose mean score reaches PassMark
// raises focus to min(MaxFocus, old + Gain*q). A weaker attempt lowers it to
// max(0, old - Decay*(PassMark/100 - q)). New entries start at InitialFocus
// and are combined once with the attempt that introduced them.
type Policy struct {
	InitialFocus float64
	Gain         float64
	PassMark     float64
	Decay        float64
	MaxFocus     float64
}

// DefaultPolicy returns the policy used unless WithPolicy overrides it
func DefaultPolicy() Policy {
	return Policy{
		InitialFocus: 0,
		Gain:         1,
		PassMark:     60,
		Decay:        2,
		MaxFocus:     10,
	}
}

// Validate rejects policies that would produce negative or unbounded focus
func (p Policy) Validate() error {
	switch {
	case p.Gain < 0 || p.Decay < 0:
		return errors.New("gain and decay must be non-negative")
	case p.PassMark < models.MinScore || p.PassMark > models.MaxScore:
		return errors.New("pass mark must be within the score range")
	case p.MaxFocus <= 0:
		return errors.New("max focus must be positive")
	case p.InitialFocus < 0 || p.InitialFocus > p.MaxFocus:
		return errors.New("initial focus must be within [0, max focus]")
	}
	return nil
}

// Combine returns the focus level after one graded attempt
func (p Policy) Combine(old float64, s models.Score) float64 {
	q := (s.Spelling + s.Grammar) / (2 * models.MaxScore)
	if s.Mean() >= p.PassMark {
		return math.Min(p.MaxFocus, old+p.Gain*q)
	}
	return math.Max(0, old-p.Decay*(p.PassMark/models.MaxScore-q))
}

// Merge folds one item's focus into lib and returns the entries it wrote.
// Blank and repeated strings within the item are counted once.
func (p Policy) Merge(lib models.Library, focus models.Focus, s models.Score) []models.LibraryChange {
	var changes []models.LibraryChange
	merge := func(part models.Partition, values []string) {
		entries := lib.Partition(part)
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true

			entry, ok := entries[v]
			if !ok {
				entry = models.LibraryEntry{Value: v, FocusLevel: p.InitialFocus}
			}
			entry.FocusLevel = p.Combine(entry.FocusLevel, s)
			entries[v] = entry
			changes = append(changes, models.LibraryChange{Partition: part, Entry: entry})
		}
	}
	merge(models.PartitionTerm, focus.Terms)
	merge(models.PartitionConcept, focus.Concepts)
	return changes
}
