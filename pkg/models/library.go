package models

// Partition selects the terms or the concepts half of the library
type Partition string

const (
	PartitionTerm    Partition = "term"
	PartitionConcept Partition = "concept"
)

// LibraryEntry tracks familiarity with one term or concept
type LibraryEntry struct {
	Value       string  `json:"value"`
	Translation string  `json:"translation,omitempty"`
	FocusLevel  float64 `json:"focusLevel"`
}

// Library is the persistent record of learned terms and concepts keyed by value
type Library struct {
	Terms    map[string]LibraryEntry `json:"terms"`
	Concepts map[string]LibraryEntry `json:"concepts"`
}

// NewLibrary returns an empty library with both partitions allocated
func NewLibrary() Library {
	return Library{
		Terms:    make(map[string]LibraryEntry),
		Concepts: make(map[string]LibraryEntry),
	}
}

// Partition returns the map backing p
func (l Library) Partition(p Partition) map[string]LibraryEntry {
	if p == PartitionConcept {
		return l.Concepts
	}
	return l.Terms
}

// Clone returns a deep copy
func (l Library) Clone() Library {
	out := NewLibrary()
	for k, v := range l.Terms {
		out.Terms[k] = v
	}
	for k, v := range l.Concepts {
		out.Concepts[k] = v
	}
	return out
}

// LibraryChange is a single entry write produced by a merge
type LibraryChange struct {
	Partition Partition
	Entry     LibraryEntry
}
