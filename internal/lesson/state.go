package lesson

import (
	"time"

	"github.com/example/lingua/pkg/models"
)

// Status names the three lifecycle phases of a lesson session
type Status string

const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in_progress"
	StatusComplete   Status = "complete"
)

// State is one of Idle, InProgress or Complete
type State interface {
	Status() Status
	isState()
}

// Idle means no lesson is active
type Idle struct{}

// InProgress holds a lesson with items left to answer
type InProgress struct {
	Lesson ActiveLesson
}

// Complete holds a lesson whose every item was answered
type Complete struct {
	Lesson ActiveLesson
}

func (Idle) Status() Status       { return StatusIdle }
func (InProgress) Status() Status { return StatusInProgress }
func (Complete) Status() Status   { return StatusComplete }

func (Idle) isState()       {}
func (InProgress) isState() {}
func (Complete) isState()   {}

// ActiveLesson is the generated lesson and the cursor into it
type ActiveLesson struct {
	ID           string               `json:"id"`
	Request      models.LessonRequest `json:"request"`
	Items        []models.LessonItem  `json:"items"`
	CurrentIndex int                  `json:"currentIndex"`
	StartedAt    time.Time            `json:"startedAt"`
	Scores       []models.Score       `json:"scores"` // one per answered item
	LastFeedback *models.Feedback     `json:"lastFeedback,omitempty"`
}

// CurrentItem returns the item awaiting an answer
func (l ActiveLesson) CurrentItem() (models.LessonItem, bool) {
	if l.CurrentIndex < 0 || l.CurrentIndex >= len(l.Items) {
		return models.LessonItem{}, false
	}
	return l.Items[l.CurrentIndex], true
}

// Done reports whether the cursor has passed the last item
func (l ActiveLesson) Done() bool {
	return l.CurrentIndex >= len(l.Items)
}

func (l ActiveLesson) clone() ActiveLesson {
	out := l
	out.Items = make([]models.LessonItem, len(l.Items))
	for i, item := range l.Items {
		item.Focus = models.Focus{
			Terms:    append([]string(nil), item.Focus.Terms...),
			Concepts: append([]string(nil), item.Focus.Concepts...),
		}
		out.Items[i] = item
	}
	out.Scores = append([]models.Score(nil), l.Scores...)
	if l.LastFeedback != nil {
		fb := *l.LastFeedback
		out.LastFeedback = &fb
	}
	return out
}

// record summarizes a finished lesson for the history table
func (l ActiveLesson) record(completedAt time.Time) *models.LessonRecord {
	rec := &models.LessonRecord{
		LessonID:    l.ID,
		Request:     l.Request,
		ItemCount:   len(l.Items),
		StartedAt:   l.StartedAt,
		CompletedAt: completedAt,
	}
	if n := len(l.Scores); n > 0 {
		for _, s := range l.Scores {
			rec.MeanSpelling += s.Spelling
			rec.MeanGrammar += s.Grammar
		}
		rec.MeanSpelling /= float64(n)
		rec.MeanGrammar /= float64(n)
	}
	return rec
}

// lessonOf returns the payload of a non-idle state
func lessonOf(s State) (ActiveLesson, bool) {
	switch st := s.(type) {
	case InProgress:
		return st.Lesson, true
	case Complete:
		return st.Lesson, true
	default:
		return ActiveLesson{}, false
	}
}

func cloneState(s State) State {
	switch st := s.(type) {
	case InProgress:
		return InProgress{Lesson: st.Lesson.clone()}
	case Complete:
		return Complete{Lesson: st.Lesson.clone()}
	default:
		return Idle{}
	}
}

// Snapshot is a point-in-time copy of the session for readers
type Snapshot struct {
	State        State
	RecentScores []models.Score
	Library      models.Library
}

// Lesson returns the active lesson, if any
func (s Snapshot) Lesson() (ActiveLesson, bool) {
	return lessonOf(s.State)
}
