// Package challenge defines lessons, schedules and grammar challenges and
// builds the requests that produce them.
package challenge

// ScheduleDays is the length of a generated schedule.
const ScheduleDays = 15

// Vocabulary bounds for a lesson.
const (
	MinNewVocabulary = 2
	MaxNewVocabulary = 4
)

// Grammar challenge bounds.
const (
	MinOptions  = 3
	MaxOptions  = 4
	MinGrammars = 3
	MaxGrammars = 5
)

// Labels is the fixed label set for grammar options, in display order.
var Labels = []string{"a", "b", "c", "d"}

// LessonRequest carries the parameters of one generation attempt. It is never persisted.
type LessonRequest struct {
	Topic                   string
	StructureHint           string
	DesiredNewVocabulary    []string
	DesiredReviewVocabulary []string
}

// VocabularyEntry is one word taught by a lesson. Verbs use their base form.
type VocabularyEntry struct {
	Word         string `json:"word"`
	PartOfSpeech string `json:"partOfSpeech"`
	Translation  string `json:"translation"`
}

// Lesson is a validated translation exercise.
type Lesson struct {
	Topic            string            `json:"topic"`
	Tense            string            `json:"tense"`
	SourceText       string            `json:"sourceText"`
	TargetText       string            `json:"targetText"`
	NewVocabulary    []VocabularyEntry `json:"newVocabulary"`
	ReviewVocabulary []string          `json:"reviewVocabulary"`
}

// DayChallenge is a lesson pinned to a day of a schedule.
type DayChallenge struct {
	Day int `json:"day"`
	Lesson
}

// Schedule is a run of day challenges numbered 1..n.
type Schedule struct {
	Days []DayChallenge `json:"days"`
}

// Day returns the challenge for day n.
func (s Schedule) Day(n int) (DayChallenge, bool) {
	for _, d := range s.Days {
		if d.Day == n {
			return d, true
		}
	}
	return DayChallenge{}, false
}

// Option is one candidate sentence of a grammar challenge.
type Option struct {
	Sentence string `json:"sentence"`
	Label    string `json:"label"`
}

// GrammarStructure describes a structure used by the correct sentence.
type GrammarStructure struct {
	Structure   string `json:"structure"`
	Explanation string `json:"explanation"`
}

// GrammarChallenge asks the learner to find the only correct sentence.
type GrammarChallenge struct {
	Options       []Option           `json:"options"`
	CorrectAnswer string             `json:"correctAnswer"`
	Explanation   string             `json:"explanation"`
	Grammars      []GrammarStructure `json:"grammars"`
}
