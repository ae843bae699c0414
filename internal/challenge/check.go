package challenge

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// AnswerResult is the outcome of choosing a grammar option.
type AnswerResult struct {
	Correct      bool   `json:"correct"`
	Selected     string `json:"selected"`
	CorrectLabel string `json:"correctLabel"`
}

// Check grades the chosen label. A wrong answer reveals the correct label.
func (g GrammarChallenge) Check(label string) AnswerResult {
	selected := strings.ToLower(strings.TrimSpace(label))
	return AnswerResult{
		Correct:      selected == g.CorrectAnswer,
		Selected:     selected,
		CorrectLabel: g.CorrectAnswer,
	}
}

// Option returns the option carrying label.
func (g GrammarChallenge) Option(label string) (Option, bool) {
	for _, o := range g.Options {
		if o.Label == label {
			return o, true
		}
	}
	return Option{}, false
}

// Violations lists the structural rules the challenge breaks, by field path.
func (g GrammarChallenge) Violations() []string {
	var fields []string
	seen := make(map[string]bool, len(g.Options))
	matches := 0
	for i, o := range g.Options {
		if !slices.Contains(Labels, o.Label) {
			fields = append(fields, fmt.Sprintf("options.%d.label", i))
			continue
		}
		if seen[o.Label] {
			fields = append(fields, fmt.Sprintf("options.%d.label", i))
		}
		seen[o.Label] = true
		if o.Label == g.CorrectAnswer {
			matches++
		}
	}
	if matches != 1 {
		fields = append(fields, "correctAnswer")
	}
	return fields
}

// Violations lists the day numbering rules the schedule breaks.
// Days must be unique and cover 1..len(Days) exactly.
func (s Schedule) Violations() []string {
	var fields []string
	seen := make(map[int]bool, len(s.Days))
	for i, d := range s.Days {
		if d.Day < 1 || d.Day > len(s.Days) || seen[d.Day] {
			fields = append(fields, fmt.Sprintf("days.%d.day", i))
			continue
		}
		seen[d.Day] = true
	}
	return fields
}

// Sorted returns the schedule ordered by day.
func (s Schedule) Sorted() Schedule {
	days := slices.Clone(s.Days)
	slices.SortStableFunc(days, func(a, b DayChallenge) int { return a.Day - b.Day })
	return Schedule{Days: days}
}

// ContainmentIssues reports vocabulary that does not appear in the lesson texts.
// Words are looked up in TargetText and translations in SourceText, after NFC
// normalisation and case folding. The generator is asked to honour this, so the
// result is advisory.
func (l Lesson) ContainmentIssues() []string {
	target := canonical(l.TargetText)
	source := canonical(l.SourceText)

	var issues []string
	for _, v := range l.NewVocabulary {
		if w := canonical(v.Word); w != "" && !strings.Contains(target, w) {
			issues = append(issues, fmt.Sprintf("word %q not found in targetText", v.Word))
		}
		if tr := canonical(v.Translation); tr != "" && !strings.Contains(source, tr) {
			issues = append(issues, fmt.Sprintf("translation %q not found in sourceText", v.Translation))
		}
	}
	return issues
}

func canonical(s string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
