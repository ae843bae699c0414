package generator

import (
	"fmt"
	"strings"

	"github.com/qhoangfmsc/30days-english/internal/challenge"
)

func lessonSystemPrompt(language string) string {
	return fmt.Sprintf("You are an English teacher creating a lesson to practice translating %s paragraphs into English at IELTS band 5.0.", language)
}

const grammarSystemPrompt = "You are an English grammar expert creating exercises at IELTS 5.0-5.5 level."

// vocabularyRules is shared by every lesson prompt.
const vocabularyRules = `Vocabulary Requirements:
- Select at least 2 and not over 4 new vocabulary words that appear naturally in the English paragraph
- Each new word must be present in the targetText paragraph
- The translation of each new word must appear in the sourceText paragraph
- Any word at CEFR level B1, B2, C1 or C2 MUST be included in newVocabulary (A1 and A2 words can be ignored unless relevant to the topic)
- For verbs always use the base form in vocabulary lists, even if the paragraph uses conjugated forms
  Example: if the paragraph contains "played", "playing" or "plays", the vocabulary word is "play"`

func lessonUserPrompt(req challenge.LessonRequest, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a %s to English translation lesson for IELTS 5.0.\n\n", language)

	b.WriteString("Topic Selection:\n")
	fmt.Fprintf(&b, "- Use the following specific topic and go deeper into it, making it more complex: %s\n", req.Topic)
	b.WriteString("- The topic should be clearly reflected in both paragraphs\n")
	fmt.Fprintf(&b, "- Set the topic field to: %s\n\n", req.Topic)

	if req.StructureHint != "" {
		b.WriteString("Sentence Structure Requirement:\n")
		fmt.Fprintf(&b, "- The paragraph MUST naturally incorporate and demonstrate the following sentence structure: %s\n", req.StructureHint)
		b.WriteString("- The structure should appear naturally in the English paragraph and be appropriately translated\n\n")
	}

	b.WriteString("Lesson Structure:\n")
	fmt.Fprintf(&b, "- Include a short paragraph (20-30 words) in %s with its English translation\n", language)
	b.WriteString("- Focus on IELTS Writing Task 2 style at band 5.0 complexity\n")
	b.WriteString("- Keep the paragraph complex but meaningful\n")
	b.WriteString("- Label the tense as \"Mixed Tenses\" if more than one is used\n\n")

	b.WriteString(vocabularyRules)
	b.WriteString("\n")

	if len(req.DesiredNewVocabulary) > 0 {
		fmt.Fprintf(&b, "- newVocabulary MUST contain these words and the paragraph must use them: %s\n", strings.Join(req.DesiredNewVocabulary, ", "))
	}
	if len(req.DesiredReviewVocabulary) > 0 {
		fmt.Fprintf(&b, "- reviewVocabulary MUST be exactly these words and the paragraph must use them: %s\n", strings.Join(req.DesiredReviewVocabulary, ", "))
	} else {
		b.WriteString("- Review vocabulary is optional (can be an empty array)\n")
	}
	return b.String()
}

func scheduleUserPrompt(reqs []challenge.LessonRequest, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a %d-day %s to English translation challenge for IELTS 5.0.\n\n", len(reqs), language)

	b.WriteString("Daily Plan (one lesson per day, use the given topic and sentence structure):\n")
	for i, r := range reqs {
		fmt.Fprintf(&b, "- Day %d: topic %q, structure %q\n", i+1, r.Topic, r.StructureHint)
	}

	b.WriteString("\nLesson Structure for every day:\n")
	fmt.Fprintf(&b, "- A short paragraph (20-30 words) in %s with its English translation\n", language)
	b.WriteString("- Vary the tenses across days and label a day \"Mixed Tenses\" if it uses more than one\n")
	fmt.Fprintf(&b, "- Number the days 1 to %d with no gaps or repeats\n", len(reqs))
	b.WriteString("- From day 2 on, reviewVocabulary should reuse 1-3 new words taught on earlier days and the paragraph should use them\n\n")

	b.WriteString(vocabularyRules)
	b.WriteString("\n")
	return b.String()
}

func grammarUserPrompt(topics, tenses []string, language string) string {
	return fmt.Sprintf(`Create a grammar exercise where students identify the ONLY grammatically correct sentence.

REQUIREMENTS:
- 3-4 complex sentences (main clause + subordinate clause)
- All sentences have the SAME meaning, different grammar
- Only ONE sentence is correct, the others have grammar errors
- Sentences must NOT contain 'a', 'b', 'c', 'd' as standalone words
- Labels: 'a', 'b', 'c', 'd' (lowercase)

RANDOM SELECTION & VARIETY:
- Topics: %s
- Choose tenses from: %s
- Mix different tense combinations between main and subordinate clauses
- Use varied patterns such as relative clauses, time clauses, conditionals, adverbial clauses and passive voice

OUTPUT:
- Explanation: brief %s (1-2 sentences)
- Grammars: 3-5 structures with formula and a brief %s explanation`,
		strings.Join(topics, "; "), strings.Join(tenses, ", "), language, language)
}
