package generator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/qhoangfmsc/30days-english/internal/challenge"
)

// schema is a JSON schema document sent to the provider as the response format
// and used to validate what comes back.
type schema struct {
	name     string
	doc      map[string]any
	compiled *gojsonschema.Schema
}

func newSchema(name string, doc map[string]any) (*schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("compiling %s schema: %w", name, err)
	}
	return &schema{name: name, doc: doc, compiled: compiled}, nil
}

// validate checks content against the schema. Malformed JSON reports the root field.
func (s *schema) validate(content string) error {
	result, err := s.compiled.Validate(gojsonschema.NewStringLoader(content))
	if err != nil {
		return &SchemaValidationError{Schema: s.name, Fields: []string{"(root)"}, Err: err}
	}
	if result.Valid() {
		return nil
	}

	seen := make(map[string]bool)
	var fields []string
	for _, re := range result.Errors() {
		f := fieldPath(re)
		if !seen[f] {
			seen[f] = true
			fields = append(fields, f)
		}
	}
	sort.Strings(fields)
	return &SchemaValidationError{Schema: s.name, Fields: fields}
}

// fieldPath names the offending field. Missing and unexpected properties are
// reported against their parent, so the property name is appended.
func fieldPath(re gojsonschema.ResultError) string {
	field := re.Field()
	switch re.Type() {
	case "required", "additional_property_not_allowed":
		if prop, ok := re.Details()["property"].(string); ok && prop != "" {
			if field == "" || field == "(root)" {
				return prop
			}
			return field + "." + prop
		}
	}
	return field
}

// Shared property definitions.

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func object(required []string, props map[string]any) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

func lessonProperties(language string) map[string]any {
	return map[string]any{
		"topic": str("Topic of the lesson"),
		"tense": str("Tense used (or 'Mixed Tenses' if multiple)"),
		"sourceText": str(fmt.Sprintf(
			"%s short paragraph (20-30 words) to translate. Must naturally include the %s translations of all words in newVocabulary", language, language)),
		"targetText": str("English short paragraph (20-30 words). Must naturally include all words from newVocabulary"),
		"newVocabulary": map[string]any{
			"type":     "array",
			"minItems": challenge.MinNewVocabulary,
			"maxItems": challenge.MaxNewVocabulary,
			"items": object([]string{"word", "partOfSpeech", "translation"}, map[string]any{
				"word":         map[string]any{"type": "string", "minLength": 1, "description": "A word from targetText. Verbs use the base form, e.g. 'play' for 'played'"},
				"partOfSpeech": str("The type of the word (noun, verb, adjective, adverb, preposition, conjunction, interjection)"),
				"translation":  map[string]any{"type": "string", "minLength": 1, "description": fmt.Sprintf("The %s translation of the word", language)},
			}),
			"description": "2 to 4 new vocabulary words. Every CEFR B1 to C2 word of the paragraph must be included",
		},
		"reviewVocabulary": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Previously learned words to review, may be empty. Verbs use the base form",
		},
	}
}

var lessonRequired = []string{"topic", "tense", "sourceText", "targetText", "newVocabulary", "reviewVocabulary"}

func lessonSchemaDoc(language string) map[string]any {
	return object(lessonRequired, lessonProperties(language))
}

func scheduleSchemaDoc(language string) map[string]any {
	day := lessonProperties(language)
	day["day"] = map[string]any{
		"type":        "integer",
		"minimum":     1,
		"maximum":     challenge.ScheduleDays,
		"description": "Day number, starting at 1",
	}
	required := append([]string{"day"}, lessonRequired...)

	return object([]string{"days"}, map[string]any{
		"days": map[string]any{
			"type":        "array",
			"minItems":    challenge.ScheduleDays,
			"maxItems":    challenge.ScheduleDays,
			"items":       object(required, day),
			"description": fmt.Sprintf("Exactly %d daily lessons numbered 1 to %d", challenge.ScheduleDays, challenge.ScheduleDays),
		},
	})
}

func grammarSchemaDoc(language string) map[string]any {
	labels := strings.Join(challenge.Labels, "', '")
	return object([]string{"options", "correctAnswer", "explanation", "grammars"}, map[string]any{
		"options": map[string]any{
			"type":     "array",
			"minItems": challenge.MinOptions,
			"maxItems": challenge.MaxOptions,
			"items": object([]string{"sentence", "label"}, map[string]any{
				"sentence": str("Complex sentence with a main and a subordinate clause. Same meaning as the other options, different grammar. Only one is correct"),
				"label": map[string]any{
					"type":        "string",
					"enum":        challenge.Labels,
					"description": fmt.Sprintf("Option label, one of '%s'", labels),
				},
			}),
			"description": "3-4 sentences with the same meaning and different grammar. Only one is correct",
		},
		"correctAnswer": map[string]any{
			"type":        "string",
			"enum":        challenge.Labels,
			"description": "Label of the correct option",
		},
		"explanation": str(fmt.Sprintf("Very brief explanation in %s (1-2 sentences) of why the correct answer is correct", language)),
		"grammars": map[string]any{
			"type":     "array",
			"minItems": challenge.MinGrammars,
			"maxItems": challenge.MaxGrammars,
			"items": object([]string{"structure", "explanation"}, map[string]any{
				"structure":   str("Structure formula, e.g. 'S + have/has + V3' or 'If + S + V2, S + would + V'"),
				"explanation": str(fmt.Sprintf("One sentence explanation in %s", language)),
			}),
			"description": "3-5 grammar structures present in the correct sentence",
		},
	})
}

// decode unmarshals content that already passed schema validation.
func decode(s *schema, content string, out any) error {
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return &SchemaValidationError{Schema: s.name, Fields: []string{"(root)"}, Err: err}
	}
	return nil
}
