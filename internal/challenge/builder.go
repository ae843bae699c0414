package challenge

import (
	"math/rand/v2"
	"strings"
	"sync"
)

// FallbackTopic is used when the topic pool is empty.
const FallbackTopic = "General Topic"

// Pools supplies the static pools a Builder draws from.
type Pools interface {
	Topics() []string
	Structures() []string
	Tenses() []string
}

// Builder assembles lesson requests from static pools or caller input.
type Builder struct {
	topics     []string
	structures []string
	tenses     []string

	mu  sync.Mutex
	rng *rand.Rand
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithRand makes selection deterministic (for testing).
func WithRand(r *rand.Rand) BuilderOption {
	return func(b *Builder) {
		b.rng = r
	}
}

// NewBuilder snapshots the pools. Later changes to the source do not affect the builder.
func NewBuilder(p Pools, opts ...BuilderOption) *Builder {
	b := &Builder{
		topics:     p.Topics(),
		structures: p.Structures(),
		tenses:     p.Tenses(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SelectTopic returns a uniformly random topic, or FallbackTopic for an empty pool.
func (b *Builder) SelectTopic() string {
	if len(b.topics) == 0 {
		return FallbackTopic
	}
	return b.topics[b.intN(len(b.topics))]
}

// SelectStructure returns a uniformly random sentence structure.
func (b *Builder) SelectStructure() string {
	if len(b.structures) == 0 {
		return ""
	}
	return b.structures[b.intN(len(b.structures))]
}

// SelectTense returns a uniformly random tense.
func (b *Builder) SelectTense() string {
	if len(b.tenses) == 0 {
		return ""
	}
	return b.tenses[b.intN(len(b.tenses))]
}

// BuildRequest returns a request with a random topic and structure.
func (b *Builder) BuildRequest() LessonRequest {
	return LessonRequest{
		Topic:         b.SelectTopic(),
		StructureHint: b.SelectStructure(),
	}
}

// BuildCustomRequest validates the caller's goal. Vocabulary passes through unchanged.
func (b *Builder) BuildCustomRequest(goal string, newVocab, reviewVocab []string) (LessonRequest, error) {
	return BuildCustomRequest(goal, newVocab, reviewVocab)
}

// BuildScheduleRequests returns n per-day requests, each with its own topic and structure.
func (b *Builder) BuildScheduleRequests(n int) []LessonRequest {
	reqs := make([]LessonRequest, n)
	for i := range reqs {
		reqs[i] = b.BuildRequest()
	}
	return reqs
}

func (b *Builder) intN(n int) int {
	if b.rng == nil {
		return rand.IntN(n)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.IntN(n)
}

// BuildCustomRequest fails with *ValidationError when goal is blank after trimming.
func BuildCustomRequest(goal string, newVocab, reviewVocab []string) (LessonRequest, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return LessonRequest{}, &ValidationError{Messages: []string{"goal must not be empty"}}
	}
	return LessonRequest{
		Topic:                   goal,
		DesiredNewVocabulary:    newVocab,
		DesiredReviewVocabulary: reviewVocab,
	}, nil
}

// ParseVocabularyList splits comma separated input, trimming items and dropping blanks.
func ParseVocabularyList(input string) []string {
	var out []string
	for _, item := range strings.Split(input, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
