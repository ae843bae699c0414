// Package session gives every browser its own isolated set of screens.
package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qhoangfmsc/30days-english/internal/challenge"
	"github.com/qhoangfmsc/30days-english/internal/state"
)

// CustomForm holds the last values entered on the custom lesson screen.
type CustomForm struct {
	Goal             string
	NewVocabulary    string
	ReviewVocabulary string
}

// Session owns one state machine per screen. Nothing here is shared between sessions.
type Session struct {
	ID        string
	CreatedAt time.Time

	Lesson   *state.Machine[challenge.Lesson]
	Custom   *state.Machine[challenge.Lesson]
	Schedule *state.Machine[challenge.Schedule]
	Grammar  *state.Machine[challenge.GrammarChallenge]

	mu       sync.Mutex
	form     CustomForm
	lastSeen time.Time
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		Lesson:    state.New[challenge.Lesson](),
		Custom:    state.New[challenge.Lesson](),
		Schedule:  state.New[challenge.Schedule](),
		Grammar:   state.New[challenge.GrammarChallenge](),
		lastSeen:  now,
	}
}

// SetCustomForm remembers the custom screen's inputs.
func (s *Session) SetCustomForm(f CustomForm) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form = f
}

// CustomForm returns the custom screen's last inputs.
func (s *Session) CustomForm() CustomForm {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.form
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Store keeps sessions in memory and evicts them after an idle TTL.
type Store struct {
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides time.Now (for testing).
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty store. A non-positive ttl disables eviction.
func NewStore(ttl time.Duration, opts ...StoreOption) *Store {
	s := &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create starts a new session with a random id.
func (s *Store) Create() *Session {
	sess := newSession(generateID(), s.now())

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns a live session and marks it as used. Expired sessions are removed.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := s.now()
	if s.expired(sess, now) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, false
	}
	sess.touch(now)
	return sess, true
}

// Len returns the number of stored sessions, including ones not yet swept.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes idle sessions and returns how many were evicted.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				slog.Debug("evicted idle sessions", "count", n, "remaining", s.Len())
			}
		}
	}
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.idleSince()) > s.ttl
}

func generateID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return fmt.Sprintf("%x", b)
}
