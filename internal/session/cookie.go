package session

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"
)

// CookieName is the session cookie's name.
const CookieName = "english_session"

// Signer MACs session ids with keyed BLAKE2b so clients cannot forge them.
type Signer struct {
	key []byte
}

// NewSigner derives a 32-byte key from secret. An empty secret gets a random
// key, which invalidates cookies on restart.
func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		key := make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating session key: %w", err)
		}
		slog.Warn("ENGLISH_SESSION_SECRET not set, sessions will not survive a restart")
		return &Signer{key: key}, nil
	}
	sum := blake2b.Sum256([]byte(secret))
	return &Signer{key: sum[:]}, nil
}

// Sign returns "id.mac".
func (s *Signer) Sign(id string) string {
	return id + "." + hex.EncodeToString(s.mac(id))
}

// Verify returns the id of a value produced by Sign.
func (s *Signer) Verify(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" {
		return "", false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return "", false
	}
	if !hmac.Equal(got, s.mac(id)) {
		return "", false
	}
	return id, true
}

func (s *Signer) mac(id string) []byte {
	h, err := blake2b.New256(s.key)
	if err != nil {
		// Only reachable with a key longer than 64 bytes, which NewSigner never builds.
		panic(err)
	}
	h.Write([]byte(id))
	return h.Sum(nil)
}

// Manager binds sessions to browsers through a signed cookie.
type Manager struct {
	store  *Store
	signer *Signer
	secure bool
	maxAge time.Duration
}

// NewManager creates a Manager. secure marks the cookie HTTPS-only.
func NewManager(store *Store, signer *Signer, secure bool, maxAge time.Duration) *Manager {
	return &Manager{store: store, signer: signer, secure: secure, maxAge: maxAge}
}

// Store returns the underlying session store.
func (m *Manager) Store() *Store { return m.store }

// Load returns the caller's session, starting a new one and setting the
// cookie when none is valid.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) *Session {
	if sess, ok := m.Lookup(r); ok {
		return sess
	}

	sess := m.store.Create()
	cookie := &http.Cookie{
		Name:     CookieName,
		Value:    m.signer.Sign(sess.ID),
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if m.maxAge > 0 {
		cookie.MaxAge = int(m.maxAge.Seconds())
	}
	http.SetCookie(w, cookie)
	slog.Debug("session started", "session_id", sess.ID)
	return sess
}

// Lookup returns the caller's session without creating one.
func (m *Manager) Lookup(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return nil, false
	}
	id, ok := m.signer.Verify(c.Value)
	if !ok {
		return nil, false
	}
	return m.store.Get(id)
}
