package api

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MJE43/killteam-scorer/internal/match"
)

var (
	ErrSessionNotFound = errors.New("match not found")
	ErrSessionLimit    = errors.New("too many live matches")
)

const idempotencyKeep = 32

// Session is one live match. Handlers hold mu for the whole operation so the
// engine only ever sees one caller at a time.
type Session struct {
	ID uuid.UUID

	// journalID keys the action journal. It is fixed at creation and
	// matches ID unless the session continues a saved match's journal.
	journalID uuid.UUID

	mu      sync.Mutex
	match   *match.Match
	savedID uuid.UUID
	created time.Time
	touched time.Time
	replays *replayCache
}

func (s *Session) touch() { s.touched = time.Now().UTC() }

func (s *Session) summary() SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, _ := s.match.Snapshot(match.SideA)
	b, _ := s.match.Snapshot(match.SideB)
	return SessionSummary{
		ID:        s.ID,
		NameA:     a.Name,
		NameB:     b.Name,
		Turn:      s.match.Turn(),
		Concluded: s.match.Concluded(),
		CreatedAt: s.created,
		TouchedAt: s.touched,
	}
}

// SessionRegistry holds the live matches served by the API.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	limit    int
}

// NewSessionRegistry creates a registry holding at most limit matches.
func NewSessionRegistry(limit int) *SessionRegistry {
	if limit < 1 {
		limit = 1
	}
	return &SessionRegistry{
		sessions: make(map[uuid.UUID]*Session),
		limit:    limit,
	}
}

// Create registers m under a fresh id with a journal of its own.
func (r *SessionRegistry) Create(m *match.Match) (*Session, error) {
	return r.CreateWithJournal(m, uuid.Nil)
}

// CreateWithJournal registers m under a fresh id that records into an
// existing journal. A nil journalID starts a new one.
func (r *SessionRegistry) CreateWithJournal(m *match.Match, journalID uuid.UUID) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.limit {
		return nil, fmt.Errorf("%w: limit is %d", ErrSessionLimit, r.limit)
	}
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.New(),
		journalID: journalID,
		match:     m,
		created:   now,
		touched:   now,
		replays:   newReplayCache(idempotencyKeep),
	}
	if sess.journalID == uuid.Nil {
		sess.journalID = sess.ID
	}
	r.sessions[sess.ID] = sess
	return sess, nil
}

// Get returns the session for id.
func (r *SessionRegistry) Get(id uuid.UUID) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// Delete drops a session. It reports whether one existed.
func (r *SessionRegistry) Delete(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// List summarises every live match, most recently created first.
func (r *SessionRegistry) List() []SessionSummary {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	out := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live matches.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Limit returns the configured maximum.
func (r *SessionRegistry) Limit() int { return r.limit }

type cachedResponse struct {
	status int
	body   []byte
}

// replayCache remembers the last few responses by idempotency key so a
// double-submitted initiative or finalize is answered without touching the
// engine again.
type replayCache struct {
	max     int
	order   []string
	entries map[string]cachedResponse
}

func newReplayCache(max int) *replayCache {
	return &replayCache{max: max, entries: make(map[string]cachedResponse, max)}
}

func (c *replayCache) get(key string) (cachedResponse, bool) {
	resp, ok := c.entries[key]
	return resp, ok
}

func (c *replayCache) put(key string, resp cachedResponse) {
	if _, ok := c.entries[key]; ok {
		c.entries[key] = resp
		return
	}
	if len(c.order) >= c.max {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.order = append(c.order, key)
	c.entries[key] = resp
}
