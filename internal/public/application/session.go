package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// AuthStateListener receives the signed-in user, or nil when signed out or
// when the principal has no user document.
type AuthStateListener func(user *domain.User)

// Session tracks the authentication state of one client and notifies
// listeners whenever it changes.
type Session struct {
	id     string
	users  UserRepository
	logger *zap.Logger

	mu          sync.Mutex
	principalID string
	listeners   map[uint64]AuthStateListener
	nextID      uint64
	lastSeen    time.Time
	// onIdle runs after sign-out or unsubscribe leaves the session signed
	// out with no listeners.
	onIdle func(*Session)

	// notifyMu keeps events in sign-in/sign-out order across listeners.
	notifyMu sync.Mutex
}

// NewSession creates a signed-out session.
func NewSession(id string, users UserRepository, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		id:        id,
		users:     users,
		logger:    logger,
		listeners: make(map[uint64]AuthStateListener),
	}
}

func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// PrincipalID returns the signed-in principal, or "" when signed out.
func (s *Session) PrincipalID() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principalID
}

// OnAuthStateChange registers listener. It is called once right away with the
// current state and again after every sign-in or sign-out until the returned
// function is called.
func (s *Session) OnAuthStateChange(ctx context.Context, listener AuthStateListener) (unsubscribe func()) {
	if s == nil || listener == nil {
		return func() {}
	}

	s.notifyMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = listener
	current := s.principalID
	s.mu.Unlock()
	listener(s.lookup(ctx, current))
	s.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
			s.releaseIfIdle()
		})
	}
}

// SignIn marks principalID as the current principal and notifies listeners.
func (s *Session) SignIn(ctx context.Context, principalID string) {
	if s == nil {
		return
	}
	s.transition(ctx, principalID)
}

// SignOut clears the current principal and notifies listeners.
func (s *Session) SignOut(ctx context.Context) {
	if s == nil {
		return
	}
	s.transition(ctx, "")
	s.releaseIfIdle()
}

// idle reports whether nothing depends on the session any more.
func (s *Session) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.principalID == "" && len(s.listeners) == 0
}

func (s *Session) releaseIfIdle() {
	s.mu.Lock()
	onIdle := s.onIdle
	s.mu.Unlock()
	if onIdle != nil && s.idle() {
		onIdle(s)
	}
}

func (s *Session) transition(ctx context.Context, principalID string) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	s.principalID = principalID
	listeners := make([]AuthStateListener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	if len(listeners) == 0 {
		return
	}
	user := s.lookup(ctx, principalID)
	for _, l := range listeners {
		l(user)
	}
}

// lookup reads the user document fresh for every event.
func (s *Session) lookup(ctx context.Context, principalID string) *domain.User {
	if principalID == "" || s.users == nil {
		return nil
	}
	user, err := s.users.FindByID(ctx, principalID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.logger.Warn("auth state lookup failed", zap.String("session", s.id), zap.Error(err))
		}
		return nil
	}
	return user
}

// DefaultSessionIdleTTL is how long a session without listeners survives
// after its last use.
const DefaultSessionIdleTTL = 30 * time.Minute

// SessionRegistry holds the live sessions keyed by client session id.
// Sessions are dropped once signed out with no listeners, and Sweep drops
// any session without listeners that has been idle longer than the TTL.
type SessionRegistry struct {
	users   UserRepository
	logger  *zap.Logger
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// SessionRegistryOption customises a SessionRegistry.
type SessionRegistryOption func(*SessionRegistry)

// WithSessionIdleTTL overrides DefaultSessionIdleTTL.
func WithSessionIdleTTL(ttl time.Duration) SessionRegistryOption {
	return func(r *SessionRegistry) {
		if ttl > 0 {
			r.idleTTL = ttl
		}
	}
}

// WithSessionClock sets the clock used for idle tracking.
func WithSessionClock(now func() time.Time) SessionRegistryOption {
	return func(r *SessionRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

func NewSessionRegistry(users UserRepository, logger *zap.Logger, opts ...SessionRegistryOption) *SessionRegistry {
	r := &SessionRegistry{
		users:    users,
		logger:   logger,
		idleTTL:  DefaultSessionIdleTTL,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the session for id, creating it on first use. An empty id
// yields nil, which every Session method accepts.
func (r *SessionRegistry) Get(id string) *Session {
	if r == nil || id == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		sess = NewSession(id, r.users, r.logger)
		sess.onIdle = r.release
		r.sessions[id] = sess
	}
	sess.mu.Lock()
	sess.lastSeen = r.now()
	sess.mu.Unlock()
	return sess
}

// release drops sess if it is still the registered session for its id and
// is still idle.
func (r *SessionRegistry) release(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[sess.id]; ok && current == sess && sess.idle() {
		delete(r.sessions, sess.id)
	}
}

// Remove forgets the session for id.
func (r *SessionRegistry) Remove(id string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Sweep drops sessions without listeners that have not been used within the
// idle TTL, signed in or not. It returns how many were dropped.
func (r *SessionRegistry) Sweep() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.idleTTL)
	removed := 0
	for id, sess := range r.sessions {
		sess.mu.Lock()
		stale := len(sess.listeners) == 0 && sess.lastSeen.Before(cutoff)
		sess.mu.Unlock()
		if stale {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports how many sessions are live.
func (r *SessionRegistry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
