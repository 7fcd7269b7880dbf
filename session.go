package outfit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authenticator performs the auth backend calls a SessionStore needs.
// AuthService is the HTTP implementation.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	UpdateProfile(ctx context.Context, token string, upd ProfileUpdate) (*User, error)
	Profile(ctx context.Context, token string) (*User, error)
}

// Snapshot is the session state handed to observers.
type Snapshot struct {
	Token string
	User  *User
}

// Authenticated reports whether the snapshot holds a session.
func (s Snapshot) Authenticated() bool {
	return s.Token != ""
}

// SessionStore holds the authenticated session: a bearer token and the
// matching user profile. Token and user are either both set or both empty,
// and the persisted copy in Storage always matches the in-memory one once a
// method returns.
//
// Network calls run without the lock held; commits are serialized.
type SessionStore struct {
	storage Storage
	auth    Authenticator
	logger  *slog.Logger

	mu    sync.RWMutex
	token string
	user  *User

	obsMu     sync.Mutex
	observers map[int]func(Snapshot)
	nextObs   int
}

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore)

// WithSessionLogger sets the logger used for session events.
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSessionStore creates a logged-out store. Call Restore to load a
// previously persisted session.
func NewSessionStore(storage Storage, auth Authenticator, opts ...SessionOption) *SessionStore {
	s := &SessionStore{
		storage:   storage,
		auth:      auth,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		observers: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted session. A token without a user, a user
// without a token, or an unreadable user record discards both keys and
// leaves the store logged out. No network call is made.
func (s *SessionStore) Restore(ctx context.Context) error {
	s.mu.Lock()

	token, user, err := s.readPersisted(ctx)
	if err != nil {
		if !errors.Is(err, ErrStoreCorrupted) {
			s.mu.Unlock()
			return fmt.Errorf("restore session: %w", err)
		}
		s.logger.Warn("discarding persisted session", slog.String("reason", err.Error()))
		s.token, s.user = "", nil
		delErr := s.storage.DeleteMany(ctx, KeyToken, KeyUser)
		snap := s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		if delErr != nil {
			return fmt.Errorf("discard session: %w", persistErr(delErr))
		}
		return nil
	}

	s.token, s.user = token, user
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if snap.Authenticated() {
		s.logger.Debug("session restored", slog.Int64("user_id", user.ID))
	}
	s.notify(snap)
	return nil
}

// readPersisted returns the stored pair. Both empty means no session.
// Must be called with mu held.
func (s *SessionStore) readPersisted(ctx context.Context) (string, *User, error) {
	token, hasToken, err := s.storage.Get(ctx, KeyToken)
	if err != nil {
		return "", nil, err
	}
	rawUser, hasUser, err := s.storage.Get(ctx, KeyUser)
	if err != nil {
		return "", nil, err
	}

	if token == "" {
		hasToken = false
	}
	if rawUser == "" {
		hasUser = false
	}

	switch {
	case !hasToken && !hasUser:
		return "", nil, nil
	case !hasToken:
		return "", nil, fmt.Errorf("%w: user without token", ErrStoreCorrupted)
	case !hasUser:
		return "", nil, fmt.Errorf("%w: token without user", ErrStoreCorrupted)
	}

	var user *User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
		return "", nil, fmt.Errorf("%w: user record: %v", ErrStoreCorrupted, err)
	}
	if user == nil {
		return "", nil, fmt.Errorf("%w: null user record", ErrStoreCorrupted)
	}
	return token, user, nil
}

// Login authenticates with email and password and commits the returned
// session. On failure the previous session is left untouched.
func (s *SessionStore) Login(ctx context.Context, email, password string) (*User, error) {
	res, err := s.auth.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, "login", res)
}

// Register creates an account and commits the returned session.
func (s *SessionStore) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	res, err := s.auth.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, "register", res)
}

func (s *SessionStore) commit(ctx context.Context, op string, res *AuthResult) (*User, error) {
	if res == nil || res.Token == "" || res.User == nil {
		return nil, &TransportError{Op: op, Err: errors.New("response missing token or user")}
	}
	rawUser, err := json.Marshal(res.User)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	if err := s.storage.SetMany(ctx, map[string]string{
		KeyToken: res.Token,
		KeyUser:  string(rawUser),
	}); err != nil {
		s.mu.Unlock()
		return nil, persistErr(err)
	}
	s.token = res.Token
	s.user = copyUser(res.User)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("session started", slog.String("op", op), slog.Int64("user_id", res.User.ID))
	s.notify(snap)
	return copyUser(res.User), nil
}

// Logout clears the session. Memory is always cleared; a storage failure
// is still reported so the caller knows the persisted copy may survive.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	err := s.storage.DeleteMany(ctx, KeyToken, KeyUser)
	wasAuthenticated := s.token != ""
	s.token, s.user = "", nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if wasAuthenticated {
		s.logger.Info("session ended")
	}
	s.notify(snap)
	if err != nil {
		return fmt.Errorf("logout: %w", persistErr(err))
	}
	return nil
}

// UpdateProfile sends a partial profile update and replaces the held user
// with the server's copy. It fails with ErrNotAuthenticated when no session
// is held. A 401 ends the session.
func (s *SessionStore) UpdateProfile(ctx context.Context, upd ProfileUpdate) (*User, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	user, err := s.auth.UpdateProfile(ctx, token, upd)
	if err != nil {
		s.invalidateOnAuthError(ctx, token, err)
		return nil, err
	}
	return s.replaceUser(ctx, "update_profile", token, user)
}

// RefreshProfile re-reads the user record from the server.
func (s *SessionStore) RefreshProfile(ctx context.Context) (*User, error) {
	token := s.Token()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	user, err := s.auth.Profile(ctx, token)
	if err != nil {
		s.invalidateOnAuthError(ctx, token, err)
		return nil, err
	}
	return s.replaceUser(ctx, "refresh_profile", token, user)
}

func (s *SessionStore) invalidateOnAuthError(ctx context.Context, token string, err error) {
	if errors.Is(err, ErrAuthentication) {
		s.InvalidateIfCurrent(ctx, token)
	}
}

// replaceUser commits user if token is still the held one.
func (s *SessionStore) replaceUser(ctx context.Context, op, token string, user *User) (*User, error) {
	if user == nil {
		return nil, &TransportError{Op: op, Err: errors.New("response missing user")}
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	if s.token != token {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session changed during %s", ErrNotAuthenticated, op)
	}
	// The pair is rewritten together so backends with expiry keep one deadline for both keys.
	if err := s.storage.SetMany(ctx, map[string]string{KeyToken: token, KeyUser: string(rawUser)}); err != nil {
		s.mu.Unlock()
		return nil, persistErr(err)
	}
	s.user = copyUser(user)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug("profile replaced", slog.String("op", op), slog.Int64("user_id", user.ID))
	s.notify(snap)
	return copyUser(user), nil
}

// InvalidateIfCurrent clears the session only if token is still the held
// token, and reports whether it did. Concurrent callers holding the same
// stale token therefore clear the session once.
func (s *SessionStore) InvalidateIfCurrent(ctx context.Context, token string) bool {
	s.mu.Lock()
	if token == "" || s.token != token {
		s.mu.Unlock()
		return false
	}
	err := s.storage.DeleteMany(ctx, KeyToken, KeyUser)
	s.token, s.user = "", nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("failed to clear persisted session", slog.String("error", err.Error()))
	}
	s.logger.Warn("session invalidated by server")
	s.notify(snap)
	return true
}

// Token returns the held bearer token, or "" when logged out.
func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the held profile, or nil when logged out.
func (s *SessionStore) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyUser(s.user)
}

// IsAuthenticated reports whether a session is held.
func (s *SessionStore) IsAuthenticated() bool {
	return s.Token() != ""
}

// Snapshot returns the current state.
func (s *SessionStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *SessionStore) snapshotLocked() Snapshot {
	return Snapshot{Token: s.token, User: copyUser(s.user)}
}

// TokenExpiry returns the exp claim of the held token. The signature is not
// verified; the result is for display only. ok is false when there is no
// session or the token carries no expiry.
func (s *SessionStore) TokenExpiry() (exp time.Time, ok bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	t, err := claims.GetExpirationTime()
	if err != nil || t == nil {
		return time.Time{}, false
	}
	return t.Time, true
}

// Subscribe registers fn to be called after every committed change.
// The returned function removes the subscription.
func (s *SessionStore) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *SessionStore) notify(snap Snapshot) {
	s.obsMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// persistErr tags err as ErrStorePersist unless it already is.
func persistErr(err error) error {
	if errors.Is(err, ErrStorePersist) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorePersist, err)
}
