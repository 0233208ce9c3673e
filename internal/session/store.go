package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"optionsworth/internal/cache"
	"optionsworth/internal/core"
)

// Config controls session lifetime and capacity.
type Config struct {
	TTL          time.Duration
	MaxSessions  int
	DefaultRates core.GlobalRates
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		TTL:          2 * time.Hour,
		MaxSessions:  10000,
		DefaultRates: core.DefaultRates(),
	}
}

// Store holds live sessions in memory. Nothing survives a restart.
type Store struct {
	sessions *cache.LRUCache[*Session]
	rates    core.GlobalRates
	logger   *slog.Logger
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore(cfg Config, logger *slog.Logger) *Store {
	def := DefaultConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = def.MaxSessions
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		sessions: cache.NewLRUCache[*Session](cfg.MaxSessions, cfg.TTL),
		rates:    cfg.DefaultRates,
		logger:   logger,
		now:      time.Now,
	}
	s.sessions.OnEvict(func(id string, sess *Session) {
		s.logger.Debug("Session expired",
			"session_id", id,
			"age", s.now().Sub(sess.CreatedAt()).Round(time.Second).String())
	})
	return s
}

// Cleaner exposes the underlying cache so a cache.Manager can expire it.
func (s *Store) Cleaner() cache.Cleaner {
	return s.sessions
}

// Get returns a live session.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	return s.sessions.Get(id)
}

// Create starts a new session seeded with the default rates and one grant.
func (s *Store) Create() (*Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	sess := newSession(id, s.rates, s.now())
	s.sessions.Set(id, sess)
	s.logger.Debug("Session created", "session_id", id)
	return sess, nil
}

// GetOrCreate returns the session for id or a fresh one when id is unknown
// or expired. created reports which happened.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool, err error) {
	if sess, ok := s.Get(id); ok {
		return sess, false, nil
	}
	sess, err = s.Create()
	return sess, err == nil, err
}

// DefaultRates returns the rates new sessions start with.
func (s *Store) DefaultRates() core.GlobalRates {
	return s.rates
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	return s.sessions.Size()
}

func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
