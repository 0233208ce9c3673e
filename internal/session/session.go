// Package session keeps one portfolio per browser session.
//
// A Session serialises every operation on its portfolio, so concurrent HTTP
// requests from the same browser are applied one at a time in arrival order.
package session

import (
	"sync"
	"time"

	"optionsworth/internal/core"
)

// Session wraps a portfolio with the lock that makes its operations atomic.
type Session struct {
	id        string
	createdAt time.Time

	mu        sync.Mutex
	portfolio *core.Portfolio
}

func newSession(id string, rates core.GlobalRates, now time.Time) *Session {
	return &Session{
		id:        id,
		createdAt: now,
		portfolio: core.NewPortfolio(rates),
	}
}

// ID returns the session identifier stored in the browser cookie.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was started.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Snapshot returns the current portfolio state.
func (s *Session) Snapshot() core.Valuation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portfolio.Snapshot()
}

// AddGrant appends a default grant.
func (s *Session) AddGrant() (int, core.Valuation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolio.AddGrant()
	return s.portfolio.Len() - 1, s.portfolio.Snapshot()
}

// SetGrantField updates one grant input. On error the portfolio is unchanged
// and the returned snapshot reflects that.
func (s *Session) SetGrantField(index int, field core.GrantField, value float64) (core.Valuation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.portfolio.SetGrantField(index, field, value)
	return s.portfolio.Snapshot(), err
}

// SetGlobalRate updates one rate and revalues every grant.
func (s *Session) SetGlobalRate(field core.RateField, value float64) (core.Valuation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.portfolio.SetGlobalRate(field, value)
	return s.portfolio.Snapshot(), err
}

// Replace swaps in a new portfolio, e.g. after a file import.
func (s *Session) Replace(p *core.Portfolio) core.Valuation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolio = p
	return p.Snapshot()
}
