package session

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a trading session.
type Status string

const (
	StatusActive  Status = "active"
	StatusStopped Status = "stopped"
)

// Session is the unit against which all P&L and drawdown figures are
// computed. Exactly one session is active per account context.
type Session struct {
	ID             string     `db:"id" json:"id"`
	InitialBalance float64    `db:"initial_balance" json:"initial_balance"`
	Status         Status     `db:"status" json:"status"`
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	EndedAt        *time.Time `db:"ended_at" json:"ended_at,omitempty"`
}

// New creates an active session starting now.
func New(initialBalance float64) *Session {
	return &Session{
		ID:             uuid.NewString(),
		InitialBalance: initialBalance,
		Status:         StatusActive,
		StartedAt:      time.Now().UTC(),
	}
}

// Active reports whether the session is still running.
func (s *Session) Active() bool {
	return s.Status == StatusActive
}

// Stop terminates the session. Stopping twice is a no-op.
func (s *Session) Stop() {
	if s.Status == StatusStopped {
		return
	}
	now := time.Now().UTC()
	s.Status = StatusStopped
	s.EndedAt = &now
}

// CurrentBalance applies the balance invariant:
// current = initial + sum of closed and open position pnl.
func (s *Session) CurrentBalance(closedPnL, openPnL float64) float64 {
	return s.InitialBalance + closedPnL + openPnL
}

// Drawdown is the peak-to-current decline as a fraction of peak balance,
// where peak is the greater of the initial and current balance. Always
// within [0, 1].
func Drawdown(initialBalance, balance float64) float64 {
	peak := math.Max(initialBalance, balance)
	if peak <= 0 {
		return 0
	}
	return math.Min(1, math.Max(0, (peak-balance)/peak))
}
