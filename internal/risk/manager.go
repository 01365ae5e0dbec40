// Package risk gives the error taxonomy a concurrent home: it tracks each
// venue's health and halts strategies referencing a venue once that venue
// reports a Protocol error, and it tracks the running unhedged-residue
// budget left over from partial fills too small to hedge. Adapted from the
// teacher's risk.Manager, which aggregated per-market USD exposure and
// price-movement kill signals across a single-venue fleet of markets; here
// there is one venue roster (not many markets) and the thing worth killing
// a strategy over is "this venue's feed broke," not "the price moved."
package risk

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"arbengine/internal/venue"
	"arbengine/pkg/decimal"
	"arbengine/pkg/types"
)

// VenueHealth is the current status of one venue's adapter.
type VenueHealth int

const (
	Healthy VenueHealth = iota
	Disabled                // Protocol error or residue limit breach; clears via Reenable
	FatalAuth                // Authentication error observed; never cleared by Reenable
)

// KillSignal tells the engine to halt every strategy that references Venue.
type KillSignal struct {
	Venue  types.VenueID
	Reason string
	Fatal  bool // true for FatalAuth: the engine cancels its run context; the process does not exit on its own
}

// Manager tracks venue health and the unhedged-residue budget.
type Manager struct {
	maxUnhedgedResidue decimal.Decimal
	logger             *slog.Logger

	mu      sync.RWMutex
	health  map[types.VenueID]VenueHealth
	residue map[types.VenueID]decimal.Decimal

	killCh chan KillSignal
}

// NewManager creates a risk manager. maxUnhedgedResidue bounds the total
// per-venue residue (in base-asset units) this engine will carry before
// halting new maker quotes on that venue — set to zero to disable the
// check.
func NewManager(maxUnhedgedResidue decimal.Decimal, logger *slog.Logger) *Manager {
	return &Manager{
		maxUnhedgedResidue: maxUnhedgedResidue,
		logger:             logger.With("component", "risk"),
		health:             make(map[types.VenueID]VenueHealth),
		residue:            make(map[types.VenueID]decimal.Decimal),
		killCh:             make(chan KillSignal, 10),
	}
}

// KillCh returns the channel the engine reads venue kill signals from.
func (m *Manager) KillCh() <-chan KillSignal { return m.killCh }

// ReportError classifies err and, if it is a Protocol or Authentication
// error, halts the venue and emits a KillSignal. Returns true if the venue
// was halted; other error kinds (Transport, RateLimited, InsufficientFunds,
// PostOnlyRejected, UnknownOrder) are left to the caller to retry or
// surface, since they describe a single request's outcome, not the venue's
// overall health.
func (m *Manager) ReportError(venueID types.VenueID, err error) (halted bool) {
	var protoErr *venue.ProtocolError
	var authErr *venue.AuthenticationError

	switch {
	case errors.As(err, &authErr):
		m.setHealth(venueID, FatalAuth)
		m.logger.Error("venue halted: authentication failure", "venue", venueID, "error", err)
		m.emitKill(venueID, fmt.Sprintf("authentication error: %v", err), true)
		return true
	case errors.As(err, &protoErr):
		m.setHealth(venueID, Disabled)
		m.logger.Error("venue halted: protocol error", "venue", venueID, "error", err)
		m.emitKill(venueID, fmt.Sprintf("protocol error: %v", err), false)
		return true
	default:
		return false
	}
}

func (m *Manager) setHealth(venueID types.VenueID, h VenueHealth) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health[venueID] = h
}

// IsHealthy reports whether venue is currently clear to trade.
func (m *Manager) IsHealthy(venueID types.VenueID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.health[venueID] == Healthy
}

// RecordUnhedged adds to the running per-venue residue and, if it now
// exceeds maxUnhedgedResidue, halts the venue so the strategy stops opening
// new maker positions there until an operator clears the residue.
func (m *Manager) RecordUnhedged(venueID types.VenueID, amount decimal.Decimal) (exceeded bool) {
	m.mu.Lock()
	total := m.residue[venueID].Add(amount)
	m.residue[venueID] = total
	overLimit := !m.maxUnhedgedResidue.IsZero() && total.GreaterThan(m.maxUnhedgedResidue)
	if overLimit {
		m.health[venueID] = Disabled
	}
	m.mu.Unlock()

	if !overLimit {
		return false
	}
	m.logger.Error("unhedged residue limit exceeded", "venue", venueID, "residue", total, "limit", m.maxUnhedgedResidue)
	m.emitKill(venueID, fmt.Sprintf("unhedged residue %s exceeds limit %s", total, m.maxUnhedgedResidue), false)
	return true
}

// Residue returns the current tracked unhedged residue for a venue.
func (m *Manager) Residue(venueID types.VenueID) decimal.Decimal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.residue[venueID]
}

// ClearResidue zeroes a venue's residue, typically after an operator
// manually liquidates the leftover position.
func (m *Manager) ClearResidue(venueID types.VenueID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.residue, venueID)
}

// Reenable clears a Disabled venue back to Healthy. Never clears FatalAuth —
// that requires a process restart with corrected credentials.
func (m *Manager) Reenable(venueID types.VenueID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.health[venueID] == FatalAuth {
		return fmt.Errorf("risk: %s is halted on authentication failure, restart required", venueID)
	}
	m.health[venueID] = Healthy
	return nil
}

func (m *Manager) emitKill(venueID types.VenueID, reason string, fatal bool) {
	sig := KillSignal{Venue: venueID, Reason: reason, Fatal: fatal}
	select {
	case m.killCh <- sig:
	default:
		select {
		case <-m.killCh:
		default:
		}
		m.killCh <- sig
	}
}
