// File: internal/tracker/tracker.go
// Package tracker records per-account login attempt state for one run.
package tracker

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the lifecycle state of one login attempt.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSuccess    Status = "success"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Attempt is the tracked outcome of running the login sequence for one account.
type Attempt struct {
	AccountID   string
	Status      Status
	Stage       string
	ErrorDetail string
	StartedAt   time.Time
	FinishedAt  time.Time
	// PartnerOK records the optional partner-site login result; meaningful
	// only when the run had the partner flow enabled and the primary login
	// verified.
	PartnerOK bool
}

// Tracker is a thread-safe registry of attempts keyed by account id. Each
// attempt is mutated only by the worker that owns the account; the tracker
// serializes those writes and enforces that a terminal status is never
// reverted.
type Tracker struct {
	mu       sync.RWMutex
	attempts map[string]*Attempt
	order    []string
	logger   *zap.Logger
}

// New returns an empty Tracker.
func New(logger *zap.Logger) *Tracker {
	return &Tracker{
		attempts: make(map[string]*Attempt),
		logger:   logger.With(zap.String("component", "tracker")),
	}
}

// Register creates a pending attempt for the account. Registering the same
// account twice is a programming error and is ignored with a log entry, so a
// run can never hold two attempts for one account.
func (t *Tracker) Register(accountID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.attempts[accountID]; exists {
		t.logger.Error("Attempt already registered for account; ignoring duplicate",
			zap.String("account_id", accountID))
		return
	}
	t.attempts[accountID] = &Attempt{
		AccountID: accountID,
		Status:    StatusPending,
	}
	t.order = append(t.order, accountID)
}

// Begin marks the account's attempt as in progress and stamps its start time.
func (t *Tracker) Begin(accountID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.attempts[accountID]
	if !ok {
		t.logger.Error("Begin called for unregistered account", zap.String("account_id", accountID))
		return
	}
	if a.Status.Terminal() {
		t.logger.Error("Begin called on terminal attempt; ignoring",
			zap.String("account_id", accountID), zap.String("status", string(a.Status)))
		return
	}
	a.Status = StatusInProgress
	a.StartedAt = time.Now()
}

// Complete records the terminal outcome of an attempt. Once terminal, later
// writes are rejected: a finished attempt never changes status.
func (t *Tracker) Complete(accountID string, status Status, stage, errorDetail string) {
	if !status.Terminal() {
		t.logger.Error("Complete called with non-terminal status",
			zap.String("account_id", accountID), zap.String("status", string(status)))
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.attempts[accountID]
	if !ok {
		t.logger.Error("Complete called for unregistered account", zap.String("account_id", accountID))
		return
	}
	if a.Status.Terminal() {
		t.logger.Error("Attempt already terminal; refusing status change",
			zap.String("account_id", accountID),
			zap.String("current", string(a.Status)),
			zap.String("attempted", string(status)))
		return
	}

	a.Status = status
	a.Stage = stage
	a.ErrorDetail = errorDetail
	a.FinishedAt = time.Now()
}

// SetPartnerResult records the partner-site outcome on an attempt. It does not
// alter the primary status.
func (t *Tracker) SetPartnerResult(accountID string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, exists := t.attempts[accountID]; exists {
		a.PartnerOK = ok
	}
}

// Get returns a copy of one account's attempt.
func (t *Tracker) Get(accountID string) (Attempt, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	a, ok := t.attempts[accountID]
	if !ok {
		return Attempt{}, false
	}
	return *a, true
}

// Snapshot returns copies of all attempts in registration order. The caller
// may read it without holding any lock.
func (t *Tracker) Snapshot() []Attempt {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Attempt, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.attempts[id])
	}
	return out
}

// Summary aggregates terminal counts for end-of-run reporting.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Unsettled int
	// FailedStages counts failures per stage name, for the run summary table.
	FailedStages map[string]int
}

// Summarize computes the aggregate view of the run.
func (t *Tracker) Summarize() Summary {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Summary{
		Total:        len(t.attempts),
		FailedStages: make(map[string]int),
	}
	for _, a := range t.attempts {
		switch a.Status {
		case StatusSuccess:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
			s.FailedStages[a.Stage]++
		default:
			s.Unsettled++
		}
	}
	return s
}

// FailedAccounts lists ids of failed attempts, sorted for stable output.
func (t *Tracker) FailedAccounts() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []string
	for id, a := range t.attempts {
		if a.Status == StatusFailed {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
