// Package alert gates outbound notifications so repeated runs over
// unchanged data do not notify twice.
package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/rs/zerolog/log"
)

// Decision is the outcome of evaluating an alert candidate.
type Decision int

const (
	Suppressed Decision = iota
	Emit
)

func (d Decision) String() string {
	if d == Emit {
		return "emit"
	}
	return "suppressed"
}

// Store persists one AlertState per channel. Load returns nil, nil when the
// channel has no state.
type Store interface {
	Load(ctx context.Context, channel string) (*domain.AlertState, error)
	Save(ctx context.Context, state domain.AlertState) error
}

// Candidate is a freshly computed alert condition.
type Candidate struct {
	Fingerprint      string
	SourceIdentity   string
	TriggerPeriodEnd time.Time
}

// Tracker compares candidates against the persisted state. Evaluate and
// Clear run under one lock so overlapping cycles cannot lose an update.
type Tracker struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
}

func NewTracker(store Store, clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{store: store, now: clock}
}

// Evaluate returns Suppressed when both fingerprint and source identity match
// the persisted state. Otherwise it persists the candidate and returns Emit;
// the state is saved before Emit is returned, so a failed save never emits.
func (t *Tracker) Evaluate(ctx context.Context, channel string, c Candidate) (Decision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, err := t.store.Load(ctx, channel)
	if err != nil {
		return Suppressed, fmt.Errorf("load alert state %s: %w", channel, err)
	}

	now := t.now().UTC()
	if prev != nil && prev.AlertFingerprint == c.Fingerprint && prev.SourceSnapshotIdentity == c.SourceIdentity {
		touched := *prev
		touched.LastCheckedAt = now
		if err := t.store.Save(ctx, touched); err != nil {
			log.Warn().Err(err).Str("channel", channel).Msg("failed to touch alert state")
		}
		log.Debug().Str("channel", channel).Str("fingerprint", c.Fingerprint).Msg("alert suppressed")
		return Suppressed, nil
	}

	next := domain.AlertState{
		Channel:                channel,
		AlertFingerprint:       c.Fingerprint,
		TriggerPeriodEnd:       c.TriggerPeriodEnd.UTC(),
		SourceSnapshotIdentity: c.SourceIdentity,
		LastCheckedAt:          now,
	}
	if err := t.store.Save(ctx, next); err != nil {
		return Suppressed, fmt.Errorf("save alert state %s: %w", channel, err)
	}

	log.Info().Str("channel", channel).Str("fingerprint", c.Fingerprint).Msg("alert state updated")
	return Emit, nil
}

// Clear returns the channel to no-alert-pending while keeping the source
// identity, so the next shortage on any snapshot emits again.
func (t *Tracker) Clear(ctx context.Context, channel, sourceIdentity string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, err := t.store.Load(ctx, channel)
	if err != nil {
		return fmt.Errorf("load alert state %s: %w", channel, err)
	}
	if prev != nil && !prev.Active() && prev.SourceSnapshotIdentity == sourceIdentity {
		return nil
	}

	cleared := domain.AlertState{
		Channel:                channel,
		SourceSnapshotIdentity: sourceIdentity,
		LastCheckedAt:          t.now().UTC(),
	}
	if err := t.store.Save(ctx, cleared); err != nil {
		return fmt.Errorf("save alert state %s: %w", channel, err)
	}
	if prev.Active() {
		log.Info().Str("channel", channel).Msg("alert cleared")
	}
	return nil
}

// State returns the persisted state for a channel, or nil.
func (t *Tracker) State(ctx context.Context, channel string) (*domain.AlertState, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.Load(ctx, channel)
}
