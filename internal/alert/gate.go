package alert

import (
	"context"
	"fmt"
	"time"
)

// CooldownRecord is the per-fingerprint throttling state. send_count only
// ever grows while the fingerprint exists; cooldown_until >= last_sent.
type CooldownRecord struct {
	LastSent      time.Time
	CooldownUntil time.Time
	SendCount     int
}

// Ledger is the persistent cooldown store. Lookup returns (nil, nil) for a
// fingerprint that has never been sent. CommitSend atomically writes
// last_sent/cooldown_until and increments send_count, conditional on prev
// still being the current state: false means a concurrent actor already
// claimed the window and the caller must not send.
type Ledger interface {
	Lookup(ctx context.Context, fingerprint string) (*CooldownRecord, error)
	Upsert(ctx context.Context, fingerprint string, lastSent, cooldownUntil time.Time, sendCount int) error
	CommitSend(ctx context.Context, fingerprint string, now, cooldownUntil time.Time, prev *CooldownRecord) (bool, error)
}

// Tier maps a minimum send count to the cooldown applied on the next send.
type Tier struct {
	MinSendCount int
	Cooldown     time.Duration
}

// DefaultTiers is evaluated highest threshold first: the more often an
// event has alerted, the longer it stays quiet afterwards. A fresh jam
// still alerts immediately, then gets the cold-start window below.
var DefaultTiers = []Tier{
	{MinSendCount: 5, Cooldown: 30 * time.Minute},
	{MinSendCount: 3, Cooldown: 15 * time.Minute},
	{MinSendCount: 0, Cooldown: 1 * time.Minute},
}

// ColdStartCooldown applies to a fingerprint with no ledger record.
const ColdStartCooldown = 30 * time.Minute

// Decision is the gate's answer for one fingerprint. Prev carries the
// record as read during the decision so the commit can be made conditional
// on it.
type Decision struct {
	Allowed      bool
	NextCooldown time.Duration
	Prev         *CooldownRecord
}

// Gate applies the escalating cooldown policy on top of the ledger.
type Gate struct {
	ledger Ledger
	tiers  []Tier
	now    func() time.Time
}

func NewGate(ledger Ledger, tiers []Tier) *Gate {
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	return &Gate{ledger: ledger, tiers: tiers, now: time.Now}
}

// ShouldSend decides whether an alert for the fingerprint may go out now.
// A ledger failure denies the send: with the ledger unreadable there is no
// way to tell a fresh event from one alerted seconds ago.
func (g *Gate) ShouldSend(ctx context.Context, fingerprint string) (Decision, error) {
	prev, err := g.ledger.Lookup(ctx, fingerprint)
	if err != nil {
		return Decision{}, fmt.Errorf("cooldown lookup for %s: %w", fingerprint, err)
	}

	if prev == nil {
		return Decision{Allowed: true, NextCooldown: ColdStartCooldown}, nil
	}

	if g.now().Before(prev.CooldownUntil) {
		return Decision{Allowed: false, Prev: prev}, nil
	}

	return Decision{
		Allowed:      true,
		NextCooldown: nextCooldown(prev.SendCount, g.tiers),
		Prev:         prev,
	}, nil
}

func nextCooldown(sendCount int, tiers []Tier) time.Duration {
	for _, t := range tiers {
		if sendCount >= t.MinSendCount {
			return t.Cooldown
		}
	}
	return tiers[len(tiers)-1].Cooldown
}
