package alert

import (
	"context"
	"errors"
	"testing"
	"time"
)

type memLedger struct {
	records   map[string]CooldownRecord
	lookupErr error
	commitErr error
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[string]CooldownRecord)}
}

func (m *memLedger) Lookup(_ context.Context, fp string) (*CooldownRecord, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	rec, ok := m.records[fp]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memLedger) Upsert(_ context.Context, fp string, lastSent, cooldownUntil time.Time, sendCount int) error {
	m.records[fp] = CooldownRecord{LastSent: lastSent, CooldownUntil: cooldownUntil, SendCount: sendCount}
	return nil
}

func (m *memLedger) CommitSend(_ context.Context, fp string, now, cooldownUntil time.Time, prev *CooldownRecord) (bool, error) {
	if m.commitErr != nil {
		return false, m.commitErr
	}
	cur, exists := m.records[fp]
	if prev == nil {
		if exists {
			return false, nil
		}
		m.records[fp] = CooldownRecord{LastSent: now, CooldownUntil: cooldownUntil, SendCount: 1}
		return true, nil
	}
	if !exists || !cur.CooldownUntil.Equal(prev.CooldownUntil) {
		return false, nil
	}
	m.records[fp] = CooldownRecord{LastSent: now, CooldownUntil: cooldownUntil, SendCount: cur.SendCount + 1}
	return true, nil
}

func TestShouldSendColdStart(t *testing.T) {
	g := NewGate(newMemLedger(), nil)

	d, err := g.ShouldSend(context.Background(), "fp")
	if err != nil {
		t.Fatalf("ShouldSend() error = %v", err)
	}
	if !d.Allowed {
		t.Error("cold start must allow the first send")
	}
	if d.NextCooldown != 30*time.Minute {
		t.Errorf("NextCooldown = %v, want 30m", d.NextCooldown)
	}
	if d.Prev != nil {
		t.Error("cold start decision must carry no previous record")
	}
}

func TestShouldSendInsideWindow(t *testing.T) {
	ledger := newMemLedger()
	now := time.Now()
	ledger.records["fp"] = CooldownRecord{
		LastSent:      now.Add(-time.Minute),
		CooldownUntil: now.Add(10 * time.Minute),
		SendCount:     2,
	}
	g := NewGate(ledger, nil)

	d, err := g.ShouldSend(context.Background(), "fp")
	if err != nil {
		t.Fatalf("ShouldSend() error = %v", err)
	}
	if d.Allowed {
		t.Error("send allowed inside an active cooldown window")
	}

	got := ledger.records["fp"]
	if got.SendCount != 2 || !got.CooldownUntil.Equal(now.Add(10*time.Minute)) {
		t.Errorf("denied decision mutated the record: %+v", got)
	}
}

func TestShouldSendEscalation(t *testing.T) {
	// Cooldown granted on each send as the count climbs past expiry.
	want := []time.Duration{
		time.Minute, time.Minute, time.Minute,
		15 * time.Minute, 15 * time.Minute,
		30 * time.Minute, 30 * time.Minute,
	}

	for sendCount, wantCooldown := range want {
		ledger := newMemLedger()
		ledger.records["fp"] = CooldownRecord{
			LastSent:      time.Now().Add(-2 * time.Hour),
			CooldownUntil: time.Now().Add(-time.Hour),
			SendCount:     sendCount,
		}
		g := NewGate(ledger, nil)

		d, err := g.ShouldSend(context.Background(), "fp")
		if err != nil {
			t.Fatalf("sendCount %d: ShouldSend() error = %v", sendCount, err)
		}
		if !d.Allowed {
			t.Fatalf("sendCount %d: send denied past an expired window", sendCount)
		}
		if d.NextCooldown != wantCooldown {
			t.Errorf("sendCount %d: NextCooldown = %v, want %v", sendCount, d.NextCooldown, wantCooldown)
		}
	}
}

func TestShouldSendLedgerError(t *testing.T) {
	ledger := newMemLedger()
	ledger.lookupErr = errors.New("connection refused")
	g := NewGate(ledger, nil)

	d, err := g.ShouldSend(context.Background(), "fp")
	if err == nil {
		t.Fatal("ShouldSend() error = nil, want lookup failure")
	}
	if d.Allowed {
		t.Error("send allowed despite an unreadable ledger")
	}
}

func TestNextCooldownTiers(t *testing.T) {
	tests := []struct {
		sendCount int
		want      time.Duration
	}{
		{0, time.Minute},
		{2, time.Minute},
		{3, 15 * time.Minute},
		{4, 15 * time.Minute},
		{5, 30 * time.Minute},
		{100, 30 * time.Minute},
	}
	for _, tt := range tests {
		if got := nextCooldown(tt.sendCount, DefaultTiers); got != tt.want {
			t.Errorf("nextCooldown(%d) = %v, want %v", tt.sendCount, got, tt.want)
		}
	}
}
