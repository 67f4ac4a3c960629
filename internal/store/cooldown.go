package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/andresdiniz/wazeBR-sub001/internal/alert"
)

// Lookup returns the cooldown record for a fingerprint, or (nil, nil) when
// the fingerprint has never alerted.
func (s *Store) Lookup(ctx context.Context, fingerprint string) (*alert.CooldownRecord, error) {
	var rec alert.CooldownRecord
	err := s.db.QueryRow(ctx, `
		SELECT last_sent, cooldown_until, send_count
		FROM alert_cooldown
		WHERE alert_hash = $1
	`, fingerprint).Scan(&rec.LastSent, &rec.CooldownUntil, &rec.SendCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cooldown lookup: %w", err)
	}
	return &rec, nil
}

// Upsert writes the record unconditionally. Used by backfills and tests;
// the dispatch path goes through CommitSend.
func (s *Store) Upsert(ctx context.Context, fingerprint string, lastSent, cooldownUntil time.Time, sendCount int) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO alert_cooldown (alert_hash, last_sent, cooldown_until, send_count)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (alert_hash) DO UPDATE SET
			last_sent = EXCLUDED.last_sent,
			cooldown_until = EXCLUDED.cooldown_until,
			send_count = EXCLUDED.send_count
	`, fingerprint, lastSent, cooldownUntil, sendCount)
	if err != nil {
		return fmt.Errorf("cooldown upsert: %w", err)
	}
	return nil
}

// CommitSend claims the cooldown window conditionally on the record still
// matching what the gate read. Zero rows affected means a concurrent run
// claimed it first and the caller must not send.
func (s *Store) CommitSend(ctx context.Context, fingerprint string, now, cooldownUntil time.Time, prev *alert.CooldownRecord) (bool, error) {
	if prev == nil {
		tag, err := s.db.Exec(ctx, `
			INSERT INTO alert_cooldown (alert_hash, last_sent, cooldown_until, send_count)
			VALUES ($1, $2, $3, 1)
			ON CONFLICT (alert_hash) DO NOTHING
		`, fingerprint, now, cooldownUntil)
		if err != nil {
			return false, fmt.Errorf("cooldown insert: %w", err)
		}
		return tag.RowsAffected() == 1, nil
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE alert_cooldown
		SET last_sent = $2, cooldown_until = $3, send_count = send_count + 1
		WHERE alert_hash = $1 AND cooldown_until = $4
	`, fingerprint, now, cooldownUntil, prev.CooldownUntil)
	if err != nil {
		return false, fmt.Errorf("cooldown commit: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
