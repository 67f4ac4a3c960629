package store

import (
	"context"
	"fmt"
	"time"

	"github.com/andresdiniz/wazeBR-sub001/internal/feed"
)

// FeedSource is one configured partner endpoint to poll.
type FeedSource struct {
	URL       string
	PartnerID int
}

// FeedSources lists the partner endpoints the ingestor polls each cycle.
func (s *Store) FeedSources(ctx context.Context) ([]FeedSource, error) {
	rows, err := s.db.Query(ctx, `SELECT url, id_parceiro FROM feed_sources`)
	if err != nil {
		return nil, fmt.Errorf("feed sources query: %w", err)
	}
	defer rows.Close()

	var sources []FeedSource
	for rows.Next() {
		var fs FeedSource
		if err := rows.Scan(&fs.URL, &fs.PartnerID); err != nil {
			return nil, fmt.Errorf("feed sources scan: %w", err)
		}
		sources = append(sources, fs)
	}
	return sources, rows.Err()
}

// ActiveIrregularities returns rows updated since the cutoff, the alerter's
// working set for one cycle.
func (s *Store) ActiveIrregularities(ctx context.Context, since time.Time) ([]feed.Irregularity, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, source_url, id_parceiro, name, type, subtype,
		       length_m, jam_level, bbox_min_x, bbox_max_x, bbox_min_y, bbox_max_y,
		       from_name, to_name, speed_kmh, date_updated
		FROM irregularities
		WHERE date_updated >= $1
		ORDER BY date_updated DESC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("active irregularities query: %w", err)
	}
	defer rows.Close()

	var out []feed.Irregularity
	for rows.Next() {
		var ir feed.Irregularity
		var box feed.BBox
		if err := rows.Scan(
			&ir.ID, &ir.SourceURL, &ir.PartnerID, &ir.Name, &ir.Type, &ir.SubType,
			&ir.LengthMeters, &ir.JamLevel, &box.MinX, &box.MaxX, &box.MinY, &box.MaxY,
			&ir.FromName, &ir.ToName, &ir.SpeedKMH, &ir.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("active irregularities scan: %w", err)
		}
		ir.BBox = &box
		out = append(out, ir)
	}
	return out, rows.Err()
}

// RecentSpeeds returns the latest speed observations for one irregularity,
// newest first, capped so a long-lived jam does not dominate the average
// with stale history.
func (s *Store) RecentSpeeds(ctx context.Context, ir feed.Irregularity) ([]float64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT speed_kmh
		FROM speed_samples
		WHERE irregularity_id = $1 AND source_url = $2 AND id_parceiro = $3
		ORDER BY recorded_at DESC
		LIMIT 10
	`, ir.ID, ir.SourceURL, ir.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("speed samples query: %w", err)
	}
	defer rows.Close()

	var speeds []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("speed samples scan: %w", err)
		}
		speeds = append(speeds, v)
	}
	return speeds, rows.Err()
}

// RecipientsFor lists the opted-in addresses for a partner. Recipients
// under the global partner id receive alerts from every feed.
func (s *Store) RecipientsFor(ctx context.Context, partnerID int) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT email
		FROM users
		WHERE receive_email AND (id_parceiro = $1 OR id_parceiro = $2)
		ORDER BY email
	`, partnerID, s.GlobalPartnerID)
	if err != nil {
		return nil, fmt.Errorf("recipients query: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, fmt.Errorf("recipients scan: %w", err)
		}
		emails = append(emails, e)
	}
	return emails, rows.Err()
}
