package store

import (
	"context"
	"time"

	"github.com/andresdiniz/wazeBR-sub001/internal/feed"
	"github.com/andresdiniz/wazeBR-sub001/internal/report"
)

// UpsertIrregularities writes the batch row by row. A bad row is reported
// and skipped so one malformed record never sinks the rest of the snapshot.
// Each stored row also appends a speed sample for the averaging window.
func (s *Store) UpsertIrregularities(ctx context.Context, rows []feed.Irregularity) (stored, failed int) {
	observed := time.Now().UTC()

	for _, ir := range rows {
		if err := ir.Validate(); err != nil {
			failed++
			s.rep.Recoverable(report.SeverityWarning, err, "skipping irregularity row", map[string]any{
				"id": ir.ID, "source_url": ir.SourceURL,
			})
			continue
		}

		updated := ir.UpdateTime(observed)
		_, err := s.db.Exec(ctx, `
			INSERT INTO irregularities (
				id, source_url, id_parceiro, name, type, subtype,
				length_m, jam_level, bbox_min_x, bbox_max_x, bbox_min_y, bbox_max_y,
				from_name, to_name, speed_kmh, date_updated
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
			ON CONFLICT (id, source_url, id_parceiro) DO UPDATE SET
				name = EXCLUDED.name,
				type = EXCLUDED.type,
				subtype = EXCLUDED.subtype,
				length_m = EXCLUDED.length_m,
				jam_level = EXCLUDED.jam_level,
				bbox_min_x = EXCLUDED.bbox_min_x,
				bbox_max_x = EXCLUDED.bbox_max_x,
				bbox_min_y = EXCLUDED.bbox_min_y,
				bbox_max_y = EXCLUDED.bbox_max_y,
				from_name = EXCLUDED.from_name,
				to_name = EXCLUDED.to_name,
				speed_kmh = EXCLUDED.speed_kmh,
				date_updated = EXCLUDED.date_updated
		`, ir.ID, ir.SourceURL, ir.PartnerID, ir.Name, ir.Type, ir.SubType,
			ir.LengthMeters, ir.JamLevel, ir.BBox.MinX, ir.BBox.MaxX, ir.BBox.MinY, ir.BBox.MaxY,
			ir.FromName, ir.ToName, ir.SpeedKMH, updated)
		if err != nil {
			failed++
			s.rep.Recoverable(report.SeverityError, err, "irregularity upsert failed", map[string]any{
				"id": ir.ID, "source_url": ir.SourceURL,
			})
			continue
		}
		stored++

		_, err = s.db.Exec(ctx, `
			INSERT INTO speed_samples (irregularity_id, source_url, id_parceiro, speed_kmh, recorded_at)
			VALUES ($1, $2, $3, $4, $5)
		`, ir.ID, ir.SourceURL, ir.PartnerID, ir.SpeedKMH, observed)
		if err != nil {
			s.rep.Recoverable(report.SeverityWarning, err, "speed sample insert failed", map[string]any{
				"id": ir.ID, "source_url": ir.SourceURL,
			})
		}
	}
	return stored, failed
}

// UpsertRoutes writes the batch row by row with the same skip-and-continue
// policy as irregularities.
func (s *Store) UpsertRoutes(ctx context.Context, rows []feed.Route) (stored, failed int) {
	observed := time.Now().UTC()

	for _, rt := range rows {
		if err := rt.Validate(); err != nil {
			failed++
			s.rep.Recoverable(report.SeverityWarning, err, "skipping route row", map[string]any{
				"id": rt.ID, "source_url": rt.SourceURL,
			})
			continue
		}

		updated := observed
		if rt.UpdateMillis > 0 {
			updated = time.UnixMilli(rt.UpdateMillis).UTC()
		}
		_, err := s.db.Exec(ctx, `
			INSERT INTO routes (id, source_url, id_parceiro, status, eta_seconds, date_updated)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id, source_url, id_parceiro) DO UPDATE SET
				status = EXCLUDED.status,
				eta_seconds = EXCLUDED.eta_seconds,
				date_updated = EXCLUDED.date_updated
		`, rt.ID, rt.SourceURL, rt.PartnerID, rt.Status, rt.ETASeconds, updated)
		if err != nil {
			failed++
			s.rep.Recoverable(report.SeverityError, err, "route upsert failed", map[string]any{
				"id": rt.ID, "source_url": rt.SourceURL,
			})
			continue
		}
		stored++
	}
	return stored, failed
}

// UpsertUserJams records user-to-jam observations; a repeat refreshes the
// observation timestamp.
func (s *Store) UpsertUserJams(ctx context.Context, rows []feed.UserJam) (stored, failed int) {
	observed := time.Now().UTC()

	for _, uj := range rows {
		if uj.JamID == "" {
			failed++
			s.rep.Recoverable(report.SeverityWarning, feed.ErrMissingID, "skipping user jam row", map[string]any{
				"user_id": uj.UserID, "source_url": uj.SourceURL,
			})
			continue
		}

		_, err := s.db.Exec(ctx, `
			INSERT INTO users_jams (user_id, jam_id, source_url, id_parceiro, date_created)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, jam_id, source_url, id_parceiro) DO UPDATE SET
				date_created = EXCLUDED.date_created
		`, uj.UserID, uj.JamID, uj.SourceURL, uj.PartnerID, observed)
		if err != nil {
			failed++
			s.rep.Recoverable(report.SeverityError, err, "user jam insert failed", map[string]any{
				"user_id": uj.UserID, "jam_id": uj.JamID,
			})
			continue
		}
		stored++
	}
	return stored, failed
}
