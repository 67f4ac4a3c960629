package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/andresdiniz/wazeBR-sub001/internal/feed"
	"github.com/andresdiniz/wazeBR-sub001/internal/report"
)

// memDB applies upsert semantics in memory, keyed like the real composite
// primary keys, so tests can observe table state after a batch.
type memDB struct {
	irregularities map[string][]any
	routes         map[string][]any
	usersJams      map[string][]any
	speedSamples   int

	failID string // irregularity id whose upsert fails
}

func newMemDB() *memDB {
	return &memDB{
		irregularities: make(map[string][]any),
		routes:         make(map[string][]any),
		usersJams:      make(map[string][]any),
	}
}

func rowKey(args []any, n int) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%v", args[i])
	}
	return strings.Join(parts, "|")
}

func (m *memDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch {
	case strings.Contains(sql, "INSERT INTO irregularities"):
		if m.failID != "" && args[0] == m.failID {
			return pgconn.CommandTag{}, errors.New("deadlock detected")
		}
		m.irregularities[rowKey(args, 3)] = args
	case strings.Contains(sql, "INSERT INTO speed_samples"):
		m.speedSamples++
	case strings.Contains(sql, "INSERT INTO routes"):
		m.routes[rowKey(args, 3)] = args
	case strings.Contains(sql, "INSERT INTO users_jams"):
		m.usersJams[rowKey(args, 4)] = args
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *memDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (m *memDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return errRow{}
}

type errRow struct{}

func (errRow) Scan(...any) error { return errors.New("not implemented") }

func newTestStore(db querier) *Store {
	return &Store{db: db, rep: report.New(zerolog.Nop())}
}

func irregularityRow(id string) feed.Irregularity {
	return feed.Irregularity{
		ID:           id,
		Name:         "BR-116 Sul",
		Type:         "JAM",
		SubType:      "HEAVY",
		LengthMeters: 5000,
		JamLevel:     4,
		BBox:         &feed.BBox{MinX: -45, MaxX: -44, MinY: -23, MaxY: -22},
		FromName:     "A",
		ToName:       "B",
		SpeedKMH:     12.34,
		UpdateMillis: 1750000000000,
		SourceURL:    "https://feed.example/partner",
		PartnerID:    3,
	}
}

func TestUpsertIrregularitiesSkipsMalformedRow(t *testing.T) {
	db := newMemDB()
	st := newTestStore(db)

	bad := irregularityRow("IRR-2")
	bad.BBox = nil
	batch := []feed.Irregularity{irregularityRow("IRR-1"), bad, irregularityRow("IRR-3")}

	stored, failed := st.UpsertIrregularities(context.Background(), batch)

	if stored != 2 || failed != 1 {
		t.Errorf("stored, failed = %d, %d, want 2, 1", stored, failed)
	}
	if len(db.irregularities) != 2 {
		t.Errorf("persisted rows = %d, want 2", len(db.irregularities))
	}
	if st.rep.Count() != 1 {
		t.Errorf("reported failures = %d, want exactly 1", st.rep.Count())
	}
}

func TestUpsertIrregularitiesContinuesPastDBError(t *testing.T) {
	db := newMemDB()
	db.failID = "IRR-2"
	st := newTestStore(db)

	batch := []feed.Irregularity{
		irregularityRow("IRR-1"), irregularityRow("IRR-2"), irregularityRow("IRR-3"),
	}
	stored, failed := st.UpsertIrregularities(context.Background(), batch)

	if stored != 2 || failed != 1 {
		t.Errorf("stored, failed = %d, %d, want 2, 1", stored, failed)
	}
	if _, ok := db.irregularities[rowKey([]any{"IRR-3", "https://feed.example/partner", 3}, 3)]; !ok {
		t.Error("row after the failing one was not persisted")
	}
	if st.rep.Count() != 1 {
		t.Errorf("reported failures = %d, want 1", st.rep.Count())
	}
}

func TestUpsertIrregularitiesIdempotent(t *testing.T) {
	db := newMemDB()
	st := newTestStore(db)
	batch := []feed.Irregularity{irregularityRow("IRR-1")}

	if stored, failed := st.UpsertIrregularities(context.Background(), batch); stored != 1 || failed != 0 {
		t.Fatalf("first pass: stored, failed = %d, %d", stored, failed)
	}
	before := maps.Clone(db.irregularities)

	if stored, failed := st.UpsertIrregularities(context.Background(), batch); stored != 1 || failed != 0 {
		t.Fatalf("second pass: stored, failed = %d, %d", stored, failed)
	}

	if !reflect.DeepEqual(before, db.irregularities) {
		t.Errorf("re-upsert changed table state:\nbefore: %v\nafter:  %v", before, db.irregularities)
	}
}

func TestUpsertIrregularitiesRecordsSpeedSamples(t *testing.T) {
	db := newMemDB()
	st := newTestStore(db)

	st.UpsertIrregularities(context.Background(), []feed.Irregularity{
		irregularityRow("IRR-1"), irregularityRow("IRR-2"),
	})
	if db.speedSamples != 2 {
		t.Errorf("speed samples = %d, want 2", db.speedSamples)
	}
}

func TestUpsertRoutesSkipsMissingID(t *testing.T) {
	db := newMemDB()
	st := newTestStore(db)

	batch := []feed.Route{
		{ID: "RT-1", Status: "OPEN", ETASeconds: 900, SourceURL: "u", PartnerID: 3},
		{Status: "OPEN"},
	}
	stored, failed := st.UpsertRoutes(context.Background(), batch)

	if stored != 1 || failed != 1 {
		t.Errorf("stored, failed = %d, %d, want 1, 1", stored, failed)
	}
	if len(db.routes) != 1 {
		t.Errorf("persisted routes = %d, want 1", len(db.routes))
	}
}

func TestUpsertUserJamsSkipsMissingJamID(t *testing.T) {
	db := newMemDB()
	st := newTestStore(db)

	batch := []feed.UserJam{
		{UserID: 7, JamID: "JAM-1", SourceURL: "u", PartnerID: 3},
		{UserID: 8},
	}
	stored, failed := st.UpsertUserJams(context.Background(), batch)

	if stored != 1 || failed != 1 {
		t.Errorf("stored, failed = %d, %d, want 1, 1", stored, failed)
	}
	if len(db.usersJams) != 1 {
		t.Errorf("persisted memberships = %d, want 1", len(db.usersJams))
	}
}
