package alert

import (
	"testing"

	"github.com/andresdiniz/wazeBR-sub001/internal/feed"
)

func baseIrregularity() feed.Irregularity {
	return feed.Irregularity{
		ID:           "IRR-1",
		Name:         "BR-101 southbound",
		Type:         "ROAD_CLOSED",
		SubType:      "ROAD_CLOSED_EVENT",
		LengthMeters: 5000,
		JamLevel:     4,
		BBox:         &feed.BBox{MinX: -45, MaxX: -44, MinY: -23, MaxY: -22},
		FromName:     "A",
		ToName:       "B",
		SpeedKMH:     12.3,
	}
}

func TestFingerprintStableAcrossVolatileFields(t *testing.T) {
	a := baseIrregularity()
	b := baseIrregularity()
	b.SpeedKMH = 80
	b.JamLevel = 1
	b.LengthMeters = 300
	b.ID = "IRR-2"

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprint changed when only volatile fields differed")
	}
}

func TestFingerprintDistinguishesIdentityFields(t *testing.T) {
	a := baseIrregularity()

	tests := []struct {
		name   string
		mutate func(*feed.Irregularity)
	}{
		{"type", func(ir *feed.Irregularity) { ir.Type = "JAM" }},
		{"subtype", func(ir *feed.Irregularity) { ir.SubType = "JAM_HEAVY_TRAFFIC" }},
		{"bbox", func(ir *feed.Irregularity) { ir.BBox = &feed.BBox{MinX: -45, MaxX: -44, MinY: -24, MaxY: -23} }},
		{"from", func(ir *feed.Irregularity) { ir.FromName = "C" }},
		{"to", func(ir *feed.Irregularity) { ir.ToName = "D" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := baseIrregularity()
			tt.mutate(&b)
			if Fingerprint(a) == Fingerprint(b) {
				t.Errorf("fingerprint unchanged when %s differed", tt.name)
			}
		})
	}
}

func TestFingerprintFormat(t *testing.T) {
	fp := Fingerprint(baseIrregularity())
	if len(fp) != 64 {
		t.Errorf("len(fingerprint) = %d, want 64 hex chars", len(fp))
	}
	for _, c := range fp {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Fatalf("fingerprint contains non-hex char %q", c)
		}
	}
}
