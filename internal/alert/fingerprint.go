// Package alert decides whether a notification goes out for an observed
// irregularity and builds the outbound message. The decision state lives in
// the cooldown ledger keyed by a stable content fingerprint.
package alert

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/andresdiniz/wazeBR-sub001/internal/feed"
)

// Fingerprint derives the alert identity of an irregularity from its stable
// fields only: type, sub-type, bounding-box centroid and from/to names.
// Speed, jam level and length fluctuate between observations of the same
// event and never participate. The caller must have validated the row; a
// missing bbox would collapse distinct events onto one identity.
func Fingerprint(ir feed.Irregularity) string {
	lat, lng := ir.BBox.Centroid()
	canonical := fmt.Sprintf("%s|%s|%.6f,%.6f|%s|%s",
		ir.Type, ir.SubType, lat, lng, ir.FromName, ir.ToName)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
