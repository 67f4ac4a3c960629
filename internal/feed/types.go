// Package feed holds the wire types of the partner traffic feed and a
// client for pulling snapshots from the partner hub endpoints.
package feed

import (
	"errors"
	"time"
)

var (
	ErrMissingID   = errors.New("feed: irregularity is missing an id")
	ErrMissingBBox = errors.New("feed: irregularity is missing a bounding box")
)

// BBox is the geographic rectangle around an irregularity. X is longitude,
// Y is latitude, matching the upstream feed convention.
type BBox struct {
	MinX float64 `json:"minX"`
	MaxX float64 `json:"maxX"`
	MinY float64 `json:"minY"`
	MaxY float64 `json:"maxY"`
}

// Centroid returns the midpoint of the box as (lat, lng).
func (b BBox) Centroid() (lat, lng float64) {
	return (b.MinY + b.MaxY) / 2, (b.MinX + b.MaxX) / 2
}

// Irregularity is one congestion event from the feed. SourceURL and
// PartnerID are not part of the payload; the ingestor stamps them from the
// feed source the snapshot came from.
type Irregularity struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	SubType      string  `json:"subType"`
	LengthMeters float64 `json:"length"`
	JamLevel     int     `json:"jamLevel"`
	BBox         *BBox   `json:"bbox"`
	FromName     string  `json:"fromName"`
	ToName       string  `json:"toName"`
	SpeedKMH     float64 `json:"speedKMH"`
	UpdateMillis int64   `json:"updateMillis"`

	SourceURL string    `json:"-"`
	PartnerID int       `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// Validate reports whether the row carries the fields the pipeline and the
// alert identity require.
func (ir Irregularity) Validate() error {
	if ir.ID == "" {
		return ErrMissingID
	}
	if ir.BBox == nil {
		return ErrMissingBBox
	}
	return nil
}

// UpdateTime converts the feed's millisecond timestamp; a zero value falls
// back to the given observation time.
func (ir Irregularity) UpdateTime(observed time.Time) time.Time {
	if ir.UpdateMillis <= 0 {
		return observed
	}
	return time.UnixMilli(ir.UpdateMillis).UTC()
}

// Route is one monitored route from the feed.
type Route struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	ETASeconds   int    `json:"etaSeconds"`
	UpdateMillis int64  `json:"updateMillis"`

	SourceURL string `json:"-"`
	PartnerID int    `json:"-"`
}

// Validate reports whether the route row is usable.
func (r Route) Validate() error {
	if r.ID == "" {
		return ErrMissingID
	}
	return nil
}

// UserJam is a user's subscription to a jam, re-observed on every cycle.
type UserJam struct {
	UserID int64  `json:"userId"`
	JamID  string `json:"jamId"`

	SourceURL string `json:"-"`
	PartnerID int    `json:"-"`
}

// Snapshot is one full feed pull.
type Snapshot struct {
	Irregularities []Irregularity `json:"irregularities"`
	Routes         []Route        `json:"routes"`
	UserJams       []UserJam      `json:"userJams"`
}

// Stamp records the feed source on every row of the snapshot.
func (s *Snapshot) Stamp(sourceURL string, partnerID int) {
	for i := range s.Irregularities {
		s.Irregularities[i].SourceURL = sourceURL
		s.Irregularities[i].PartnerID = partnerID
	}
	for i := range s.Routes {
		s.Routes[i].SourceURL = sourceURL
		s.Routes[i].PartnerID = partnerID
	}
	for i := range s.UserJams {
		s.UserJams[i].SourceURL = sourceURL
		s.UserJams[i].PartnerID = partnerID
	}
}
