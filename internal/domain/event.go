package domain

import (
	"math"
	"time"
)

// Variable is a measured oceanographic quantity.
type Variable string

const (
	VariableTemperature Variable = "temperature"
	VariableSalinity    Variable = "salinity"
	VariablePressure    Variable = "pressure"
)

// GeoPoint is a WGS-84 latitude/longitude pair.
type GeoPoint struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Valid reports whether the point lies within [-90,90] x [-180,180].
func (p GeoPoint) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// TimeWindow is a month-bounded query window. Start <= End always holds.
type TimeWindow struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Start time.Time  `json:"start"`
	End   time.Time  `json:"end"`
}

// ProfileLocation is one dataset index record: a float position with the time
// range over which it is valid. Many locations may share a SensorID.
type ProfileLocation struct {
	SensorID  string
	FileRef   string
	Centroid  GeoPoint
	ValidFrom time.Time
	ValidTo   time.Time
}

// ProfileRecord is a single vertical cast returned by the profile store.
type ProfileRecord struct {
	ProfileID int64
	SensorID  string
	Location  GeoPoint
	DepthMin  *float64
	DepthMax  *float64
	FileRef   string
	Timestamp *time.Time
}

// Stat holds the min/max/avg aggregate of one variable. Nil fields mean no
// readings were recorded.
type Stat struct {
	Min *float64
	Max *float64
	Avg *float64
}

// MeasurementStats holds the per-profile aggregates, aligned 1:1 by position
// with the ProfileRecord slice it was fetched with.
type MeasurementStats struct {
	ProfileID   int64
	Pressure    Stat
	Temperature Stat
	Salinity    Stat
}

// For returns the aggregate of the given variable.
func (s MeasurementStats) For(v Variable) Stat {
	switch v {
	case VariableTemperature:
		return s.Temperature
	case VariableSalinity:
		return s.Salinity
	case VariablePressure:
		return s.Pressure
	default:
		return Stat{}
	}
}

// LocationSource records how a query's point was obtained.
type LocationSource string

const (
	LocationFromCoordinates LocationSource = "coordinates"
	LocationFromGeocoder    LocationSource = "geocoded"
	LocationFromSession     LocationSource = "session"
	LocationUnresolved      LocationSource = "unresolved"
)

// QueryEvent is the audit record emitted once per answered query.
type QueryEvent struct {
	SessionID      string         `json:"session_id"`
	Text           string         `json:"text"`
	AnswerKind     string         `json:"answer_kind"`
	Window         *TimeWindow    `json:"window,omitempty"`
	Point          *GeoPoint      `json:"point,omitempty"`
	LocationSource LocationSource `json:"location_source"`
	Candidate      string         `json:"candidate,omitempty"`
	SensorIDs      []string       `json:"sensor_ids,omitempty"`
	ProfileCount   int            `json:"profile_count"`
	CacheHit       bool           `json:"cache_hit"`
	ResolvedAt     time.Time      `json:"resolved_at"`
}

// NewQueryEvent stamps an event with the package clock.
func NewQueryEvent(sessionID, text string) QueryEvent {
	return QueryEvent{
		SessionID:  sessionID,
		Text:       text,
		ResolvedAt: clock.Now().UTC(),
	}
}

// finite returns the value behind p when it is present and finite.
func finite(p *float64) (float64, bool) {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0, false
	}
	return *p, true
}
