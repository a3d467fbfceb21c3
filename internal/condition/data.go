package condition

import (
	"strconv"
	"time"
)

// MetricKind distinguishes integer counters from float measurements.
// Values of different kinds are never compared with each other.
type MetricKind uint8

const (
	KindInt MetricKind = iota + 1
	KindFloat
)

func (k MetricKind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	default:
		return "invalid"
	}
}

// Metric is a typed numeric value: a metric reading or a threshold constant.
type Metric struct {
	Kind  MetricKind
	int   int64
	float float64
}

// Int returns an integer metric.
func Int(v int64) Metric { return Metric{Kind: KindInt, int: v} }

// Float returns a float metric.
func Float(v float64) Metric { return Metric{Kind: KindFloat, float: v} }

// IntValue returns the integer value and whether the metric is an integer.
func (m Metric) IntValue() (int64, bool) { return m.int, m.Kind == KindInt }

// FloatValue returns the float value and whether the metric is a float.
func (m Metric) FloatValue() (float64, bool) { return m.float, m.Kind == KindFloat }

func (m Metric) String() string {
	switch m.Kind {
	case KindInt:
		return strconv.FormatInt(m.int, 10)
	case KindFloat:
		return strconv.FormatFloat(m.float, 'g', -1, 64)
	default:
		return "<invalid>"
	}
}

// UserMetrics holds the named counters of one user (postsPublished, placesOwned, ...).
type UserMetrics map[string]Metric

// UserProfileData holds the profile fields referenced by FLAG and DATE_WINDOW leaves.
// A key present in Dates with a nil value is a known field that is unset.
type UserProfileData struct {
	Flags map[string]bool
	Dates map[string]*time.Time
}

// UserContextData is the read-only, per-evaluation snapshot of a user.
type UserContextData struct {
	UserID  string
	Metrics UserMetrics
	Profile UserProfileData
}

// NewUserContextData returns an empty snapshot with initialised maps.
func NewUserContextData(userID string) *UserContextData {
	return &UserContextData{
		UserID:  userID,
		Metrics: UserMetrics{},
		Profile: UserProfileData{
			Flags: map[string]bool{},
			Dates: map[string]*time.Time{},
		},
	}
}

// Input aggregates everything an evaluation needs.
type Input struct {
	// Data is the user snapshot.
	Data *UserContextData

	// Now is the reference time for DATE_WINDOW leaves (the event's occurrence time).
	Now time.Time
}
