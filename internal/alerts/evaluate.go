// Package alerts evaluates readings against fixed safety thresholds and keeps
// the ledger that limits each violation to a single notification.
package alerts

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/albapepper/vitalsync/internal/provider"
)

// Kind is the direction of a threshold breach.
type Kind string

const (
	ExceedsHigh   Kind = "exceeds-high"
	FallsBelowLow Kind = "falls-below-low"
)

// Metric names used in violations.
const (
	MetricHeartRate        = "heart_rate"
	MetricSystolic         = "blood_pressure_systolic"
	MetricDiastolic        = "blood_pressure_diastolic"
	MetricOxygenSaturation = "oxygen_saturation"
)

// Fixed thresholds.
const (
	MaxHeartRate        = 160.0
	MaxSystolic         = 140.0
	MaxDiastolic        = 90.0
	MinOxygenSaturation = 95.0
)

// Violation is an immutable record of one metric breaching its threshold.
type Violation struct {
	ID         string    `json:"id"`
	MemberID   string    `json:"member_id"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	Threshold  float64   `json:"threshold"`
	Unit       string    `json:"unit"`
	Kind       Kind      `json:"kind"`
	CapturedAt time.Time `json:"captured_at"`
	CreatedAt  time.Time `json:"created_at"`
}

// Key identifies the underlying observation independent of which evaluation
// pass produced the violation.
func (v Violation) Key() string {
	return fmt.Sprintf("%s|%s|%d", v.MemberID, v.Metric, v.CapturedAt.UnixMilli())
}

type rule struct {
	metric    string
	unit      string
	kind      Kind
	threshold float64
	value     func(provider.Reading) (*float64, *time.Time)
}

var rules = []rule{
	{MetricHeartRate, "bpm", ExceedsHigh, MaxHeartRate,
		func(r provider.Reading) (*float64, *time.Time) { return r.HeartRate, r.HeartRateAt }},
	{MetricSystolic, "mmHg", ExceedsHigh, MaxSystolic,
		func(r provider.Reading) (*float64, *time.Time) { return r.Systolic, r.BloodPressureAt }},
	{MetricDiastolic, "mmHg", ExceedsHigh, MaxDiastolic,
		func(r provider.Reading) (*float64, *time.Time) { return r.Diastolic, r.BloodPressureAt }},
	{MetricOxygenSaturation, "%", FallsBelowLow, MinOxygenSaturation,
		func(r provider.Reading) (*float64, *time.Time) { return r.OxygenSaturation, r.OxygenSaturationAt }},
}

func (rl rule) breached(v float64) bool {
	if rl.kind == FallsBelowLow {
		return v < rl.threshold
	}
	return v > rl.threshold
}

// Evaluate returns one violation per metric that breaches its threshold.
// Absent metrics, and zero values, are never evaluated.
func Evaluate(memberID string, r provider.Reading, now time.Time) []Violation {
	var out []Violation
	for _, rl := range rules {
		v, at := rl.value(r)
		if v == nil || *v <= 0 || !rl.breached(*v) {
			continue
		}
		captured := r.UpdatedAt
		if at != nil {
			captured = *at
		}
		out = append(out, Violation{
			ID:         uuid.NewString(),
			MemberID:   memberID,
			Metric:     rl.metric,
			Value:      *v,
			Threshold:  rl.threshold,
			Unit:       rl.unit,
			Kind:       rl.kind,
			CapturedAt: captured,
			CreatedAt:  now,
		})
	}
	return out
}
