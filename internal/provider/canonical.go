// Package provider defines canonical data types that fitness providers
// normalize into. These structs are the contract between provider clients and
// the scheduler. Providers output these and stores persist them; the threshold
// evaluator reads them.
//
// A nil field means "no data this cycle". Zero is never a valid physiological
// value for a point-sample metric, so providers must not emit one.
package provider

import (
	"fmt"
	"time"
)

// Reading is a point-in-time snapshot of a member's vitals.
type Reading struct {
	HeartRate   *float64   `json:"heart_rate,omitempty"`
	HeartRateAt *time.Time `json:"heart_rate_at,omitempty"`

	Steps   *int64     `json:"steps,omitempty"`
	StepsAt *time.Time `json:"steps_at,omitempty"`

	SleepHours *float64 `json:"sleep_hours,omitempty"`

	Systolic        *float64   `json:"blood_pressure_systolic,omitempty"`
	Diastolic       *float64   `json:"blood_pressure_diastolic,omitempty"`
	BloodPressureAt *time.Time `json:"blood_pressure_at,omitempty"`

	OxygenSaturation   *float64   `json:"oxygen_saturation,omitempty"`
	OxygenSaturationAt *time.Time `json:"oxygen_saturation_at,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Empty reports whether no metric carries data.
func (r Reading) Empty() bool {
	return r.HeartRate == nil && r.Steps == nil && r.SleepHours == nil &&
		r.Systolic == nil && r.Diastolic == nil && r.OxygenSaturation == nil
}

// Physio returns a pointer to v, or nil when v is not a usable physiological
// value (zero or negative).
func Physio(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}

// --------------------------------------------------------------------------
// Historical series
// --------------------------------------------------------------------------

// Period selects a trailing window for historical aggregation.
type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// ParsePeriod validates a period name. Empty defaults to week.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "":
		return PeriodWeek, nil
	case PeriodWeek, PeriodMonth, PeriodYear:
		return Period(s), nil
	}
	return "", fmt.Errorf("unknown period %q (want week, month or year)", s)
}

// Days returns the number of day buckets in the period.
func (p Period) Days() int {
	switch p {
	case PeriodMonth:
		return 30
	case PeriodYear:
		return 365
	default:
		return 7
	}
}

// Series sources.
const (
	SourceProvider  = "provider"
	SourceSynthetic = "synthetic"
)

// DayReading is one calendar day of aggregated values. Zero means no samples.
type DayReading struct {
	Date             time.Time `json:"date"`
	HeartRate        float64   `json:"heart_rate"`
	Steps            int64     `json:"steps"`
	SleepHours       float64   `json:"sleep_hours"`
	Systolic         float64   `json:"blood_pressure_systolic"`
	Diastolic        float64   `json:"blood_pressure_diastolic"`
	OxygenSaturation float64   `json:"oxygen_saturation"`
}

// Series is an ordered-by-date run of day readings aligned to a period.
type Series struct {
	MemberID string       `json:"member_id"`
	Period   Period       `json:"period"`
	Source   string       `json:"source"`
	Days     []DayReading `json:"days"`
}

// Columns is the chart-friendly shape of a series: one array per metric.
type Columns struct {
	Period                 Period    `json:"period"`
	Source                 string    `json:"source"`
	Dates                  []string  `json:"dates"`
	HeartRate              []float64 `json:"heartRate"`
	Steps                  []int64   `json:"steps"`
	Sleep                  []float64 `json:"sleep"`
	BloodPressureSystolic  []float64 `json:"bloodPressureSystolic"`
	BloodPressureDiastolic []float64 `json:"bloodPressureDiastolic"`
	OxygenSaturation       []float64 `json:"oxygenSaturation"`
	HealthScore            int       `json:"healthScore"`
}

// Columns pivots the series into per-metric arrays.
func (s Series) Columns() Columns {
	n := len(s.Days)
	c := Columns{
		Period:                 s.Period,
		Source:                 s.Source,
		Dates:                  make([]string, n),
		HeartRate:              make([]float64, n),
		Steps:                  make([]int64, n),
		Sleep:                  make([]float64, n),
		BloodPressureSystolic:  make([]float64, n),
		BloodPressureDiastolic: make([]float64, n),
		OxygenSaturation:       make([]float64, n),
		HealthScore:            s.HealthScore(),
	}
	for i, d := range s.Days {
		c.Dates[i] = d.Date.Format("2006-01-02")
		c.HeartRate[i] = d.HeartRate
		c.Steps[i] = d.Steps
		c.Sleep[i] = d.SleepHours
		c.BloodPressureSystolic[i] = d.Systolic
		c.BloodPressureDiastolic[i] = d.Diastolic
		c.OxygenSaturation[i] = d.OxygenSaturation
	}
	return c
}

// HealthScore rates the series 0 to 100 from steps (40), sleep (35) and heart
// rate (25). Days without heart-rate samples are ignored for that factor.
func (s Series) HealthScore() int {
	if len(s.Days) == 0 {
		return 0
	}

	var steps, sleep, hr float64
	hrDays := 0
	for _, d := range s.Days {
		steps += float64(d.Steps)
		sleep += d.SleepHours
		if d.HeartRate > 0 {
			hr += d.HeartRate
			hrDays++
		}
	}
	n := float64(len(s.Days))

	score := min(40, steps/n/10000*40)

	switch avg := sleep / n; {
	case avg >= 7 && avg <= 9:
		score += 35
	case avg >= 6:
		score += 25
	default:
		score += 10
	}

	if hrDays > 0 {
		switch avg := hr / float64(hrDays); {
		case avg >= 60 && avg <= 100:
			score += 25
		case avg <= 110:
			score += 20
		default:
			score += 10
		}
	} else {
		score += 10
	}

	return int(score + 0.5)
}
