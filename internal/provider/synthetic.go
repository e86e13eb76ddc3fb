package provider

import (
	"math/rand/v2"
	"time"
)

// Synthetic value ranges, [low, high).
var syntheticRanges = struct {
	heartRate, steps, sleep, systolic, diastolic, oxygen [2]int
}{
	heartRate: [2]int{60, 100},
	steps:     [2]int{2000, 10000},
	sleep:     [2]int{6, 10},
	systolic:  [2]int{100, 140},
	diastolic: [2]int{60, 90},
	oxygen:    [2]int{95, 100},
}

// SyntheticSeries generates a plausible random series for the period so the
// dashboard always has something to render. It is marked SourceSynthetic and
// must never be persisted or evaluated for alerts. rng may be nil.
func SyntheticSeries(memberID string, period Period, now time.Time, rng *rand.Rand) Series {
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(now.UnixNano()), 0x5eed))
	}
	pick := func(r [2]int) int { return r[0] + rng.IntN(r[1]-r[0]) }

	days := DayStarts(now, period.Days())
	out := Series{
		MemberID: memberID,
		Period:   period,
		Source:   SourceSynthetic,
		Days:     make([]DayReading, len(days)),
	}
	for i, d := range days {
		out.Days[i] = DayReading{
			Date:             d,
			HeartRate:        float64(pick(syntheticRanges.heartRate)),
			Steps:            int64(pick(syntheticRanges.steps)),
			SleepHours:       float64(pick(syntheticRanges.sleep)),
			Systolic:         float64(pick(syntheticRanges.systolic)),
			Diastolic:        float64(pick(syntheticRanges.diastolic)),
			OxygenSaturation: float64(pick(syntheticRanges.oxygen)),
		}
	}
	return out
}

// DayStarts returns the local midnights of the n calendar days ending with
// the day containing now, oldest first.
func DayStarts(now time.Time, n int) []time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = today.AddDate(0, 0, i-(n-1))
	}
	return out
}
