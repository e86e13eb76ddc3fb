package googlefit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/albapepper/vitalsync/internal/provider"
)

const dayBucket = 24 * time.Hour

// Sleep stage value for "awake" within a sleep session.
const sleepStageAwake = 1

// FetchHistory aggregates the member's data into one reading per calendar day
// for the trailing period. The result always has period.Days() entries; a day
// without samples for a metric carries zero for it.
//
// Steps, heart rate and sleep must all succeed. Blood pressure and oxygen
// saturation are optional: a failure is logged and leaves their columns zero.
// On error the caller decides whether to fall back to a synthetic series.
func (c *Client) FetchHistory(ctx context.Context, memberID string, period provider.Period) (provider.Series, error) {
	accessToken, err := c.tokens.AccessToken(ctx, memberID)
	if err != nil {
		return provider.Series{}, fmt.Errorf("access token for %s: %w", memberID, err)
	}

	now := c.now()
	starts := provider.DayStarts(now, period.Days())
	days := make([]provider.DayReading, len(starts))
	for i, d := range starts {
		days[i].Date = d
	}
	idx := dayIndexer(starts)
	windowStart := starts[0]

	fetch := func(dataType string) ([]point, error) {
		resp, err := c.aggregate(ctx, accessToken, dataType, windowStart, now, dayBucket)
		if err != nil {
			return nil, err
		}
		var pts []point
		for _, b := range resp.Bucket {
			pts = append(pts, b.points()...)
		}
		return pts, nil
	}

	// Steps: summed per day.
	pts, err := fetch(TypeSteps)
	if err != nil {
		return provider.Series{}, fmt.Errorf("history steps for %s: %w", memberID, err)
	}
	for _, p := range pts {
		if i, ok := idx(p.end()); ok {
			if v, has := firstInt(p.Value); has {
				days[i].Steps += v
			}
		}
	}

	// Heart rate: averaged per day.
	pts, err = fetch(TypeHeartRate)
	if err != nil {
		return provider.Series{}, fmt.Errorf("history heart rate for %s: %w", memberID, err)
	}
	hrSum := make([]float64, len(days))
	hrN := make([]int, len(days))
	for _, p := range pts {
		if i, ok := idx(p.end()); ok {
			if v, has := provider.ExtractValue(p.Value, 0); has && v > 0 {
				hrSum[i] += v
				hrN[i]++
			}
		}
	}
	for i := range days {
		if hrN[i] > 0 {
			days[i].HeartRate = round1(hrSum[i] / float64(hrN[i]))
		}
	}

	// Sleep: segment durations summed per day, attributed to the day the
	// segment ends in.
	pts, err = fetch(TypeSleep)
	if err != nil {
		return provider.Series{}, fmt.Errorf("history sleep for %s: %w", memberID, err)
	}
	sleepMs := make([]int64, len(days))
	for _, p := range pts {
		if stage, has := firstInt(p.Value); has && stage == sleepStageAwake {
			continue
		}
		if i, ok := idx(p.end()); ok {
			if d := p.end().Sub(p.start()); d > 0 {
				sleepMs[i] += d.Milliseconds()
			}
		}
	}
	for i := range days {
		days[i].SleepHours = round1(float64(sleepMs[i]) / float64(time.Hour.Milliseconds()))
	}

	// Blood pressure and oxygen: the last sample of each day wins.
	if pts, err := fetch(TypeBloodPressure); err != nil {
		c.logger.Warn("History metric unavailable", "member_id", memberID, "metric", "blood_pressure", "error", err)
	} else {
		for i, p := range lastPerDay(pts, idx) {
			sys, dia := bloodPressure(p.Value)
			days[i].Systolic = nonNegative(sys)
			days[i].Diastolic = nonNegative(dia)
		}
	}
	if pts, err := fetch(TypeOxygen); err != nil {
		c.logger.Warn("History metric unavailable", "member_id", memberID, "metric", "oxygen_saturation", "error", err)
	} else {
		for i, p := range lastPerDay(pts, idx) {
			v, _ := provider.ExtractValue(p.Value, 0)
			days[i].OxygenSaturation = nonNegative(v)
		}
	}

	return provider.Series{
		MemberID: memberID,
		Period:   period,
		Source:   provider.SourceProvider,
		Days:     days,
	}, nil
}

// dayIndexer maps a timestamp to its position in starts, by local calendar
// date. Timestamps outside the window report ok=false.
func dayIndexer(starts []time.Time) func(time.Time) (int, bool) {
	pos := make(map[string]int, len(starts))
	loc := time.Local
	if len(starts) > 0 {
		loc = starts[0].Location()
	}
	for i, d := range starts {
		pos[d.Format(time.DateOnly)] = i
	}
	return func(t time.Time) (int, bool) {
		i, ok := pos[t.In(loc).Format(time.DateOnly)]
		return i, ok
	}
}

// lastPerDay keeps the chronologically last point of each day.
func lastPerDay(pts []point, idx func(time.Time) (int, bool)) map[int]point {
	out := make(map[int]point)
	for _, p := range pts {
		i, ok := idx(p.end())
		if !ok {
			continue
		}
		if cur, seen := out[i]; !seen || p.EndTimeNanos >= cur.EndTimeNanos {
			out[i] = p
		}
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
