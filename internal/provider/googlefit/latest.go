package googlefit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/albapepper/vitalsync/internal/provider"
)

// pointBucket is the live-fetch granularity for point-sample metrics.
const pointBucket = 15 * time.Minute

// FetchLatest returns today's most recent reading for the member.
//
// It fails fast, without touching the API, when no valid access token exists.
// Each metric is queried independently; a failed query leaves only that
// metric unknown. An error is returned only when every query failed, or
// ErrNoData when all succeeded but nothing had a sample. Sleep is never
// populated here.
func (c *Client) FetchLatest(ctx context.Context, memberID string) (provider.Reading, error) {
	accessToken, err := c.tokens.AccessToken(ctx, memberID)
	if err != nil {
		return provider.Reading{}, fmt.Errorf("access token for %s: %w", memberID, err)
	}

	now := c.now()
	dayStart := startOfDay(now)
	var r provider.Reading

	type fetch struct {
		metric string
		run    func() error
	}
	fetches := []fetch{
		{"heart_rate", func() error {
			p, err := c.latestPoint(ctx, accessToken, TypeHeartRate, dayStart, now)
			if err != nil || p == nil {
				return err
			}
			if v, ok := provider.ExtractValue(p.Value, 0); ok {
				if r.HeartRate = provider.Physio(v); r.HeartRate != nil {
					r.HeartRateAt = timePtr(p.end())
				}
			}
			return nil
		}},
		{"steps", func() error {
			resp, err := c.aggregate(ctx, accessToken, TypeSteps, dayStart, now, now.Sub(dayStart))
			if err != nil {
				return err
			}
			total, at, ok := sumSteps(resp.Bucket)
			if ok {
				r.Steps = &total
				r.StepsAt = timePtr(at)
			}
			return nil
		}},
		{"blood_pressure", func() error {
			p, err := c.latestPoint(ctx, accessToken, TypeBloodPressure, dayStart, now)
			if err != nil || p == nil {
				return err
			}
			sys, dia := bloodPressure(p.Value)
			r.Systolic = provider.Physio(sys)
			r.Diastolic = provider.Physio(dia)
			if r.Systolic != nil || r.Diastolic != nil {
				r.BloodPressureAt = timePtr(p.end())
			}
			return nil
		}},
		{"oxygen_saturation", func() error {
			p, err := c.latestPoint(ctx, accessToken, TypeOxygen, dayStart, now)
			if err != nil || p == nil {
				return err
			}
			if v, ok := provider.ExtractValue(p.Value, 0); ok {
				if r.OxygenSaturation = provider.Physio(v); r.OxygenSaturation != nil {
					r.OxygenSaturationAt = timePtr(p.end())
				}
			}
			return nil
		}},
	}

	var errs []error
	for _, f := range fetches {
		if err := f.run(); err != nil {
			if ctx.Err() != nil {
				return provider.Reading{}, ctx.Err()
			}
			c.logger.Warn("Metric fetch failed", "member_id", memberID, "metric", f.metric, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", f.metric, err))
		}
	}
	if len(errs) == len(fetches) {
		return provider.Reading{}, fmt.Errorf("fetch latest for %s: %w", memberID, errors.Join(errs...))
	}

	r.UpdatedAt = c.now()
	if r.Empty() {
		return r, ErrNoData
	}
	return r, nil
}

// latestPoint returns the most recent point of a point-sample metric: the
// newest populated bucket scanning back from the window end, then the newest
// point inside it. Earlier points in that bucket are superseded. It returns
// nil when no bucket has a point.
func (c *Client) latestPoint(ctx context.Context, accessToken, dataType string, start, end time.Time) (*point, error) {
	resp, err := c.aggregate(ctx, accessToken, dataType, start, end, pointBucket)
	if err != nil {
		return nil, err
	}
	for i := len(resp.Bucket) - 1; i >= 0; i-- {
		pts := resp.Bucket[i].points()
		if len(pts) == 0 {
			continue
		}
		latest := pts[0]
		for _, p := range pts[1:] {
			if p.EndTimeNanos >= latest.EndTimeNanos {
				latest = p
			}
		}
		return &latest, nil
	}
	return nil, nil
}

// sumSteps totals every step sample across the buckets. ok is false when no
// sample exists, so a day with no data stays distinct from a day of zero steps.
func sumSteps(buckets []bucket) (total int64, at time.Time, ok bool) {
	for _, b := range buckets {
		for _, p := range b.points() {
			v, has := firstInt(p.Value)
			if !has {
				continue
			}
			total += v
			ok = true
			if e := p.end(); e.After(at) {
				at = e
			}
		}
	}
	return total, at, ok
}

// bloodPressure returns systolic and diastolic from a blood pressure point.
// Aggregated summaries carry six values (avg, max, min for each); raw samples
// carry systolic and diastolic first.
func bloodPressure(values []provider.Value) (systolic, diastolic float64) {
	diaIdx := 1
	if len(values) >= 6 {
		diaIdx = 3
	}
	systolic, _ = provider.ExtractValue(values, 0)
	diastolic, _ = provider.ExtractValue(values, diaIdx)
	return systolic, diastolic
}

func firstInt(values []provider.Value) (int64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	return values[0].Int()
}

func timePtr(t time.Time) *time.Time { return &t }
