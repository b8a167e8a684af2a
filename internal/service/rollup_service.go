package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/radio-slot-reservation/internal/metrics"
	"github.com/iliyamo/radio-slot-reservation/internal/rollup"
	"github.com/iliyamo/radio-slot-reservation/internal/schedule"
)

// MaxRollupDays caps the inclusive length of a rollup range.  Every row
// carries one column per date, so the range bounds the response size.
const MaxRollupDays = 3*366 + 1

// Rollupper computes plan rollups.  *rollup.Engine satisfies it.
type Rollupper interface {
	Rollup(ctx context.Context, planTitle string, start, end time.Time) (*rollup.Result, error)
}

// RollupService validates rollup requests and records their cost.
type RollupService struct {
	engine  Rollupper
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func NewRollupService(engine Rollupper, m *metrics.Metrics, log logrus.FieldLogger) *RollupService {
	return &RollupService{engine: engine, metrics: m, log: log}
}

// Rollup aggregates the confirmed reservations of planTitle over
// [start, end].  The bounds may be given in either order; ranges longer
// than MaxRollupDays are rejected.
func (s *RollupService) Rollup(ctx context.Context, planTitle string, start, end time.Time) (*rollup.Result, error) {
	planTitle = strings.TrimSpace(planTitle)
	if planTitle == "" {
		return nil, invalid("plan_title", "required")
	}
	if start.IsZero() || end.IsZero() {
		return nil, invalid("range", "start and end dates are required")
	}
	if rangeDays(start, end) > MaxRollupDays {
		return nil, invalid("range", fmt.Sprintf("must not exceed %d days", MaxRollupDays))
	}
	begin := time.Now()
	res, err := s.engine.Rollup(ctx, planTitle, start, end)
	if err != nil {
		s.log.WithError(err).WithField("plan_title", planTitle).Error("rollup failed")
		return nil, err
	}
	s.metrics.ObserveRollup(time.Since(begin), res.Stats.Contributing, res.Stats.Cells)
	return res, nil
}

// rangeDays counts the dates in the inclusive range without listing them.
// Spans too long for a time.Duration saturate and still exceed the cap.
func rangeDays(start, end time.Time) int64 {
	rng := schedule.NewDateSpan(start, end)
	return int64(rng.End.Sub(rng.Start)/(24*time.Hour)) + 1
}
