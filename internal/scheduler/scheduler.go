// Package scheduler periodically refreshes the trailing fetch window in
// watch mode.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/gridwatch/psefetch/internal/models"
)

// RunFunc executes one complete fetch for a window.
type RunFunc func(ctx context.Context, window models.Window) error

// Refresher re-fetches the trailing lookback window on a cron schedule.
// Fetches run one at a time; an overrunning refresh is bounded by its
// own timeout rather than piling up.
type Refresher struct {
	ctx      context.Context
	run      RunFunc
	spec     string
	lookback time.Duration
	logger   *logrus.Logger
	cron     *cron.Cron
}

func New(ctx context.Context, run RunFunc, spec string, lookback time.Duration, logger *logrus.Logger) *Refresher {
	return &Refresher{
		ctx:      ctx,
		run:      run,
		spec:     spec,
		lookback: lookback,
		logger:   logger,
		cron:     cron.New(),
	}
}

// Start registers the refresh job and starts the cron loop.
func (r *Refresher) Start() error {
	_, err := r.cron.AddFunc(r.spec, r.refresh)
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(r.ctx, 10*time.Minute)
	defer cancel()

	end := time.Now().UTC().Truncate(15 * time.Minute)
	window := models.Window{Start: end.Add(-r.lookback), End: end}

	if err := r.run(ctx, window); err != nil {
		r.logger.WithError(err).Error("Scheduled refresh failed")
	}
}

// Stop halts the cron loop; a refresh already running is not interrupted.
func (r *Refresher) Stop() {
	r.cron.Stop()
}
