// Package alerting decides when a sample opens or resolves threshold alerts.
//
// Each (host, metric) pair is a two-state machine: no alert, or one active
// alert. A value strictly above the threshold opens an alert if none is
// active; a value at or below it resolves the active alert if one exists.
// Repeated breaches while an alert is active are suppressed so operators are
// paged once per incident, not once per sampling interval.
package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

// Store is the alert persistence the evaluator runs against. Callers must
// invoke Evaluate inside a scope that serializes writes per host (the
// Postgres store hands the evaluator a transaction holding the host row
// lock). ActiveAlerts returns rows ordered oldest-first.
type Store interface {
	ActiveAlerts(ctx context.Context, hostID uuid.UUID, metric models.Metric) ([]models.Alert, error)
	OpenAlert(ctx context.Context, hostID uuid.UUID, metric models.Metric, threshold float64, openedAt time.Time) error
	ResolveAlert(ctx context.Context, alertID int64, resolvedAt time.Time) error
}

// Thresholds are the per-metric breach limits, in percent. Breaching is
// strict: a value exactly at the threshold does not open an alert.
type Thresholds struct {
	CPU  float64
	RAM  float64
	Disk float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{CPU: 90, RAM: 90, Disk: 90}
}

type Evaluator struct {
	thresholds Thresholds
	log        *slog.Logger
	now        func() time.Time
}

func NewEvaluator(thresholds Thresholds, logger *slog.Logger) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
		log:        logger,
		now:        time.Now,
	}
}

// Evaluate runs the state machine for every metric of one sample, in the
// order cpu, ram, disk. Metrics are independent: a single sample may open
// an alert for one metric and resolve another.
func (e *Evaluator) Evaluate(ctx context.Context, store Store, hostID uuid.UUID, sample models.Sample) error {
	checks := []struct {
		metric    models.Metric
		value     float64
		threshold float64
	}{
		{models.MetricCPU, sample.CPUPct, e.thresholds.CPU},
		{models.MetricRAM, sample.RAMPct, e.thresholds.RAM},
		{models.MetricDisk, sample.DiskPct, e.thresholds.Disk},
	}

	now := e.now().UTC()
	for _, c := range checks {
		if err := e.evaluateMetric(ctx, store, hostID, c.metric, c.value, c.threshold, now); err != nil {
			return fmt.Errorf("evaluate %s: %w", c.metric, err)
		}
	}
	return nil
}

func (e *Evaluator) evaluateMetric(ctx context.Context, store Store, hostID uuid.UUID, metric models.Metric, value, threshold float64, now time.Time) error {
	active, err := store.ActiveAlerts(ctx, hostID, metric)
	if err != nil {
		return err
	}

	// More than one active row for a pair means the per-host serialization
	// was bypassed somewhere. Self-heal by keeping the oldest episode and
	// resolving the duplicates; ingestion must not crash over it.
	if len(active) > 1 {
		e.log.Error("alert invariant violated: multiple active alerts for host metric",
			"host_id", hostID,
			"metric", metric,
			"count", len(active),
		)
		for _, dup := range active[1:] {
			if err := store.ResolveAlert(ctx, dup.ID, now); err != nil {
				return err
			}
		}
		active = active[:1]
	}

	breached := value > threshold

	switch {
	case breached && len(active) == 0:
		return store.OpenAlert(ctx, hostID, metric, threshold, now)
	case !breached && len(active) == 1:
		return store.ResolveAlert(ctx, active[0].ID, now)
	}

	// Breach while already active, or normal value with no alert: no-op.
	return nil
}
