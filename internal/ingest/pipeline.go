// Package ingest implements the report pipeline: authenticate the bearer
// token, persist the sample with the liveness update, then evaluate alerts.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/alerting"
	"github.com/hostpulse/hostpulse/internal/models"
)

// TokenResolver maps a bearer token to its host ID, returning
// models.ErrHostNotFound for unregistered tokens.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (uuid.UUID, error)
}

// Store is the persistence surface of the pipeline.
//
// StoreSample must append the sample and apply the liveness update (online +
// last seen) atomically: both happen or neither does. AlertUnit must run fn
// against alert storage inside a scope serialized per host, so two reports
// for the same host can never interleave their read-modify-write; reports
// for different hosts must not contend.
type Store interface {
	StoreSample(ctx context.Context, sample models.Sample) error
	AlertUnit(ctx context.Context, hostID uuid.UUID, fn func(alerting.Store) error) error
}

// DeadLetter captures accepted reports whose persistence failed. Optional.
type DeadLetter interface {
	QueueFailedReport(ctx context.Context, hostID uuid.UUID, stage string, payload []byte) error
}

type Pipeline struct {
	resolver  TokenResolver
	store     Store
	evaluator *alerting.Evaluator
	dlq       DeadLetter
	log       *slog.Logger
	now       func() time.Time
}

func NewPipeline(resolver TokenResolver, store Store, evaluator *alerting.Evaluator, dlq DeadLetter, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		resolver:  resolver,
		store:     store,
		evaluator: evaluator,
		dlq:       dlq,
		log:       logger,
		now:       time.Now,
	}
}

// Process runs one report through the pipeline. Validation failures return
// before any side effect. After the sample transaction commits, an alert
// failure is surfaced as a PersistenceError but cannot un-store the sample;
// the agent's retry then produces a duplicate sample, which is tolerated.
func (p *Pipeline) Process(ctx context.Context, payload ReportPayload) error {
	token := strings.TrimSpace(payload.Token)
	if token == "" {
		return ErrMissingToken
	}

	hostID, err := p.resolver.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, models.ErrHostNotFound) {
			return ErrUnknownToken
		}
		return &PersistenceError{Stage: StageLookup, Err: err}
	}

	if err := payload.Validate(); err != nil {
		return err
	}

	capturedAt := p.now().UTC()
	sample := payload.Sample(hostID, capturedAt)

	if err := p.store.StoreSample(ctx, sample); err != nil {
		p.fail(ctx, hostID, StageSample, payload, err)
		return &PersistenceError{Stage: StageSample, HostID: hostID, Err: err}
	}

	err = p.store.AlertUnit(ctx, hostID, func(alerts alerting.Store) error {
		return p.evaluator.Evaluate(ctx, alerts, hostID, sample)
	})
	if err != nil {
		p.fail(ctx, hostID, StageAlert, payload, err)
		return &PersistenceError{Stage: StageAlert, HostID: hostID, Err: err}
	}

	return nil
}

func (p *Pipeline) fail(ctx context.Context, hostID uuid.UUID, stage string, payload ReportPayload, err error) {
	p.log.Error("report persistence failed",
		"host_id", hostID,
		"stage", stage,
		"err", err,
	)
	if p.dlq == nil {
		return
	}
	raw, merr := json.Marshal(payload)
	if merr != nil {
		return
	}
	if qerr := p.dlq.QueueFailedReport(ctx, hostID, stage, raw); qerr != nil {
		p.log.Warn("failed to queue report to DLQ", "host_id", hostID, "err", qerr)
	}
}
