package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/alerting"
	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/store/storetest"
)

type recordingDLQ struct {
	mu      sync.Mutex
	entries []string
}

func (d *recordingDLQ) QueueFailedReport(_ context.Context, _ uuid.UUID, stage string, _ []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, stage)
	return nil
}

func numPtr(v float64) *Number {
	n := Number(v)
	return &n
}

func testPayload(token string, cpu float64) ReportPayload {
	return ReportPayload{
		Token:     token,
		CPUUsage:  numPtr(cpu),
		RAMUsage:  numPtr(40),
		RAMTotal:  numPtr(16384),
		RAMUsed:   numPtr(6553),
		DiskUsage: numPtr(55),
		DiskTotal: numPtr(512000),
		DiskUsed:  numPtr(281600),
		NetIn:     numPtr(100),
		NetOut:    numPtr(200),
		Load:      numPtr(0.5),
		Uptime:    numPtr(3600),
	}
}

func newTestPipeline(t *testing.T) (*Pipeline, *storetest.Memory, *recordingDLQ, uuid.UUID) {
	t.Helper()
	mem := storetest.NewMemory()
	host, err := mem.CreateHost(context.Background(), uuid.New(), "web-1", nil, "tok-1")
	if err != nil {
		t.Fatalf("CreateHost: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	evaluator := alerting.NewEvaluator(alerting.DefaultThresholds(), logger)
	dlq := &recordingDLQ{}
	return NewPipeline(mem, mem, evaluator, dlq, logger), mem, dlq, host.ID
}

func TestProcessStoresSampleAndUpdatesLiveness(t *testing.T) {
	p, mem, _, hostID := newTestPipeline(t)

	if err := p.Process(context.Background(), testPayload("tok-1", 42)); err != nil {
		t.Fatalf("Process: %v", err)
	}

	samples := mem.Samples()
	if len(samples) != 1 {
		t.Fatalf("stored %d samples, want 1", len(samples))
	}
	if samples[0].HostID != hostID {
		t.Errorf("sample host = %s, want %s", samples[0].HostID, hostID)
	}
	if samples[0].CPUPct != 42 {
		t.Errorf("cpu = %v, want 42", samples[0].CPUPct)
	}

	h, _ := mem.Host(hostID)
	if h.Status != models.HostOnline {
		t.Errorf("host status = %q, want online", h.Status)
	}
	if h.LastSeenAt == nil || !h.LastSeenAt.Equal(samples[0].CapturedAt) {
		t.Errorf("last seen = %v, want %v", h.LastSeenAt, samples[0].CapturedAt)
	}
}

func TestProcessBreachThenRepeatThenRecovery(t *testing.T) {
	p, mem, _, _ := newTestPipeline(t)
	ctx := context.Background()

	// Breach opens exactly one alert.
	if err := p.Process(ctx, testPayload("tok-1", 95)); err != nil {
		t.Fatalf("Process breach: %v", err)
	}
	alerts := mem.Alerts()
	if len(alerts) != 1 || alerts[0].Status != models.AlertActive {
		t.Fatalf("after breach: alerts = %+v, want one active", alerts)
	}
	if alerts[0].Metric != models.MetricCPU || alerts[0].Threshold != 90 {
		t.Errorf("alert = %+v, want cpu metric threshold 90", alerts[0])
	}

	// A second breach is suppressed, not duplicated.
	if err := p.Process(ctx, testPayload("tok-1", 96)); err != nil {
		t.Fatalf("Process repeat breach: %v", err)
	}
	if alerts = mem.Alerts(); len(alerts) != 1 {
		t.Fatalf("after repeat breach: %d alert rows, want 1", len(alerts))
	}

	// Recovery resolves the existing row in place.
	if err := p.Process(ctx, testPayload("tok-1", 50)); err != nil {
		t.Fatalf("Process recovery: %v", err)
	}
	alerts = mem.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("after recovery: %d alert rows, want 1", len(alerts))
	}
	if alerts[0].Status != models.AlertResolved || alerts[0].ResolvedAt == nil {
		t.Errorf("after recovery: alert = %+v, want resolved with timestamp", alerts[0])
	}

	if samples := mem.Samples(); len(samples) != 3 {
		t.Errorf("stored %d samples, want 3", len(samples))
	}
}

func TestProcessMissingToken(t *testing.T) {
	p, mem, _, _ := newTestPipeline(t)

	err := p.Process(context.Background(), testPayload("   ", 42))
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("err = %v, want ErrMissingToken", err)
	}
	if len(mem.Samples()) != 0 {
		t.Error("sample stored despite missing token")
	}
}

func TestProcessUnknownTokenHasNoSideEffects(t *testing.T) {
	p, mem, dlq, hostID := newTestPipeline(t)

	err := p.Process(context.Background(), testPayload("never-issued", 95))
	if !errors.Is(err, ErrUnknownToken) {
		t.Fatalf("err = %v, want ErrUnknownToken", err)
	}

	if len(mem.Samples()) != 0 {
		t.Error("sample stored for unknown token")
	}
	if len(mem.Alerts()) != 0 {
		t.Error("alert opened for unknown token")
	}
	if h, _ := mem.Host(hostID); h.Status != models.HostOffline {
		t.Errorf("host status = %q, want offline untouched", h.Status)
	}
	if len(dlq.entries) != 0 {
		t.Error("unknown token report queued to DLQ")
	}
}

func TestProcessMalformedPayloadBeforeSideEffects(t *testing.T) {
	p, mem, _, _ := newTestPipeline(t)

	payload := testPayload("tok-1", 42)
	payload.RAMUsage = nil

	err := p.Process(context.Background(), payload)
	var malformed *MalformedPayloadError
	if !errors.As(err, &malformed) {
		t.Fatalf("err = %v, want MalformedPayloadError", err)
	}
	if len(mem.Samples()) != 0 {
		t.Error("sample stored despite malformed payload")
	}
}

func TestProcessSampleFailureQueuesDeadLetter(t *testing.T) {
	p, mem, dlq, _ := newTestPipeline(t)
	mem.SampleErr = errors.New("disk full")

	err := p.Process(context.Background(), testPayload("tok-1", 42))
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	if perr.Stage != StageSample {
		t.Errorf("stage = %q, want %q", perr.Stage, StageSample)
	}
	if len(dlq.entries) != 1 || dlq.entries[0] != StageSample {
		t.Errorf("dlq entries = %v, want one %q entry", dlq.entries, StageSample)
	}
}

func TestProcessAlertFailureKeepsCommittedSample(t *testing.T) {
	p, mem, dlq, _ := newTestPipeline(t)
	mem.AlertErr = errors.New("lock timeout")

	err := p.Process(context.Background(), testPayload("tok-1", 95))
	var perr *PersistenceError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want PersistenceError", err)
	}
	if perr.Stage != StageAlert {
		t.Errorf("stage = %q, want %q", perr.Stage, StageAlert)
	}
	if len(mem.Samples()) != 1 {
		t.Errorf("stored %d samples, want 1 (sample commit precedes alert unit)", len(mem.Samples()))
	}
	if len(dlq.entries) != 1 || dlq.entries[0] != StageAlert {
		t.Errorf("dlq entries = %v, want one %q entry", dlq.entries, StageAlert)
	}
}

func TestProcessConcurrentBreachesOpenOneAlert(t *testing.T) {
	p, mem, _, _ := newTestPipeline(t)

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Process(context.Background(), testPayload("tok-1", 97)); err != nil {
				t.Errorf("Process: %v", err)
			}
		}()
	}
	wg.Wait()

	active := 0
	for _, a := range mem.Alerts() {
		if a.Status == models.AlertActive {
			active++
		}
	}
	if active != 1 {
		t.Errorf("%d active cpu alerts after concurrent breaches, want 1", active)
	}
	if len(mem.Samples()) != workers {
		t.Errorf("stored %d samples, want %d", len(mem.Samples()), workers)
	}
}
