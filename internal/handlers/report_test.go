package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/alerting"
	"github.com/hostpulse/hostpulse/internal/ingest"
	"github.com/hostpulse/hostpulse/internal/models"
	"github.com/hostpulse/hostpulse/internal/store/storetest"
)

func newReportRouter(t *testing.T) (*gin.Engine, *storetest.Memory, uuid.UUID) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := storetest.NewMemory()
	host, err := mem.CreateHost(context.Background(), uuid.New(), "web-1", nil, "tok-1")
	if err != nil {
		t.Fatalf("CreateHost: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	evaluator := alerting.NewEvaluator(alerting.DefaultThresholds(), logger)
	pipeline := ingest.NewPipeline(mem, mem, evaluator, nil, logger)

	router := gin.New()
	router.POST("/api/report", NewReportHandler(pipeline, 10*time.Second).Report)
	return router, mem, host.ID
}

func reportBody(overrides map[string]any) []byte {
	body := map[string]any{
		"token":     "tok-1",
		"cpuUsage":  42.5,
		"ramUsage":  60.0,
		"ramTotal":  16384.0,
		"ramUsed":   9830.0,
		"diskUsage": 71.2,
		"diskTotal": 512000.0,
		"diskUsed":  364544.0,
		"netIn":     1024.0,
		"netOut":    2048.0,
		"load":      0.8,
		"uptime":    86400,
	}
	for k, v := range overrides {
		if v == nil {
			delete(body, k)
		} else {
			body[k] = v
		}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	return raw
}

func postReport(router *gin.Engine, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/report", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestReportSuccess(t *testing.T) {
	router, mem, hostID := newReportRouter(t)

	w := postReport(router, reportBody(nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response decode: %v", err)
	}
	if !resp.Success {
		t.Error("success = false, want true")
	}

	if len(mem.Samples()) != 1 {
		t.Errorf("stored %d samples, want 1", len(mem.Samples()))
	}
	if h, _ := mem.Host(hostID); h.Status != models.HostOnline {
		t.Errorf("host status = %q, want online", h.Status)
	}
}

func TestReportMissingToken(t *testing.T) {
	router, mem, _ := newReportRouter(t)

	w := postReport(router, reportBody(map[string]any{"token": ""}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if len(mem.Samples()) != 0 {
		t.Error("sample stored despite missing token")
	}
}

func TestReportUnknownToken(t *testing.T) {
	router, mem, _ := newReportRouter(t)

	w := postReport(router, reportBody(map[string]any{"token": "never-issued"}))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if len(mem.Samples()) != 0 {
		t.Error("sample stored for unknown token")
	}
}

func TestReportMalformedBodies(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"invalid json", []byte(`{"token": `)},
		{"non-numeric string", reportBody(map[string]any{"cpuUsage": "notanumber"})},
		{"missing field", reportBody(map[string]any{"ramUsage": nil})},
		{"negative value", reportBody(map[string]any{"netIn": -1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, mem, _ := newReportRouter(t)
			w := postReport(router, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", w.Code, w.Body.String())
			}
			if len(mem.Samples()) != 0 {
				t.Error("sample stored despite malformed payload")
			}
		})
	}
}

func TestReportPersistenceFailure(t *testing.T) {
	router, mem, _ := newReportRouter(t)
	mem.SampleErr = errors.New("disk full")

	w := postReport(router, reportBody(nil))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}

func TestReportBreachOpensAlert(t *testing.T) {
	router, mem, hostID := newReportRouter(t)

	w := postReport(router, reportBody(map[string]any{"cpuUsage": 95.0}))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	alerts := mem.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("%d alerts, want 1", len(alerts))
	}
	if alerts[0].HostID != hostID || alerts[0].Metric != models.MetricCPU || alerts[0].Status != models.AlertActive {
		t.Errorf("alert = %+v, want active cpu alert for host", alerts[0])
	}
}
