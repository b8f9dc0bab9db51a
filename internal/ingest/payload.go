package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/models"
)

// Number accepts JSON numbers and numeric strings. Agents are shell scripts
// gluing together tool output, so "42.5" and 42.5 are both in the wild.
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return fmt.Errorf("value is null")
	}
	if len(s) >= 2 && s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	if s == "" {
		return fmt.Errorf("value is empty")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", s)
	}
	*n = Number(v)
	return nil
}

// ReportPayload is the wire shape pushed by the reporting agent. All numeric
// fields are required; pointers distinguish absent from zero.
type ReportPayload struct {
	Token     string  `json:"token"`
	CPUUsage  *Number `json:"cpuUsage"`
	RAMUsage  *Number `json:"ramUsage"`
	RAMTotal  *Number `json:"ramTotal"`
	RAMUsed   *Number `json:"ramUsed"`
	DiskUsage *Number `json:"diskUsage"`
	DiskTotal *Number `json:"diskTotal"`
	DiskUsed  *Number `json:"diskUsed"`
	NetIn     *Number `json:"netIn"`
	NetOut    *Number `json:"netOut"`
	Load      *Number `json:"load"`
	Uptime    *Number `json:"uptime"`
}

// Validate checks every numeric field is present, finite and non-negative.
// The first offending field rejects the whole payload.
func (p *ReportPayload) Validate() error {
	fields := []struct {
		name  string
		value *Number
	}{
		{"cpuUsage", p.CPUUsage},
		{"ramUsage", p.RAMUsage},
		{"ramTotal", p.RAMTotal},
		{"ramUsed", p.RAMUsed},
		{"diskUsage", p.DiskUsage},
		{"diskTotal", p.DiskTotal},
		{"diskUsed", p.DiskUsed},
		{"netIn", p.NetIn},
		{"netOut", p.NetOut},
		{"load", p.Load},
		{"uptime", p.Uptime},
	}

	for _, f := range fields {
		if f.value == nil {
			return &MalformedPayloadError{Field: f.name, Reason: "is required"}
		}
		v := float64(*f.value)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &MalformedPayloadError{Field: f.name, Reason: "is not finite"}
		}
		if v < 0 {
			return &MalformedPayloadError{Field: f.name, Reason: "is negative"}
		}
	}
	return nil
}

// Sample converts an already-validated payload into a stored sample with the
// server-assigned capture timestamp.
func (p *ReportPayload) Sample(hostID uuid.UUID, capturedAt time.Time) models.Sample {
	return models.Sample{
		HostID:        hostID,
		CapturedAt:    capturedAt,
		CPUPct:        float64(*p.CPUUsage),
		RAMPct:        float64(*p.RAMUsage),
		RAMTotal:      float64(*p.RAMTotal),
		RAMUsed:       float64(*p.RAMUsed),
		DiskPct:       float64(*p.DiskUsage),
		DiskTotal:     float64(*p.DiskTotal),
		DiskUsed:      float64(*p.DiskUsed),
		NetIn:         float64(*p.NetIn),
		NetOut:        float64(*p.NetOut),
		Load1:         float64(*p.Load),
		UptimeSeconds: int64(*p.Uptime),
	}
}
