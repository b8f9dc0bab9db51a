package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Host liveness states. Transitions to online happen on every accepted
// report; transitions to offline happen only via the sweeper's passive scan.
const (
	HostOnline  = "online"
	HostOffline = "offline"
)

// Alert lifecycle states.
const (
	AlertActive   = "active"
	AlertResolved = "resolved"
)

// Metric identifies which resource an alert tracks.
type Metric string

const (
	MetricCPU  Metric = "cpu"
	MetricRAM  Metric = "ram"
	MetricDisk Metric = "disk"
)

var (
	ErrHostNotFound    = errors.New("host not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
)

type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Host is a registered monitoring target. Token is the opaque bearer
// credential generated at registration; it is unique and never rotated.
type Host struct {
	ID         uuid.UUID  `json:"id"`
	AccountID  uuid.UUID  `json:"account_id"`
	Name       string     `json:"name"`
	IP         *string    `json:"ip,omitempty"`
	Token      string     `json:"token"`
	Status     string     `json:"status"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Sample is one resource-usage observation. CapturedAt is assigned by the
// server at ingestion; agent-supplied timestamps are not trusted. Rows are
// append-only and never mutated.
type Sample struct {
	ID            int64     `json:"id"`
	HostID        uuid.UUID `json:"host_id"`
	CapturedAt    time.Time `json:"captured_at"`
	CPUPct        float64   `json:"cpu_pct"`
	RAMPct        float64   `json:"ram_pct"`
	RAMTotal      float64   `json:"ram_total"`
	RAMUsed       float64   `json:"ram_used"`
	DiskPct       float64   `json:"disk_pct"`
	DiskTotal     float64   `json:"disk_total"`
	DiskUsed      float64   `json:"disk_used"`
	NetIn         float64   `json:"net_in"`
	NetOut        float64   `json:"net_out"`
	Load1         float64   `json:"load1"`
	UptimeSeconds int64     `json:"uptime_seconds"`
}

// Alert is one episode of a metric exceeding its threshold. At most one
// active alert may exist per (host, metric) pair at any time.
type Alert struct {
	ID         int64      `json:"id"`
	HostID     uuid.UUID  `json:"host_id"`
	Metric     Metric     `json:"metric"`
	Threshold  float64    `json:"threshold"`
	Status     string     `json:"status"`
	OpenedAt   time.Time  `json:"opened_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// AlertWithHost annotates an alert with its owning host's display name for
// the account-wide alert listing.
type AlertWithHost struct {
	Alert
	HostName string `json:"host_name"`
}
