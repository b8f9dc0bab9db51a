// Package storetest provides an in-memory store implementing the same
// interfaces as the PostgreSQL store, with the same per-host serialization
// of alert units, so the pipeline and handlers can be tested without a
// database.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/hostpulse/internal/alerting"
	"github.com/hostpulse/hostpulse/internal/models"
)

type Memory struct {
	mu        sync.Mutex
	hostLocks map[uuid.UUID]*sync.Mutex

	accounts map[uuid.UUID]models.Account
	hosts    map[uuid.UUID]models.Host
	samples  []models.Sample
	alerts   []models.Alert

	nextSampleID int64
	nextAlertID  int64
	seq          int64

	// Injectable failures for exercising the persistence error paths.
	SampleErr error
	AlertErr  error
}

func NewMemory() *Memory {
	return &Memory{
		hostLocks: make(map[uuid.UUID]*sync.Mutex),
		accounts:  make(map[uuid.UUID]models.Account),
		hosts:     make(map[uuid.UUID]models.Host),
	}
}

func (m *Memory) hostLock(hostID uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.hostLocks[hostID]
	if !ok {
		l = &sync.Mutex{}
		m.hostLocks[hostID] = l
	}
	return l
}

// Resolve implements ingest.TokenResolver.
func (m *Memory) Resolve(_ context.Context, token string) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.hosts {
		if h.Token == token {
			return h.ID, nil
		}
	}
	return uuid.Nil, models.ErrHostNotFound
}

func (m *Memory) HostByToken(_ context.Context, token string) (models.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.hosts {
		if h.Token == token {
			return h, nil
		}
	}
	return models.Host{}, models.ErrHostNotFound
}

func (m *Memory) StoreSample(_ context.Context, sample models.Sample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SampleErr != nil {
		return m.SampleErr
	}
	h, ok := m.hosts[sample.HostID]
	if !ok {
		return models.ErrHostNotFound
	}
	m.nextSampleID++
	sample.ID = m.nextSampleID
	m.samples = append(m.samples, sample)

	seenAt := sample.CapturedAt
	h.Status = models.HostOnline
	h.LastSeenAt = &seenAt
	m.hosts[sample.HostID] = h
	return nil
}

// AlertUnit serializes fn per host, mirroring the Postgres row lock.
func (m *Memory) AlertUnit(_ context.Context, hostID uuid.UUID, fn func(alerting.Store) error) error {
	if m.AlertErr != nil {
		return m.AlertErr
	}
	lock := m.hostLock(hostID)
	lock.Lock()
	defer lock.Unlock()
	return fn(m)
}

func (m *Memory) ActiveAlerts(_ context.Context, hostID uuid.UUID, metric models.Metric) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Alert
	for _, a := range m.alerts {
		if a.HostID == hostID && a.Metric == metric && a.Status == models.AlertActive {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].OpenedAt.Before(out[j].OpenedAt)
	})
	return out, nil
}

func (m *Memory) OpenAlert(_ context.Context, hostID uuid.UUID, metric models.Metric, threshold float64, openedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextAlertID++
	m.alerts = append(m.alerts, models.Alert{
		ID:        m.nextAlertID,
		HostID:    hostID,
		Metric:    metric,
		Threshold: threshold,
		Status:    models.AlertActive,
		OpenedAt:  openedAt,
	})
	return nil
}

func (m *Memory) ResolveAlert(_ context.Context, alertID int64, resolvedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.alerts {
		if m.alerts[i].ID == alertID && m.alerts[i].Status == models.AlertActive {
			m.alerts[i].Status = models.AlertResolved
			m.alerts[i].ResolvedAt = &resolvedAt
		}
	}
	return nil
}

func (m *Memory) CreateAccount(_ context.Context, email, passwordHash string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return models.Account{}, models.ErrEmailTaken
		}
	}
	a := models.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	m.accounts[a.ID] = a
	return a, nil
}

func (m *Memory) AccountByEmail(_ context.Context, email string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return models.Account{}, models.ErrAccountNotFound
}

func (m *Memory) CreateHost(_ context.Context, accountID uuid.UUID, name string, ip *string, token string) (models.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	now := time.Now().UTC().Add(time.Duration(m.seq)) // strictly increasing creation order
	h := models.Host{
		ID:        uuid.New(),
		AccountID: accountID,
		Name:      name,
		IP:        ip,
		Token:     token,
		Status:    models.HostOffline,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.hosts[h.ID] = h
	return h, nil
}

func (m *Memory) HostsByAccount(_ context.Context, accountID uuid.UUID) ([]models.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hosts := []models.Host{}
	for _, h := range m.hosts {
		if h.AccountID == accountID {
			hosts = append(hosts, h)
		}
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].CreatedAt.After(hosts[j].CreatedAt) })
	return hosts, nil
}

func (m *Memory) HostByID(_ context.Context, accountID, hostID uuid.UUID) (models.Host, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hosts[hostID]
	if !ok || h.AccountID != accountID {
		return models.Host{}, models.ErrHostNotFound
	}
	return h, nil
}

func (m *Memory) DeleteHost(_ context.Context, accountID, hostID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hosts[hostID]
	if !ok || h.AccountID != accountID {
		return models.ErrHostNotFound
	}
	delete(m.hosts, hostID)

	kept := m.samples[:0]
	for _, s := range m.samples {
		if s.HostID != hostID {
			kept = append(kept, s)
		}
	}
	m.samples = kept

	keptAlerts := m.alerts[:0]
	for _, a := range m.alerts {
		if a.HostID != hostID {
			keptAlerts = append(keptAlerts, a)
		}
	}
	m.alerts = keptAlerts
	return nil
}

func (m *Memory) RecentSamples(_ context.Context, hostID uuid.UUID, limit int) ([]models.Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	matched := []models.Sample{}
	for _, s := range m.samples {
		if s.HostID == hostID {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CapturedAt.Equal(matched[j].CapturedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CapturedAt.Before(matched[j].CapturedAt)
	})
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (m *Memory) RecentAlerts(_ context.Context, accountID uuid.UUID, limit int) ([]models.AlertWithHost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.AlertWithHost{}
	for _, a := range m.alerts {
		h, ok := m.hosts[a.HostID]
		if !ok || h.AccountID != accountID {
			continue
		}
		out = append(out, models.AlertWithHost{Alert: a, HostName: h.Name})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].OpenedAt.After(out[j].OpenedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) MarkStaleHostsOffline(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, h := range m.hosts {
		if h.Status == models.HostOnline && h.LastSeenAt != nil && h.LastSeenAt.Before(cutoff) {
			h.Status = models.HostOffline
			m.hosts[id] = h
			n++
		}
	}
	return n, nil
}

func (m *Memory) CountStaleOnlineHosts(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, h := range m.hosts {
		if h.Status == models.HostOnline && h.LastSeenAt != nil && h.LastSeenAt.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

// Snapshot helpers for assertions.

func (m *Memory) Host(hostID uuid.UUID) (models.Host, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hosts[hostID]
	return h, ok
}

func (m *Memory) Samples() []models.Sample {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Sample, len(m.samples))
	copy(out, m.samples)
	return out
}

func (m *Memory) Alerts() []models.Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Alert, len(m.alerts))
	copy(out, m.alerts)
	return out
}
