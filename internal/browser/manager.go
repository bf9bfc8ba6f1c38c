// Package browser owns the leasing of remote browser windows: the backends
// that host them and the registry that enforces one running window per
// account.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shehryarbajwa/regpool/internal/logging"
	"github.com/shehryarbajwa/regpool/pkg/models"
)

const closeTimeout = 10 * time.Second

// Manager is the single authority over browser instances. Every registry
// read-modify-write happens under mu; remote calls never hold it.
type Manager struct {
	service  Service
	log      logging.Sink
	mu       sync.Mutex
	browsers map[string]*models.BrowserInstance
	now      func() time.Time
}

// NewManager creates a manager over the given backend
func NewManager(service Service, log logging.Sink) *Manager {
	if log == nil {
		log = logging.Discard
	}
	return &Manager{
		service:  service,
		log:      log,
		browsers: make(map[string]*models.BrowserInstance),
		now:      time.Now,
	}
}

// Create asks the backend for a new window, opens it and registers it IDLE.
// Backend errors are returned as-is and leave the registry unchanged.
func (m *Manager) Create(ctx context.Context, accountID string, req models.CreateBrowserRequest) (models.BrowserInstance, error) {
	if accountID == "" {
		return models.BrowserInstance{}, fmt.Errorf("accountId is required")
	}

	id, err := m.service.Create(ctx, req)
	if err != nil {
		return models.BrowserInstance{}, err
	}

	endpoint, err := m.service.Open(ctx, id)
	if err != nil {
		// the window exists remotely; do not abandon it
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		if cerr := m.service.Close(closeCtx, id); cerr != nil {
			m.log.Log(logging.Record{Level: logging.LevelDebug, Action: "browser_close",
				Msg: fmt.Sprintf("close of unopened window %s failed: %v", id, cerr)})
		}
		cancel()
		return models.BrowserInstance{}, err
	}

	now := m.now()
	instance := &models.BrowserInstance{
		BrowserID: id,
		AccountID: accountID,
		Status:    models.StatusIdle,
		Endpoint:  endpoint,
		CreatedAt: now,
		UpdatedAt: now,
	}

	m.mu.Lock()
	m.browsers[id] = instance
	m.mu.Unlock()

	return *instance, nil
}

// Acquire finds an IDLE instance owned by accountID and marks it RUNNING.
// An account holds at most one RUNNING instance, so nothing is returned
// while another of its instances is running. The scan and the transition
// are one critical section.
func (m *Manager) Acquire(accountID string) (models.BrowserInstance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var idle *models.BrowserInstance
	for _, b := range m.browsers {
		if b.AccountID != accountID {
			continue
		}
		if b.Status == models.StatusRunning {
			return models.BrowserInstance{}, false
		}
		if idle == nil && b.CanBeAcquired() {
			idle = b
		}
	}
	if idle == nil {
		return models.BrowserInstance{}, false
	}

	idle.Status = models.StatusRunning
	idle.UpdatedAt = m.now()
	return *idle, true
}

// Release returns a RUNNING instance to IDLE. Missing instances and
// instances held by a human are left alone.
func (m *Manager) Release(browserID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.browsers[browserID]
	if !ok || b.Status == models.StatusWaitHuman {
		return
	}
	if b.Status != models.StatusIdle {
		b.Status = models.StatusIdle
		b.UpdatedAt = m.now()
	}
}

// MarkWaitHuman hands the instance to a human operator
func (m *Manager) MarkWaitHuman(browserID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.browsers[browserID]
	if !ok {
		return
	}
	b.Status = models.StatusWaitHuman
	b.UpdatedAt = m.now()
}

// Close closes the window remotely and drops it from the registry. The
// remote close is best-effort: its failure is logged and swallowed.
func (m *Manager) Close(ctx context.Context, browserID string) {
	m.mu.Lock()
	b, ok := m.browsers[browserID]
	if ok {
		b.Status = models.StatusClosed
		delete(m.browsers, browserID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := m.service.Close(closeCtx, browserID); err != nil {
		m.log.Log(logging.Record{Level: logging.LevelDebug, Action: "browser_close",
			Msg: fmt.Sprintf("remote close of %s failed: %v", browserID, err)})
	}
}

// Get returns a snapshot of one instance
func (m *Manager) Get(browserID string) (models.BrowserInstance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.browsers[browserID]
	if !ok {
		return models.BrowserInstance{}, false
	}
	return *b, true
}

// List returns snapshots filtered by account and status; empty filters match all
func (m *Manager) List(accountID string, status models.BrowserStatus) []models.BrowserInstance {
	m.mu.Lock()
	defer m.mu.Unlock()

	instances := make([]models.BrowserInstance, 0, len(m.browsers))
	for _, b := range m.browsers {
		if accountID != "" && b.AccountID != accountID {
			continue
		}
		if status != "" && b.Status != status {
			continue
		}
		instances = append(instances, *b)
	}
	return instances
}

// Len returns the number of registered instances
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.browsers)
}

// Detail looks up remote metadata for a registered instance
func (m *Manager) Detail(ctx context.Context, browserID string) (Detail, error) {
	if _, ok := m.Get(browserID); !ok {
		return Detail{}, fmt.Errorf("browser %s not found", browserID)
	}
	return m.service.Detail(ctx, browserID)
}

// Arrange tiles windows when the backend supports it
func (m *Manager) Arrange(ctx context.Context, seqs ...int) error {
	a, ok := m.service.(interface {
		Arrange(ctx context.Context, seqs ...int) error
	})
	if !ok {
		return nil
	}
	return a.Arrange(ctx, seqs...)
}
