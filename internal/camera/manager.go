package camera

import (
	"context"
	"log/slog"
	"sync"
)

// Manager runs one worker per configured camera
type Manager struct {
	workers []*Worker
	byName  map[string]*Worker
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewManager(workers []*Worker, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	byName := make(map[string]*Worker, len(workers))
	for _, w := range workers {
		byName[w.Name()] = w
	}
	return &Manager{
		workers: workers,
		byName:  byName,
		logger:  logger.With("component", "camera_manager"),
	}
}

// Start launches every worker. A camera that fails to open stops on its own
// without affecting the others.
func (m *Manager) Start(ctx context.Context) {
	for _, w := range m.workers {
		m.wg.Add(1)
		go func(w *Worker) {
			defer m.wg.Done()
			if err := w.Run(ctx); err != nil {
				m.logger.Error("camera worker exited", "camera", w.Name(), "error", err)
			}
		}(w)
	}
	m.logger.Info("cameras started", "count", len(m.workers))
}

// Wait blocks until every worker has returned
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Statuses reports every camera in configuration order
func (m *Manager) Statuses() []Status {
	statuses := make([]Status, 0, len(m.workers))
	for _, w := range m.workers {
		statuses = append(statuses, w.Status())
	}
	return statuses
}

// Has reports whether a camera with the given name is configured
func (m *Manager) Has(name string) bool {
	_, ok := m.byName[name]
	return ok
}
