package position

import (
	"sync"

	"github.com/dpup/campusnav/server/internal/lib/navigation"
)

// ManualSource is used when positions arrive through the HTTP API instead of
// a device feed. Watch never delivers fixes itself; callers report positions
// with Engine.UpdatePosition.
type ManualSource struct {
	mu       sync.Mutex
	watchers int
}

// NewManualSource creates a new ManualSource
func NewManualSource() *ManualSource {
	return &ManualSource{}
}

// Watch registers a watcher
func (m *ManualSource) Watch(opts navigation.WatchOptions, onFix func(navigation.Fix)) (navigation.Subscription, error) {
	m.mu.Lock()
	m.watchers++
	m.mu.Unlock()
	return &manualSubscription{source: m}, nil
}

// Watching reports whether any subscription is active
func (m *ManualSource) Watching() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watchers > 0
}

type manualSubscription struct {
	source *ManualSource
	once   sync.Once
}

func (s *manualSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.source.mu.Lock()
		s.source.watchers--
		s.source.mu.Unlock()
	})
}
