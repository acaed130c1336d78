// Package panemanager is an ordered pane registry with exactly one active
// index: the single mutator of the pane sequence and single authority on
// pane input routing.
//
// Follows deprecated/go-hub/internal/hub/state.go's HubState / SafeHubState:
// ordered map + keys slice + selected index behind a single mutex, and a
// Snapshot read model.
package panemanager

import (
	"sync"
	"time"

	"github.com/akiojin/gwtermd/internal/pane"
	"github.com/akiojin/gwtermd/internal/termerr"
)

// Snapshot is a read-model view of one pane, safe to pass to renderers
// without retaining any live pointer into the manager.
type Snapshot struct {
	PaneID     string
	BranchName string
	AgentName  string
	AgentColor int
	Status     pane.Status
	Elapsed    time.Duration
}

// ManagerSnapshot is the full read-model view of the manager's state.
type ManagerSnapshot struct {
	Panes       []Snapshot
	ActiveIndex int
	IsEmpty     bool
}

// Manager owns the ordered pane sequence and the active-pane index.
//
// The lock is held only around bookkeeping; callers of SendInput and
// BroadcastInput clone out the writer they need and release the lock
// before performing any blocking PTY write.
type Manager struct {
	mu sync.RWMutex

	panes       map[string]*pane.Pane
	order       []string
	activeIndex int
}

// New constructs an empty Pane Manager.
func New() *Manager {
	return &Manager{
		panes: make(map[string]*pane.Pane),
		order: make([]string, 0),
	}
}

// AddPane appends p to the sequence. If this is the first pane,
// active_index becomes 0; otherwise the current active_index is left
// unchanged.
func (m *Manager) AddPane(p *pane.Pane) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.order = append(m.order, p.ID())
	m.panes[p.ID()] = p
	if len(m.order) == 1 {
		m.activeIndex = 0
	}
}

// RemovePane finds the pane by id, kills it best-effort, and drops it
// from the sequence, clamping active_index so it stays in range.
// Returns PaneNotFound if no such pane exists.
func (m *Manager) RemovePane(paneID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.panes[paneID]
	if !ok {
		return termerr.NewPaneNotFound(paneID)
	}
	_ = p.Kill()

	removedIndex := -1
	for i, id := range m.order {
		if id == paneID {
			removedIndex = i
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	delete(m.panes, paneID)

	switch {
	case len(m.order) == 0:
		m.activeIndex = 0
	case removedIndex < m.activeIndex:
		// A pane before the active one shifted every later index down by
		// one; decrement to keep pointing at the same pane.
		m.activeIndex--
	case m.activeIndex >= len(m.order):
		m.activeIndex = len(m.order) - 1
	}
	return nil
}

// Activate sets active_index. Requires 0 <= index < len(panes).
func (m *Manager) Activate(index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if index < 0 || index >= len(m.order) {
		return termerr.NewPaneNotFound("index out of range")
	}
	m.activeIndex = index
	return nil
}

// ActivePane returns the currently active pane, or nil if empty.
func (m *Manager) ActivePane() *pane.Pane {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.order) == 0 {
		return nil
	}
	return m.panes[m.order[m.activeIndex]]
}

// ActiveIndex returns the current active index.
func (m *Manager) ActiveIndex() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeIndex
}

// Panes returns the panes in display order.
func (m *Manager) Panes() []*pane.Pane {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*pane.Pane, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.panes[id])
	}
	return result
}

// IsEmpty reports whether the manager holds no panes.
func (m *Manager) IsEmpty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.order) == 0
}

// Pane looks up a pane by id.
func (m *Manager) Pane(paneID string) (*pane.Pane, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.panes[paneID]
	return p, ok
}

// SendInput forwards bytes to the named pane's write_input. The manager
// lock is held only to look up the pane; the write itself happens after
// the lock is released.
func (m *Manager) SendInput(paneID string, data []byte) error {
	m.mu.RLock()
	p, ok := m.panes[paneID]
	m.mu.RUnlock()

	if !ok {
		return termerr.NewPaneNotFound(paneID)
	}
	return p.WriteInput(data)
}

// BroadcastInput sends bytes to every pane. Individual failures are
// collected and returned together but do not stop the broadcast.
func (m *Manager) BroadcastInput(data []byte) []error {
	m.mu.RLock()
	targets := make([]*pane.Pane, 0, len(m.order))
	for _, id := range m.order {
		targets = append(targets, m.panes[id])
	}
	m.mu.RUnlock()

	var errs []error
	for _, p := range targets {
		if err := p.WriteInput(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// ResizeAll calls Resize on every pane.
func (m *Manager) ResizeAll(rows, cols int) []error {
	m.mu.RLock()
	targets := make([]*pane.Pane, 0, len(m.order))
	for _, id := range m.order {
		targets = append(targets, m.panes[id])
	}
	m.mu.RUnlock()

	var errs []error
	for _, p := range targets {
		if err := p.Resize(rows, cols); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// PollStatus calls CheckStatus on every pane and returns the ids of
// panes whose status newly transitioned away from Running.
func (m *Manager) PollStatus() []string {
	m.mu.RLock()
	targets := make([]*pane.Pane, 0, len(m.order))
	for _, id := range m.order {
		targets = append(targets, m.panes[id])
	}
	m.mu.RUnlock()

	var transitioned []string
	for _, p := range targets {
		before := p.Status()
		if before.Kind != pane.Running {
			continue
		}
		after := p.CheckStatus()
		if after.Kind != pane.Running {
			transitioned = append(transitioned, p.ID())
		}
	}
	return transitioned
}

// Snapshot returns a thread-safe read model of the manager's state,
// safe to hand to a renderer without retaining any pane pointer.
func (m *Manager) Snapshot() ManagerSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := ManagerSnapshot{
		ActiveIndex: m.activeIndex,
		IsEmpty:     len(m.order) == 0,
		Panes:       make([]Snapshot, 0, len(m.order)),
	}
	now := time.Now().UTC()
	for _, id := range m.order {
		p := m.panes[id]
		snap.Panes = append(snap.Panes, Snapshot{
			PaneID:     p.ID(),
			BranchName: p.BranchName(),
			AgentName:  p.AgentName(),
			AgentColor: p.AgentColor(),
			Status:     p.Status(),
			Elapsed:    now.Sub(p.StartedAt()),
		})
	}
	return snap
}
