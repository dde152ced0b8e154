package trajectory

import (
	"fmt"
	"sync"
)

type Memory struct {
	mu    sync.RWMutex
	meta  Meta
	snaps []Snapshot
}

func NewMemory(meta Meta) *Memory {
	return &Memory{meta: meta}
}

func (m *Memory) Append(s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := 0
	if len(m.snaps) > 0 {
		last = m.snaps[len(m.snaps)-1].Step
	}
	if err := checkAppend(m.meta, last, len(m.snaps), s); err != nil {
		return err
	}
	m.snaps = append(m.snaps, s.Clone())
	return nil
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snaps)
}

func (m *Memory) At(i int) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if i < 0 || i >= len(m.snaps) {
		return Snapshot{}, fmt.Errorf("trajectory: index %d out of range [0,%d)", i, len(m.snaps))
	}
	return m.snaps[i].Clone(), nil
}

func (m *Memory) Iterate(fn func(Snapshot) error) error {
	m.mu.RLock()
	snaps := m.snaps[:len(m.snaps):len(m.snaps)]
	m.mu.RUnlock()
	for _, s := range snaps {
		if err := fn(s.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) Meta() Meta { return m.meta }

func (m *Memory) Close() error { return nil }
