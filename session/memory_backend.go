package session

import (
	"context"
	"sync"
)

// MemoryBackend keeps the record in process memory. It survives Store
// instances but not the process, which makes it convenient for tests that
// simulate a restart, and for hosts that must not touch disk.
type MemoryBackend struct {
	mu        sync.Mutex
	record    Record
	loadErr   error
	storeErr  error
	removeErr error
	loads     int
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (m *MemoryBackend) Load(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return Record{}, m.loadErr
	}
	return m.record, nil
}

func (m *MemoryBackend) Store(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return m.storeErr
	}
	m.record = record
	return nil
}

func (m *MemoryBackend) Remove(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	m.record = Record{}
	return nil
}

// Seed overwrites the stored record directly, bypassing Store.
func (m *MemoryBackend) Seed(record Record) {
	m.mu.Lock()
	m.record = record
	m.mu.Unlock()
}

// Snapshot returns the stored record.
func (m *MemoryBackend) Snapshot() Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record
}

// Loads returns how many times Load was called.
func (m *MemoryBackend) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

// FailWith makes subsequent calls of the named operations fail with err.
// A nil err restores normal behaviour for those operations.
func (m *MemoryBackend) FailWith(err error, load, store, remove bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if load {
		m.loadErr = err
	}
	if store {
		m.storeErr = err
	}
	if remove {
		m.removeErr = err
	}
}
