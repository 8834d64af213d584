package playlist

import "sync"

// StorageKey is the persistence key holding the playlist collection.
const StorageKey = "playlists"

// Port is the string-valued persistence backing a Store.
// Load reports ok=false when nothing has been stored yet.
type Port interface {
	Load() (data string, ok bool, err error)
	Save(data string) error
}

// MemoryPort keeps the serialized collection in memory.
type MemoryPort struct {
	mu    sync.Mutex
	data  string
	set   bool
	saves int
}

// NewMemoryPort returns a port preloaded with data when seeded is true.
func NewMemoryPort(data string, seeded bool) *MemoryPort {
	return &MemoryPort{data: data, set: seeded}
}

// Load implements Port.
func (p *MemoryPort) Load() (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.data, p.set, nil
}

// Save implements Port.
func (p *MemoryPort) Save(data string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = data
	p.set = true
	p.saves++
	return nil
}

// Saves returns how many times Save was called.
func (p *MemoryPort) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}
