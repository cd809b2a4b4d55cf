package device

import "sync"

// Directory is a deduplicated, first-seen ordered set of handles.
type Directory struct {
	mu      sync.RWMutex
	ordered []Handle
	index   map[string]int
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		index: make(map[string]int),
	}
}

// OnDiscovered adds h unless a handle with the same ID is already listed.
// It returns true when h was added.
func (d *Directory) OnDiscovered(h Handle) bool {
	if h.IsZero() {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.index[h.ID]; ok {
		return false
	}

	d.index[h.ID] = len(d.ordered)
	d.ordered = append(d.ordered, h)

	return true
}

// List returns a copy of the listed handles in first-seen order.
func (d *Directory) List() []Handle {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]Handle, len(d.ordered))
	copy(result, d.ordered)

	return result
}

// Lookup finds a listed handle by ID.
func (d *Directory) Lookup(id string) (Handle, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	i, ok := d.index[id]
	if !ok {
		return Handle{}, false
	}

	return d.ordered[i], true
}

// Len returns the number of listed handles.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.ordered)
}

// Reset clears the directory for a new scan cycle.
func (d *Directory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ordered = nil
	d.index = make(map[string]int)
}
