package storage

import "sync"

// Overlay buffers writes on top of a base database. Reads fall through to the
// base when the overlay has not seen the key. Nothing reaches the base until
// Commit, which makes an overlay the unit of atomicity for multi-record
// transitions: discard the overlay and the base is untouched.
type Overlay struct {
	mu      sync.RWMutex
	base    Database
	writes  map[string][]byte
	deletes map[string]struct{}
}

// NewOverlay wraps the base database with an empty write buffer.
func NewOverlay(base Database) *Overlay {
	return &Overlay{
		base:    base,
		writes:  make(map[string][]byte),
		deletes: make(map[string]struct{}),
	}
}

func (o *Overlay) Put(key []byte, value []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.deletes, string(key))
	o.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

func (o *Overlay) Get(key []byte) ([]byte, error) {
	o.mu.RLock()
	if _, gone := o.deletes[string(key)]; gone {
		o.mu.RUnlock()
		return nil, ErrNotFound
	}
	if value, ok := o.writes[string(key)]; ok {
		o.mu.RUnlock()
		return append([]byte(nil), value...), nil
	}
	o.mu.RUnlock()
	return o.base.Get(key)
}

func (o *Overlay) Has(key []byte) (bool, error) {
	o.mu.RLock()
	if _, gone := o.deletes[string(key)]; gone {
		o.mu.RUnlock()
		return false, nil
	}
	if _, ok := o.writes[string(key)]; ok {
		o.mu.RUnlock()
		return true, nil
	}
	o.mu.RUnlock()
	return o.base.Has(key)
}

func (o *Overlay) Delete(key []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.writes, string(key))
	o.deletes[string(key)] = struct{}{}
	return nil
}

// Close discards the buffered writes without touching the base.
func (o *Overlay) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
}

// Commit flushes the buffered writes and deletes to the base database. The
// buffer is cleared on success so the overlay can be reused.
func (o *Overlay) Commit() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for key := range o.deletes {
		if err := o.base.Delete([]byte(key)); err != nil {
			return err
		}
	}
	for key, value := range o.writes {
		if err := o.base.Put([]byte(key), value); err != nil {
			return err
		}
	}
	o.writes = make(map[string][]byte)
	o.deletes = make(map[string]struct{})
	return nil
}
