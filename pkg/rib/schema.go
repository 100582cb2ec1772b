package rib

import (
	"sync"

	"github.com/marmos91/cdapd/pkg/cdap"
)

// CreateCallback materializes objects for an M_CREATE that addresses a name
// not yet in the RIB. The callback owns the decision: it may add one or
// more objects via r.AddObject and returns the serialized reply value.
type CreateCallback func(r *RIB, con cdap.ConnHandle, obj cdap.ObjInfo) ([]byte, error)

type callbackKey struct {
	class string
	path  string
}

// Schema is the per-version description of a RIB: the path separator and
// the create-callback registry keyed by (class, path). An empty path means
// "generic for this class".
type Schema struct {
	version   int64
	separator string

	mu        sync.RWMutex
	callbacks map[callbackKey]CreateCallback
}

func newSchema(version int64) *Schema {
	return &Schema{
		version:   version,
		separator: Separator,
		callbacks: make(map[callbackKey]CreateCallback),
	}
}

// Version returns the schema version.
func (s *Schema) Version() int64 { return s.version }

// SeparatorString returns the path separator of the schema.
func (s *Schema) SeparatorString() string { return s.separator }

// RegisterCreateCallback registers cb for (class, path). Registering a pair
// that already exists fails with CallbackAlreadyRegistered.
func (s *Schema) RegisterCreateCallback(class, path string, cb CreateCallback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := callbackKey{class: class, path: path}
	if _, dup := s.callbacks[key]; dup {
		return NewCallbackAlreadyRegisteredError(class, path)
	}
	s.callbacks[key] = cb
	return nil
}

// lookupCreateCallback resolves the callback for an M_CREATE addressing
// fqn: the exact (class, fqn) pair wins, then the nearest registered
// ancestor path, then the generic (class, "") entry.
func (s *Schema) lookupCreateCallback(class, fqn string) (CreateCallback, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if cb, ok := s.callbacks[callbackKey{class: class, path: fqn}]; ok {
		return cb, true
	}
	for p := ParentFQN(fqn); p != ""; p = ParentFQN(p) {
		if cb, ok := s.callbacks[callbackKey{class: class, path: p}]; ok {
			return cb, true
		}
	}
	cb, ok := s.callbacks[callbackKey{class: class}]
	return cb, ok
}
