package rib

import (
	"strings"
	"sync"

	"github.com/marmos91/cdapd/internal/logger"
	"github.com/marmos91/cdapd/pkg/cdap"
	"github.com/marmos91/cdapd/pkg/metrics"
)

// Separator splits FQN path segments.
const Separator = "/"

// RootFQN names the root object every RIB contains.
const RootFQN = "/"

// RootClass is the class of the implicit root object.
const RootClass = "root"

// Responder is the subset of the CDAP provider the RIB uses to answer
// remote operation requests. The RIB daemon implements it by delegating to
// the shared provider.
type Responder interface {
	SendCreateResult(portID int, obj cdap.ObjInfo, res cdap.ResInfo, invokeID int32) error
	SendDeleteResult(portID int, obj cdap.ObjInfo, res cdap.ResInfo, invokeID int32) error
	SendReadResult(portID int, obj cdap.ObjInfo, res cdap.ResInfo, flags cdap.Flags, invokeID int32) error
	SendCancelReadResult(portID int, res cdap.ResInfo, invokeID int32) error
	SendWriteResult(portID int, res cdap.ResInfo, invokeID int32) error
	SendStartResult(portID int, obj cdap.ObjInfo, res cdap.ResInfo, invokeID int32) error
	SendStopResult(portID int, res cdap.ResInfo, invokeID int32) error
}

// objEntry wraps a stored object with its tree bookkeeping. Parent and
// child links are FQN-derived; the RIB owns the objects, so no entry holds
// a pointer back into the tree.
type objEntry struct {
	obj      Object
	parent   string
	children int
}

// ObjectInfo is the introspection view of one stored object.
type ObjectInfo struct {
	FQN        string `json:"fqn"`
	Class      string `json:"class"`
	InstanceID int64  `json:"instance_id"`
	Delegated  bool   `json:"delegated,omitempty"`
	Children   int    `json:"children,omitempty"`
}

// RIB is one hierarchical object store, keyed both by FQN and by instance
// id. A RIB always contains a root object at "/"; the root is never
// removable. All mutations and lookups are serialized by the RIB mutex,
// which is never held across an object operation callback.
type RIB struct {
	mu sync.Mutex

	handle   int64
	schema   *Schema
	aeName   string
	byFQN    map[string]*objEntry
	byInst   map[int64]*objEntry
	nextInst int64

	responder   Responder
	respHandler cdap.OpsRespHandler
	metrics     metrics.RIBMetrics
}

type rootObject struct {
	BaseObject
}

func newRIB(handle int64, schema *Schema, responder Responder,
	respHandler cdap.OpsRespHandler, m metrics.RIBMetrics) *RIB {

	r := &RIB{
		handle:      handle,
		schema:      schema,
		byFQN:       make(map[string]*objEntry),
		byInst:      make(map[int64]*objEntry),
		responder:   responder,
		respHandler: respHandler,
		metrics:     m,
	}

	root := &rootObject{BaseObject: NewBaseObject(RootClass, nil)}
	r.nextInst++
	root.attach(RootFQN, r.nextInst)
	entry := &objEntry{obj: root}
	r.byFQN[RootFQN] = entry
	r.byInst[root.InstanceID()] = entry
	return r
}

// Handle returns the daemon-assigned RIB handle.
func (r *RIB) Handle() int64 { return r.handle }

// Version returns the schema version the RIB instantiates.
func (r *RIB) Version() int64 { return r.schema.Version() }

// Schema returns the schema the RIB was created against.
func (r *RIB) Schema() *Schema { return r.schema }

// AEName returns the application entity the RIB is associated to, or empty.
func (r *RIB) AEName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aeName
}

func (r *RIB) setAEName(name string) {
	r.mu.Lock()
	r.aeName = name
	r.mu.Unlock()
}

// ParentFQN derives the parent name of an FQN by stripping the suffix after
// the last separator. The parent of a first-level object is the root; the
// root itself has no parent.
func ParentFQN(fqn string) string {
	if fqn == RootFQN || fqn == "" {
		return ""
	}
	idx := strings.LastIndex(fqn, Separator)
	if idx <= 0 {
		return RootFQN
	}
	return fqn[:idx]
}

func validFQN(fqn string) bool {
	return fqn != "" &&
		strings.HasPrefix(fqn, Separator) &&
		fqn != RootFQN &&
		!strings.HasSuffix(fqn, Separator)
}

// AddObject inserts an object at fqn and returns its instance id. The
// parent object must already exist; instance ids grow monotonically per
// RIB.
func (r *RIB) AddObject(fqn string, obj Object) (int64, error) {
	if !validFQN(fqn) {
		return 0, NewObjectInvalidError("malformed FQN", fqn)
	}
	if obj.FQN() != "" {
		return 0, NewObjectExistsError(obj.FQN())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byFQN[fqn]; dup {
		return 0, NewObjectExistsError(fqn)
	}
	parentFQN := ParentFQN(fqn)
	parent, ok := r.byFQN[parentFQN]
	if !ok {
		return 0, NewObjectInvalidError("parent is not in the RIB", fqn)
	}

	r.nextInst++
	obj.attach(fqn, r.nextInst)
	entry := &objEntry{obj: obj, parent: parentFQN}
	r.byFQN[fqn] = entry
	r.byInst[r.nextInst] = entry
	parent.children++

	logger.Debug("RIB object added",
		logger.KeyFQN, fqn,
		logger.KeyClass, obj.Class(),
		logger.KeyObjInst, r.nextInst)
	r.reportObjectCountLocked()
	return r.nextInst, nil
}

// RemoveObject removes the object with the given instance id. Removal is
// refused while the object has children; the root is never removable.
func (r *RIB) RemoveObject(instanceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byInst[instanceID]
	if !ok {
		return NewObjectDoesNotExistError("")
	}
	fqn := entry.obj.FQN()
	if fqn == RootFQN {
		return NewObjectInvalidError("root is not removable", fqn)
	}
	if entry.children > 0 {
		return NewObjectHasChildrenError(fqn)
	}

	delete(r.byFQN, fqn)
	delete(r.byInst, instanceID)
	if parent, ok := r.byFQN[entry.parent]; ok {
		parent.children--
	}

	logger.Debug("RIB object removed", logger.KeyFQN, fqn, logger.KeyObjInst, instanceID)
	r.reportObjectCountLocked()
	return nil
}

// GetObjectByFQN returns the object stored at fqn.
func (r *RIB) GetObjectByFQN(fqn string) (Object, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byFQN[fqn]
	if !ok {
		return nil, NewObjectDoesNotExistError(fqn)
	}
	return entry.obj, nil
}

// GetObjectByClass returns the object stored at fqn after checking its
// class matches.
func (r *RIB) GetObjectByClass(class, fqn string) (Object, error) {
	obj, err := r.GetObjectByFQN(fqn)
	if err != nil {
		return nil, err
	}
	if class != "" && obj.Class() != class {
		return nil, NewObjectClassMismatchError(class, obj.Class(), fqn)
	}
	return obj, nil
}

// GetObjectByInstanceID returns the object with the given instance id.
func (r *RIB) GetObjectByInstanceID(instanceID int64) (Object, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byInst[instanceID]
	if !ok {
		return nil, NewObjectDoesNotExistError("")
	}
	return entry.obj, nil
}

// GetParentFQN returns the parent name of the object stored at fqn.
func (r *RIB) GetParentFQN(fqn string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.byFQN[fqn]
	if !ok {
		return "", NewObjectDoesNotExistError(fqn)
	}
	if fqn == RootFQN {
		return "", NewObjectInvalidError("root has no parent", fqn)
	}
	return entry.parent, nil
}

// GetObjectClass returns the class of the object stored at fqn.
func (r *RIB) GetObjectClass(fqn string) (string, error) {
	obj, err := r.GetObjectByFQN(fqn)
	if err != nil {
		return "", err
	}
	return obj.Class(), nil
}

// ObjectCount returns the number of stored objects, root included.
func (r *RIB) ObjectCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byFQN)
}

// Objects returns an introspection snapshot of every stored object.
func (r *RIB) Objects() []ObjectInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ObjectInfo, 0, len(r.byFQN))
	for fqn, entry := range r.byFQN {
		out = append(out, ObjectInfo{
			FQN:        fqn,
			Class:      entry.obj.Class(),
			InstanceID: entry.obj.InstanceID(),
			Delegated:  entry.obj.CapturesSubtree(),
			Children:   entry.children,
		})
	}
	return out
}

func (r *RIB) reportObjectCountLocked() {
	if r.metrics != nil {
		r.metrics.SetObjectCount(r.schema.Version(), r.aeName, len(r.byFQN))
	}
}

// findTarget resolves the object an inbound operation addresses: the exact
// FQN when stored (with an optional class check), otherwise the nearest
// ancestor that captures its subtree. Intermediate non-delegating ancestors
// never intercept.
func (r *RIB) findTarget(class, fqn string) (Object, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.byFQN[fqn]; ok {
		if class != "" && entry.obj.Class() != class {
			return nil, NewObjectClassMismatchError(class, entry.obj.Class(), fqn)
		}
		return entry.obj, nil
	}

	for p := ParentFQN(fqn); p != ""; p = ParentFQN(p) {
		if entry, ok := r.byFQN[p]; ok && entry.obj.CapturesSubtree() {
			return entry.obj, nil
		}
	}
	return nil, NewObjectDoesNotExistError(fqn)
}
