package rib

// Object is one managed object in a RIB. The operation methods are the
// remote invocations resulting from CDAP messages; each receives the FQN
// the peer named, which for a delegated subtree may extend beyond the
// object's own FQN.
//
// Implementations embed BaseObject, which supplies identity bookkeeping and
// default operations: reads return the object's own value (self-read), all
// other operations refuse with OperationNotSupported. Override only what
// the object class supports.
type Object interface {
	// Class returns the object class name.
	Class() string

	// FQN returns the fully qualified name, set at insertion and immutable
	// afterwards.
	FQN() string

	// InstanceID returns the per-RIB instance id assigned at insertion.
	InstanceID() int64

	// CapturesSubtree reports whether the object is a delegation object:
	// operations on any descendant FQN are dispatched to it.
	CapturesSubtree() bool

	// Create processes a remote create aimed at fqn. It returns the
	// serialized reply object, which may be empty.
	Create(fqn, class string, value []byte) ([]byte, error)

	// Delete processes a remote delete aimed at fqn.
	Delete(fqn string) error

	// Read processes a remote read aimed at fqn and returns the serialized
	// object.
	Read(fqn string) ([]byte, error)

	// CancelRead processes a cancellation of an outstanding read on fqn.
	CancelRead(fqn string) error

	// Write processes a remote write aimed at fqn. It returns the
	// serialized reply object, which may be empty.
	Write(fqn string, value []byte) ([]byte, error)

	// Start processes a remote start aimed at fqn.
	Start(fqn string, value []byte) ([]byte, error)

	// Stop processes a remote stop aimed at fqn.
	Stop(fqn string, value []byte) ([]byte, error)

	// attach binds identity at insertion time. Embedding BaseObject
	// provides it; the RIB is the only caller.
	attach(fqn string, instanceID int64)
}

// BaseObject carries an object's identity and provides the default
// operation set. Embed it by value and override the operations the class
// supports.
type BaseObject struct {
	class    string
	fqn      string
	inst     int64
	value    []byte
	delegate bool
}

// NewBaseObject creates the embeddable base for an ordinary object. value
// is what the default self-read returns; it may be nil.
func NewBaseObject(class string, value []byte) BaseObject {
	return BaseObject{class: class, value: value}
}

// NewDelegationObject creates the embeddable base for a subtree-capturing
// object: operations on any FQN below the object's are dispatched to it
// with the full extended FQN.
func NewDelegationObject(class string, value []byte) BaseObject {
	return BaseObject{class: class, value: value, delegate: true}
}

// Class returns the object class name.
func (o *BaseObject) Class() string { return o.class }

// FQN returns the fully qualified name.
func (o *BaseObject) FQN() string { return o.fqn }

// InstanceID returns the per-RIB instance id.
func (o *BaseObject) InstanceID() int64 { return o.inst }

// CapturesSubtree reports whether the object delegates its subtree.
func (o *BaseObject) CapturesSubtree() bool { return o.delegate }

// Value returns the object's serialized value.
func (o *BaseObject) Value() []byte { return o.value }

// SetValue replaces the object's serialized value.
func (o *BaseObject) SetValue(value []byte) { o.value = value }

func (o *BaseObject) attach(fqn string, instanceID int64) {
	o.fqn = fqn
	o.inst = instanceID
}

// Create refuses: override it in classes that support remote creates.
func (o *BaseObject) Create(fqn, class string, value []byte) ([]byte, error) {
	return nil, NewOperationNotSupportedError("create", fqn)
}

// Delete refuses: override it in classes that support remote deletes.
func (o *BaseObject) Delete(fqn string) error {
	return NewOperationNotSupportedError("delete", fqn)
}

// Read returns the object's own value: the self-read default.
func (o *BaseObject) Read(fqn string) ([]byte, error) {
	return o.value, nil
}

// CancelRead refuses: override it in classes with cancellable reads.
func (o *BaseObject) CancelRead(fqn string) error {
	return NewOperationNotSupportedError("cancel_read", fqn)
}

// Write refuses: override it in classes that support remote writes.
func (o *BaseObject) Write(fqn string, value []byte) ([]byte, error) {
	return nil, NewOperationNotSupportedError("write", fqn)
}

// Start refuses: override it in classes that support remote starts.
func (o *BaseObject) Start(fqn string, value []byte) ([]byte, error) {
	return nil, NewOperationNotSupportedError("start", fqn)
}

// Stop refuses: override it in classes that support remote stops.
func (o *BaseObject) Stop(fqn string, value []byte) ([]byte, error) {
	return nil, NewOperationNotSupportedError("stop", fqn)
}
