package internal

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/zephyrtronium/contains"
)

// Object is the basic type of Petrel. Everything is an Object.
//
// Always use NewObject, ObjectWith, or a type-specific constructor to obtain
// new objects. Creating objects directly will result in arbitrary failures.
type Object struct {
	// slots is the set of messages to which this object responds.
	slots slotTable
	// protomu serializes updates to protos. Proto lists are short and rarely
	// written, so reads copy under the same lock.
	protomu sync.RWMutex
	// protos is the object's list of prototypes, in lookup order.
	protos []*Object

	// Mutex is a lock which must be held when accessing the value of the
	// object if it is or may be mutable.
	sync.Mutex
	// Value is the object's type-specific primitive value.
	Value interface{}
	// tag is the type indicator of the object.
	tag Tag

	// id is the object's unique ID.
	id uintptr
}

// Tag is a type indicator for Petrel objects. Tag values must be comparable.
// Tags for different types must not be equal, meaning they must have
// different underlying types or different values otherwise.
type Tag interface {
	// Activate activates an object that has this tag. The self argument is
	// the object which has this tag, target is the object that received the
	// message, and context is the object that actually had the slot.
	Activate(vm *VM, self, target, locals, context *Object, msg *Message) *Object
	// CloneValue takes the Value of an existing object and returns the Value
	// of a clone of that object.
	CloneValue(value interface{}) interface{}

	// String returns the name of the type associated with this tag.
	String() string
}

// Activate activates the object.
func (o *Object) Activate(vm *VM, target, locals, context *Object, msg *Message) *Object {
	if o.Tag() == nil {
		// Basic object; it is its own result.
		return o
	}
	return o.Tag().Activate(vm, o, target, locals, context, msg)
}

// Clone returns a new object with empty slots and this object as its only
// proto. The clone's tag is the same as its parent's, and its primitive
// value is produced by the tag's CloneValue method.
func (o *Object) Clone() *Object {
	var v interface{}
	if o.Tag() != nil {
		o.Lock()
		v = o.Tag().CloneValue(o.Value)
		o.Unlock()
	}
	return &Object{
		protos: []*Object{o},
		Value:  v,
		tag:    o.Tag(),
		id:     nextObject(),
	}
}

// Protos returns a snapshot of the object's protos.
func (o *Object) Protos() []*Object {
	o.protomu.RLock()
	p := make([]*Object, len(o.protos))
	copy(p, o.protos)
	o.protomu.RUnlock()
	return p
}

// ForeachProto calls exec for each of the object's protos, stopping early if
// exec returns false. exec must not create or remove protos on o.
func (o *Object) ForeachProto(exec func(p *Object) bool) {
	for _, p := range o.Protos() {
		if !exec(p) {
			return
		}
	}
}

// SetProtos replaces the object's protos with the given list.
func (o *Object) SetProtos(protos ...*Object) {
	p := make([]*Object, len(protos))
	copy(p, protos)
	o.protomu.Lock()
	o.protos = p
	o.protomu.Unlock()
}

// AppendProto adds a proto at the end of the object's protos.
func (o *Object) AppendProto(proto *Object) {
	o.protomu.Lock()
	o.protos = append(o.protos, proto)
	o.protomu.Unlock()
}

// PrependProto adds a proto at the start of the object's protos.
func (o *Object) PrependProto(proto *Object) {
	o.protomu.Lock()
	o.protos = append([]*Object{proto}, o.protos...)
	o.protomu.Unlock()
}

// RemoveProto removes all instances of the given proto from the object's
// protos.
func (o *Object) RemoveProto(proto *Object) {
	o.protomu.Lock()
	p := o.protos[:0]
	for _, q := range o.protos {
		if q != proto {
			p = append(p, q)
		}
	}
	o.protos = p
	o.protomu.Unlock()
}

// IsKindOf evaluates whether the object has kind as any of its ancestors, or
// is itself kind.
func (o *Object) IsKindOf(kind *Object) bool {
	if o == nil {
		return false
	}
	// We aren't in the hot path for message passing, so we can use our own
	// set and stack and traverse the graph in any order.
	protos := []*Object{o}
	set := contains.Set{}
	set.Add(o.UniqueID())
	for len(protos) > 0 {
		proto := protos[len(protos)-1]
		protos = protos[:len(protos)-1]
		if proto == kind {
			return true
		}
		for _, p := range proto.Protos() {
			if set.Add(p.UniqueID()) {
				protos = append(protos, p)
			}
		}
	}
	return false
}

// Tag returns the object's type indicator.
func (o *Object) Tag() Tag {
	return o.tag
}

// UniqueID returns the object's unique ID.
func (o *Object) UniqueID() uintptr {
	return o.id
}

// BasicTag is a special Tag type for basic primitive types which do not have
// special activation and whose clones have values that are shallow copies of
// their parents.
type BasicTag string

// Activate returns self.
func (t BasicTag) Activate(vm *VM, self, target, locals, context *Object, msg *Message) *Object {
	return self
}

// CloneValue returns value.
func (t BasicTag) CloneValue(value interface{}) interface{} {
	return value
}

// String returns the receiver.
func (t BasicTag) String() string {
	return string(t)
}

// objcounter is the global counter for object IDs. All accesses to this must
// be atomic.
var objcounter uintptr

// nextObject increments the object counter and returns its value as a unique
// ID for a new object.
func nextObject() uintptr {
	return atomic.AddUintptr(&objcounter, 1)
}

// ObjectWith creates a new object with the given slots, protos, value, and
// tag.
func (vm *VM) ObjectWith(slots Slots, protos []*Object, value interface{}, tag Tag) *Object {
	r := &Object{
		Value: value,
		tag:   tag,
		id:    nextObject(),
	}
	r.SetProtos(protos...)
	vm.definitelyNewSlots(r, slots)
	return r
}

// NewObject creates a new object with the given slots and with the VM's Core
// Object as its proto.
func (vm *VM) NewObject(slots Slots) *Object {
	r := &Object{
		protos: []*Object{vm.BaseObject},
		id:     nextObject(),
	}
	vm.definitelyNewSlots(r, slots)
	return r
}

// TypeName gets the name of the type of an object by checking its type slot.
// If there is no such slot, then its tag's name will be returned; if its tag
// is nil, then its name is Object.
func (vm *VM) TypeName(o *Object) string {
	if typ, proto := vm.GetSlot(o, "type"); proto != nil {
		typ.Lock()
		s, ok := typ.Value.(*Sequence)
		typ.Unlock()
		if ok {
			return s.String()
		}
	}
	if o.Tag() != nil {
		return o.Tag().String()
	}
	return "Object"
}

// initObject sets up the "base" object that is the first proto of all other
// built-in types.
func (vm *VM) initObject() {
	vm.BaseObject.SetProtos(vm.Lobby)
	slots := Slots{
		"==":            vm.NewCFunction(ObjectEqual, nil),
		"asString":      vm.NewCFunction(ObjectAsString, nil),
		"clone":         vm.NewCFunction(ObjectClone, nil),
		"getSlot":       vm.NewCFunction(ObjectGetSlot, nil),
		"hasLocalSlot":  vm.NewCFunction(ObjectHasLocalSlot, nil),
		"isError":       vm.False,
		"isIdenticalTo": vm.NewCFunction(ObjectIsIdenticalTo, nil),
		"isKindOf":      vm.NewCFunction(ObjectIsKindOf, nil),
		"isNil":         vm.False,
		"isTrue":        vm.True,
		"protos":        vm.NewCFunction(ObjectProtos, nil),
		"removeSlot":    vm.NewCFunction(ObjectRemoveSlot, nil),
		"setSlot":       vm.NewCFunction(ObjectSetSlot, nil),
		"slotNames":     vm.NewCFunction(ObjectSlotNames, nil),
		"type":          vm.NewString("Object"),
		"uniqueId":      vm.NewCFunction(ObjectUniqueID, nil),
	}
	vm.SetSlots(vm.BaseObject, slots)
	vm.SetSlot(vm.Core, "Object", vm.BaseObject)
}

// ObjectClone is an Object method.
//
// clone creates a new object with empty slots and the cloned object as its
// proto.
func ObjectClone(vm *VM, target, locals *Object, msg *Message) *Object {
	clone := target.Clone()
	if init, proto := vm.GetSlot(target, "init"); proto != nil {
		init.Activate(vm, clone, locals, proto, vm.IdentMessage("init"))
	}
	return clone
}

// ObjectSetSlot is an Object method.
//
// setSlot sets the value of a slot on this object.
func ObjectSetSlot(vm *VM, target, locals *Object, msg *Message) *Object {
	slot, exc, stop := msg.StringArgAt(vm, locals, 0)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	v, stop := msg.EvalArgAt(vm, locals, 1)
	if stop == NoStop {
		vm.SetSlot(target, slot, v)
	}
	return vm.Stop(v, stop)
}

// ObjectGetSlot is an Object method.
//
// getSlot gets the value of a slot. The slot is never activated.
func ObjectGetSlot(vm *VM, target, locals *Object, msg *Message) *Object {
	slot, exc, stop := msg.StringArgAt(vm, locals, 0)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	v, _ := vm.GetSlot(target, slot)
	return v
}

// ObjectHasLocalSlot is an Object method.
//
// hasLocalSlot returns whether the object has the given slot name, not
// checking its protos.
func ObjectHasLocalSlot(vm *VM, target, locals *Object, msg *Message) *Object {
	slot, exc, stop := msg.StringArgAt(vm, locals, 0)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	_, ok := vm.GetLocalSlot(target, slot)
	return vm.IoBool(ok)
}

// ObjectRemoveSlot is an Object method.
//
// removeSlot removes the given slot from the object.
func ObjectRemoveSlot(vm *VM, target, locals *Object, msg *Message) *Object {
	slot, exc, stop := msg.StringArgAt(vm, locals, 0)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	vm.RemoveSlot(target, slot)
	return target
}

// ObjectSlotNames is an Object method.
//
// slotNames returns a list of the names of the slots on this object.
func ObjectSlotNames(vm *VM, target, locals *Object, msg *Message) *Object {
	v := []*Object{}
	vm.ForeachSlot(target, func(key string, value *Object) bool {
		v = append(v, vm.NewString(key))
		return true
	})
	return vm.NewList(v...)
}

// ObjectProtos is an Object method.
//
// protos returns a list of the receiver's protos.
func ObjectProtos(vm *VM, target, locals *Object, msg *Message) *Object {
	return vm.NewList(target.Protos()...)
}

// ObjectAsString is an Object method.
//
// asString creates a string representation of an object.
func ObjectAsString(vm *VM, target, locals *Object, msg *Message) *Object {
	switch target {
	case vm.BaseObject:
		return vm.NewString(fmt.Sprintf("Core Object_%p", target))
	case vm.Lobby:
		return vm.NewString(fmt.Sprintf("Lobby_%p", target))
	case vm.Core:
		return vm.NewString(fmt.Sprintf("Core_%p", target))
	}
	if stringer, ok := target.Value.(fmt.Stringer); ok {
		return vm.NewString(stringer.String())
	}
	return vm.NewString(fmt.Sprintf("%s_%p", vm.TypeName(target), target))
}

// ObjectIsIdenticalTo is an Object method.
//
// isIdenticalTo returns whether the object is the same as the argument.
func ObjectIsIdenticalTo(vm *VM, target, locals *Object, msg *Message) *Object {
	r, stop := msg.EvalArgAt(vm, locals, 0)
	if stop != NoStop {
		return vm.Stop(r, stop)
	}
	return vm.IoBool(target == r)
}

// ObjectEqual is an Object method.
//
// x ==(y) returns true if x and y are the same object.
func ObjectEqual(vm *VM, target, locals *Object, msg *Message) *Object {
	r, stop := msg.EvalArgAt(vm, locals, 0)
	if stop != NoStop {
		return vm.Stop(r, stop)
	}
	return vm.IoBool(PtrCompare(target, r) == 0)
}

// ObjectIsKindOf is an Object method.
//
// isKindOf returns whether the object is the argument or has the argument
// among its protos.
func ObjectIsKindOf(vm *VM, target, locals *Object, msg *Message) *Object {
	r, stop := msg.EvalArgAt(vm, locals, 0)
	if stop != NoStop {
		return vm.Stop(r, stop)
	}
	return vm.IoBool(target.IsKindOf(r))
}

// ObjectUniqueID is an Object method.
//
// uniqueId returns a string representation of the object's address.
func ObjectUniqueID(vm *VM, target, locals *Object, msg *Message) *Object {
	return vm.NewString(fmt.Sprintf("%#x", target.UniqueID()))
}

// PtrCompare returns a compare value for the unique IDs of two objects.
func PtrCompare(x, y *Object) int {
	a := x.UniqueID()
	b := y.UniqueID()
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
