package internal

import (
	"sync"

	"github.com/zephyrtronium/contains"
)

/*
This file contains the implementation of slot lookups. Performing a message
amounts to looking up a slot and then calling a function pointer, and it
turns out that the latter is cheap, so slots are the hot path.

Each object carries its own synchronized table. Lookup on an object checks
the local table, then performs a depth-first search of the proto graph,
skipping objects already visited.
*/

// Slots represents the set of messages to which an object responds.
type Slots map[string]*Object

// slotTable is the synchronized slot storage of an object.
type slotTable struct {
	mu sync.Mutex
	m  map[string]*Object
}

// load retrieves a slot's value, or nil if the slot does not exist.
func (t *slotTable) load(name string) (*Object, bool) {
	t.mu.Lock()
	v, ok := t.m[name]
	t.mu.Unlock()
	return v, ok
}

// store sets a slot's value, creating the table if needed.
func (t *slotTable) store(name string, v *Object) {
	t.mu.Lock()
	if t.m == nil {
		t.m = map[string]*Object{}
	}
	t.m[name] = v
	t.mu.Unlock()
}

// snap returns a copy of the table's current contents.
func (t *slotTable) snap() map[string]*Object {
	t.mu.Lock()
	m := make(map[string]*Object, len(t.m))
	for k, v := range t.m {
		m[k] = v
	}
	t.mu.Unlock()
	return m
}

// GetSlot checks obj and its ancestors in depth-first order without
// duplicates for a slot. It returns the slot value and the proto which had
// it. If the slot is not found anywhere in the proto graph, both results
// will be nil.
func (vm *VM) GetSlot(obj *Object, slot string) (value, proto *Object) {
	if obj == nil {
		return nil, nil
	}
	if v, ok := obj.slots.load(slot); ok {
		return v, obj
	}
	// The proto stack and set live on the VM to avoid allocating per lookup.
	// Lookups happen only on the VM's own goroutine.
	vm.protoStack = append(vm.protoStack[:0], obj.Protos()...)
	vm.protoSet.Add(obj.UniqueID())
	for _, p := range vm.protoStack {
		vm.protoSet.Add(p.UniqueID())
	}
	for len(vm.protoStack) > 0 {
		p := vm.protoStack[len(vm.protoStack)-1]
		vm.protoStack = vm.protoStack[:len(vm.protoStack)-1]
		if v, ok := p.slots.load(slot); ok {
			vm.protoSet = contains.Set{}
			return v, p
		}
		for _, q := range p.Protos() {
			if vm.protoSet.Add(q.UniqueID()) {
				vm.protoStack = append(vm.protoStack, q)
			}
		}
	}
	vm.protoSet = contains.Set{}
	return nil, nil
}

// GetLocalSlot checks only obj's own slots for a slot.
func (vm *VM) GetLocalSlot(obj *Object, slot string) (value *Object, ok bool) {
	if obj == nil {
		return nil, false
	}
	return obj.slots.load(slot)
}

// SetSlot sets a slot's value on obj.
func (vm *VM) SetSlot(obj *Object, slot string, value *Object) {
	obj.slots.store(slot, value)
}

// SetSlots sets the values of multiple slots on obj.
func (vm *VM) SetSlots(obj *Object, slots Slots) {
	obj.slots.mu.Lock()
	if obj.slots.m == nil {
		obj.slots.m = make(map[string]*Object, len(slots))
	}
	for k, v := range slots {
		obj.slots.m[k] = v
	}
	obj.slots.mu.Unlock()
}

// definitelyNewSlots sets the slots of an object that is known to have none,
// e.g. one just created.
func (vm *VM) definitelyNewSlots(obj *Object, slots Slots) {
	if len(slots) == 0 {
		return
	}
	m := make(map[string]*Object, len(slots))
	for k, v := range slots {
		m[k] = v
	}
	obj.slots.m = m
}

// RemoveSlot removes a slot from obj's local slots, if it exists.
func (vm *VM) RemoveSlot(obj *Object, slot string) {
	obj.slots.mu.Lock()
	delete(obj.slots.m, slot)
	obj.slots.mu.Unlock()
}

// RemoveAllSlots removes all local slots from obj.
func (vm *VM) RemoveAllSlots(obj *Object) {
	obj.slots.mu.Lock()
	obj.slots.m = nil
	obj.slots.mu.Unlock()
}

// ForeachSlot executes a function for each slot on obj, stopping early if
// the function returns false. The iteration order is arbitrary. exec
// observes a snapshot of the object's slots.
func (vm *VM) ForeachSlot(obj *Object, exec func(name string, value *Object) bool) {
	for k, v := range obj.slots.snap() {
		if !exec(k, v) {
			return
		}
	}
}
