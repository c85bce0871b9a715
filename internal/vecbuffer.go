package internal

import "sync"

// A VecBuffer is a plain growable byte vector serving as the reference
// buffer provider. It carries no export count: its lifetime is governed
// entirely by the garbage collector, so retain and release are no-ops and
// resizes are serialized only by the data lock.
type VecBuffer struct {
	mu   sync.Mutex
	data []byte
}

// tagVecBuffer is the Tag type for VecBuffer objects.
type tagVecBuffer struct{}

func (tagVecBuffer) Activate(vm *VM, self, target, locals, context *Object, msg *Message) *Object {
	return self
}

func (tagVecBuffer) CloneValue(value interface{}) interface{} {
	v := value.(*VecBuffer)
	v.mu.Lock()
	data := make([]byte, len(v.data))
	copy(data, v.data)
	v.mu.Unlock()
	return &VecBuffer{data: data}
}

func (tagVecBuffer) String() string {
	return "VecBuffer"
}

// AsBuffer exposes the vector's bytes as a writable 1-dimensional view.
func (tagVecBuffer) AsBuffer(vm *VM, obj *Object) (*Buffer, *Object, Stop) {
	v := obj.VecBuffer()
	v.mu.Lock()
	n := len(v.data)
	v.mu.Unlock()
	return NewBuffer(obj, SimpleDesc(n, false), &vecBufferMethods), nil, NoStop
}

// VecBufferTag is the Tag for VecBuffer objects.
var VecBufferTag tagVecBuffer

// vecBufferMethods is the buffer operation table for VecBuffer providers.
var vecBufferMethods = BufferMethods{
	ObjBytes: func(b *Buffer) ([]byte, func()) {
		v := b.Obj.VecBuffer()
		v.mu.Lock()
		return v.data, v.mu.Unlock
	},
	ObjBytesMut: func(b *Buffer) ([]byte, func()) {
		v := b.Obj.VecBuffer()
		v.mu.Lock()
		return v.data, v.mu.Unlock
	},
	Release: func(b *Buffer) {},
	Retain:  func(b *Buffer) {},
}

// VecBuffer returns the object's VecBuffer value. Panics if the object does
// not hold a VecBuffer.
func (o *Object) VecBuffer() *VecBuffer {
	o.Lock()
	v := o.Value.(*VecBuffer)
	o.Unlock()
	return v
}

// Take removes and returns the vector's bytes, leaving it empty. The
// returned slice is owned by the caller.
func (v *VecBuffer) Take() []byte {
	v.mu.Lock()
	data := v.data
	v.data = nil
	v.mu.Unlock()
	return data
}

// Len returns the number of bytes in the vector.
func (v *VecBuffer) Len() int {
	v.mu.Lock()
	n := len(v.data)
	v.mu.Unlock()
	return n
}

// NewVecBuffer creates a VecBuffer object owning the given bytes. The slice
// is not copied.
func (vm *VM) NewVecBuffer(data []byte) *Object {
	return vm.ObjectWith(nil, vm.CoreProto("VecBuffer"), &VecBuffer{data: data}, VecBufferTag)
}

// BufferFromBytes wraps bytes in a fresh VecBuffer provider and returns a
// readonly buffer view of it. The slice is not copied; the caller must not
// use it afterward.
func (vm *VM) BufferFromBytes(data []byte) *Buffer {
	obj := vm.NewVecBuffer(data)
	return NewBuffer(obj, SimpleDesc(len(data), true), &vecBufferMethods)
}

// initVecBuffer sets up the VecBuffer proto.
func (vm *VM) initVecBuffer() {
	slots := Slots{
		"asString": vm.NewCFunction(VecBufferAsString, VecBufferTag),
		"size":     vm.NewCFunction(VecBufferSize, VecBufferTag),
		"take":     vm.NewCFunction(VecBufferTake, VecBufferTag),
		"type":     vm.NewString("VecBuffer"),
	}
	vm.coreInstall("VecBuffer", slots, &VecBuffer{}, VecBufferTag)
}

// VecBufferAsString is a VecBuffer method.
//
// asString returns the vector's bytes as a string.
func VecBufferAsString(vm *VM, target, locals *Object, msg *Message) *Object {
	v := target.VecBuffer()
	v.mu.Lock()
	s := string(v.data)
	v.mu.Unlock()
	return vm.NewString(s)
}

// VecBufferSize is a VecBuffer method.
//
// size returns the number of bytes in the vector.
func VecBufferSize(vm *VM, target, locals *Object, msg *Message) *Object {
	return vm.NewNumber(float64(target.VecBuffer().Len()))
}

// VecBufferTake is a VecBuffer method.
//
// take removes the vector's bytes and returns them as a mutable Sequence,
// leaving the vector empty.
func VecBufferTake(vm *VM, target, locals *Object, msg *Message) *Object {
	data := target.VecBuffer().Take()
	return vm.ObjectWith(nil, vm.CoreProto("Sequence"), &Sequence{data: data, kind: SeqU8, mutable: true}, SequenceTag)
}
