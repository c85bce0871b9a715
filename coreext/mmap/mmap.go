package mmap

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/petrel-lang/petrel"
	"github.com/petrel-lang/petrel/internal"
)

// The mmap extension maps files into memory and exposes the mappings as
// buffer providers. A mapping counts its exports like any other provider,
// so it cannot be closed while buffer views of it are alive.

func init() {
	internal.Register(initMmap)
}

// A Map is a memory-mapped file. The mapping is read-only.
type Map struct {
	mu   sync.Mutex
	data []byte
	path string
	// closed marks the mapping unusable. The data slice is invalid once set.
	closed bool

	// exports counts outstanding buffer views. Accessed atomically.
	exports int32
}

// TryResizableOpt returns a permit iff the mapping has no outstanding
// buffer views. Closing is the only length change a mapping supports.
func (m *Map) TryResizableOpt() (internal.Resizable, bool) {
	m.mu.Lock()
	if atomic.LoadInt32(&m.exports) != 0 {
		m.mu.Unlock()
		return internal.Resizable{}, false
	}
	return internal.NewResizable(m.mu.Unlock), true
}

// tagMap is the Tag type for Mmap objects.
type tagMap struct{}

func (tagMap) Activate(vm *petrel.VM, self, target, locals, context *petrel.Object, msg *petrel.Message) *petrel.Object {
	return self
}

func (tagMap) CloneValue(value interface{}) interface{} {
	// Clones share the mapping. The file cannot be mapped again without its
	// path, and mapping twice would give the clone a separate export count
	// over the same pages.
	return value
}

func (tagMap) String() string {
	return "Mmap"
}

// AsBuffer exposes the mapped bytes as a readonly 1-dimensional view.
func (tagMap) AsBuffer(vm *petrel.VM, obj *petrel.Object) (*petrel.Buffer, *petrel.Object, petrel.Stop) {
	m := mapValue(obj)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, vm.NewException("cannot export a closed mapping"), petrel.ExceptionStop
	}
	return petrel.NewBuffer(obj, petrel.SimpleDesc(len(m.data), true), &mapBufferMethods), nil, petrel.NoStop
}

// MapTag is the Tag for Mmap objects.
var MapTag tagMap

var mapBufferMethods = petrel.BufferMethods{
	ObjBytes: func(b *petrel.Buffer) ([]byte, func()) {
		m := mapValue(b.Obj)
		m.mu.Lock()
		return m.data, m.mu.Unlock
	},
	ObjBytesMut: func(b *petrel.Buffer) ([]byte, func()) {
		m := mapValue(b.Obj)
		m.mu.Lock()
		return m.data, m.mu.Unlock
	},
	Release: func(b *petrel.Buffer) {
		atomic.AddInt32(&mapValue(b.Obj).exports, -1)
	},
	Retain: func(b *petrel.Buffer) {
		atomic.AddInt32(&mapValue(b.Obj).exports, 1)
	},
}

func mapValue(obj *petrel.Object) *Map {
	obj.Lock()
	m := obj.Value.(*Map)
	obj.Unlock()
	return m
}

func initMmap(vm *petrel.VM) {
	slots := petrel.Slots{
		"asString": vm.NewCFunction(mmapAsString, MapTag),
		"close":    vm.NewCFunction(mmapClose, MapTag),
		"isClosed": vm.NewCFunction(mmapIsClosed, MapTag),
		"open":     vm.NewCFunction(mmapOpen, nil),
		"path":     vm.NewCFunction(mmapPath, MapTag),
		"size":     vm.NewCFunction(mmapSize, MapTag),
		"type":     vm.NewString("Mmap"),
	}
	internal.CoreInstall(vm, "Mmap", slots, &Map{closed: true}, MapTag)
}

// mmapOpen is an Mmap method.
//
// open maps the file at the given path read-only and returns the mapping.
func mmapOpen(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	path, exc, stop := msg.StringArgAt(vm, locals, 0)
	if stop != petrel.NoStop {
		return vm.Stop(exc, stop)
	}
	data, err := openMap(path)
	if err != nil {
		return vm.IoError(err)
	}
	return vm.ObjectWith(nil, vm.CoreProto("Mmap"), &Map{data: data, path: path}, MapTag)
}

// mmapClose is an Mmap method.
//
// close unmaps the file. It fails if any buffer views of the mapping are
// outstanding, since unmapping would invalidate their bytes.
func mmapClose(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	m := mapValue(target)
	permit, exc, stop := petrel.TryResizable(vm, m)
	if stop != petrel.NoStop {
		return vm.Stop(exc, stop)
	}
	defer permit.Done()
	if m.closed {
		return target
	}
	data := m.data
	m.data = nil
	m.closed = true
	if err := closeMap(data); err != nil {
		return vm.IoError(err)
	}
	return target
}

// mmapIsClosed is an Mmap method.
//
// isClosed reports whether the mapping has been closed.
func mmapIsClosed(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	m := mapValue(target)
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	return vm.IoBool(closed)
}

// mmapPath is an Mmap method.
//
// path returns the path of the mapped file.
func mmapPath(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	return vm.NewString(mapValue(target).path)
}

// mmapSize is an Mmap method.
//
// size returns the number of mapped bytes.
func mmapSize(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	m := mapValue(target)
	m.mu.Lock()
	n := len(m.data)
	m.mu.Unlock()
	return vm.NewNumber(float64(n))
}

// mmapAsString is an Mmap method.
//
// asString returns a description of the mapping.
func mmapAsString(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	m := mapValue(target)
	m.mu.Lock()
	s := fmt.Sprintf("Mmap(%q, %d bytes)", m.path, len(m.data))
	if m.closed {
		s = fmt.Sprintf("Mmap(%q, closed)", m.path)
	}
	m.mu.Unlock()
	return vm.NewString(s)
}
