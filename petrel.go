/*
Package petrel implements the Petrel object runtime.

Petrel is a dynamic, prototype-based runtime in the manner of Io and Self:
everything is an object, objects respond to messages by searching slots on
themselves and their prototypes, and new types are made by cloning. This
package focuses on the runtime core rather than a surface language; there is
no parser, and programs drive the runtime by constructing and performing
messages from Go.

The runtime can easily be embedded in another program. To start, use the
NewVM function to create and initialize the runtime. The VM object has a
number of fields that then can be used to make objects available to Petrel
code, especially the Lobby and Addons objects. Use the VM's NewNumber,
NewString, or any other object creation methods to create objects, then use
SetSlot to attach them.

# Buffers

The distinguishing feature of the runtime is its buffer protocol, the
capability by which objects expose their backing storage as N-dimensional
strided views over bytes. Any object whose type implements the capability
can be viewed: acquire a view with the VM's AsBuffer method, walk its bytes
with the descriptor's ForEachSegment or ZipEq, and release it when done.
Providers count outstanding views, so operations that would change a
provider's length while views exist fail rather than invalidate them.

Sequence is the workhorse provider: a mutable or immutable vector of
fixed-size items that also serves as the runtime's string type. VecBuffer is
the minimal provider, a plain growable byte vector.

Core extensions in the coreext directory add more capabilities, including
hashing over buffer views, memory-mapped file providers, and C type layout
metadata. Importing an extension package registers it; all VMs created
afterward include it.
*/
package petrel

import (
	"github.com/petrel-lang/petrel/internal"
)

// A VM processes Petrel programs.
type VM = internal.VM

// Object is the basic type of Petrel. Everything is an Object.
//
// Always use NewObject, ObjectWith, or a type-specific constructor to obtain
// new objects. Creating objects directly will result in arbitrary failures.
type Object = internal.Object

// Slots represents the set of messages to which an object responds.
type Slots = internal.Slots

// Tag is a type indicator for Petrel objects. Tag values must be comparable.
// Tags for different types must not be equal, meaning they must have
// different underlying types or different values otherwise.
type Tag = internal.Tag

// BasicTag is a special Tag type for basic primitive types which do not have
// special activation and whose clones have values that are shallow copies of
// their parents.
type BasicTag = internal.BasicTag

// A Stop represents a reason for flow control.
type Stop = internal.Stop

// RemoteStop is a wrapped object and control flow status.
type RemoteStop = internal.RemoteStop

// A CFunction is an object whose value represents a compiled function.
type CFunction = internal.CFunction

// An Exception is a Petrel exception.
type Exception = internal.Exception

// A Message is the fundamental functionality of Petrel.
//
// NOTE: Unlike most other primitive types in Petrel, Message values are NOT
// synchronized. It is a race condition to modify a message that might be in
// use in another goroutine.
type Message = internal.Message

// A Sequence is a collection of data of one fixed-size type.
type Sequence = internal.Sequence

// An Fn is a statically compiled function which can be executed in a Petrel
// VM.
type Fn = internal.Fn

// SeqKind represents a sequence data type.
type SeqKind = internal.SeqKind

// Buffer is a view binding a provider object to a descriptor of its memory
// layout.
type Buffer = internal.Buffer

// BufferDescriptor describes the memory layout of a buffer view.
type BufferDescriptor = internal.BufferDescriptor

// BufferMethods is the table of provider operations backing a Buffer.
type BufferMethods = internal.BufferMethods

// BufferTag is the capability a Tag implements so that objects of its type
// can expose their backing storage as buffers.
type BufferTag = internal.BufferTag

// Dim describes one dimension of a buffer view.
type Dim = internal.Dim

// Resizable is a scoped permit to change the length of a provider's
// storage.
type Resizable = internal.Resizable

// Resizer is the capability of providers whose length may change.
type Resizer = internal.Resizer

// A VecBuffer is a plain growable byte vector serving as the reference
// buffer provider.
type VecBuffer = internal.VecBuffer

// Tag variables for core types.
var (
	CFunctionTag = internal.CFunctionTag
	ExceptionTag = internal.ExceptionTag
	ListTag      = internal.ListTag
	MessageTag   = internal.MessageTag
	SequenceTag  = internal.SequenceTag
	VecBufferTag = internal.VecBufferTag
)

// Tag constants for core types.
const (
	NumberTag = internal.NumberTag
)

// Sequence element kinds.
var (
	SeqU8  = internal.SeqU8
	SeqI8  = internal.SeqI8
	SeqU16 = internal.SeqU16
	SeqI16 = internal.SeqI16
	SeqU32 = internal.SeqU32
	SeqI32 = internal.SeqI32
	SeqU64 = internal.SeqU64
	SeqI64 = internal.SeqI64
	SeqF32 = internal.SeqF32
	SeqF64 = internal.SeqF64
)

// Control flow reasons.
const (
	NoStop        = internal.NoStop
	ContinueStop  = internal.ContinueStop
	BreakStop     = internal.BreakStop
	ReturnStop    = internal.ReturnStop
	ExceptionStop = internal.ExceptionStop
	ExitStop      = internal.ExitStop
)

// NewVM prepares a new VM to process Petrel programs.
func NewVM() *VM {
	return internal.NewVM()
}

// SimpleDesc describes a 1-dimensional view over byteLen contiguous bytes.
func SimpleDesc(byteLen int, readonly bool) BufferDescriptor {
	return internal.SimpleDesc(byteLen, readonly)
}

// FormatDesc describes a 1-dimensional contiguous view over byteLen bytes
// holding elements of the given size and format label.
func FormatDesc(byteLen int, readonly bool, itemsize int, format string) BufferDescriptor {
	return internal.FormatDesc(byteLen, readonly, itemsize, format)
}

// NewBuffer creates a buffer over obj described by desc, retaining one
// export of obj.
func NewBuffer(obj *Object, desc BufferDescriptor, methods *BufferMethods) *Buffer {
	return internal.NewBuffer(obj, desc, methods)
}

// AdoptBuffer creates a buffer over obj described by desc without retaining
// a new export. It is the counterpart of a buffer's Detach.
func AdoptBuffer(obj *Object, desc BufferDescriptor, methods *BufferMethods) *Buffer {
	return internal.AdoptBuffer(obj, desc, methods)
}

// TryResizable returns a mutation permit for r, or an exception when
// exports are outstanding.
func TryResizable(vm *VM, r Resizer) (Resizable, *Object, Stop) {
	return internal.TryResizable(vm, r)
}
