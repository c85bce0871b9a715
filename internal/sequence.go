package internal

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// SeqKind describes the element type of a Sequence as an item size and a
// struct-style format label.
type SeqKind struct {
	itemsize int
	format   string
}

// Sequence element kinds.
var (
	SeqU8  = SeqKind{1, "B"}
	SeqI8  = SeqKind{1, "b"}
	SeqU16 = SeqKind{2, "H"}
	SeqI16 = SeqKind{2, "h"}
	SeqU32 = SeqKind{4, "I"}
	SeqI32 = SeqKind{4, "i"}
	SeqU64 = SeqKind{8, "Q"}
	SeqI64 = SeqKind{8, "q"}
	SeqF32 = SeqKind{4, "f"}
	SeqF64 = SeqKind{8, "d"}
)

// ItemSize returns the kind's element size in bytes.
func (k SeqKind) ItemSize() int { return k.itemsize }

// Format returns the kind's format label.
func (k SeqKind) Format() string { return k.format }

// A Sequence is a collection of data of a particular kind, either mutable or
// immutable. Immutable sequences with kind SeqU8 serve as strings. The
// backing bytes are guarded by the sequence's own lock, scoped to each
// access, and outstanding buffer exports are counted so length changes can
// be refused while views are alive.
type Sequence struct {
	mu      sync.Mutex
	data    []byte
	kind    SeqKind
	mutable bool

	// exports counts outstanding buffer views of this sequence. Accessed
	// atomically.
	exports int32
}

// tagSequence is the Tag type for Sequence objects.
type tagSequence struct{}

func (tagSequence) Activate(vm *VM, self, target, locals, context *Object, msg *Message) *Object {
	return self
}

func (tagSequence) CloneValue(value interface{}) interface{} {
	s := value.(*Sequence)
	s.mu.Lock()
	data := make([]byte, len(s.data))
	copy(data, s.data)
	s.mu.Unlock()
	return &Sequence{data: data, kind: s.kind, mutable: s.mutable}
}

func (tagSequence) String() string {
	return "Sequence"
}

// AsBuffer exposes the sequence's bytes as a buffer view. Immutable
// sequences yield readonly descriptors. Kinds wider than one byte yield
// format descriptors carrying the kind's item size and label.
func (tagSequence) AsBuffer(vm *VM, obj *Object) (*Buffer, *Object, Stop) {
	obj.Lock()
	s, ok := obj.Value.(*Sequence)
	obj.Unlock()
	if !ok {
		return nil, vm.NewExceptionf("a bytes-like object is required, not '%s'", vm.TypeName(obj)), ExceptionStop
	}
	// The lock is held through the retain so that a resize cannot win the
	// permit between reading the length and counting the export.
	s.mu.Lock()
	n := len(s.data)
	var desc BufferDescriptor
	if s.kind.itemsize == 1 {
		desc = SimpleDesc(n, !s.mutable)
	} else {
		desc = FormatDesc(n, !s.mutable, s.kind.itemsize, s.kind.format)
	}
	b := NewBuffer(obj, desc, &sequenceBufferMethods)
	s.mu.Unlock()
	return b, nil, NoStop
}

// SequenceTag is the Tag for Sequence objects.
var SequenceTag tagSequence

// sequenceBufferMethods is the buffer operation table for Sequence
// providers. Borrows hold the sequence's data lock until released; exports
// are counted atomically.
var sequenceBufferMethods = BufferMethods{
	ObjBytes: func(b *Buffer) ([]byte, func()) {
		s := b.Obj.Sequence()
		s.mu.Lock()
		return s.data, s.mu.Unlock
	},
	ObjBytesMut: func(b *Buffer) ([]byte, func()) {
		s := b.Obj.Sequence()
		s.mu.Lock()
		return s.data, s.mu.Unlock
	},
	Release: func(b *Buffer) {
		atomic.AddInt32(&b.Obj.Sequence().exports, -1)
	},
	Retain: func(b *Buffer) {
		atomic.AddInt32(&b.Obj.Sequence().exports, 1)
	},
}

// Sequence returns the object's Sequence value. Panics if the object does
// not hold a Sequence.
func (o *Object) Sequence() *Sequence {
	o.Lock()
	s := o.Value.(*Sequence)
	o.Unlock()
	return s
}

// TryResizableOpt returns a permit to change the sequence's length iff it
// has no outstanding buffer exports. The permit holds the data lock until
// Done, so no borrow can begin while a resize is in progress.
func (s *Sequence) TryResizableOpt() (Resizable, bool) {
	s.mu.Lock()
	if atomic.LoadInt32(&s.exports) != 0 {
		s.mu.Unlock()
		return Resizable{}, false
	}
	return Resizable{unlock: s.mu.Unlock}, true
}

// Exports returns the number of outstanding buffer views of the sequence.
func (s *Sequence) Exports() int {
	return int(atomic.LoadInt32(&s.exports))
}

// IsMutable reports whether the sequence can be modified.
func (s *Sequence) IsMutable() bool {
	return s.mutable
}

// Kind returns the sequence's element kind.
func (s *Sequence) Kind() SeqKind {
	return s.kind
}

// Len returns the number of items in the sequence.
func (s *Sequence) Len() int {
	s.mu.Lock()
	n := len(s.data)
	s.mu.Unlock()
	return n / s.kind.itemsize
}

// Bytes returns a copy of the sequence's bytes.
func (s *Sequence) Bytes() []byte {
	s.mu.Lock()
	b := make([]byte, len(s.data))
	copy(b, s.data)
	s.mu.Unlock()
	return b
}

// String converts the sequence to a string, decoding per its kind. One-byte
// kinds decode as UTF-8, two-byte kinds as UTF-16, and four-byte integer
// kinds as UTF-32, all little-endian. Float kinds format their items as
// numbers.
func (s *Sequence) String() string {
	s.mu.Lock()
	data := make([]byte, len(s.data))
	copy(data, s.data)
	s.mu.Unlock()
	switch s.kind {
	case SeqU8, SeqI8:
		return string(data)
	case SeqU16, SeqI16:
		u := make([]uint16, len(data)/2)
		for i := range u {
			u[i] = uint16(data[2*i]) | uint16(data[2*i+1])<<8
		}
		return string(utf16.Decode(u))
	case SeqU32, SeqI32:
		r := make([]rune, len(data)/4)
		for i := range r {
			r[i] = rune(uint32(data[4*i]) | uint32(data[4*i+1])<<8 | uint32(data[4*i+2])<<16 | uint32(data[4*i+3])<<24)
		}
		return string(r)
	}
	b := strings.Builder{}
	for i := 0; i*s.kind.itemsize < len(data); i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%g", s.at(data, i))
	}
	return b.String()
}

// at decodes item i of data per the sequence's kind. data and i must be in
// range.
func (s *Sequence) at(data []byte, i int) float64 {
	z := s.kind.itemsize
	p := data[i*z : (i+1)*z]
	var u uint64
	for k := z - 1; k >= 0; k-- {
		u = u<<8 | uint64(p[k])
	}
	switch s.kind {
	case SeqU8, SeqU16, SeqU32, SeqU64:
		return float64(u)
	case SeqI8:
		return float64(int8(u))
	case SeqI16:
		return float64(int16(u))
	case SeqI32:
		return float64(int32(u))
	case SeqI64:
		return float64(int64(u))
	case SeqF32:
		return float64(math.Float32frombits(uint32(u)))
	case SeqF64:
		return math.Float64frombits(u)
	}
	panic("petrel: unknown sequence kind")
}

// put encodes v into item i of data per the sequence's kind.
func (s *Sequence) put(data []byte, i int, v float64) {
	var u uint64
	switch s.kind {
	case SeqU8, SeqI8, SeqU16, SeqI16, SeqU32, SeqI32, SeqU64, SeqI64:
		u = uint64(int64(v))
	case SeqF32:
		u = uint64(math.Float32bits(float32(v)))
	case SeqF64:
		u = math.Float64bits(v)
	}
	z := s.kind.itemsize
	p := data[i*z : (i+1)*z]
	for k := 0; k < z; k++ {
		p[k] = byte(u)
		u >>= 8
	}
}

// NewSequence creates a new mutable Sequence with the given bytes, which are
// copied.
func (vm *VM) NewSequence(data []byte, kind SeqKind) *Object {
	b := make([]byte, len(data))
	copy(b, data)
	return vm.ObjectWith(nil, vm.CoreProto("Sequence"), &Sequence{data: b, kind: kind, mutable: true}, SequenceTag)
}

// NewString creates a new immutable Sequence representing the given string.
// Common strings share memoized objects.
func (vm *VM) NewString(value string) *Object {
	if s, ok := vm.stringMemo[value]; ok {
		return s
	}
	return vm.ObjectWith(nil, vm.CoreProto("String"), &Sequence{data: []byte(value), kind: SeqU8}, SequenceTag)
}

// initSequence sets up the Sequence and String protos and the string memo.
func (vm *VM) initSequence() {
	slots := Slots{
		"append":      vm.NewCFunction(SequenceAppend, SequenceTag),
		"appendSeq":   vm.NewCFunction(SequenceAppendSeq, SequenceTag),
		"asImmutable": vm.NewCFunction(SequenceAsImmutable, SequenceTag),
		"asLatin1":    vm.NewCFunction(SequenceAsLatin1, SequenceTag),
		"asMutable":   vm.NewCFunction(SequenceAsMutable, SequenceTag),
		"asString":    vm.NewCFunction(SequenceAsString, SequenceTag),
		"asUTF8":      vm.NewCFunction(SequenceAsUTF8, SequenceTag),
		"asUTF16":     vm.NewCFunction(SequenceAsUTF16, SequenceTag),
		"asUTF32":     vm.NewCFunction(SequenceAsUTF32, SequenceTag),
		"at":          vm.NewCFunction(SequenceAt, SequenceTag),
		"atPut":       vm.NewCFunction(SequenceAtPut, SequenceTag),
		"compare":     vm.NewCFunction(SequenceCompare, SequenceTag),
		"isMutable":   vm.NewCFunction(SequenceIsMutable, SequenceTag),
		"itemSize":    vm.NewCFunction(SequenceItemSize, SequenceTag),
		"itemType":    vm.NewCFunction(SequenceItemType, SequenceTag),
		"setSize":     vm.NewCFunction(SequenceSetSize, SequenceTag),
		"size":        vm.NewCFunction(SequenceSize, SequenceTag),
		"==":          vm.NewCFunction(SequenceEqual, SequenceTag),
	}
	seq := vm.coreInstall("Sequence", slots, &Sequence{kind: SeqU8, mutable: true}, SequenceTag)
	str := seq.Clone()
	str.Value = &Sequence{kind: SeqU8}
	vm.SetSlots(vm.Core, Slots{"String": str, "ImmutableSequence": str})

	// The memo is seeded here and read-only afterward, so NewString can
	// consult it without synchronization.
	vm.stringMemo = make(map[string]*Object, 32)
	for _, s := range []string{
		"", " ", "\n",
		"Addons", "Core", "Exception", "List", "Lobby", "Message", "Number",
		"Object", "Sequence", "String", "VecBuffer",
		"true", "false", "nil",
		"B", "b", "H", "h", "I", "i", "Q", "q", "f", "d",
	} {
		vm.stringMemo[s] = vm.ObjectWith(nil, []*Object{str}, &Sequence{data: []byte(s), kind: SeqU8}, SequenceTag)
	}

	vm.SetSlot(seq, "type", vm.NewString("Sequence"))
	vm.SetSlot(str, "type", vm.NewString("String"))
}

// SequenceAppend is a Sequence method.
//
// append adds numbers to the end of the sequence. It fails if any buffer
// views of the sequence are outstanding.
func SequenceAppend(vm *VM, target, locals *Object, msg *Message) *Object {
	s := target.Sequence()
	if !s.mutable {
		return vm.RaiseExceptionf("cannot append to an immutable sequence")
	}
	items := make([]float64, msg.ArgCount())
	for i := range items {
		n, exc, stop := msg.NumberArgAt(vm, locals, i)
		if stop != NoStop {
			return vm.Stop(exc, stop)
		}
		items[i] = n
	}
	permit, exc, stop := TryResizable(vm, s)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	defer permit.Done()
	k := len(s.data) / s.kind.itemsize
	s.data = append(s.data, make([]byte, len(items)*s.kind.itemsize)...)
	for i, v := range items {
		s.put(s.data, k+i, v)
	}
	return target
}

// SequenceAppendSeq is a Sequence method.
//
// appendSeq appends the contents of any bytes-like object to the sequence.
// It fails if any buffer views of the sequence are outstanding.
func SequenceAppendSeq(vm *VM, target, locals *Object, msg *Message) *Object {
	s := target.Sequence()
	if !s.mutable {
		return vm.RaiseExceptionf("cannot append to an immutable sequence")
	}
	buf, exc, stop := msg.BufferArgAt(vm, locals, 0)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	// Collect before taking the permit so that appending a sequence to
	// itself copies its current bytes instead of deadlocking on its own
	// data lock.
	data := buf.AppendTo(nil)
	buf.Release()
	permit, exc, stop := TryResizable(vm, s)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	s.data = append(s.data, data...)
	permit.Done()
	return target
}

// SequenceAsImmutable is a Sequence method.
//
// asImmutable returns an immutable copy of the sequence, or the sequence
// itself if it is already immutable.
func SequenceAsImmutable(vm *VM, target, locals *Object, msg *Message) *Object {
	s := target.Sequence()
	if !s.mutable {
		return target
	}
	return vm.ObjectWith(nil, vm.CoreProto("String"), &Sequence{data: s.Bytes(), kind: s.kind}, SequenceTag)
}

// SequenceAsMutable is a Sequence method.
//
// asMutable returns a mutable copy of the sequence.
func SequenceAsMutable(vm *VM, target, locals *Object, msg *Message) *Object {
	s := target.Sequence()
	return vm.ObjectWith(nil, vm.CoreProto("Sequence"), &Sequence{data: s.Bytes(), kind: s.kind, mutable: true}, SequenceTag)
}

// SequenceAsString is a Sequence method.
//
// asString returns a string representation of the sequence.
func SequenceAsString(vm *VM, target, locals *Object, msg *Message) *Object {
	return vm.NewString(target.Sequence().String())
}

// SequenceAsUTF8 is a Sequence method.
//
// asUTF8 returns an immutable copy of the sequence encoded in UTF-8.
func SequenceAsUTF8(vm *VM, target, locals *Object, msg *Message) *Object {
	s := target.Sequence()
	return vm.ObjectWith(nil, vm.CoreProto("String"), &Sequence{data: []byte(s.String()), kind: SeqU8}, SequenceTag)
}

// SequenceAsUTF16 is a Sequence method.
//
// asUTF16 returns an immutable copy of the sequence encoded in
// little-endian UTF-16.
func SequenceAsUTF16(vm *VM, target, locals *Object, msg *Message) *Object {
	s := target.Sequence()
	e := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	data, err := e.Bytes([]byte(s.String()))
	if err != nil {
		return vm.IoError(err)
	}
	return vm.ObjectWith(nil, vm.CoreProto("String"), &Sequence{data: data, kind: SeqU16}, SequenceTag)
}

// SequenceAsUTF32 is a Sequence method.
//
// asUTF32 returns an immutable copy of the sequence encoded in
// little-endian UTF-32.
func SequenceAsUTF32(vm *VM, target, locals *Object, msg *Message) *Object {
	s := target.Sequence()
	e := utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM).NewEncoder()
	data, err := e.Bytes([]byte(s.String()))
	if err != nil {
		return vm.IoError(err)
	}
	return vm.ObjectWith(nil, vm.CoreProto("String"), &Sequence{data: data, kind: SeqU32}, SequenceTag)
}

// SequenceAsLatin1 is a Sequence method.
//
// asLatin1 returns an immutable copy of the sequence encoded in Latin-1.
// Characters outside the Latin-1 range cause an exception.
func SequenceAsLatin1(vm *VM, target, locals *Object, msg *Message) *Object {
	s := target.Sequence()
	e := charmap.ISO8859_1.NewEncoder()
	data, err := e.Bytes([]byte(s.String()))
	if err != nil {
		return vm.IoError(err)
	}
	return vm.ObjectWith(nil, vm.CoreProto("String"), &Sequence{data: data, kind: SeqU8}, SequenceTag)
}

// SequenceAt is a Sequence method.
//
// at returns the item at the given index as a number, or nil if the index
// is out of bounds.
func SequenceAt(vm *VM, target, locals *Object, msg *Message) *Object {
	s := target.Sequence()
	n, exc, stop := msg.NumberArgAt(vm, locals, 0)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	k := int(n)
	s.mu.Lock()
	defer s.mu.Unlock()
	if k < 0 || k >= len(s.data)/s.kind.itemsize {
		return vm.Nil
	}
	return vm.NewNumber(s.at(s.data, k))
}

// SequenceAtPut is a Sequence method.
//
// atPut stores a number at the given index. The sequence must be mutable,
// but the length does not change, so outstanding buffer views do not block
// the store.
func SequenceAtPut(vm *VM, target, locals *Object, msg *Message) *Object {
	s := target.Sequence()
	if !s.mutable {
		return vm.RaiseExceptionf("cannot modify an immutable sequence")
	}
	n, exc, stop := msg.NumberArgAt(vm, locals, 0)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	v, exc, stop := msg.NumberArgAt(vm, locals, 1)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	k := int(n)
	s.mu.Lock()
	defer s.mu.Unlock()
	if k < 0 || k >= len(s.data)/s.kind.itemsize {
		return vm.RaiseExceptionf("index %d out of bounds", k)
	}
	s.put(s.data, k, v)
	return target
}

// SequenceCompare is a Sequence method.
//
// compare returns -1, 0, or 1 ordering the sequence's bytes against any
// bytes-like object's.
func SequenceCompare(vm *VM, target, locals *Object, msg *Message) *Object {
	a, exc, stop := vm.AsBuffer(target)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	defer a.Release()
	b, exc, stop := msg.BufferArgAt(vm, locals, 0)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	defer b.Release()
	ab := a.AppendTo(nil)
	bb := b.AppendTo(nil)
	for i := 0; i < len(ab) && i < len(bb); i++ {
		if ab[i] != bb[i] {
			if ab[i] < bb[i] {
				return vm.NewNumber(-1)
			}
			return vm.NewNumber(1)
		}
	}
	switch {
	case len(ab) < len(bb):
		return vm.NewNumber(-1)
	case len(ab) > len(bb):
		return vm.NewNumber(1)
	}
	return vm.NewNumber(0)
}

// SequenceEqual is a Sequence method.
//
// == reports whether the sequence's logical bytes equal those of any
// bytes-like object. The comparison short-circuits on the first differing
// position.
func SequenceEqual(vm *VM, target, locals *Object, msg *Message) *Object {
	a, exc, stop := vm.AsBuffer(target)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	defer a.Release()
	b, exc, stop := msg.BufferArgAt(vm, locals, 0)
	if stop != NoStop {
		// A non-buffer argument is unequal, not an error.
		if stop == ExceptionStop {
			return vm.False
		}
		return vm.Stop(exc, stop)
	}
	defer b.Release()
	if a.Desc.Len != b.Desc.Len || a.Desc.Ndim() != b.Desc.Ndim() {
		return vm.False
	}
	for i, dim := range a.Desc.Dims {
		if dim.Shape != b.Desc.Dims[i].Shape {
			return vm.False
		}
	}
	ad, arel := a.ObjBytes()
	defer arel()
	var bd []byte
	if b.Obj == a.Obj {
		bd = ad
	} else {
		var brel func()
		bd, brel = b.ObjBytes()
		defer brel()
	}
	eq := true
	a.Desc.ZipEq(b.Desc, true, func(a0, a1, b0, b1 int) bool {
		if !bytes.Equal(ad[a0:a1], bd[b0:b1]) {
			eq = false
			return true
		}
		return false
	})
	return vm.IoBool(eq)
}

// SequenceIsMutable is a Sequence method.
//
// isMutable reports whether the sequence can be modified.
func SequenceIsMutable(vm *VM, target, locals *Object, msg *Message) *Object {
	return vm.IoBool(target.Sequence().mutable)
}

// SequenceItemSize is a Sequence method.
//
// itemSize returns the size in bytes of each item in the sequence.
func SequenceItemSize(vm *VM, target, locals *Object, msg *Message) *Object {
	return vm.NewNumber(float64(target.Sequence().kind.itemsize))
}

// SequenceItemType is a Sequence method.
//
// itemType returns the format label of the sequence's items.
func SequenceItemType(vm *VM, target, locals *Object, msg *Message) *Object {
	return vm.NewString(target.Sequence().kind.format)
}

// SequenceSetSize is a Sequence method.
//
// setSize changes the number of items in the sequence, truncating or
// zero-extending. It fails if any buffer views of the sequence are
// outstanding.
func SequenceSetSize(vm *VM, target, locals *Object, msg *Message) *Object {
	s := target.Sequence()
	if !s.mutable {
		return vm.RaiseExceptionf("cannot resize an immutable sequence")
	}
	n, exc, stop := msg.NumberArgAt(vm, locals, 0)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	k := int(n)
	if k < 0 {
		return vm.RaiseExceptionf("cannot resize to negative size %d", k)
	}
	permit, exc, stop := TryResizable(vm, s)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	defer permit.Done()
	z := k * s.kind.itemsize
	if z <= len(s.data) {
		s.data = s.data[:z]
	} else {
		s.data = append(s.data, make([]byte, z-len(s.data))...)
	}
	return target
}

// SequenceSize is a Sequence method.
//
// size returns the number of items in the sequence.
func SequenceSize(vm *VM, target, locals *Object, msg *Message) *Object {
	return vm.NewNumber(float64(target.Sequence().Len()))
}
