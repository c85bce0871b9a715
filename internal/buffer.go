package internal

import (
	"fmt"

	"github.com/zephyrtronium/contains"
)

// This file implements the buffer protocol: the capability by which objects
// expose their backing storage as an N-dimensional strided view over bytes.
// Views are shared across goroutines; providers count outstanding exports so
// that length-changing mutations can be refused while any view is alive.

// Dim describes one dimension of a buffer view as a (shape, stride,
// suboffset) triple. Suboffset is a fixed per-dimension offset applied
// alongside the stride step and is always non-negative.
type Dim struct {
	Shape     int
	Stride    int
	Suboffset int
}

// BufferDescriptor describes the memory layout of a buffer view: the total
// byte length, the element size, an opaque format label, and one Dim per
// dimension, outermost first. Descriptors are immutable once validated;
// transformations build new descriptors rather than mutating in place.
type BufferDescriptor struct {
	// Len is the total number of bytes the view covers. It is always
	// product(shape) * itemsize, which is not necessarily the length of the
	// provider's storage, even for contiguous views.
	Len int
	// Readonly reports whether the view permits writes.
	Readonly bool
	// Itemsize is the size in bytes of one element.
	Itemsize int
	// Format is an opaque label describing the element type, following the
	// struct-style convention ("B" is an unsigned byte). It is stored and
	// forwarded, never interpreted.
	Format string
	// Dims holds one entry per dimension, outermost first. An empty Dims is
	// the 0-dimensional scalar case, handled specially by traversal.
	Dims []Dim
}

// SimpleDesc describes a 1-dimensional view over byteLen contiguous bytes.
func SimpleDesc(byteLen int, readonly bool) BufferDescriptor {
	return BufferDescriptor{
		Len:      byteLen,
		Readonly: readonly,
		Itemsize: 1,
		Format:   "B",
		Dims:     []Dim{{byteLen, 1, 0}},
	}
}

// FormatDesc describes a 1-dimensional contiguous view over byteLen bytes
// holding elements of the given size and format label.
func FormatDesc(byteLen int, readonly bool, itemsize int, format string) BufferDescriptor {
	return BufferDescriptor{
		Len:      byteLen,
		Readonly: readonly,
		Itemsize: itemsize,
		Format:   format,
		Dims:     []Dim{{byteLen / itemsize, itemsize, 0}},
	}
}

// Validate panics if the descriptor's invariants do not hold. Producers of
// descriptors are internal and trusted; a violation is a programming error,
// not a recoverable condition. Returns the descriptor for chaining.
func (d BufferDescriptor) Validate() BufferDescriptor {
	if d.Itemsize == 0 {
		panic("petrel: buffer descriptor with zero itemsize")
	}
	if d.Ndim() == 0 {
		panic("petrel: buffer descriptor with no dimensions")
	}
	shapeProduct := 1
	for _, dim := range d.Dims {
		shapeProduct *= dim.Shape
		if dim.Suboffset < 0 {
			panic("petrel: buffer descriptor with negative suboffset")
		}
		if dim.Stride == 0 {
			panic("petrel: buffer descriptor with zero stride")
		}
	}
	if shapeProduct*d.Itemsize != d.Len {
		panic(fmt.Sprintf("petrel: buffer descriptor length %d does not cover shape product %d with itemsize %d", d.Len, shapeProduct, d.Itemsize))
	}
	return d
}

// Ndim returns the number of dimensions.
func (d BufferDescriptor) Ndim() int {
	return len(d.Dims)
}

// IsContiguous reports whether the view covers its bytes in one dense
// row-major block. A zero-length view is trivially contiguous. Column-major
// layouts are never reported contiguous; only row-major order is supported.
func (d BufferDescriptor) IsContiguous() bool {
	if d.Len == 0 {
		return true
	}
	sd := d.Itemsize
	for i := d.Ndim() - 1; i >= 0; i-- {
		dim := d.Dims[i]
		if dim.Shape > 1 && dim.Stride != sd {
			return false
		}
		sd *= dim.Shape
	}
	return true
}

// IsZeroInShape reports whether any dimension has shape 0, making the
// logical traversal empty.
func (d BufferDescriptor) IsZeroInShape() bool {
	for _, dim := range d.Dims {
		if dim.Shape == 0 {
			return true
		}
	}
	return false
}

// FastPosition computes the byte position of the element at the given index
// tuple without any bounds checking. Use only where the caller has already
// checked every index. Panics if len(indices) != Ndim().
func (d BufferDescriptor) FastPosition(indices []int) int {
	if len(indices) != d.Ndim() {
		panic("petrel: index tuple length does not match buffer dimensions")
	}
	pos := 0
	for k, i := range indices {
		dim := d.Dims[k]
		pos += i*dim.Stride + dim.Suboffset
	}
	return pos
}

// Position computes the byte position of the element at the given index
// tuple. Each index is normalized against its dimension's shape with
// wraparound semantics, so a negative index counts from the end of that
// dimension. An index out of range even after wraparound produces an
// exception naming the offending dimension and the raw index. Panics if
// len(indices) != Ndim().
func (d BufferDescriptor) Position(vm *VM, indices []int) (int, *Object, Stop) {
	if len(indices) != d.Ndim() {
		panic("petrel: index tuple length does not match buffer dimensions")
	}
	pos := 0
	for k, i := range indices {
		dim := d.Dims[k]
		j := i
		if j < 0 {
			j += dim.Shape
		}
		if j < 0 || j >= dim.Shape {
			return 0, vm.NewExceptionf("index %d out of range on dimension %d", i, k), ExceptionStop
		}
		pos += j*dim.Stride + dim.Suboffset
	}
	return pos, nil, NoStop
}

// lastDimContiguous reports whether the innermost dimension steps densely
// through elements, permitting the fused traversal path.
func (d BufferDescriptor) lastDimContiguous() bool {
	dim := d.Dims[d.Ndim()-1]
	return dim.Suboffset == 0 && dim.Stride == d.Itemsize
}

// ForEachSegment enumerates the view's maximal contiguous byte ranges in
// row-major order, calling visit once per range with its start and end byte
// positions. The 0-dimensional case visits exactly one range covering one
// item. When tryContiguous is set and the innermost dimension is itself
// contiguous, whole innermost rows are emitted as single ranges; otherwise
// every element is its own range. The traversal mode is chosen once before
// recursion. A dimension of shape 0 visits nothing. The visit order for a
// given descriptor is identical on both paths.
func (d BufferDescriptor) ForEachSegment(tryContiguous bool, visit func(start, end int)) {
	if d.Ndim() == 0 {
		visit(0, d.Itemsize)
		return
	}
	if d.IsZeroInShape() {
		// The fused path would emit one empty range per innermost row.
		return
	}
	if tryContiguous && d.lastDimContiguous() {
		d.eachSegmentFused(0, 0, visit)
	} else {
		d.eachSegmentStrided(0, 0, visit)
	}
}

// eachSegmentFused is the traversal path for views whose innermost
// dimension is contiguous: each innermost row becomes one segment.
func (d BufferDescriptor) eachSegmentFused(index, dim int, visit func(start, end int)) {
	cur := d.Dims[dim]
	if dim+1 == d.Ndim() {
		visit(index, index+cur.Shape*d.Itemsize)
		return
	}
	for n := 0; n < cur.Shape; n++ {
		d.eachSegmentFused(index+cur.Suboffset, dim+1, visit)
		index += cur.Stride
	}
}

// eachSegmentStrided is the traversal path emitting one segment per
// element.
func (d BufferDescriptor) eachSegmentStrided(index, dim int, visit func(start, end int)) {
	cur := d.Dims[dim]
	if dim+1 == d.Ndim() {
		for n := 0; n < cur.Shape; n++ {
			pos := index + cur.Suboffset
			visit(pos, pos+d.Itemsize)
			index += cur.Stride
		}
		return
	}
	for n := 0; n < cur.Shape; n++ {
		d.eachSegmentStrided(index+cur.Suboffset, dim+1, visit)
		index += cur.Stride
	}
}

// ZipEq traverses two descriptors of identical logical shape in lockstep,
// calling visit once per matching logical position with the byte ranges in
// d and other respectively. Rows are fused into single visits only when the
// innermost dimension of both sides is dense; otherwise every element pair
// is visited separately, so asymmetric layouts stay correctly aligned.
// visit returning true terminates the whole traversal early; this is a
// normal outcome, not an error. Descriptors with mismatched shapes are a
// programming error and panic.
func (d BufferDescriptor) ZipEq(other BufferDescriptor, tryContiguous bool, visit func(a0, a1, b0, b1 int) bool) {
	if d.Ndim() != other.Ndim() {
		panic("petrel: zipped buffer descriptors with different dimension counts")
	}
	for k, dim := range d.Dims {
		if other.Dims[k].Shape != dim.Shape {
			panic(fmt.Sprintf("petrel: zipped buffer descriptors with different shapes on dimension %d", k))
		}
	}
	if d.Ndim() == 0 {
		visit(0, d.Itemsize, 0, other.Itemsize)
		return
	}
	if d.IsZeroInShape() {
		return
	}
	if tryContiguous && d.lastDimContiguous() && other.lastDimContiguous() {
		d.zipEqFused(other, 0, 0, 0, visit)
	} else {
		d.zipEqStrided(other, 0, 0, 0, visit)
	}
}

func (d BufferDescriptor) zipEqFused(other BufferDescriptor, aIndex, bIndex, dim int, visit func(a0, a1, b0, b1 int) bool) bool {
	a, b := d.Dims[dim], other.Dims[dim]
	if dim+1 == d.Ndim() {
		return visit(aIndex, aIndex+a.Shape*d.Itemsize, bIndex, bIndex+a.Shape*other.Itemsize)
	}
	for n := 0; n < a.Shape; n++ {
		if d.zipEqFused(other, aIndex+a.Suboffset, bIndex+b.Suboffset, dim+1, visit) {
			return true
		}
		aIndex += a.Stride
		bIndex += b.Stride
	}
	return false
}

func (d BufferDescriptor) zipEqStrided(other BufferDescriptor, aIndex, bIndex, dim int, visit func(a0, a1, b0, b1 int) bool) bool {
	a, b := d.Dims[dim], other.Dims[dim]
	if dim+1 == d.Ndim() {
		for n := 0; n < a.Shape; n++ {
			aPos := aIndex + a.Suboffset
			bPos := bIndex + b.Suboffset
			if visit(aPos, aPos+d.Itemsize, bPos, bPos+other.Itemsize) {
				return true
			}
			aIndex += a.Stride
			bIndex += b.Stride
		}
		return false
	}
	for n := 0; n < a.Shape; n++ {
		if d.zipEqStrided(other, aIndex+a.Suboffset, bIndex+b.Suboffset, dim+1, visit) {
			return true
		}
		aIndex += a.Stride
		bIndex += b.Stride
	}
	return false
}

// BufferMethods is the table of provider operations backing a Buffer. One
// static table exists per concrete provider type, chosen when the buffer is
// constructed; traversal code stays provider-agnostic.
type BufferMethods struct {
	// ObjBytes returns a borrowed read view of the provider's storage and a
	// release function. The provider's lock is held until release.
	ObjBytes func(b *Buffer) ([]byte, func())
	// ObjBytesMut returns a borrowed read-write view of the provider's
	// storage and a release function. Callers must reject mutable views on
	// readonly descriptors before reaching this.
	ObjBytesMut func(b *Buffer) ([]byte, func())
	// Release drops one export of the provider.
	Release func(b *Buffer)
	// Retain adds one export of the provider.
	Retain func(b *Buffer)
}

// Buffer is a view binding a provider object to a descriptor of its memory
// layout. Constructing a buffer retains one export of the provider;
// releasing it drops that export. Multiple buffers may view one provider
// concurrently.
type Buffer struct {
	// Obj is the provider object. It must outlive the buffer.
	Obj *Object
	// Desc describes the view's memory layout.
	Desc BufferDescriptor
	// methods is the provider type's operation table. It becomes nil when
	// the buffer is released or detached.
	methods *BufferMethods
}

// NewBuffer creates a buffer over obj described by desc, retaining one
// export of obj. The caller must call Release exactly once when the view is
// no longer needed, except after Detach.
func NewBuffer(obj *Object, desc BufferDescriptor, methods *BufferMethods) *Buffer {
	b := &Buffer{
		Obj:     obj,
		Desc:    desc.Validate(),
		methods: methods,
	}
	methods.Retain(b)
	return b
}

// AdoptBuffer creates a buffer over obj described by desc without retaining
// a new export. It is the counterpart of Detach: the new buffer takes over
// the detached buffer's pending release.
func AdoptBuffer(obj *Object, desc BufferDescriptor, methods *BufferMethods) *Buffer {
	return &Buffer{
		Obj:     obj,
		Desc:    desc.Validate(),
		methods: methods,
	}
}

// ObjBytes returns a borrowed read view of the provider's storage and a
// release function. The view is valid only until release is called.
func (b *Buffer) ObjBytes() ([]byte, func()) {
	return b.methods.ObjBytes(b)
}

// ObjBytesMut returns a borrowed read-write view of the provider's storage
// and a release function. Requesting a mutable view on a readonly
// descriptor must be rejected by the calling layer; it is not checked here.
func (b *Buffer) ObjBytesMut() ([]byte, func()) {
	return b.methods.ObjBytesMut(b)
}

// Release drops the buffer's export of the provider. Each buffer releases
// at most once; calls after the first, or after Detach, do nothing.
func (b *Buffer) Release() {
	if b.methods == nil {
		return
	}
	m := b.methods
	b.methods = nil
	m.Release(b)
}

// Detach forgets the buffer's pending release and returns the provider and
// descriptor for reparenting into a different ownership context, typically
// via AdoptBuffer. After Detach the caller is responsible for the single
// eventual release; failing to arrange it leaks an export count, though
// never memory, since the provider is kept alive independently.
func (b *Buffer) Detach() (*Object, BufferDescriptor) {
	b.methods = nil
	return b.Obj, b.Desc
}

// AsContiguous returns a borrowed slice of the view's bytes if the view is
// contiguous. Otherwise it returns ok false, signaling the caller to fall
// back to segment-based traversal.
func (b *Buffer) AsContiguous() (data []byte, release func(), ok bool) {
	if !b.Desc.IsContiguous() {
		return nil, nil, false
	}
	data, release = b.ObjBytes()
	return data, release, true
}

// AsContiguousMut returns a borrowed mutable slice of the view's bytes if
// the view is contiguous and not readonly.
func (b *Buffer) AsContiguousMut() (data []byte, release func(), ok bool) {
	if b.Desc.Readonly || !b.Desc.IsContiguous() {
		return nil, nil, false
	}
	data, release = b.ObjBytesMut()
	return data, release, true
}

// AppendTo appends the view's logical content in row-major order to dst and
// returns the extended slice. The physical layout of the provider's storage
// never changes the resulting byte order.
func (b *Buffer) AppendTo(dst []byte) []byte {
	if data, release, ok := b.AsContiguous(); ok {
		dst = append(dst, data...)
		release()
		return dst
	}
	data, release := b.ObjBytes()
	b.Desc.ForEachSegment(true, func(start, end int) {
		dst = append(dst, data[start:end]...)
	})
	release()
	return dst
}

// ContiguousOrCollect calls f with the view's logical bytes: borrowed with
// zero copying when the view is contiguous, otherwise a materialized
// temporary. The two cases are indistinguishable to f apart from
// performance. f must not retain the slice.
func (b *Buffer) ContiguousOrCollect(f func([]byte)) {
	if data, release, ok := b.AsContiguous(); ok {
		f(data)
		release()
		return
	}
	f(b.AppendTo(nil))
}

// BufferTag is the capability a Tag implements so that objects of its type
// can expose their backing storage as buffers. It is deliberately separate
// from Tag: providing buffers is opt-in per type, not inherited behavior.
type BufferTag interface {
	Tag
	// AsBuffer returns a new buffer view of obj, which has this tag. The
	// caller owns the buffer and must release it.
	AsBuffer(vm *VM, obj *Object) (*Buffer, *Object, Stop)
}

// AsBuffer acquires a buffer view of obj. The object's own tag is checked
// first, then the tags of its ancestors, so clones of buffer-capable types
// are themselves buffer-capable. Objects with no buffer-capable type in
// their hierarchy produce an exception. The caller must release the buffer.
func (vm *VM) AsBuffer(obj *Object) (*Buffer, *Object, Stop) {
	if bt, ok := obj.Tag().(BufferTag); ok {
		return bt.AsBuffer(vm, obj)
	}
	protos := obj.Protos()
	set := contains.Set{}
	set.Add(obj.UniqueID())
	for len(protos) > 0 {
		proto := protos[len(protos)-1]
		protos = protos[:len(protos)-1]
		if bt, ok := proto.Tag().(BufferTag); ok {
			return bt.AsBuffer(vm, obj)
		}
		for _, p := range proto.Protos() {
			if set.Add(p.UniqueID()) {
				protos = append(protos, p)
			}
		}
	}
	return nil, vm.NewExceptionf("a bytes-like object is required, not '%s'", vm.TypeName(obj)), ExceptionStop
}

// Resizable is a scoped permit to change the length of a provider's
// storage. It proves that no export was outstanding at the instant it was
// granted and holds the provider's storage lock until Done.
type Resizable struct {
	unlock func()
}

// NewResizable wraps an unlock function as a permit, for providers defined
// outside this package.
func NewResizable(unlock func()) Resizable {
	return Resizable{unlock: unlock}
}

// Done releases the permit.
func (r Resizable) Done() {
	if r.unlock != nil {
		r.unlock()
	}
}

// Resizer is the capability of providers whose length may change. Providers
// that track exports consult it from their own mutation methods before
// changing length.
type Resizer interface {
	// TryResizableOpt returns a mutation permit iff the provider has no
	// outstanding exports at this instant.
	TryResizableOpt() (Resizable, bool)
}

// TryResizable returns a mutation permit for r, or an exception when
// exports are outstanding, for call sites requiring a hard failure rather
// than a fallback.
func TryResizable(vm *VM, r Resizer) (Resizable, *Object, Stop) {
	if p, ok := r.TryResizableOpt(); ok {
		return p, nil, NoStop
	}
	return Resizable{}, vm.NewException("existing exports of data: object cannot be resized"), ExceptionStop
}
