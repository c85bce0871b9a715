package internal_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrel-lang/petrel"
	"github.com/petrel-lang/petrel/testutils"
)

// testProvider is a minimal buffer provider with its own export count, used
// to exercise the buffer protocol without going through Sequence.
type testProvider struct {
	mu      sync.Mutex
	data    []byte
	exports int32
}

var testProviderMethods = petrel.BufferMethods{
	ObjBytes: func(b *petrel.Buffer) ([]byte, func()) {
		p := b.Obj.Value.(*testProvider)
		p.mu.Lock()
		return p.data, p.mu.Unlock
	},
	ObjBytesMut: func(b *petrel.Buffer) ([]byte, func()) {
		p := b.Obj.Value.(*testProvider)
		p.mu.Lock()
		return p.data, p.mu.Unlock
	},
	Release: func(b *petrel.Buffer) {
		atomic.AddInt32(&b.Obj.Value.(*testProvider).exports, -1)
	},
	Retain: func(b *petrel.Buffer) {
		atomic.AddInt32(&b.Obj.Value.(*testProvider).exports, 1)
	},
}

func newTestProvider(vm *petrel.VM, data []byte) (*petrel.Object, *testProvider) {
	p := &testProvider{data: data}
	return vm.ObjectWith(nil, []*petrel.Object{vm.BaseObject}, p, nil), p
}

// TestAsBuffer tests acquiring buffer views of the built-in providers and
// the failure for objects with no buffer capability.
func TestAsBuffer(t *testing.T) {
	vm := testutils.TestingVM()
	t.Run("Sequence", func(t *testing.T) {
		obj := vm.NewSequence([]byte{1, 2, 3, 4}, petrel.SeqU8)
		buf, exc, stop := vm.AsBuffer(obj)
		require.Equal(t, petrel.NoStop, stop, "%v", vm.AsString(exc))
		defer buf.Release()
		assert.Equal(t, 4, buf.Desc.Len)
		assert.False(t, buf.Desc.Readonly)
		assert.Equal(t, "B", buf.Desc.Format)
		assert.True(t, buf.Desc.IsContiguous())
	})
	t.Run("String", func(t *testing.T) {
		obj := vm.NewString("immutable bytes here")
		buf, exc, stop := vm.AsBuffer(obj)
		require.Equal(t, petrel.NoStop, stop, "%v", vm.AsString(exc))
		defer buf.Release()
		assert.True(t, buf.Desc.Readonly)
	})
	t.Run("WideKind", func(t *testing.T) {
		obj := vm.NewSequence([]byte{1, 0, 2, 0}, petrel.SeqU16)
		buf, exc, stop := vm.AsBuffer(obj)
		require.Equal(t, petrel.NoStop, stop, "%v", vm.AsString(exc))
		defer buf.Release()
		assert.Equal(t, 2, buf.Desc.Itemsize)
		assert.Equal(t, "H", buf.Desc.Format)
		assert.Equal(t, 2, buf.Desc.Dims[0].Shape)
	})
	t.Run("VecBuffer", func(t *testing.T) {
		obj := vm.NewVecBuffer([]byte{9, 8, 7})
		buf, exc, stop := vm.AsBuffer(obj)
		require.Equal(t, petrel.NoStop, stop, "%v", vm.AsString(exc))
		defer buf.Release()
		assert.Equal(t, 3, buf.Desc.Len)
		assert.False(t, buf.Desc.Readonly)
	})
	t.Run("ProtoWalk", func(t *testing.T) {
		// An object without a buffer-capable tag of its own is still
		// viewable when an ancestor's type provides the capability.
		parent := vm.NewSequence([]byte{5, 6}, petrel.SeqU8)
		obj := vm.ObjectWith(nil, []*petrel.Object{parent}, parent.Sequence(), nil)
		buf, exc, stop := vm.AsBuffer(obj)
		require.Equal(t, petrel.NoStop, stop, "%v", vm.AsString(exc))
		defer buf.Release()
		assert.Equal(t, []byte{5, 6}, buf.AppendTo(nil))
	})
	t.Run("NotBytesLike", func(t *testing.T) {
		obj := vm.NewNumber(4)
		buf, exc, stop := vm.AsBuffer(obj)
		require.Equal(t, petrel.ExceptionStop, stop)
		require.Nil(t, buf)
		exc.Lock()
		e := exc.Value.(petrel.Exception)
		exc.Unlock()
		assert.Equal(t, "a bytes-like object is required, not 'Number'", e.Msg)
	})
}

// TestBufferExports tests that views retain on acquire and release exactly
// once.
func TestBufferExports(t *testing.T) {
	vm := testutils.TestingVM()
	obj := vm.NewSequence([]byte{1, 2, 3}, petrel.SeqU8)
	s := obj.Sequence()
	a, _, stop := vm.AsBuffer(obj)
	require.Equal(t, petrel.NoStop, stop)
	b, _, stop := vm.AsBuffer(obj)
	require.Equal(t, petrel.NoStop, stop)
	assert.Equal(t, 2, s.Exports())
	a.Release()
	assert.Equal(t, 1, s.Exports())
	a.Release() // second release is a no-op
	assert.Equal(t, 1, s.Exports())
	b.Release()
	assert.Equal(t, 0, s.Exports())
}

// TestResizeGuard tests that the resize permit is refused exactly while
// views are outstanding.
func TestResizeGuard(t *testing.T) {
	vm := testutils.TestingVM()
	obj := vm.NewSequence([]byte{1, 2, 3}, petrel.SeqU8)
	s := obj.Sequence()
	buf, _, stop := vm.AsBuffer(obj)
	require.Equal(t, petrel.NoStop, stop)
	if _, ok := s.TryResizableOpt(); ok {
		t.Fatal("resize permitted with a live view")
	}
	_, exc, stop := petrel.TryResizable(vm, s)
	require.Equal(t, petrel.ExceptionStop, stop)
	exc.Lock()
	e := exc.Value.(petrel.Exception)
	exc.Unlock()
	assert.Equal(t, "existing exports of data: object cannot be resized", e.Msg)
	buf.Release()
	permit, ok := s.TryResizableOpt()
	require.True(t, ok, "resize refused with no views")
	permit.Done()
}

// TestDetach tests that detaching forgets the pending release and that an
// adopting buffer takes it over.
func TestDetach(t *testing.T) {
	vm := testutils.TestingVM()
	obj, p := newTestProvider(vm, []byte{1, 2, 3, 4})
	buf := petrel.NewBuffer(obj, petrel.SimpleDesc(4, false), &testProviderMethods)
	require.EqualValues(t, 1, atomic.LoadInt32(&p.exports))
	dobj, desc := buf.Detach()
	buf.Release() // no effect after Detach
	assert.EqualValues(t, 1, atomic.LoadInt32(&p.exports))
	adopted := petrel.AdoptBuffer(dobj, desc, &testProviderMethods)
	assert.EqualValues(t, 1, atomic.LoadInt32(&p.exports), "adopting must not retain again")
	data, release := adopted.ObjBytes()
	assert.Equal(t, []byte{1, 2, 3, 4}, data)
	release()
	adopted.Release()
	assert.EqualValues(t, 0, atomic.LoadInt32(&p.exports))
}

// TestAppendTo tests logical byte collection over contiguous and strided
// views.
func TestAppendTo(t *testing.T) {
	vm := testutils.TestingVM()
	t.Run("Contiguous", func(t *testing.T) {
		obj, _ := newTestProvider(vm, []byte{1, 2, 3, 4})
		buf := petrel.NewBuffer(obj, petrel.SimpleDesc(4, false), &testProviderMethods)
		defer buf.Release()
		assert.Equal(t, []byte{0, 1, 2, 3, 4}, buf.AppendTo([]byte{0}))
	})
	t.Run("Strided", func(t *testing.T) {
		obj, _ := newTestProvider(vm, []byte{0, 1, 2, 3, 4, 5, 6, 7})
		desc := petrel.BufferDescriptor{
			Len:      4,
			Itemsize: 1,
			Format:   "B",
			Dims:     []petrel.Dim{{Shape: 4, Stride: 2, Suboffset: 0}},
		}
		buf := petrel.NewBuffer(obj, desc, &testProviderMethods)
		defer buf.Release()
		assert.Equal(t, []byte{0, 2, 4, 6}, buf.AppendTo(nil))
		_, _, ok := buf.AsContiguous()
		assert.False(t, ok)
	})
	t.Run("Reversed", func(t *testing.T) {
		obj, _ := newTestProvider(vm, []byte{10, 11, 12})
		desc := petrel.BufferDescriptor{
			Len:      3,
			Itemsize: 1,
			Format:   "B",
			Dims:     []petrel.Dim{{Shape: 3, Stride: -1, Suboffset: 2}},
		}
		buf := petrel.NewBuffer(obj, desc, &testProviderMethods)
		defer buf.Release()
		assert.Equal(t, []byte{12, 11, 10}, buf.AppendTo(nil))
	})
}

// TestContiguousOrCollect tests that the borrowed and materialized paths
// observe identical bytes.
func TestContiguousOrCollect(t *testing.T) {
	vm := testutils.TestingVM()
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	obj, _ := newTestProvider(vm, data)
	strided := petrel.BufferDescriptor{
		Len:      4,
		Itemsize: 1,
		Format:   "B",
		Dims:     []petrel.Dim{{Shape: 4, Stride: 2, Suboffset: 0}},
	}
	sbuf := petrel.NewBuffer(obj, strided, &testProviderMethods)
	defer sbuf.Release()
	cobj, _ := newTestProvider(vm, []byte{0, 2, 4, 6})
	cbuf := petrel.NewBuffer(cobj, petrel.SimpleDesc(4, false), &testProviderMethods)
	defer cbuf.Release()
	var got, want []byte
	sbuf.ContiguousOrCollect(func(b []byte) {
		got = append([]byte(nil), b...)
	})
	cbuf.ContiguousOrCollect(func(b []byte) {
		want = append([]byte(nil), b...)
	})
	assert.Equal(t, want, got)
}

// TestContiguousMut tests mutation through a contiguous view.
func TestContiguousMut(t *testing.T) {
	vm := testutils.TestingVM()
	obj, p := newTestProvider(vm, []byte{1, 2, 3})
	buf := petrel.NewBuffer(obj, petrel.SimpleDesc(3, false), &testProviderMethods)
	defer buf.Release()
	data, release, ok := buf.AsContiguousMut()
	require.True(t, ok)
	data[1] = 42
	release()
	assert.Equal(t, []byte{1, 42, 3}, p.data)
	robj, _ := newTestProvider(vm, []byte{1})
	rbuf := petrel.NewBuffer(robj, petrel.SimpleDesc(1, true), &testProviderMethods)
	defer rbuf.Release()
	_, _, ok = rbuf.AsContiguousMut()
	assert.False(t, ok, "mutable view of readonly descriptor")
}

// TestPosition tests checked index computation with wraparound.
func TestPosition(t *testing.T) {
	vm := testutils.TestingVM()
	d := petrel.BufferDescriptor{
		Len:      24,
		Itemsize: 4,
		Format:   "i",
		Dims:     []petrel.Dim{{Shape: 2, Stride: 12}, {Shape: 3, Stride: 4}},
	}.Validate()
	cases := map[string]struct {
		indices []int
		pos     int
		fails   bool
	}{
		"Zero":       {[]int{0, 0}, 0, false},
		"Middle":     {[]int{1, 1}, 16, false},
		"Wraparound": {[]int{-1, -1}, 20, false},
		"TooBig":     {[]int{0, 3}, 0, true},
		"TooSmall":   {[]int{0, -4}, 0, true},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			pos, exc, stop := d.Position(vm, c.indices)
			if c.fails {
				require.Equal(t, petrel.ExceptionStop, stop)
				require.NotNil(t, exc)
				return
			}
			require.Equal(t, petrel.NoStop, stop, "%v", vm.AsString(exc))
			assert.Equal(t, c.pos, pos)
			normalized := true
			for _, i := range c.indices {
				if i < 0 {
					normalized = false
				}
			}
			if normalized {
				assert.Equal(t, pos, d.FastPosition(c.indices))
			}
		})
	}
}
