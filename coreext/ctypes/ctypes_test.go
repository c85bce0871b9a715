package ctypes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrel-lang/petrel"
	"github.com/petrel-lang/petrel/testutils"
)

func proto(t *testing.T, vm *petrel.VM) *petrel.Object {
	t.Helper()
	p, ok := vm.GetLocalSlot(vm.Core, "CTypes")
	require.True(t, ok, "no CTypes proto")
	return p
}

func number(t *testing.T, vm *petrel.VM, r *petrel.Object, stop petrel.Stop) float64 {
	t.Helper()
	require.Equal(t, petrel.NoStop, stop, "%v", vm.AsString(r))
	r.Lock()
	defer r.Unlock()
	return r.Value.(float64)
}

// TestSizesAndAlignments tests the embedded type table.
func TestSizesAndAlignments(t *testing.T) {
	vm := testutils.TestingVM()
	p := proto(t, vm)
	cases := map[string]struct {
		format      string
		size, align float64
	}{
		"UnsignedChar": {"B", 1, 1},
		"Short":        {"h", 2, 2},
		"Int":          {"i", 4, 4},
		"LongLong":     {"q", 8, 8},
		"Float":        {"f", 4, 4},
		"Double":       {"d", 8, 8},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			arg := vm.StringMessage(c.format)
			r, stop := vm.Perform(p, vm.Lobby, vm.IdentMessage("sizeof", arg))
			size := number(t, vm, r, stop)
			assert.Equal(t, c.size, size)
			r, stop = vm.Perform(p, vm.Lobby, vm.IdentMessage("alignof", arg))
			align := number(t, vm, r, stop)
			assert.Equal(t, c.align, align)
		})
	}
	t.Run("Unknown", func(t *testing.T) {
		_, stop := vm.Perform(p, vm.Lobby, vm.IdentMessage("sizeof", vm.StringMessage("x")))
		assert.Equal(t, petrel.ExceptionStop, stop)
	})
}

// TestNameOf tests format label to C name resolution.
func TestNameOf(t *testing.T) {
	vm := testutils.TestingVM()
	p := proto(t, vm)
	r, stop := vm.Perform(p, vm.Lobby, vm.IdentMessage("nameOf", vm.StringMessage("Q")))
	require.Equal(t, petrel.NoStop, stop)
	assert.Equal(t, "unsigned long long", vm.AsString(r))
}

// TestField tests struct field descriptors.
func TestField(t *testing.T) {
	vm := testutils.TestingVM()
	p := proto(t, vm)
	m := vm.IdentMessage("field", vm.StringMessage("count"), vm.StringMessage("i"), vm.NumberMessage(8))
	r, stop := vm.Perform(p, vm.Lobby, m)
	require.Equal(t, petrel.NoStop, stop, "%v", vm.AsString(r))
	assert.Equal(t, "<count type=int, ofs=8, size=4>", vm.AsString(r))
	size, ok := vm.GetLocalSlot(r, "size")
	require.True(t, ok)
	size.Lock()
	n := size.Value.(float64)
	size.Unlock()
	assert.Equal(t, 4.0, n)
	t.Run("UnknownType", func(t *testing.T) {
		m := vm.IdentMessage("field", vm.StringMessage("x"), vm.StringMessage("z"), vm.NumberMessage(0))
		_, stop := vm.Perform(p, vm.Lobby, m)
		assert.Equal(t, petrel.ExceptionStop, stop)
	})
}
