package collector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrel-lang/petrel"
	"github.com/petrel-lang/petrel/testutils"
)

func proto(t *testing.T, vm *petrel.VM) *petrel.Object {
	t.Helper()
	p, ok := vm.GetLocalSlot(vm.Core, "Collector")
	require.True(t, ok, "no Collector proto")
	return p
}

// TestCollect tests that an explicit collection cycle runs and reports a
// count.
func TestCollect(t *testing.T) {
	vm := testutils.TestingVM()
	r, stop := vm.Perform(proto(t, vm), vm.Lobby, vm.IdentMessage("collect"))
	require.Equal(t, petrel.NoStop, stop, "%v", vm.AsString(r))
	r.Lock()
	_, ok := r.Value.(float64)
	r.Unlock()
	assert.True(t, ok, "collect did not return a number")
}

// TestAlgorithm tests selecting collection algorithms.
func TestAlgorithm(t *testing.T) {
	vm := testutils.TestingVM()
	p := proto(t, vm)
	t.Run("Default", func(t *testing.T) {
		r, stop := vm.Perform(p, vm.Lobby, vm.IdentMessage("algorithm"))
		require.Equal(t, petrel.NoStop, stop)
		assert.Equal(t, "triColor", vm.AsString(r))
	})
	t.Run("Select", func(t *testing.T) {
		_, stop := vm.Perform(p, vm.Lobby, vm.IdentMessage("setAlgorithm", vm.StringMessage("none")))
		require.Equal(t, petrel.NoStop, stop)
		defer vm.Perform(p, vm.Lobby, vm.IdentMessage("setAlgorithm", vm.StringMessage("triColor")))
		r, stop := vm.Perform(p, vm.Lobby, vm.IdentMessage("algorithm"))
		require.Equal(t, petrel.NoStop, stop)
		assert.Equal(t, "none", vm.AsString(r))
	})
	t.Run("Unknown", func(t *testing.T) {
		_, stop := vm.Perform(p, vm.Lobby, vm.IdentMessage("setAlgorithm", vm.StringMessage("generational")))
		assert.Equal(t, petrel.ExceptionStop, stop)
	})
}

// TestTimeUsed tests that GC pause accounting is a number of seconds.
func TestTimeUsed(t *testing.T) {
	vm := testutils.TestingVM()
	r, stop := vm.Perform(proto(t, vm), vm.Lobby, vm.IdentMessage("timeUsed"))
	require.Equal(t, petrel.NoStop, stop)
	r.Lock()
	n, ok := r.Value.(float64)
	r.Unlock()
	require.True(t, ok)
	assert.GreaterOrEqual(t, n, 0.0)
}
