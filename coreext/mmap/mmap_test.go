//go:build unix

package mmap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrel-lang/petrel"
	"github.com/petrel-lang/petrel/testutils"
)

func proto(t *testing.T, vm *petrel.VM) *petrel.Object {
	t.Helper()
	p, ok := vm.GetLocalSlot(vm.Core, "Mmap")
	require.True(t, ok, "no Mmap proto")
	return p
}

func tempFile(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapped")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func open(t *testing.T, vm *petrel.VM, path string) *petrel.Object {
	t.Helper()
	m := vm.IdentMessage("open", vm.StringMessage(path))
	r, stop := vm.Perform(proto(t, vm), vm.Lobby, m)
	require.Equal(t, petrel.NoStop, stop, "open failed: %v", vm.AsString(r))
	return r
}

// TestOpen tests mapping a file and reading it through the buffer protocol.
func TestOpen(t *testing.T) {
	vm := testutils.TestingVM()
	content := []byte("mapped file content")
	obj := open(t, vm, tempFile(t, content))
	buf, exc, stop := vm.AsBuffer(obj)
	require.Equal(t, petrel.NoStop, stop, "%v", vm.AsString(exc))
	assert.True(t, buf.Desc.Readonly)
	assert.Equal(t, content, buf.AppendTo(nil))
	buf.Release()
	r, stop := vm.Perform(obj, vm.Lobby, vm.IdentMessage("size"))
	require.Equal(t, petrel.NoStop, stop)
	r.Lock()
	n := r.Value.(float64)
	r.Unlock()
	assert.Equal(t, float64(len(content)), n)
	_, stop = vm.Perform(obj, vm.Lobby, vm.IdentMessage("close"))
	require.Equal(t, petrel.NoStop, stop)
}

// TestCloseBlockedByExport tests that a mapping cannot be closed while a
// view of it is alive.
func TestCloseBlockedByExport(t *testing.T) {
	vm := testutils.TestingVM()
	obj := open(t, vm, tempFile(t, []byte{1, 2, 3}))
	buf, _, stop := vm.AsBuffer(obj)
	require.Equal(t, petrel.NoStop, stop)
	r, stop := vm.Perform(obj, vm.Lobby, vm.IdentMessage("close"))
	assert.Equal(t, petrel.ExceptionStop, stop, "close succeeded with a live view: %v", vm.AsString(r))
	buf.Release()
	_, stop = vm.Perform(obj, vm.Lobby, vm.IdentMessage("close"))
	require.Equal(t, petrel.NoStop, stop)
	r, stop = vm.Perform(obj, vm.Lobby, vm.IdentMessage("isClosed"))
	require.Equal(t, petrel.NoStop, stop)
	assert.Equal(t, vm.True, r)
	// Views of a closed mapping are refused.
	_, _, stop = vm.AsBuffer(obj)
	assert.Equal(t, petrel.ExceptionStop, stop)
}

// TestOpenMissing tests the failure for nonexistent paths.
func TestOpenMissing(t *testing.T) {
	vm := testutils.TestingVM()
	m := vm.IdentMessage("open", vm.StringMessage(filepath.Join(t.TempDir(), "missing")))
	_, stop := vm.Perform(proto(t, vm), vm.Lobby, m)
	assert.Equal(t, petrel.ExceptionStop, stop)
}

// TestEmptyFile tests that a zero-length file maps to an empty view.
func TestEmptyFile(t *testing.T) {
	vm := testutils.TestingVM()
	obj := open(t, vm, tempFile(t, nil))
	buf, exc, stop := vm.AsBuffer(obj)
	require.Equal(t, petrel.NoStop, stop, "%v", vm.AsString(exc))
	assert.Equal(t, 0, buf.Desc.Len)
	buf.Release()
	_, stop = vm.Perform(obj, vm.Lobby, vm.IdentMessage("close"))
	require.Equal(t, petrel.NoStop, stop)
}
