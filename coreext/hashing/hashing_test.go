package hashing_test

import (
	"crypto/sha256"
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrel-lang/petrel"
	"github.com/petrel-lang/petrel/testutils"
)

func hashProto(t *testing.T, vm *petrel.VM) *petrel.Object {
	t.Helper()
	p, ok := vm.GetLocalSlot(vm.Core, "Hashing")
	require.True(t, ok, "no Hashing proto")
	return p
}

func digestOf(t *testing.T, vm *petrel.VM, method string, arg *petrel.Message) []byte {
	t.Helper()
	r, stop := vm.Perform(hashProto(t, vm), vm.Lobby, vm.IdentMessage(method, arg))
	require.Equal(t, petrel.NoStop, stop, "%s failed: %v", method, vm.AsString(r))
	r.Lock()
	defer r.Unlock()
	return r.Value.(*petrel.Sequence).Bytes()
}

// TestDigests tests each digest against the reference implementation.
func TestDigests(t *testing.T) {
	vm := testutils.TestingVM()
	input := "the quick brown fox"
	arg := vm.StringMessage(input)
	t.Run("SHA224", func(t *testing.T) {
		want := sha256.Sum224([]byte(input))
		assert.Equal(t, want[:], digestOf(t, vm, "sha224", arg))
	})
	t.Run("SHA256", func(t *testing.T) {
		want := sha256.Sum256([]byte(input))
		assert.Equal(t, want[:], digestOf(t, vm, "sha256", arg))
	})
	t.Run("SHA384", func(t *testing.T) {
		want := sha512.Sum384([]byte(input))
		assert.Equal(t, want[:], digestOf(t, vm, "sha384", arg))
	})
	t.Run("SHA512", func(t *testing.T) {
		want := sha512.Sum512([]byte(input))
		assert.Equal(t, want[:], digestOf(t, vm, "sha512", arg))
	})
}

// TestDigestProviders tests that different providers with the same logical
// bytes hash identically.
func TestDigestProviders(t *testing.T) {
	vm := testutils.TestingVM()
	data := []byte{1, 2, 3, 4, 5}
	seq := vm.NewSequence(data, petrel.SeqU8)
	vec := vm.NewVecBuffer(append([]byte(nil), data...))
	a := digestOf(t, vm, "sha256", vm.CachedMessage(seq))
	b := digestOf(t, vm, "sha256", vm.CachedMessage(vec))
	assert.Equal(t, a, b)
}

// TestDigestNotBytesLike tests the failure for non-buffer arguments.
func TestDigestNotBytesLike(t *testing.T) {
	vm := testutils.TestingVM()
	_, stop := vm.Perform(hashProto(t, vm), vm.Lobby, vm.IdentMessage("sha256", vm.NumberMessage(1)))
	assert.Equal(t, petrel.ExceptionStop, stop)
}

// TestDigestLeavesNoExports tests that hashing releases its view.
func TestDigestLeavesNoExports(t *testing.T) {
	vm := testutils.TestingVM()
	seq := vm.NewSequence([]byte{1, 2, 3}, petrel.SeqU8)
	digestOf(t, vm, "sha512", vm.CachedMessage(seq))
	assert.Equal(t, 0, seq.Sequence().Exports())
}
