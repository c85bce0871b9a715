package hashing

import (
	"crypto/sha256"
	"crypto/sha512"

	"github.com/petrel-lang/petrel"
	"github.com/petrel-lang/petrel/internal"
)

// The hashing extension digests any bytes-like object through the buffer
// protocol. The digest always covers the view's logical bytes in row-major
// order, so a strided view and its materialized copy hash identically.

func init() {
	internal.Register(initHashing)
}

func initHashing(vm *petrel.VM) {
	slots := petrel.Slots{
		"sha224": vm.NewCFunction(hashingSHA224, nil),
		"sha256": vm.NewCFunction(hashingSHA256, nil),
		"sha384": vm.NewCFunction(hashingSHA384, nil),
		"sha512": vm.NewCFunction(hashingSHA512, nil),
		"type":   vm.NewString("Hashing"),
	}
	internal.CoreInstall(vm, "Hashing", slots, nil, nil)
}

// digest acquires a buffer view of the first argument, hashes its logical
// bytes with sum, and returns the digest as an immutable sequence.
func digest(vm *petrel.VM, locals *petrel.Object, msg *petrel.Message, sum func([]byte) []byte) *petrel.Object {
	buf, exc, stop := msg.BufferArgAt(vm, locals, 0)
	if stop != petrel.NoStop {
		return vm.Stop(exc, stop)
	}
	defer buf.Release()
	var d []byte
	buf.ContiguousOrCollect(func(b []byte) {
		d = sum(b)
	})
	return vm.NewString(string(d))
}

// hashingSHA224 is a Hashing method.
//
// sha224 returns the SHA-224 digest of a bytes-like object.
func hashingSHA224(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	return digest(vm, locals, msg, func(b []byte) []byte {
		d := sha256.Sum224(b)
		return d[:]
	})
}

// hashingSHA256 is a Hashing method.
//
// sha256 returns the SHA-256 digest of a bytes-like object.
func hashingSHA256(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	return digest(vm, locals, msg, func(b []byte) []byte {
		d := sha256.Sum256(b)
		return d[:]
	})
}

// hashingSHA384 is a Hashing method.
//
// sha384 returns the SHA-384 digest of a bytes-like object.
func hashingSHA384(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	return digest(vm, locals, msg, func(b []byte) []byte {
		d := sha512.Sum384(b)
		return d[:]
	})
}

// hashingSHA512 is a Hashing method.
//
// sha512 returns the SHA-512 digest of a bytes-like object.
func hashingSHA512(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	return digest(vm, locals, msg, func(b []byte) []byte {
		d := sha512.Sum512(b)
		return d[:]
	})
}
