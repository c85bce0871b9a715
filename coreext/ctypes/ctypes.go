package ctypes

import (
	"fmt"

	"gopkg.in/yaml.v2"

	"github.com/petrel-lang/petrel"
	"github.com/petrel-lang/petrel/internal"
)

// The ctypes extension publishes layout metadata for primitive C types: the
// format labels buffer descriptors carry, with their sizes and alignments.
// The table is data, not code, so it lives in an embedded YAML document.

func init() {
	internal.Register(initCTypes)
}

// ctype is one row of the type table.
type ctype struct {
	Format string `yaml:"format"`
	Name   string `yaml:"name"`
	Size   int    `yaml:"size"`
	Align  int    `yaml:"align"`
}

const typeTable = `
- {format: b, name: signed char, size: 1, align: 1}
- {format: B, name: unsigned char, size: 1, align: 1}
- {format: h, name: short, size: 2, align: 2}
- {format: H, name: unsigned short, size: 2, align: 2}
- {format: i, name: int, size: 4, align: 4}
- {format: I, name: unsigned int, size: 4, align: 4}
- {format: q, name: long long, size: 8, align: 8}
- {format: Q, name: unsigned long long, size: 8, align: 8}
- {format: f, name: float, size: 4, align: 4}
- {format: d, name: double, size: 8, align: 8}
`

// types indexes the table by format label. Loaded once at registration.
var types map[string]ctype

func initCTypes(vm *petrel.VM) {
	if types == nil {
		var rows []ctype
		if err := yaml.Unmarshal([]byte(typeTable), &rows); err != nil {
			panic(fmt.Sprintf("petrel/ctypes: bad type table: %v", err))
		}
		types = make(map[string]ctype, len(rows))
		for _, r := range rows {
			types[r.Format] = r
		}
	}
	slots := petrel.Slots{
		"alignof": vm.NewCFunction(ctypesAlignof, nil),
		"field":   vm.NewCFunction(ctypesField, nil),
		"nameOf":  vm.NewCFunction(ctypesNameOf, nil),
		"sizeof":  vm.NewCFunction(ctypesSizeof, nil),
		"type":    vm.NewString("CTypes"),
	}
	internal.CoreInstall(vm, "CTypes", slots, nil, nil)
}

// lookup resolves the format label in the message's first argument.
func lookup(vm *petrel.VM, locals *petrel.Object, msg *petrel.Message) (ctype, *petrel.Object, petrel.Stop) {
	format, exc, stop := msg.StringArgAt(vm, locals, 0)
	if stop != petrel.NoStop {
		return ctype{}, exc, stop
	}
	t, ok := types[format]
	if !ok {
		return ctype{}, vm.NewExceptionf("unknown type format %q", format), petrel.ExceptionStop
	}
	return t, nil, petrel.NoStop
}

// ctypesSizeof is a CTypes method.
//
// sizeof returns the size in bytes of the type with the given format label.
func ctypesSizeof(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	t, exc, stop := lookup(vm, locals, msg)
	if stop != petrel.NoStop {
		return vm.Stop(exc, stop)
	}
	return vm.NewNumber(float64(t.Size))
}

// ctypesAlignof is a CTypes method.
//
// alignof returns the alignment in bytes of the type with the given format
// label.
func ctypesAlignof(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	t, exc, stop := lookup(vm, locals, msg)
	if stop != petrel.NoStop {
		return vm.Stop(exc, stop)
	}
	return vm.NewNumber(float64(t.Align))
}

// ctypesNameOf is a CTypes method.
//
// nameOf returns the C name of the type with the given format label.
func ctypesNameOf(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	t, exc, stop := lookup(vm, locals, msg)
	if stop != petrel.NoStop {
		return vm.Stop(exc, stop)
	}
	return vm.NewString(t.Name)
}

// ctypesField is a CTypes method.
//
// field creates a struct field descriptor from a name, a type format label,
// and a byte offset. The descriptor is a plain object holding name, format,
// offset, and size slots, with an asString in the C debugger style.
func ctypesField(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	name, exc, stop := msg.StringArgAt(vm, locals, 0)
	if stop != petrel.NoStop {
		return vm.Stop(exc, stop)
	}
	format, exc, stop := msg.StringArgAt(vm, locals, 1)
	if stop != petrel.NoStop {
		return vm.Stop(exc, stop)
	}
	t, ok := types[format]
	if !ok {
		return vm.RaiseExceptionf("unknown type format %q", format)
	}
	ofs, exc, stop := msg.NumberArgAt(vm, locals, 2)
	if stop != petrel.NoStop {
		return vm.Stop(exc, stop)
	}
	return vm.NewObject(petrel.Slots{
		"name":     vm.NewString(name),
		"format":   vm.NewString(format),
		"offset":   vm.NewNumber(ofs),
		"size":     vm.NewNumber(float64(t.Size)),
		"asString": vm.NewString(fmt.Sprintf("<%s type=%s, ofs=%d, size=%d>", name, t.Name, int(ofs), t.Size)),
	})
}
