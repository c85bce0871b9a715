package typing

import (
	"fmt"

	"github.com/petrel-lang/petrel"
	"github.com/petrel-lang/petrel/internal"
)

// The typing extension provides the data holders used to spell generic
// signatures: type variables, parameter specifications, and type variable
// tuples. The holders carry names and defaults but no checking logic; they
// exist so that signatures can be constructed and introspected.

func init() {
	internal.Register(initTyping)
}

func initTyping(vm *petrel.VM) {
	noDefault := vm.NewObject(petrel.Slots{
		"type":     vm.NewString("NoDefault"),
		"asString": vm.NewString("NoDefault"),
	})
	slots := petrel.Slots{
		"noDefault":    noDefault,
		"paramSpec":    vm.NewCFunction(typingParamSpec, nil),
		"type":         vm.NewString("Typing"),
		"typeVar":      vm.NewCFunction(typingTypeVar, nil),
		"typeVarTuple": vm.NewCFunction(typingTypeVarTuple, nil),
	}
	internal.CoreInstall(vm, "Typing", slots, nil, nil)
}

// holder builds a named typing object. The default slot starts as the
// shared noDefault sentinel, found on the Typing proto, and extra slots
// distinguish the holder kinds.
func holder(vm *petrel.VM, locals *petrel.Object, msg *petrel.Message, kind, repr string, extra petrel.Slots) *petrel.Object {
	name, exc, stop := msg.StringArgAt(vm, locals, 0)
	if stop != petrel.NoStop {
		return vm.Stop(exc, stop)
	}
	typing, _ := vm.GetSlot(vm.Core, "Typing")
	nd, _ := vm.GetSlot(typing, "noDefault")
	r := vm.NewObject(petrel.Slots{
		"type":       vm.NewString(kind),
		"name":       vm.NewString(name),
		"default":    nd,
		"hasDefault": vm.False,
		"asString":   vm.NewString(fmt.Sprintf(repr, name)),
	})
	vm.SetSlots(r, extra)
	return r
}

// typingTypeVar is a Typing method.
//
// typeVar creates a named type variable. The variable starts unbounded and
// with inferred variance.
func typingTypeVar(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	return holder(vm, locals, msg, "TypeVar", "~%s", petrel.Slots{
		"bound":         vm.Nil,
		"covariant":     vm.False,
		"contravariant": vm.False,
		"inferVariance": vm.True,
	})
}

// typingParamSpec is a Typing method.
//
// paramSpec creates a named parameter specification.
func typingParamSpec(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	return holder(vm, locals, msg, "ParamSpec", "~~%s", nil)
}

// typingTypeVarTuple is a Typing method.
//
// typeVarTuple creates a named type variable tuple.
func typingTypeVarTuple(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	return holder(vm, locals, msg, "TypeVarTuple", "*%s", nil)
}
