package internal

import (
	"reflect"
	"runtime"
	"strings"
)

// An Fn is a statically compiled function which can be executed in a Petrel
// VM.
type Fn func(vm *VM, target, locals *Object, msg *Message) *Object

// A CFunction is a Petrel object whose value represents a compiled function.
type CFunction struct {
	// Function is the function to call when the CFunction activates.
	Function Fn
	// Name is the name of the function.
	Name string
	// kind is the tag a target must have for the function to activate. If
	// nil, any target is allowed.
	kind Tag
}

// tagCFunction is the Tag type for CFunction objects.
type tagCFunction struct{}

func (tagCFunction) Activate(vm *VM, self, target, locals, context *Object, msg *Message) *Object {
	f := self.Value.(*CFunction)
	if f.kind != nil && target.Tag() != f.kind {
		return vm.RaiseExceptionf("receiver of %s must be %v, not %v", f.Name, f.kind, vm.TypeName(target))
	}
	return f.Function(vm, target, locals, msg)
}

func (tagCFunction) CloneValue(value interface{}) interface{} {
	return value
}

func (tagCFunction) String() string {
	return "CFunction"
}

// CFunctionTag is the Tag for CFunction objects.
var CFunctionTag tagCFunction

// String returns the name of the function.
func (f *CFunction) String() string {
	return f.Name
}

// NewCFunction creates a new CFunction object wrapping f. If kind is not
// nil, then the function raises an exception when activated on a target
// whose tag is not kind.
func (vm *VM) NewCFunction(f Fn, kind Tag) *Object {
	u := reflect.ValueOf(f).Pointer()
	name := runtime.FuncForPC(u).Name()
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return vm.ObjectWith(nil, vm.CoreProto("CFunction"), &CFunction{
		Function: f,
		Name:     name,
		kind:     kind,
	}, CFunctionTag)
}

// initCFunction sets up the CFunction proto. Its type slot is set later,
// once strings exist.
func (vm *VM) initCFunction() {
	vm.SetSlot(vm.Core, "CFunction", vm.ObjectWith(nil, []*Object{vm.BaseObject}, &CFunction{}, CFunctionTag))
}

// initCFunction2 finishes setting up the CFunction proto.
func (vm *VM) initCFunction2() {
	proto, _ := vm.GetLocalSlot(vm.Core, "CFunction")
	vm.SetSlot(proto, "type", vm.NewString("CFunction"))
}
