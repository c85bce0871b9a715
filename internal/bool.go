package internal

// IoBool converts a bool to the appropriate Petrel boolean object.
func (vm *VM) IoBool(c bool) *Object {
	if c {
		return vm.True
	}
	return vm.False
}

// AsBool reports whether an object is truthy. Nil and False are the only
// falsy objects.
func (vm *VM) AsBool(obj *Object) bool {
	return obj != nil && obj != vm.False && obj != vm.Nil
}

// initTrue sets up the true singleton.
func (vm *VM) initTrue() {
	vm.True.SetProtos(vm.BaseObject)
	vm.SetSlots(vm.True, Slots{
		"asString": vm.NewString("true"),
		"isTrue":   vm.True,
		"not":      vm.False,
		"type":     vm.NewString("true"),
	})
	vm.SetSlot(vm.Core, "true", vm.True)
}

// initFalse sets up the false singleton.
func (vm *VM) initFalse() {
	vm.False.SetProtos(vm.BaseObject)
	vm.SetSlots(vm.False, Slots{
		"asString": vm.NewString("false"),
		"isTrue":   vm.False,
		"not":      vm.True,
		"type":     vm.NewString("false"),
	})
	vm.SetSlot(vm.Core, "false", vm.False)
}

// initNil sets up the nil singleton.
func (vm *VM) initNil() {
	vm.Nil.SetProtos(vm.BaseObject)
	vm.SetSlots(vm.Nil, Slots{
		"asString": vm.NewString("nil"),
		"isNil":    vm.True,
		"isTrue":   vm.False,
		"not":      vm.True,
		"type":     vm.NewString("nil"),
	})
	vm.SetSlot(vm.Core, "nil", vm.Nil)
}
