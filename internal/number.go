package internal

import "strconv"

// NumberTag is the Tag for Number objects.
const NumberTag = BasicTag("Number")

// numberCacheRange is the range of integer values for which Number objects
// are cached, inclusive at both ends.
const numberCacheMin, numberCacheMax = -10, 255

// NewNumber creates a Number object with a particular value. Small integers
// share cached objects.
func (vm *VM) NewNumber(value float64) *Object {
	x := int(value)
	if float64(x) == value && numberCacheMin <= x && x <= numberCacheMax {
		return vm.numberCache[x-numberCacheMin]
	}
	return vm.ObjectWith(nil, vm.CoreProto("Number"), value, NumberTag)
}

// initNumber sets up the Number proto and the small integer cache.
func (vm *VM) initNumber() {
	slots := Slots{
		"asString": vm.NewCFunction(NumberAsString, NumberTag),
		"type":     vm.NewString("Number"),
	}
	proto := vm.coreInstall("Number", slots, 0.0, NumberTag)
	protos := []*Object{proto}
	vm.numberCache = make([]*Object, numberCacheMax-numberCacheMin+1)
	for i := range vm.numberCache {
		vm.numberCache[i] = vm.ObjectWith(nil, protos, float64(i+numberCacheMin), NumberTag)
	}
}

// NumberAsString is a Number method.
//
// asString returns the number formatted as a string.
func NumberAsString(vm *VM, target, locals *Object, msg *Message) *Object {
	target.Lock()
	v := target.Value.(float64)
	target.Unlock()
	return vm.NewString(strconv.FormatFloat(v, 'g', -1, 64))
}
