package internal

// tagList is the Tag type for List objects.
type tagList struct{}

func (tagList) Activate(vm *VM, self, target, locals, context *Object, msg *Message) *Object {
	return self
}

func (tagList) CloneValue(value interface{}) interface{} {
	l := value.([]*Object)
	m := make([]*Object, len(l))
	copy(m, l)
	return m
}

func (tagList) String() string {
	return "List"
}

// ListTag is the Tag for List objects.
var ListTag tagList

// NewList creates a List with the given items.
func (vm *VM) NewList(items ...*Object) *Object {
	return vm.ObjectWith(nil, vm.CoreProto("List"), items, ListTag)
}

// initList sets up the List proto.
func (vm *VM) initList() {
	slots := Slots{
		"at":   vm.NewCFunction(ListAt, ListTag),
		"size": vm.NewCFunction(ListSize, ListTag),
		"type": vm.NewString("List"),
	}
	vm.coreInstall("List", slots, []*Object{}, ListTag)
}

// ListAt is a List method.
//
// at returns the item at the given index, or nil if the index is out of
// bounds.
func ListAt(vm *VM, target, locals *Object, msg *Message) *Object {
	n, exc, stop := msg.NumberArgAt(vm, locals, 0)
	if stop != NoStop {
		return vm.Stop(exc, stop)
	}
	target.Lock()
	l := target.Value.([]*Object)
	target.Unlock()
	k := int(n)
	if k < 0 || k >= len(l) {
		return vm.Nil
	}
	return l[k]
}

// ListSize is a List method.
//
// size returns the number of items in the list.
func ListSize(vm *VM, target, locals *Object, msg *Message) *Object {
	target.Lock()
	l := target.Value.([]*Object)
	target.Unlock()
	return vm.NewNumber(float64(len(l)))
}
