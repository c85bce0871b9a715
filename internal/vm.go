package internal

import (
	"fmt"
	"time"

	"github.com/zephyrtronium/contains"
)

// PetrelVersion is the runtime version, used for the System version slot.
const PetrelVersion = "1"

// VM is an object for processing Petrel programs.
type VM struct {
	// Lobby is the default target of messages.
	Lobby *Object
	// Core is the object containing the basic prototypes of Petrel.
	Core *Object
	// Addons is the object containing imported addon protos.
	Addons *Object

	// Singletons.
	BaseObject *Object
	True       *Object
	False      *Object
	Nil        *Object

	// protoSet is the set of protos checked during GetSlot.
	protoSet contains.Set
	// protoStack is the stack of protos to check during GetSlot.
	protoStack []*Object

	// Control is a buffered channel for control flow of this VM. The
	// performer checks this between messages.
	Control chan RemoteStop

	// numberCache is a list of cached Number objects.
	numberCache []*Object
	// stringMemo caches string objects for common short strings.
	stringMemo map[string]*Object

	// StartTime is the time at which VM initialization began.
	StartTime time.Time
}

// NewVM prepares a new VM to process Petrel programs.
func NewVM() *VM {
	haveVM = true

	vm := VM{
		Lobby: &Object{id: nextObject()},

		Core:   &Object{id: nextObject()},
		Addons: &Object{id: nextObject()},

		BaseObject: &Object{id: nextObject()},
		True:       &Object{id: nextObject()},
		False:      &Object{id: nextObject()},
		Nil:        &Object{id: nextObject()},

		Control: make(chan RemoteStop, 1),

		StartTime: time.Now(),
	}

	// There is a specific order for initialization. First, we have to
	// initialize Core, so that other init methods can set up their protos on
	// it. Then, we must initialize CFunction, so that others can use
	// NewCFunction, and Sequence, so that we can use NewString. After that,
	// the remaining protos can come up in any order, as long as Object comes
	// after the singletons it references.
	vm.initCore()
	vm.initCFunction()
	vm.initSequence()
	vm.initCFunction2()
	vm.initMessage()
	vm.initNumber()
	vm.initException()
	vm.initObject()
	vm.initTrue()
	vm.initFalse()
	vm.initNil()
	vm.initList()
	vm.initVecBuffer()

	for _, ext := range coreExt {
		ext(&vm)
	}

	return &vm
}

// coreInstall is a convenience method to install a new Core proto that has
// BaseObject as its proto. Returns the new proto.
func (vm *VM) coreInstall(proto string, slots Slots, value interface{}, tag Tag) *Object {
	return CoreInstall(vm, proto, slots, value, tag)
}

// CoreInstall installs a new Core proto that has BaseObject as its proto, on
// behalf of core extensions. Returns the new proto.
func CoreInstall(vm *VM, proto string, slots Slots, value interface{}, tag Tag) *Object {
	r := vm.ObjectWith(slots, []*Object{vm.BaseObject}, value, tag)
	vm.SetSlot(vm.Core, proto, r)
	return r
}

// CoreProto returns a new Protos list for a type in vm.Core. Panics if there
// is no such type!
func (vm *VM) CoreProto(name string) []*Object {
	if p, ok := vm.GetLocalSlot(vm.Core, name); ok {
		return []*Object{p}
	}
	panic("petrel: no Core proto named " + name)
}

// AddonProto returns a new Protos list for a type in vm.Addons. Panics if
// there is no such type!
func (vm *VM) AddonProto(name string) []*Object {
	if p, ok := vm.GetLocalSlot(vm.Addons, name); ok {
		return []*Object{p}
	}
	panic("petrel: no Addons proto named " + name)
}

// Install installs an addon proto by setting the corresponding slot in
// Addons and making it reachable from the Lobby.
func (vm *VM) Install(name string, proto *Object) {
	vm.SetSlot(vm.Addons, name, proto)
	vm.Lobby.AppendProto(vm.NewObject(Slots{name: proto}))
}

// AsString attempts to convert a Petrel object to a string by activating its
// asString slot. If the object has no such slot but its Value is an
// fmt.Stringer, then it returns the value of String(); otherwise, a default
// representation is used.
func (vm *VM) AsString(obj *Object) string {
	if obj == nil {
		obj = vm.Nil
	}
	obj, _ = vm.Perform(obj, obj, vm.IdentMessage("asString"))
	if s, ok := obj.Value.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T_%p", obj, obj)
}

// initCore initializes Lobby, Core, and Addons for this VM. This only
// creates room for other init functions to work with.
func (vm *VM) initCore() {
	vm.Core.SetProtos(vm.BaseObject)
	vm.Addons.SetProtos(vm.BaseObject)
	slots := Slots{"Core": vm.Core, "Addons": vm.Addons}
	protos := []*Object{vm.Core, vm.Addons}
	lp := vm.ObjectWith(slots, protos, nil, nil)
	vm.Lobby.SetProtos(lp)
	vm.SetSlots(vm.Lobby, Slots{"Protos": lp, "Lobby": vm.Lobby})
}

// Register registers a core extension. Each function is called in the order
// it is registered; extensions that depend on other extensions need only
// import them. Register should be called from within init funcs. Panics if
// NewVM has been called.
func Register(f func(*VM)) {
	if haveVM {
		panic("petrel/internal: Register must be called before any VM is created")
	}
	coreExt = append(coreExt, f)
}

// coreExt is a list of core extensions that have been registered.
var coreExt = make([]func(*VM), 0, 8)

// haveVM becomes true once NewVM has been called.
var haveVM = false
