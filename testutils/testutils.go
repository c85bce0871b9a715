// Package testutils provides utilities for testing the Petrel runtime in Go.
package testutils

import (
	"sync"
	"testing"

	"github.com/petrel-lang/petrel"
)

// testVM is the VM used for all tests.
var testVM *petrel.VM

var testVMInit sync.Once

// TestingVM returns a VM for testing. The VM is shared by all tests that use
// this package.
func TestingVM() *petrel.VM {
	testVMInit.Do(ResetTestingVM)
	return testVM
}

// ResetTestingVM reinitializes the VM returned by TestingVM. It is not safe
// to call this in parallel tests.
func ResetTestingVM() {
	testVM = petrel.NewVM()
}

// A SendTestCase is a test case that sends a message to a target and checks
// the result with a predicate.
type SendTestCase struct {
	// Target computes the receiver of the message. A nil Target sends to the
	// Lobby.
	Target func(vm *petrel.VM) *petrel.Object
	// Msg is the name of the message to send.
	Msg string
	// Args are messages to attach as arguments.
	Args []*petrel.Message
	// Pass is a predicate taking the result of the send. If Pass returns
	// false, then the test fails.
	Pass func(result *petrel.Object, control petrel.Stop) bool
}

// TestFunc returns a test function for the test case. This uses TestingVM to
// perform the send.
func (c SendTestCase) TestFunc(name string) func(*testing.T) {
	return func(t *testing.T) {
		vm := TestingVM()
		target := vm.Lobby
		if c.Target != nil {
			target = c.Target(vm)
		}
		m := vm.IdentMessage(c.Msg, c.Args...)
		if r, s := vm.Perform(target, vm.Lobby, m); !c.Pass(r, s) {
			t.Errorf("%s %s produced wrong result; got %s@%p (%s)", vm.AsString(target), c.Msg, vm.AsString(r), r, s)
		}
	}
}

// PassIdentical returns a Pass function for a SendTestCase that predicates
// on identity equality, i.e. the result must be exactly the given object. If
// the Stop is not NoStop, then the predicate returns false.
func PassIdentical(want *petrel.Object) func(*petrel.Object, petrel.Stop) bool {
	return func(result *petrel.Object, control petrel.Stop) bool {
		if control != petrel.NoStop {
			return false
		}
		return want == result
	}
}

// PassTag returns a Pass function for a SendTestCase that predicates on
// equality of the Tag of the result. If the Stop is not NoStop, then the
// predicate returns false.
func PassTag(want petrel.Tag) func(*petrel.Object, petrel.Stop) bool {
	return func(result *petrel.Object, control petrel.Stop) bool {
		if control != petrel.NoStop {
			return false
		}
		return result.Tag() == want
	}
}

// PassNumber returns a Pass function for a SendTestCase that predicates on
// equality with a number. If the Stop is not NoStop, then the predicate
// returns false.
func PassNumber(want float64) func(*petrel.Object, petrel.Stop) bool {
	return func(result *petrel.Object, control petrel.Stop) bool {
		if control != petrel.NoStop {
			return false
		}
		result.Lock()
		n, ok := result.Value.(float64)
		result.Unlock()
		return ok && n == want
	}
}

// PassString returns a Pass function for a SendTestCase that predicates on
// equality with a sequence's string value. If the Stop is not NoStop, then
// the predicate returns false.
func PassString(want string) func(*petrel.Object, petrel.Stop) bool {
	return func(result *petrel.Object, control petrel.Stop) bool {
		if control != petrel.NoStop {
			return false
		}
		result.Lock()
		s, ok := result.Value.(*petrel.Sequence)
		result.Unlock()
		return ok && s.String() == want
	}
}

// PassFailure returns a Pass function for a SendTestCase that returns true
// iff the result is a raised exception.
func PassFailure() func(*petrel.Object, petrel.Stop) bool {
	// This doesn't need to be a function returning a function, but it's nice
	// to stay consistent with the other predicate generators.
	return func(result *petrel.Object, control petrel.Stop) bool {
		return control == petrel.ExceptionStop
	}
}

// PassSuccess returns a Pass function for a SendTestCase that returns true
// iff the control flow status is NoStop.
func PassSuccess() func(*petrel.Object, petrel.Stop) bool {
	return func(result *petrel.Object, control petrel.Stop) bool {
		return control == petrel.NoStop
	}
}

// CheckSlots is a testing helper to check whether an object has exactly the
// slots we expect.
func CheckSlots(t *testing.T, obj *petrel.Object, slots []string) {
	t.Helper()
	vm := TestingVM()
	checked := make(map[string]bool, len(slots))
	for _, name := range slots {
		checked[name] = true
		t.Run("Have_"+name, func(t *testing.T) {
			slot, ok := vm.GetLocalSlot(obj, name)
			if !ok {
				t.Fatal("no slot", name)
			}
			if slot == nil {
				t.Fatal("slot", name, "is nil")
			}
		})
	}
	vm.ForeachSlot(obj, func(name string, value *petrel.Object) bool {
		t.Run("Want_"+name, func(t *testing.T) {
			if !checked[name] {
				t.Fatal("unexpected slot", name)
			}
		})
		return true
	})
}

// CheckObjectIsProto is a testing helper to check that an object has exactly
// one proto, which is Core Object. obj must come from the test VM.
func CheckObjectIsProto(t *testing.T, obj *petrel.Object) {
	t.Helper()
	protos := obj.Protos()
	switch len(protos) {
	case 0:
		t.Fatal("no protos")
	case 1: // do nothing
	default:
		t.Error("incorrect number of protos: expected 1, have", len(protos))
	}
	vm := TestingVM()
	if p := protos[0]; p != vm.BaseObject {
		t.Errorf("wrong proto: expected %T@%p, have %T@%p", vm.BaseObject, vm.BaseObject, p, p)
	}
}
