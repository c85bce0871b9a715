package internal

import "fmt"

// Exception is the value of an exception object. The value itself carries
// only the error text; the object's slots hold anything else an exception
// raiser attaches.
type Exception struct {
	// Msg is the error text.
	Msg string
	// Stack is the list of messages the exception unwound through, innermost
	// first. Perform appends to it as the exception propagates, so it is
	// empty for exceptions raised and caught outside any message send.
	Stack []*Message
}

// traceException records m on exc's message stack. It does nothing for
// objects whose value is not an Exception, so raising a non-exception object
// stays legal.
func traceException(exc *Object, m *Message) {
	if exc == nil {
		return
	}
	exc.Lock()
	if e, ok := exc.Value.(Exception); ok {
		e.Stack = append(e.Stack, m)
		exc.Value = e
	}
	exc.Unlock()
}

// String returns the error text.
func (e Exception) String() string {
	return e.Msg
}

// Error returns the error text.
func (e Exception) Error() string {
	return e.Msg
}

// tagException is the Tag type for Exception objects.
type tagException struct{}

func (tagException) Activate(vm *VM, self, target, locals, context *Object, msg *Message) *Object {
	return self
}

func (tagException) CloneValue(value interface{}) interface{} {
	e := value.(Exception)
	// A clone starts with a fresh trace.
	return Exception{Msg: e.Msg}
}

func (tagException) String() string {
	return "Exception"
}

// ExceptionTag is the Tag for Exception objects.
var ExceptionTag tagException

// NewException creates a new exception object with the given error text.
func (vm *VM) NewException(msg string) *Object {
	return vm.ObjectWith(nil, vm.CoreProto("Exception"), Exception{Msg: msg}, ExceptionTag)
}

// NewExceptionf creates a new exception object with the given formatted
// error text.
func (vm *VM) NewExceptionf(format string, args ...interface{}) *Object {
	return vm.NewException(fmt.Sprintf(format, args...))
}

// RaiseException raises a new exception with the given error text, setting
// the VM's control flow to ExceptionStop.
func (vm *VM) RaiseException(msg string) *Object {
	return vm.Stop(vm.NewException(msg), ExceptionStop)
}

// RaiseExceptionf raises a new exception with the given formatted error
// text, setting the VM's control flow to ExceptionStop.
func (vm *VM) RaiseExceptionf(format string, args ...interface{}) *Object {
	return vm.RaiseException(fmt.Sprintf(format, args...))
}

// IoError raises an exception wrapping a Go error. If the error is already a
// raised exception's value, it is re-raised unchanged.
func (vm *VM) IoError(err error) *Object {
	if e, ok := err.(Exception); ok {
		return vm.Stop(vm.ObjectWith(nil, vm.CoreProto("Exception"), e, ExceptionTag), ExceptionStop)
	}
	return vm.RaiseException(err.Error())
}

// initException sets up the Exception proto.
func (vm *VM) initException() {
	slots := Slots{
		"error":   vm.NewCFunction(ExceptionError, ExceptionTag),
		"type":    vm.NewString("Exception"),
		"isError": vm.True,
	}
	vm.coreInstall("Exception", slots, Exception{}, ExceptionTag)
}

// ExceptionError is an Exception method.
//
// error returns the exception's error text.
func ExceptionError(vm *VM, target, locals *Object, msg *Message) *Object {
	target.Lock()
	e := target.Value.(Exception)
	target.Unlock()
	return vm.NewString(e.Msg)
}
