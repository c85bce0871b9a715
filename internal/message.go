package internal

import (
	"fmt"
	"strconv"
)

// A Message is the fundamental functionality of Petrel: a name, optionally
// with arguments, sent to an object.
//
// NOTE: Unlike most other primitive types in Petrel, Message values are NOT
// synchronized. It is a race condition to modify a message that might be in
// use in another goroutine.
type Message struct {
	// Text is the name of this message.
	Text string
	// Args are the message's argument messages.
	Args []*Message

	// Memo is the message's cached value. If non-nil, this is used instead
	// of performing the message.
	Memo *Object
}

// tagMessage is the Tag type for Message objects.
type tagMessage struct{}

func (tagMessage) Activate(vm *VM, self, target, locals, context *Object, msg *Message) *Object {
	return self
}

func (tagMessage) CloneValue(value interface{}) interface{} {
	m := value.(*Message)
	return &Message{Text: m.Text}
}

func (tagMessage) String() string {
	return "Message"
}

// MessageTag is the Tag for Message objects.
var MessageTag tagMessage

// IdentMessage creates a message of a given identifier. Additional messages
// may be passed as arguments.
func (vm *VM) IdentMessage(s string, args ...*Message) *Message {
	return &Message{
		Text: s,
		Args: args,
	}
}

// StringMessage creates a message carrying a string value.
func (vm *VM) StringMessage(s string) *Message {
	return &Message{
		Text: strconv.Quote(s),
		Memo: vm.NewString(s),
	}
}

// NumberMessage creates a message carrying a numeric value.
func (vm *VM) NumberMessage(v float64) *Message {
	return &Message{
		Text: strconv.FormatFloat(v, 'g', -1, 64),
		Memo: vm.NewNumber(v),
	}
}

// CachedMessage creates a message carrying a cached value.
func (vm *VM) CachedMessage(v *Object) *Message {
	return &Message{
		Text: vm.AsString(v),
		Memo: v,
	}
}

// MessageObject returns an Object with the given Message value. If msg is
// nil, the result is nil.
func (vm *VM) MessageObject(msg *Message) *Object {
	if msg == nil {
		return nil
	}
	return vm.ObjectWith(nil, vm.CoreProto("Message"), msg, MessageTag)
}

// Name returns the name of the message, or "<nil message>" if it is nil.
func (m *Message) Name() string {
	if m == nil {
		return "<nil message>"
	}
	return m.Text
}

// ArgCount returns the number of arguments to the message.
func (m *Message) ArgCount() int {
	if m == nil {
		return 0
	}
	return len(m.Args)
}

// AssertArgCount returns an error if the message does not have the given
// number of arguments. name is the name used in the generated error text.
func (m *Message) AssertArgCount(name string, n int) error {
	if m.ArgCount() != n {
		return fmt.Errorf("%s must have %d arguments", name, n)
	}
	return nil
}

// ArgAt returns the argument at position n, or nil if the position is out of
// bounds.
func (m *Message) ArgAt(n int) (r *Message) {
	if 0 <= n && n < m.ArgCount() {
		r = m.Args[n]
	}
	return r
}

// EvalArgAt evaluates the nth argument.
func (m *Message) EvalArgAt(vm *VM, locals *Object, n int) (result *Object, control Stop) {
	return m.ArgAt(n).Eval(vm, locals)
}

// Eval evaluates the message in the context of the given VM. A message with
// a memo becomes the memo; otherwise it is performed on locals. A nil
// message evaluates to the VM's Nil.
func (m *Message) Eval(vm *VM, locals *Object) (result *Object, control Stop) {
	if m == nil {
		return vm.Nil, NoStop
	}
	if m.Memo != nil {
		return m.Memo, NoStop
	}
	return vm.Perform(locals, locals, m)
}

// StringArgAt evaluates the nth argument and returns it as a string. If a
// stop occurs during evaluation, or the evaluated result is not a Sequence,
// the string will be empty, and the stop status and error will be returned.
func (m *Message) StringArgAt(vm *VM, locals *Object, n int) (string, *Object, Stop) {
	v, s := m.EvalArgAt(vm, locals, n)
	if s == NoStop {
		v.Lock()
		seq, ok := v.Value.(*Sequence)
		v.Unlock()
		if ok {
			return seq.String(), nil, NoStop
		}
		v = vm.NewExceptionf("argument %d to %s must be Sequence, not %s", n, m.Text, vm.TypeName(v))
		s = ExceptionStop
	}
	return "", v, s
}

// NumberArgAt evaluates the nth argument and returns it as a float64. If a
// stop occurs during evaluation, or the evaluated result is not a Number,
// the value will be zero, and the stop status and error will be returned.
func (m *Message) NumberArgAt(vm *VM, locals *Object, n int) (float64, *Object, Stop) {
	v, s := m.EvalArgAt(vm, locals, n)
	if s == NoStop {
		v.Lock()
		x, ok := v.Value.(float64)
		v.Unlock()
		if ok && v.Tag() == NumberTag {
			return x, nil, NoStop
		}
		v = vm.NewExceptionf("argument %d to %s must be Number, not %s", n, m.Text, vm.TypeName(v))
		s = ExceptionStop
	}
	return 0, v, s
}

// SequenceArgAt evaluates the nth argument and returns the object holding
// it, which is guaranteed to have a *Sequence value. If a stop occurs during
// evaluation, or the evaluated result is not a Sequence, the object will be
// nil, and the stop status and error will be returned.
func (m *Message) SequenceArgAt(vm *VM, locals *Object, n int) (*Object, *Object, Stop) {
	v, s := m.EvalArgAt(vm, locals, n)
	if s == NoStop {
		v.Lock()
		_, ok := v.Value.(*Sequence)
		v.Unlock()
		if ok {
			return v, nil, NoStop
		}
		v = vm.NewExceptionf("argument %d to %s must be Sequence, not %s", n, m.Text, vm.TypeName(v))
		s = ExceptionStop
	}
	return nil, v, s
}

// BufferArgAt evaluates the nth argument and acquires a buffer view of the
// result. The caller is responsible for releasing the buffer. If a stop
// occurs during evaluation, or the result is not a bytes-like object, the
// buffer will be nil, and the stop status and error will be returned.
func (m *Message) BufferArgAt(vm *VM, locals *Object, n int) (*Buffer, *Object, Stop) {
	v, s := m.EvalArgAt(vm, locals, n)
	if s != NoStop {
		return nil, v, s
	}
	return vm.AsBuffer(v)
}

// Perform executes a single message on target and checks for control flow
// signals. Any received control flow except NoStop overrides the perform
// result.
//
// NOTE: It is unsafe to call this while holding the lock of any object.
func (vm *VM) Perform(target, locals *Object, msg *Message) (result *Object, control Stop) {
	v, proto := vm.GetSlot(target, msg.Text)
	if proto == nil {
		forward, fp := vm.GetSlot(target, "forward")
		if fp == nil {
			exc := vm.NewExceptionf("%v does not respond to %s", vm.TypeName(target), msg.Name())
			traceException(exc, msg)
			return exc, ExceptionStop
		}
		v, proto = forward, fp
	}
	// Always activate and then check vm.Control, rather than making
	// activating the select default, so control flow raised by this
	// activation is caught as well.
	result = v.Activate(vm, target, locals, proto, msg)
	if result == nil {
		result = vm.Nil
	}
	select {
	case stop := <-vm.Control:
		switch stop.Control {
		case NoStop: // do nothing
		case ExceptionStop:
			traceException(stop.Result, msg)
			return stop.Result, ExceptionStop
		case ContinueStop, BreakStop, ReturnStop, ExitStop:
			return stop.Result, stop.Control
		default:
			panic(fmt.Sprintf("petrel: invalid status in received stop %#v", stop))
		}
	default: // No waiting stop; continue as normal.
	}
	return result, control
}

// initMessage sets up the Message proto.
func (vm *VM) initMessage() {
	slots := Slots{
		"asString": vm.NewCFunction(MessageAsString, MessageTag),
		"name":     vm.NewCFunction(MessageName, MessageTag),
		"type":     vm.NewString("Message"),
	}
	vm.coreInstall("Message", slots, &Message{}, MessageTag)
}

// MessageName is a Message method.
//
// name returns the name of the message.
func MessageName(vm *VM, target, locals *Object, msg *Message) *Object {
	m := target.Value.(*Message)
	return vm.NewString(m.Name())
}

// MessageAsString is a Message method.
//
// asString returns the name of the message.
func MessageAsString(vm *VM, target, locals *Object, msg *Message) *Object {
	m := target.Value.(*Message)
	return vm.NewString(m.Name())
}
