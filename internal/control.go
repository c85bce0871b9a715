package internal

import "fmt"

// Stop represents the reason for flow control.
type Stop int

// Control flow reasons.
const (
	// NoStop indicates normal execution.
	NoStop Stop = iota
	// ContinueStop should be interpreted by loops as a signal to restart the
	// loop immediately.
	ContinueStop
	// BreakStop should be interpreted by loops as a signal to exit the loop.
	BreakStop
	// ReturnStop should be interpreted by loops and blocks as a signal to
	// exit.
	ReturnStop
	// ExceptionStop should be interpreted by loops, blocks, and CFunctions
	// as a signal to exit.
	ExceptionStop

	// ExitStop indicates that the VM has been force-closed.
	ExitStop
)

var stopNames = [...]string{"normal", "continue", "break", "return", "exception", "exit"}

// String returns a string representation of the Stop.
func (s Stop) String() string {
	if s < NoStop || s > ExitStop {
		return fmt.Sprintf("Stop(%d)", s)
	}
	return stopNames[s]
}

// Err returns nil if s is NoStop or an error value otherwise. Panics if s is
// not a valid Stop.
func (s Stop) Err() error {
	switch s {
	case NoStop:
		return nil
	case ContinueStop, BreakStop, ReturnStop, ExceptionStop, ExitStop:
		return stopError(s)
	default:
		panic(fmt.Sprintf("petrel: invalid Stop: %v", s))
	}
}

type stopError Stop

func (err stopError) Error() string {
	return Stop(err).String()
}

// RemoteStop is a wrapped object and control flow status.
type RemoteStop struct {
	Result  *Object
	Control Stop
}

// Stop sends a Stop to the VM, causing the innermost message evaluation to
// exit with the given value and Stop. Stop does nothing if stop is NoStop.
// Returns result. If stop is not ExceptionStop or ExitStop and a Stop is
// already pending, e.g. from another goroutine, then this method instead
// does nothing and returns nil.
func (vm *VM) Stop(result *Object, stop Stop) *Object {
	switch stop {
	case NoStop:
		return result
	case ContinueStop, BreakStop, ReturnStop:
		select {
		case vm.Control <- RemoteStop{result, stop}:
			return result
		default:
			return nil
		}
	case ExceptionStop, ExitStop:
		// Always exit or raise exceptions. Drain any pending signal first so
		// that the send cannot deadlock against our own goroutine, but never
		// replace an ExitStop.
		select {
		case s := <-vm.Control:
			if s.Control == ExitStop {
				result, stop = s.Result, s.Control
			}
			vm.Control <- RemoteStop{result, stop}
		case vm.Control <- RemoteStop{result, stop}: // do nothing
		}
		return result
	default:
		panic(fmt.Errorf("petrel: invalid Stop: %v", stop))
	}
}

// Status checks the VM's control flow channel and returns any pending
// signal, or (result, NoStop) if there is none.
func (vm *VM) Status(result *Object) (*Object, Stop) {
	select {
	case r := <-vm.Control:
		return r.Result, r.Control
	default:
		return result, NoStop
	}
}
