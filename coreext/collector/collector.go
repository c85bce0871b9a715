package collector

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/petrel-lang/petrel"
	"github.com/petrel-lang/petrel/internal"
)

// Petrel delegates collection to Go's garbage collector, so the Collector
// interface is mostly a window onto runtime statistics. The one control it
// offers is the algorithm selector, which chooses between the collecting
// strategies and "none", which disables automatic collection entirely.

func init() {
	internal.Register(initCollector)
}

// algorithms maps selector names to GC target percentages.
var algorithms = map[string]int{
	"markSweep": 100,
	"triColor":  100,
	"none":      -1,
}

type state struct {
	algorithm string
}

func initCollector(vm *petrel.VM) {
	slots := petrel.Slots{
		"algorithm":    vm.NewCFunction(collectorAlgorithm, nil),
		"collect":      vm.NewCFunction(collectorCollect, nil),
		"setAlgorithm": vm.NewCFunction(collectorSetAlgorithm, nil),
		"showStats":    vm.NewCFunction(collectorShowStats, nil),
		"timeUsed":     vm.NewCFunction(collectorTimeUsed, nil),
		"type":         vm.NewString("Collector"),
	}
	internal.CoreInstall(vm, "Collector", slots, &state{algorithm: "triColor"}, nil)
}

// collectorAlgorithm is a Collector method.
//
// algorithm returns the name of the current collection algorithm.
func collectorAlgorithm(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	target.Lock()
	s, ok := target.Value.(*state)
	target.Unlock()
	if !ok {
		return vm.RaiseExceptionf("receiver of algorithm must be Collector")
	}
	return vm.NewString(s.algorithm)
}

// collectorSetAlgorithm is a Collector method.
//
// setAlgorithm selects the collection algorithm. The name "none" disables
// automatic collection; explicit collect still works.
func collectorSetAlgorithm(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	name, exc, stop := msg.StringArgAt(vm, locals, 0)
	if stop != petrel.NoStop {
		return vm.Stop(exc, stop)
	}
	pct, ok := algorithms[name]
	if !ok {
		return vm.RaiseExceptionf("no collection algorithm named %q", name)
	}
	target.Lock()
	s, sok := target.Value.(*state)
	target.Unlock()
	if !sok {
		return vm.RaiseExceptionf("receiver of setAlgorithm must be Collector")
	}
	debug.SetGCPercent(pct)
	s.algorithm = name
	return target
}

// collectorCollect is a Collector method.
//
// collect triggers a collection cycle and returns the number of objects
// collected program-wide (not only in the Petrel VM). This is much slower
// than allowing collection to happen automatically, as the GC statistics
// must be recorded twice to retrieve the freed object count.
func collectorCollect(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	old := stats.Frees
	runtime.GC()
	runtime.ReadMemStats(&stats)
	return vm.NewNumber(float64(stats.Frees - old))
}

// collectorShowStats is a Collector method.
//
// showStats prints detailed garbage collector information to standard
// output.
func collectorShowStats(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	var s runtime.MemStats
	runtime.ReadMemStats(&s)
	if s.NumGC > 0 {
		last := time.Unix(0, int64(s.LastGC))
		fmt.Printf("Last GC at %v (%v ago)", last, time.Since(last))
	} else {
		fmt.Print("GC has not run")
	}
	fmt.Printf(showStatsFormat,
		s.TotalAlloc, s.Mallocs,
		s.HeapAlloc, float64(s.HeapAlloc)/float64(s.TotalAlloc)*100, s.Mallocs-s.Frees,
		s.NextGC,
		s.Frees,
		s.PauseTotalNs, float64(s.PauseTotalNs)/float64(time.Since(vm.StartTime))*100,
		s.NumGC, s.NumForcedGC)
	return target
}

// collectorTimeUsed is a Collector method.
//
// timeUsed returns the total time in seconds the program has spent paused
// for garbage collection.
func collectorTimeUsed(vm *petrel.VM, target, locals *petrel.Object, msg *petrel.Message) *petrel.Object {
	var s runtime.MemStats
	runtime.ReadMemStats(&s)
	return vm.NewNumber(float64(s.PauseTotalNs) / 1e9)
}

const showStatsFormat = `
total allocated: %d bytes in %d objects
in use: %d bytes (%.2f%%) in %d objects
next GC target: %d bytes
freed objects: %d
GC pauses: %d ns (%.4f%% of runtime)
GC cycles: %d (%d forced)
`
