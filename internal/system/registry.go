// SPDX-License-Identifier: MIT
//
// Package system tracks the long-lived tasks of the pipeline and renders the
// task/resource summary served on /system.
package system

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// State is the coarse lifecycle state of a task.
type State int32

const (
	Waiting State = iota // Blocked on its input (mailbox, trigger, timer, accept)
	Running              // Doing work
	Stopped              // Loop exited
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Task holds the counters of one loop. Every method is safe for concurrent use
// and a nil *Task ignores updates, so components can run unregistered.
type Task struct {
	name   string
	state  atomic.Int32
	cycles atomic.Uint64
	errors atomic.Uint64
}

// Name returns the task name.
func (t *Task) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}

// SetState records the current state.
func (t *Task) SetState(s State) {
	if t == nil {
		return
	}
	t.state.Store(int32(s))
}

// State returns the last recorded state.
func (t *Task) State() State {
	if t == nil {
		return Stopped
	}
	return State(t.state.Load())
}

// Cycle counts one completed iteration.
func (t *Task) Cycle() {
	if t == nil {
		return
	}
	t.cycles.Add(1)
}

// Fail counts one failed or skipped iteration.
func (t *Task) Fail() {
	if t == nil {
		return
	}
	t.errors.Add(1)
}

// Cycles returns the number of completed iterations.
func (t *Task) Cycles() uint64 {
	if t == nil {
		return 0
	}
	return t.cycles.Load()
}

// Errors returns the number of failed iterations.
func (t *Task) Errors() uint64 {
	if t == nil {
		return 0
	}
	return t.errors.Load()
}

type gauge struct {
	name string
	read func() uint64
}

// Registry owns the task table.
type Registry struct {
	mu      sync.Mutex
	tasks   []*Task
	gauges  []gauge
	started time.Time
}

// NewRegistry returns an empty registry whose uptime starts now.
func NewRegistry() *Registry {
	return &Registry{started: time.Now()}
}

// Register returns the task called name, creating it in the Waiting state.
func (r *Registry) Register(name string) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.name == name {
			return t
		}
	}
	t := &Task{name: name}
	r.tasks = append(r.tasks, t)
	return t
}

// AddGauge adds a named resource counter to the summary, e.g. mailbox drops.
func (r *Registry) AddGauge(name string, read func() uint64) {
	r.mu.Lock()
	r.gauges = append(r.gauges, gauge{name: name, read: read})
	r.mu.Unlock()
}

// Tasks returns the registered tasks in registration order.
func (r *Registry) Tasks() []*Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Task, len(r.tasks))
	copy(out, r.tasks)
	return out
}

// Summary renders the task table followed by process resource usage.
func (r *Registry) Summary() string {
	r.mu.Lock()
	tasks := make([]*Task, len(r.tasks))
	copy(tasks, r.tasks)
	gauges := make([]gauge, len(r.gauges))
	copy(gauges, r.gauges)
	r.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-8s %12s %8s\n", "Task", "State", "Cycles", "Errors")
	for _, t := range tasks {
		fmt.Fprintf(&b, "%-12s %-8s %12d %8d\n", t.name, t.State(), t.Cycles(), t.Errors())
	}
	for _, g := range gauges {
		fmt.Fprintf(&b, "%-30s %12d\n", g.name, g.read())
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	fmt.Fprintf(&b, "Uptime: %s\n", time.Since(r.started).Truncate(time.Second))
	fmt.Fprintf(&b, "Goroutines: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&b, "Heap: %.1f KiB in use, %.1f KiB reserved\n",
		float64(mem.HeapInuse)/1024, float64(mem.HeapSys)/1024)
	return b.String()
}
