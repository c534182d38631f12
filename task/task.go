// Package task defines what the dispatcher needs from a unit of work: a
// channel identifier and an identity for logs. It also provides Func, a
// ready-made task type carrying a closure.
package task

import (
	"cmp"
	"context"
	"fmt"

	"github.com/xraph/taskchan/id"
)

// Task is a unit of work routed by its channel.
//
// The zero value of C is the default channel: tasks on it carry no
// ordering dependency on each other. Channel must return the same value
// for the lifetime of the task.
type Task[C cmp.Ordered] interface {
	// Channel returns the affinity key of the task.
	Channel() C
	// TaskID returns an identity used only for logging and debugging.
	TaskID() string
}

// Info describes a task being executed. It is what middleware and
// extensions see, independent of the concrete task type.
type Info struct {
	ID       string
	Channel  string
	Executor uint32
	Default  bool
}

// Describe builds the Info of t as run by executor.
func Describe[C cmp.Ordered, T Task[C]](t T, executor uint32) Info {
	var zero C
	c := t.Channel()
	return Info{
		ID:       t.TaskID(),
		Channel:  fmt.Sprint(c),
		Executor: executor,
		Default:  c == zero,
	}
}

// Func is a task backed by a function.
type Func[C cmp.Ordered] struct {
	ID   id.TaskID
	Name string
	Chan C
	Fn   func(ctx context.Context) error
}

// NewFunc creates a Func task on channel c with a fresh ID.
func NewFunc[C cmp.Ordered](c C, name string, fn func(ctx context.Context) error) *Func[C] {
	return &Func[C]{ID: id.NewTaskID(), Name: name, Chan: c, Fn: fn}
}

// Channel implements Task.
func (f *Func[C]) Channel() C { return f.Chan }

// TaskID implements Task.
func (f *Func[C]) TaskID() string { return f.ID.String() }

// Run invokes the function. A nil Fn is a no-op.
func (f *Func[C]) Run(ctx context.Context) error {
	if f.Fn == nil {
		return nil
	}
	return f.Fn(ctx)
}
