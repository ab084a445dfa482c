// Package framework runs the long-lived pieces of a program side by side
// and stops them together.
package framework

import (
	"context"
	"strconv"
)

// Named is an abstraction for things with a name.
type Named interface {
	Name() string
}

// Runnable is a background task which stops when ctx is done.
type Runnable interface {
	Run(context.Context) error
}

// RunFunc is the func form of Runnable.
type RunFunc func(context.Context) error

// Run implements Runnable.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

type namedRunnable struct {
	Runnable
	name string
}

func (r *namedRunnable) Name() string {
	return r.name
}

// NamedRun attaches a name to a Runnable, used in logs.
func NamedRun(name string, runnable Runnable) Runnable {
	return &namedRunnable{name: name, Runnable: runnable}
}

func nameOf(r Runnable, index int) string {
	if named, ok := r.(Named); ok {
		return named.Name()
	}
	return "#" + strconv.Itoa(index)
}
