// Package progress records nested, named timing intervals per logical thread
// of execution.
//
// A Registry maps threads to their trees of contexts. Application code opens
// and closes contexts through a Thread handle, either directly, with Do, or by
// decorating functions:
//
//	r := progress.Default()
//	main := r.Main()
//
//	err := main.Do("load", func() error {
//		return load()
//	})
//
//	parse := progress.Wrap(main, parseFile)
//	result, err := parse.Call(path)
//
// Observers can register hooks on the Registry to learn about contexts being
// opened and closed.
package progress

import (
	"sort"
	"sync"

	"github.com/sarchlab/progress/hooking"
	"github.com/sarchlab/progress/idgen"
	"github.com/sarchlab/progress/timing"
)

// Hook positions raised by a Registry. For HookPosContextOpen, the Item is the
// new *Context and the Detail is its parent (a *Context, or nil for a root).
// For HookPosContextClose, the Item is the closed *Context.
var (
	HookPosContextOpen  = &hooking.HookPos{Name: "ContextOpen"}
	HookPosContextClose = &hooking.HookPos{Name: "ContextClose"}
)

// A Registry holds the context trees of all the threads of a program, between
// two resets. Everything a Registry hands out is valid from one Reset until
// the next one.
type Registry struct {
	*hooking.HookableBase

	clock      timing.Clock
	ids        idgen.ResettableGenerator
	mainThread ThreadID

	lock    sync.RWMutex
	threads map[ThreadID]*Thread
}

// NewRegistry creates a registry measuring contexts with the given clock. The
// registry is reset before it is returned.
func NewRegistry(clock timing.Clock) *Registry {
	return MakeBuilder().WithClock(clock).Build()
}

var (
	defaultRegistryLock sync.Mutex
	defaultRegistry     *Registry
)

// Default returns the process-wide registry, creating it on first use with the
// system clock.
func Default() *Registry {
	defaultRegistryLock.Lock()
	defer defaultRegistryLock.Unlock()

	if defaultRegistry == nil {
		defaultRegistry = MakeBuilder().Build()
	}

	return defaultRegistry
}

// Reset starts a new measurement epoch. It resets the clock and the identity
// counter and replaces all threads with a single main thread holding a fresh
// "Main" root.
//
// Reset must not run while contexts of the previous epoch are still being
// opened or closed.
func (r *Registry) Reset() {
	r.clock.Reset()
	r.ids.Reset()

	main := newThread(r.mainThread, r)
	root := newContext(r.ids.Generate(), string(MainThread), main, r.clock)
	main.appendRoot(root)

	r.lock.Lock()
	r.threads = map[ThreadID]*Thread{r.mainThread: main}
	r.lock.Unlock()

	r.InvokeHook(hookCtx(r, HookPosContextOpen, root, nil))
}

// Clock returns the clock the registry measures contexts with.
func (r *Registry) Clock() timing.Clock {
	return r.clock
}

// Main returns the handle of the main thread.
func (r *Registry) Main() *Thread {
	return r.Thread(r.mainThread)
}

// Thread returns the handle of the thread with the given identity, creating it
// if it does not exist yet. A newly created thread has no root; its first
// opened context becomes one.
func (r *Registry) Thread(id ThreadID) *Thread {
	if t, found := r.Lookup(id); found {
		return t
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	t, found := r.threads[id]
	if !found {
		t = newThread(id, r)
		r.threads[id] = t
	}

	return t
}

// Lookup returns the handle of an existing thread.
func (r *Registry) Lookup(id ThreadID) (*Thread, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	t, found := r.threads[id]

	return t, found
}

// Threads returns the identities of all known threads, sorted, with the main
// thread first.
func (r *Registry) Threads() []ThreadID {
	r.lock.RLock()
	ids := make([]ThreadID, 0, len(r.threads))
	for id := range r.threads {
		ids = append(ids, id)
	}
	r.lock.RUnlock()

	sort.Slice(ids, func(i, j int) bool {
		if ids[i] == r.mainThread || ids[j] == r.mainThread {
			return ids[i] == r.mainThread
		}

		return ids[i] < ids[j]
	})

	return ids
}

// Current returns the deepest open context of a thread. It returns nil if the
// thread is unknown or has no open context; whether that is an error is up to
// the caller.
func (r *Registry) Current(id ThreadID) *Context {
	t, found := r.Lookup(id)
	if !found {
		return nil
	}

	return t.Current()
}

// Find returns the context with the given identity, searching every thread.
// The search is a relaxed-consistency read.
func (r *Registry) Find(id idgen.ID) (*Context, bool) {
	for _, threadID := range r.Threads() {
		t, found := r.Lookup(threadID)
		if !found {
			continue
		}

		for _, root := range t.Roots() {
			if c := findInTree(root, id); c != nil {
				return c, true
			}
		}
	}

	return nil, false
}

func findInTree(c *Context, id idgen.ID) *Context {
	if c.id == id {
		return c
	}

	for _, child := range c.loadChildren() {
		if found := findInTree(child, id); found != nil {
			return found
		}
	}

	return nil
}

func hookCtx(
	r *Registry,
	pos *hooking.HookPos,
	c *Context,
	parent *Context,
) hooking.HookCtx {
	ctx := hooking.HookCtx{
		Domain: r,
		Pos:    pos,
		Item:   c,
	}

	if parent != nil {
		ctx.Detail = parent
	}

	return ctx
}
