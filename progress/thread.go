package progress

import (
	"sync/atomic"
)

// ThreadID identifies a logical thread of execution, for example a worker
// goroutine. The caller decides what the identity means.
type ThreadID string

// MainThread is the thread that receives the "Main" root on every reset.
const MainThread ThreadID = "Main"

// A Thread is the handle of a logical thread in a registry. It owns the stack
// of open contexts of that thread.
//
// A Thread must only be used to open contexts from one goroutine at a time.
// Handles stay bound to the registry epoch they were obtained in: after the
// registry is reset, obtain new handles.
type Thread struct {
	id       ThreadID
	registry *Registry
	roots    atomic.Pointer[[]*Context]
}

func newThread(id ThreadID, registry *Registry) *Thread {
	return &Thread{
		id:       id,
		registry: registry,
	}
}

// ID returns the identity of the thread.
func (t *Thread) ID() ThreadID {
	return t.id
}

// Roots returns the top-level contexts of the thread, oldest first. The
// returned slice must not be modified.
func (t *Thread) Roots() []*Context {
	roots := t.loadRoots()

	return roots[:len(roots):len(roots)]
}

// Current returns the deepest open context of the thread. It returns nil if
// the thread has no open root.
func (t *Thread) Current() *Context {
	roots := t.loadRoots()
	if len(roots) == 0 {
		return nil
	}

	root := roots[len(roots)-1]
	if root.Closed() {
		return nil
	}

	return root.deepestOpen()
}

// Open creates a new context nested in the current context of the thread. If
// the thread has no open context, the new context becomes a root.
func (t *Thread) Open(name string) *Context {
	r := t.registry
	c := newContext(r.ids.Generate(), name, t, r.clock)

	parent := t.Current()
	if parent == nil {
		t.appendRoot(c)
	} else {
		parent.appendChild(c)
	}

	r.InvokeHook(hookCtx(r, HookPosContextOpen, c, parent))

	return c
}

// Do runs fn inside a context named name. The context is closed when fn
// returns, when it fails, and when it panics. The error of fn is returned
// unchanged.
func (t *Thread) Do(name string, fn func() error) error {
	c := t.Open(name)
	defer c.Close()

	return fn()
}

func (t *Thread) loadRoots() []*Context {
	roots := t.roots.Load()
	if roots == nil {
		return nil
	}

	return *roots
}

func (t *Thread) appendRoot(c *Context) {
	roots := append(t.loadRoots(), c)
	t.roots.Store(&roots)
}
