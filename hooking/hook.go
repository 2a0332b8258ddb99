// Package hooking lets observers react to what instrumented objects do, for
// example a progress registry opening and closing contexts.
package hooking

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// HookPos names a point where an object invokes its hooks.
type HookPos struct {
	Name string
}

// HookCtx describes one invocation of the hooks.
type HookCtx struct {
	// Domain is the object invoking the hooks.
	Domain Hookable

	// Pos tells which point of the domain is reached.
	Pos *HookPos

	// Item is what the invocation is about, for example a context.
	Item any

	// Detail is extra data that depends on Pos. It can be nil.
	Detail any
}

// Hookable is an object that invokes hooks.
type Hookable interface {
	// AcceptHook registers a hook. Hooks stay registered for the lifetime of
	// the object.
	AcceptHook(hook Hook)

	// NumHooks returns how many hooks are registered.
	NumHooks() int

	// Hooks returns the registered hooks, in registration order.
	Hooks() []Hook

	// InvokeHook calls every registered hook with ctx.
	InvokeHook(ctx HookCtx)
}

// A Hook is called by a Hookable at the positions it defines.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc turns a function into a Hook.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase implements Hookable and is meant to be embedded.
//
// Hooks may be invoked from many goroutines at once, including while another
// goroutine registers a hook, so hooks must be safe for concurrent use.
// Invocations that race with a registration may miss the new hook.
type HookableBase struct {
	register sync.Mutex
	hooks    atomic.Pointer[[]Hook]
}

// NewHookableBase creates a HookableBase without hooks.
func NewHookableBase() *HookableBase {
	h := new(HookableBase)
	h.hooks.Store(&[]Hook{})

	return h
}

func (h *HookableBase) load() []Hook {
	hooks := h.hooks.Load()
	if hooks == nil {
		return nil
	}

	return *hooks
}

// NumHooks returns how many hooks are registered.
func (h *HookableBase) NumHooks() int {
	return len(h.load())
}

// Hooks returns a copy of the registered hooks.
func (h *HookableBase) Hooks() []Hook {
	return append([]Hook(nil), h.load()...)
}

// AcceptHook registers a hook. Registering the same hook value twice panics.
// HookFuncs and hooks of uncomparable types are not compared.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.register.Lock()
	defer h.register.Unlock()

	current := h.load()
	if isRegistered(current, hook) {
		panic("duplicated hook")
	}

	next := make([]Hook, len(current), len(current)+1)
	copy(next, current)
	next = append(next, hook)

	h.hooks.Store(&next)
}

func isRegistered(hooks []Hook, hook Hook) bool {
	if !isComparable(hook) {
		return false
	}

	for _, registered := range hooks {
		if !isComparable(registered) {
			continue
		}

		if registered == hook {
			return true
		}
	}

	return false
}

func isComparable(hook Hook) bool {
	if _, isFunc := hook.(HookFunc); isFunc {
		return false
	}

	t := reflect.TypeOf(hook)

	return t == nil || t.Comparable()
}

// InvokeHook calls the registered hooks in registration order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.load() {
		hook.Func(ctx)
	}
}

var _ Hookable = (*HookableBase)(nil)
