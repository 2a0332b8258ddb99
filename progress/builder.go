package progress

import (
	"github.com/sarchlab/progress/hooking"
	"github.com/sarchlab/progress/idgen"
	"github.com/sarchlab/progress/timing"
)

// Builder can be used to build a Registry.
type Builder struct {
	clock      timing.Clock
	mainThread ThreadID
	hooks      []hooking.Hook
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		mainThread: MainThread,
	}
}

// WithClock sets the clock contexts are measured with. By default, a
// timing.SystemClock is used.
func (b Builder) WithClock(clock timing.Clock) Builder {
	b.clock = clock
	return b
}

// WithMainThread sets the identity of the thread that receives the "Main"
// root.
func (b Builder) WithMainThread(id ThreadID) Builder {
	b.mainThread = id
	return b
}

// WithHook registers a hook before the first reset, so that it also observes
// the creation of the "Main" root.
func (b Builder) WithHook(hook hooking.Hook) Builder {
	b.hooks = append(b.hooks[:len(b.hooks):len(b.hooks)], hook)
	return b
}

func (b Builder) parametersMustBeValid() {
	if b.mainThread == "" {
		panic("main thread must have an identity")
	}
}

// Build creates the registry and resets it.
func (b Builder) Build() *Registry {
	b.parametersMustBeValid()

	clock := b.clock
	if clock == nil {
		clock = timing.NewSystemClock()
	}

	r := &Registry{
		HookableBase: hooking.NewHookableBase(),
		clock:        clock,
		ids:          idgen.New(),
		mainThread:   b.mainThread,
	}

	for _, hook := range b.hooks {
		r.AcceptHook(hook)
	}

	r.Reset()

	return r
}
