package monitoring

import (
	"encoding/json"

	"github.com/sarchlab/progress/hooking"
	"github.com/sarchlab/progress/idgen"
	"github.com/sarchlab/progress/progress"
)

// A Publisher accepts serialized events. Server is a Publisher.
type Publisher interface {
	Publish(payload []byte) bool
}

// ContextEvent is the JSON payload a ContextPublisher publishes.
type ContextEvent struct {
	Kind   string            `json:"kind"`
	ID     idgen.ID          `json:"id"`
	Parent idgen.ID          `json:"parent,omitempty"`
	Thread progress.ThreadID `json:"thread"`
	Name   string            `json:"name"`
	PerfNS int64             `json:"perf_ns"`
	CPUNS  int64             `json:"cpu_ns"`
}

// Kinds of context events.
const (
	ContextOpened = "open"
	ContextClosed = "close"
)

// A ContextPublisher is a hook that publishes the contexts opened and closed
// in a progress registry.
type ContextPublisher struct {
	publisher Publisher
}

// NewContextPublisher creates a ContextPublisher publishing to p.
func NewContextPublisher(p Publisher) *ContextPublisher {
	return &ContextPublisher{publisher: p}
}

// Func publishes the context the hook is invoked with.
func (p *ContextPublisher) Func(ctx hooking.HookCtx) {
	c, ok := ctx.Item.(*progress.Context)
	if !ok {
		return
	}

	ev := ContextEvent{
		ID:     c.ID(),
		Thread: c.Thread(),
		Name:   c.Name(),
	}

	switch ctx.Pos {
	case progress.HookPosContextOpen:
		ev.Kind = ContextOpened
		ev.PerfNS = c.StartPerf().Nanoseconds()
		ev.CPUNS = c.StartCPU().Nanoseconds()

		if parent, ok := ctx.Detail.(*progress.Context); ok {
			ev.Parent = parent.ID()
		}
	case progress.HookPosContextClose:
		ev.Kind = ContextClosed
		perf, _ := c.EndPerf()
		cpu, _ := c.EndCPU()
		ev.PerfNS = perf.Nanoseconds()
		ev.CPUNS = cpu.Nanoseconds()
	default:
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		panic(err)
	}

	p.publisher.Publish(payload)
}

var _ hooking.Hook = (*ContextPublisher)(nil)
