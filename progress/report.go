package progress

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sarchlab/progress/idgen"
)

// A Record is a flat, read-only view of a context, convenient for consumers
// that render timelines.
type Record struct {
	ID        idgen.ID      `json:"id"`
	ParentID  idgen.ID      `json:"parent_id,omitempty"`
	Thread    ThreadID      `json:"thread"`
	Name      string        `json:"name"`
	Depth     int           `json:"depth"`
	StartPerf time.Duration `json:"start_perf_ns"`
	EndPerf   time.Duration `json:"end_perf_ns,omitempty"`
	StartCPU  time.Duration `json:"start_cpu_ns"`
	EndCPU    time.Duration `json:"end_cpu_ns,omitempty"`
	Open      bool          `json:"open"`
}

// RecordOf creates a record of a single context. Open contexts have no end
// times.
func RecordOf(c *Context, parentID idgen.ID, depth int) Record {
	rec := Record{
		ID:        c.id,
		ParentID:  parentID,
		Thread:    c.Thread(),
		Name:      c.name,
		Depth:     depth,
		StartPerf: c.startPerf,
		StartCPU:  c.startCPU,
	}

	endPerf, closed := c.EndPerf()
	if !closed {
		rec.Open = true
		return rec
	}

	endCPU, _ := c.EndCPU()
	rec.EndPerf = endPerf
	rec.EndCPU = endCPU

	return rec
}

// Snapshot returns the records of all the contexts of a thread, in pre-order.
// It is a relaxed-consistency read when called from another goroutine than
// the thread's owner.
func Snapshot(t *Thread) []Record {
	var records []Record

	for _, root := range t.Roots() {
		records = appendRecords(records, root, 0, 0)
	}

	return records
}

// Snapshot returns the records of every thread, main thread first.
func (r *Registry) Snapshot() []Record {
	var records []Record

	for _, id := range r.Threads() {
		if t, found := r.Lookup(id); found {
			records = append(records, Snapshot(t)...)
		}
	}

	return records
}

func appendRecords(
	records []Record,
	c *Context,
	parentID idgen.ID,
	depth int,
) []Record {
	records = append(records, RecordOf(c, parentID, depth))

	for _, child := range c.Children() {
		records = appendRecords(records, child, c.id, depth+1)
	}

	return records
}

// PrintTree writes an indented view of the contexts of a thread with their
// elapsed wall time. Open contexts are marked with an hourglass.
func PrintTree(w io.Writer, t *Thread) error {
	for _, root := range t.Roots() {
		if err := printContext(w, root, 0); err != nil {
			return err
		}
	}

	return nil
}

func printContext(w io.Writer, c *Context, indent int) error {
	marker := ""
	if !c.Closed() {
		marker = " ⌛"
	}

	_, err := fmt.Fprintf(w, "%s%s %s%s\n",
		strings.Repeat(" ", indent), c.name, c.PerfElapsed(), marker)
	if err != nil {
		return err
	}

	for _, child := range c.Children() {
		if err := printContext(w, child, indent+2); err != nil {
			return err
		}
	}

	return nil
}

// traceEvent is an event of the Trace Event Format understood by Chrome's
// tracing tools and by Perfetto.
type traceEvent struct {
	Name     string         `json:"name"`
	Category string         `json:"cat"`
	Phase    string         `json:"ph"`
	Time     int64          `json:"ts"`
	PID      int            `json:"pid"`
	TID      int            `json:"tid"`
	Args     map[string]any `json:"args,omitempty"`
}

const (
	tracePhaseBegin    = "B"
	tracePhaseEnd      = "E"
	tracePhaseMetadata = "M"
)

// WriteTraceEvents writes the contexts of every thread as a JSON array of
// begin/end events in the Trace Event Format. Times are microseconds since the
// last reset. Open contexts only have a begin event, unless a closed ancestor
// ends them.
func WriteTraceEvents(w io.Writer, r *Registry) error {
	pid := os.Getpid()
	events := make([]traceEvent, 0)

	for tid, id := range r.Threads() {
		t, found := r.Lookup(id)
		if !found {
			continue
		}

		events = append(events, traceEvent{
			Name:  "thread_name",
			Phase: tracePhaseMetadata,
			PID:   pid,
			TID:   tid,
			Args:  map[string]any{"name": string(id)},
		})

		for _, root := range t.Roots() {
			events = appendTraceEvents(events, root, pid, tid, nil)
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(events); err != nil {
		return fmt.Errorf("failed to encode trace events: %w", err)
	}

	return nil
}

// traceEnd is the end of an enclosing context. Nested contexts end no later
// than their closed ancestors.
type traceEnd struct {
	perf time.Duration
	cpu  time.Duration
}

func appendTraceEvents(
	events []traceEvent,
	c *Context,
	pid, tid int,
	bound *traceEnd,
) []traceEvent {
	events = append(events, traceEvent{
		Name:     c.name,
		Category: "context",
		Phase:    tracePhaseBegin,
		Time:     c.startPerf.Microseconds(),
		PID:      pid,
		TID:      tid,
		Args: map[string]any{
			"id":     uint64(c.id),
			"cpu_us": c.startCPU.Microseconds(),
		},
	})

	end, closed := traceEndOf(c, bound)

	childBound := bound
	if closed {
		childBound = &end
	}

	for _, child := range c.Children() {
		events = appendTraceEvents(events, child, pid, tid, childBound)
	}

	if !closed {
		return events
	}

	args := map[string]any{
		"id":     uint64(c.id),
		"cpu_us": end.cpu.Microseconds(),
	}

	if !c.Closed() {
		args["open"] = true
	}

	return append(events, traceEvent{
		Name:     c.name,
		Category: "context",
		Phase:    tracePhaseEnd,
		Time:     end.perf.Microseconds(),
		PID:      pid,
		TID:      tid,
		Args:     args,
	})
}

// traceEndOf returns when c ends in the trace: its own end, cut at the end of
// the closed ancestor bounding it. A context that is still open inside a
// closed ancestor ends with that ancestor.
func traceEndOf(c *Context, bound *traceEnd) (traceEnd, bool) {
	perf, closed := c.EndPerf()
	if !closed {
		if bound == nil {
			return traceEnd{}, false
		}

		return *bound, true
	}

	cpu, _ := c.EndCPU()
	end := traceEnd{perf: perf, cpu: cpu}

	if bound != nil && end.perf > bound.perf {
		end = *bound
	}

	return end, true
}
