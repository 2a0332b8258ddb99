// Package eventlog keeps the published progress events of a server.
//
// A Log is an append-only sequence of opaque payloads. Readers hold a cursor,
// the sequence number of the next entry they want, and can replay the log
// from any position that is still retained. An Inbox sits in front of the log
// so that publishers never wait for it.
package eventlog

import (
	"context"
	"sync"
	"time"
)

// An Entry is a payload together with its position in the log.
type Entry struct {
	Seq     int
	Payload []byte
}

// Log is an append-only log of payloads.
//
// Sequence numbers never change. If a retention limit is set, the oldest
// entries are evicted once the limit is exceeded, and readers whose cursor
// points before the oldest retained entry are moved forward. Invalidated
// entries keep their position but are skipped by readers.
type Log struct {
	lock      sync.RWMutex
	base      int
	entries   [][]byte
	retention int
	changed   chan struct{}
	closed    bool
}

// NewLog creates a log keeping at most retention entries. A retention of 0
// keeps every entry.
func NewLog(retention int) *Log {
	if retention < 0 {
		panic("retention must not be negative")
	}

	return &Log{
		retention: retention,
		changed:   make(chan struct{}),
	}
}

// Append adds a payload at the end of the log and wakes up waiting readers.
// It returns the sequence number of the new entry. A nil payload takes a
// position but is never delivered. Appending to a closed log does nothing and
// returns -1.
func (l *Log) Append(payload []byte) int {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.closed {
		return -1
	}

	seq := l.base + len(l.entries)
	l.entries = append(l.entries, payload)
	l.evict()

	close(l.changed)
	l.changed = make(chan struct{})

	return seq
}

func (l *Log) evict() {
	if l.retention == 0 || len(l.entries) <= l.retention {
		return
	}

	drop := len(l.entries) - l.retention
	for i := 0; i < drop; i++ {
		l.entries[i] = nil
	}

	l.entries = l.entries[drop:]
	l.base += drop

	if cap(l.entries) > 2*l.retention {
		l.entries = append(make([][]byte, 0, 2*l.retention), l.entries...)
	}
}

// Invalidate releases the payloads of all entries before upTo. The entries
// keep their sequence numbers but are no longer delivered.
func (l *Log) Invalidate(upTo int) {
	l.lock.Lock()
	defer l.lock.Unlock()

	for seq := l.base; seq < upTo && seq < l.base+len(l.entries); seq++ {
		l.entries[seq-l.base] = nil
	}
}

// Len returns the sequence number the next appended entry will get.
func (l *Log) Len() int {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.base + len(l.entries)
}

// Base returns the sequence number of the oldest retained entry.
func (l *Log) Base() int {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.base
}

// Read returns the live entries from pos to the end of the log, and the
// cursor to continue from. If pos points before the oldest retained entry,
// reading starts from that entry and clamped is true.
func (l *Log) Read(pos int) (entries []Entry, next int, clamped bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()

	if pos < l.base {
		pos = l.base
		clamped = true
	}

	end := l.base + len(l.entries)
	for seq := pos; seq < end; seq++ {
		payload := l.entries[seq-l.base]
		if payload == nil {
			continue
		}

		entries = append(entries, Entry{Seq: seq, Payload: payload})
	}

	if pos > end {
		return entries, pos, clamped
	}

	return entries, end, clamped
}

// Wait blocks until the log holds an entry at or after pos, the log is
// closed, ctx is done, or the timeout expires. It tells whether such an entry
// is available. The timeout bounds the wait so that callers regularly get a
// chance to look at their own stop conditions.
func (l *Log) Wait(ctx context.Context, pos int, timeout time.Duration) bool {
	l.lock.RLock()
	changed := l.changed
	available := l.base+len(l.entries) > pos
	closed := l.closed
	l.lock.RUnlock()

	if available || closed {
		return available
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-changed:
	case <-ctx.Done():
	case <-timer.C:
	}

	return l.Len() > pos
}

// Close wakes up all waiting readers. Entries already in the log remain
// readable; nothing can be appended any more.
func (l *Log) Close() {
	l.lock.Lock()
	defer l.lock.Unlock()

	if l.closed {
		return
	}

	l.closed = true
	close(l.changed)
}

// Closed tells if the log has been closed.
func (l *Log) Closed() bool {
	l.lock.RLock()
	defer l.lock.RUnlock()

	return l.closed
}
