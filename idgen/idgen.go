// Package idgen provides the identity counter of progress contexts.
package idgen

import "sync/atomic"

// ID is a unique identifier represented as a uint64.
type ID uint64

// Generator produces unique identifiers.
type Generator interface {
	Generate() ID
}

// ResettableGenerator is a Generator that can restart its sequence. IDs
// generated before a reset may be generated again after it.
type ResettableGenerator interface {
	Generator
	Reset()
}

// New returns a sequential generator whose first emitted ID is "1".
func New() ResettableGenerator {
	return &sequentialGenerator{}
}

type sequentialGenerator struct {
	next atomic.Uint64
}

func (g *sequentialGenerator) Generate() ID {
	return ID(g.next.Add(1))
}

func (g *sequentialGenerator) Reset() {
	g.next.Store(0)
}
