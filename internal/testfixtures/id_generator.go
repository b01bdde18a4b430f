package testfixtures

import (
	"strconv"
	"sync"
)

// IDGenerator hands out predictable identifiers such as "id-1", "id-2" and
// remembers them so tests can refer back to generated games, runs or tokens.
type IDGenerator struct {
	mu     sync.Mutex
	prefix string
	issued []string
}

// NewIDGenerator returns a generator for prefix; "id" when prefix is empty.
func NewIDGenerator(prefix string) *IDGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &IDGenerator{prefix: prefix}
}

// Next issues the following identifier.
func (g *IDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.prefix + "-" + strconv.Itoa(len(g.issued)+1)
	g.issued = append(g.issued, id)
	return id
}

// NextFunc returns Next as an injectable func.
func (g *IDGenerator) NextFunc() func() string {
	if g == nil {
		return func() string { return "" }
	}
	return g.Next
}

// Issued lists every identifier handed out so far, oldest first.
func (g *IDGenerator) Issued() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.issued...)
}

// Last returns the most recent identifier, or "" before the first call to Next.
func (g *IDGenerator) Last() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.issued) == 0 {
		return ""
	}
	return g.issued[len(g.issued)-1]
}
