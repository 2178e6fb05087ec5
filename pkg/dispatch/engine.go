package dispatch

import "strings"

// Link describes one resolved step of a Chain.
type Link struct {
	// Rule is the name of the rule that produced the step.
	Rule string `json:"rule"`

	// Transparent reports whether the step passes control on.
	Transparent bool `json:"transparent"`
}

// Chain is the resolved handler sequence for one descriptor. It is immutable
// and safe for concurrent use.
type Chain struct {
	descriptor  Descriptor
	links       []Link
	handlers    []BoundHandler
	unsupported bool
}

// Resolve scans rules in order and returns the chain that handles d.
//
// The first non-transparent match ends the scan and becomes the last link.
// Transparent matches accumulate ahead of it. When nothing matches the chain
// consists of a single handler that fails with an UnsupportedCallError.
//
// A rule that fails to build its context aborts resolution with a
// *BuildError.
func Resolve(d Descriptor, rules RuleSet, state any) (*Chain, error) {
	c := &Chain{descriptor: d}
	for _, r := range rules.rules {
		h, ok, err := r.tryBind(d, state)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		c.handlers = append(c.handlers, h)
		c.links = append(c.links, Link{Rule: r.name, Transparent: r.transparent})
		if !r.transparent {
			break
		}
	}
	if len(c.handlers) == 0 {
		c.unsupported = true
		c.handlers = []BoundHandler{unsupportedHandler{}}
	}
	return c, nil
}

// Invoke runs the chain. Each link receives a continuation that runs the
// next link with the same invocation; the last link's continuation runs base.
func (c *Chain) Invoke(inv Invocation, state any, base Base) (any, error) {
	return c.call(0, inv, state, base)
}

func (c *Chain) call(i int, inv Invocation, state any, base Base) (any, error) {
	if i == len(c.handlers) {
		if base == nil {
			return nil, &UnsupportedCallError{Descriptor: inv.Descriptor}
		}
		return base()
	}
	next := step{chain: c, i: i + 1, inv: inv, state: state, base: base}
	return c.handlers[i].Invoke(inv, state, next)
}

// step is the continuation handed to link i-1: it runs link i onwards.
type step struct {
	chain *Chain
	i     int
	inv   Invocation
	state any
	base  Base
}

func (s step) Call() (any, error) { return s.chain.call(s.i, s.inv, s.state, s.base) }

func (s step) CallWith(inv Invocation) (any, error) {
	return s.chain.call(s.i, inv, s.state, s.base)
}

// Descriptor returns the descriptor the chain was resolved for.
func (c *Chain) Descriptor() Descriptor { return c.descriptor }

// Links returns the resolved steps in execution order.
func (c *Chain) Links() []Link {
	return append([]Link(nil), c.links...)
}

// Len returns the number of matched rules.
func (c *Chain) Len() int { return len(c.links) }

// Unsupported reports whether no rule matched.
func (c *Chain) Unsupported() bool { return c.unsupported }

// String renders the chain as rule -> rule -> base.
func (c *Chain) String() string {
	if c.unsupported {
		return "<unsupported>"
	}
	parts := make([]string, 0, len(c.links)+1)
	for _, l := range c.links {
		parts = append(parts, l.Rule)
	}
	parts = append(parts, "base")
	return strings.Join(parts, " -> ")
}

type unsupportedHandler struct{}

func (unsupportedHandler) Invoke(inv Invocation, _ any, _ Continuation) (any, error) {
	return nil, &UnsupportedCallError{Descriptor: inv.Descriptor}
}
