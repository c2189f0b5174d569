// Package classify implements component B: deciding whether a dotted module
// name is first-party, third-party, or part of the target language's
// standard library.
package classify

import "strings"

// Kind is the classification a dotted module name resolves to.
type Kind int

const (
	Unknown Kind = iota
	FirstParty
	ThirdParty
	Stdlib
)

func (k Kind) String() string {
	switch k {
	case FirstParty:
		return "FirstParty"
	case ThirdParty:
		return "ThirdParty"
	case Stdlib:
		return "Stdlib"
	default:
		return "Unknown"
	}
}

// FirstPartyChecker answers whether a dotted name resolves under a
// configured first-party root. Implemented by internal/resolve; neither
// package imports the other.
type FirstPartyChecker interface {
	IsFirstParty(dottedName string) bool
}

// Classifier caches classification decisions per dotted name and applies the
// force-third-party override list from the bundler's inputs (spec §6).
type Classifier struct {
	stdlib     map[string]bool
	forceThird map[string]bool
	resolver   FirstPartyChecker
	cache      map[string]Kind
}

// New builds a Classifier for the given target version's stdlib name set.
// forceThirdParty names are always classified ThirdParty regardless of
// whether a first-party root would otherwise claim them.
func New(stdlibNames []string, forceThirdParty []string, resolver FirstPartyChecker) *Classifier {
	c := &Classifier{
		stdlib:     make(map[string]bool, len(stdlibNames)),
		forceThird: make(map[string]bool, len(forceThirdParty)),
		resolver:   resolver,
		cache:      make(map[string]Kind),
	}
	for _, n := range stdlibNames {
		c.stdlib[n] = true
	}
	for _, n := range forceThirdParty {
		c.forceThird[n] = true
	}
	return c
}

// Classify returns the cached classification for dottedName, computing it on
// first use. Dotted children inherit their top segment's classification
// unless the resolver finds a first-party override for the full name.
func (c *Classifier) Classify(dottedName string) Kind {
	if k, ok := c.cache[dottedName]; ok {
		return k
	}
	k := c.classifyUncached(dottedName)
	c.cache[dottedName] = k
	return k
}

func (c *Classifier) classifyUncached(dottedName string) Kind {
	top := topSegment(dottedName)

	if c.forceThird[dottedName] || c.forceThird[top] {
		return ThirdParty
	}
	if c.resolver != nil && c.resolver.IsFirstParty(dottedName) {
		return FirstParty
	}
	if c.stdlib[top] {
		return Stdlib
	}
	return ThirdParty
}

func topSegment(dottedName string) string {
	if i := strings.IndexByte(dottedName, '.'); i >= 0 {
		return dottedName[:i]
	}
	return dottedName
}
