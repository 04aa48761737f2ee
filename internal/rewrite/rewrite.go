// Package rewrite maps incoming request paths onto backend destinations before the
// request reaches any application handler.
//
// A rule source is either an exact path ("/api/register") or a prefix pattern ending
// in "/:path*", which matches the prefix itself and anything below it on a segment
// boundary. Rules are evaluated in order and the first match wins.
package rewrite

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// PathParam is the catch-all segment parameter accepted at the end of a source or destination.
const PathParam = ":path*"

// ReservedPrefix is owned by the session endpoints and is never rewritten.
const ReservedPrefix = "/api/auth"

var ErrInvalidRule = errors.New("invalid rewrite rule")

// Rule maps a source path pattern to a destination URL.
type Rule struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// DefaultRules returns the gateway's rewrite table for the given backend base URL.
// /api/register is split in two so clients can call it without a trailing slash
// while the backend always receives one.
func DefaultRules(backend string) []Rule {
	backend = strings.TrimRight(backend, "/")
	return []Rule{
		{Source: "/api/users/:path*", Destination: backend + "/api/users/:path*"},
		{Source: "/api/face/:path*", Destination: backend + "/api/face/:path*"},
		{Source: "/api/register", Destination: backend + "/api/register/"},
		{Source: "/api/register/:path*", Destination: backend + "/api/register/:path*"},
	}
}

type compiledRule struct {
	rule     Rule
	wildcard bool
	prefix   string // source without the trailing "/:path*"
	dest     string // destination without the trailing "/:path*" when it carries one
	destVar  bool
}

// Table is an ordered, immutable set of compiled rules. It is safe for concurrent use.
type Table struct {
	rules []compiledRule
}

// NewTable validates and compiles rules.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		c, err := compile(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Source, err)
		}
		t.rules = append(t.rules, c)
	}
	return t, nil
}

func compile(r Rule) (compiledRule, error) {
	c := compiledRule{rule: r}
	if !strings.HasPrefix(r.Source, "/") {
		return c, fmt.Errorf("%w: source must start with /", ErrInvalidRule)
	}

	c.prefix = r.Source
	if strings.HasSuffix(r.Source, "/"+PathParam) {
		c.wildcard = true
		c.prefix = strings.TrimSuffix(r.Source, "/"+PathParam)
	}
	if strings.Contains(c.prefix, ":") {
		return c, fmt.Errorf("%w: only a trailing /%s parameter is supported", ErrInvalidRule, PathParam)
	}
	if c.prefix == "" {
		c.prefix = "/"
	}
	if overlapsReserved(c.prefix, c.wildcard) {
		return c, fmt.Errorf("%w: %s is reserved", ErrInvalidRule, ReservedPrefix)
	}

	c.dest = r.Destination
	if strings.HasSuffix(r.Destination, "/"+PathParam) {
		if !c.wildcard {
			return c, fmt.Errorf("%w: destination uses %s but source does not", ErrInvalidRule, PathParam)
		}
		c.destVar = true
		c.dest = strings.TrimSuffix(r.Destination, "/"+PathParam)
	}
	if strings.Contains(c.dest, PathParam) {
		return c, fmt.Errorf("%w: %s must be the last destination segment", ErrInvalidRule, PathParam)
	}
	u, err := url.Parse(c.dest)
	if err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return c, fmt.Errorf("%w: destination must be an absolute URL", ErrInvalidRule)
	}
	return c, nil
}

func overlapsReserved(prefix string, wildcard bool) bool {
	if prefix == ReservedPrefix || strings.HasPrefix(prefix, ReservedPrefix+"/") {
		return true
	}
	if !wildcard {
		return false
	}
	p := strings.TrimRight(prefix, "/")
	return strings.HasPrefix(ReservedPrefix, p+"/")
}

// match returns the part of path below the rule's prefix ("" or "/..."), and whether it matched.
func (c compiledRule) match(path string) (string, bool) {
	if !c.wildcard {
		if path == c.prefix || path == c.prefix+"/" {
			return "", true
		}
		return "", false
	}
	if c.prefix == "/" {
		return path, strings.HasPrefix(path, "/")
	}
	if path == c.prefix {
		return "", true
	}
	if strings.HasPrefix(path, c.prefix+"/") {
		return path[len(c.prefix):], true
	}
	return "", false
}

// Resolve returns the destination for path, the rule that produced it, and whether any rule matched.
// The matched suffix, trailing slash included, is carried over verbatim.
func (t *Table) Resolve(path string) (string, Rule, bool) {
	if t == nil {
		return "", Rule{}, false
	}
	for _, c := range t.rules {
		rest, ok := c.match(path)
		if !ok {
			continue
		}
		if !c.destVar {
			return c.dest, c.rule, true
		}
		return c.dest + rest, c.rule, true
	}
	return "", Rule{}, false
}

// Target resolves an incoming request URL into the upstream URL. The query string is preserved.
func (t *Table) Target(in *url.URL) (*url.URL, Rule, bool) {
	if in == nil {
		return nil, Rule{}, false
	}
	dest, rule, ok := t.Resolve(in.EscapedPath())
	if !ok {
		return nil, Rule{}, false
	}
	out, err := url.Parse(dest)
	if err != nil {
		return nil, Rule{}, false
	}
	out.RawQuery = in.RawQuery
	return out, rule, true
}

// Rules returns a copy of the configured rules in evaluation order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	for i, c := range t.rules {
		out[i] = c.rule
	}
	return out
}
