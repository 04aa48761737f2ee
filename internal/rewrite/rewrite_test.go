package rewrite

import (
	"errors"
	"net/url"
	"testing"
)

const backend = "http://127.0.0.1:8000"

func newDefaultTable(t *testing.T) *Table {
	t.Helper()
	table, err := NewTable(DefaultRules(backend))
	if err != nil {
		t.Fatalf("default rules rejected: %v", err)
	}
	return table
}

func TestResolveDefaultRules(t *testing.T) {
	table := newDefaultTable(t)

	cases := []struct {
		path string
		want string
	}{
		{"/api/users/me", backend + "/api/users/me"},
		{"/api/users/42/profile", backend + "/api/users/42/profile"},
		{"/api/users/", backend + "/api/users/"},
		{"/api/users", backend + "/api/users"},
		{"/api/face/search", backend + "/api/face/search"},
		{"/api/face/register", backend + "/api/face/register"},
		{"/api/register", backend + "/api/register/"},
		{"/api/register/", backend + "/api/register/"},
		{"/api/register/confirm", backend + "/api/register/confirm"},
		{"/api/register/a/b/c", backend + "/api/register/a/b/c"},
	}
	for _, tc := range cases {
		got, _, ok := table.Resolve(tc.path)
		if !ok {
			t.Fatalf("%s: expected a match", tc.path)
		}
		if got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.path, got, tc.want)
		}
	}
}

func TestResolveLeavesReservedAndUnknownPaths(t *testing.T) {
	table := newDefaultTable(t)

	for _, path := range []string{
		"/api/auth/session",
		"/api/auth/callback/credentials",
		"/api/auth",
		"/api/usersX",
		"/api/faces/1",
		"/api/registered",
		"/signin",
		"/",
	} {
		if dest, _, ok := table.Resolve(path); ok {
			t.Fatalf("%s: unexpected match -> %s", path, dest)
		}
	}
}

func TestResolvePrefixSuffixPreserved(t *testing.T) {
	table := newDefaultTable(t)
	for _, suffix := range []string{"x", "x/y", "with%20space", "trailing/"} {
		for _, prefix := range []string{"/api/users/", "/api/face/"} {
			path := prefix + suffix
			got, _, ok := table.Resolve(path)
			if !ok || got != backend+path {
				t.Fatalf("%s: got %q ok=%v", path, got, ok)
			}
		}
	}
}

func TestTargetPreservesQuery(t *testing.T) {
	table := newDefaultTable(t)
	in, _ := url.Parse("http://gateway.local/api/face/search?top_k=3")

	out, rule, ok := table.Target(in)
	if !ok {
		t.Fatalf("expected a match")
	}
	if out.String() != backend+"/api/face/search?top_k=3" {
		t.Fatalf("unexpected target: %s", out)
	}
	if rule.Source != "/api/face/:path*" {
		t.Fatalf("unexpected rule: %+v", rule)
	}
}

func TestTargetRegisterKeepsQuery(t *testing.T) {
	table := newDefaultTable(t)
	in, _ := url.Parse("/api/register?invite=abc")

	out, _, ok := table.Target(in)
	if !ok || out.String() != backend+"/api/register/?invite=abc" {
		t.Fatalf("unexpected target: %v ok=%v", out, ok)
	}
}

func TestFirstMatchWins(t *testing.T) {
	table, err := NewTable([]Rule{
		{Source: "/api/face/special", Destination: "http://other:9000/special"},
		{Source: "/api/face/:path*", Destination: backend + "/api/face/:path*"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _, _ := table.Resolve("/api/face/special")
	if got != "http://other:9000/special" {
		t.Fatalf("unexpected destination: %s", got)
	}
	got, _, _ = table.Resolve("/api/face/other")
	if got != backend+"/api/face/other" {
		t.Fatalf("unexpected destination: %s", got)
	}
}

func TestNewTableRejectsInvalidRules(t *testing.T) {
	cases := map[string]Rule{
		"relative source":      {Source: "api/users", Destination: backend + "/api/users"},
		"inner param":          {Source: "/api/:id/users", Destination: backend + "/api/users"},
		"reserved exact":       {Source: "/api/auth/session", Destination: backend + "/x"},
		"reserved wildcard":    {Source: "/api/auth/:path*", Destination: backend + "/x/:path*"},
		"covers reserved":      {Source: "/api/:path*", Destination: backend + "/api/:path*"},
		"root covers reserved": {Source: "/:path*", Destination: backend + "/:path*"},
		"dest param on exact":  {Source: "/api/users", Destination: backend + "/api/users/:path*"},
		"relative destination": {Source: "/api/users/:path*", Destination: "/api/users/:path*"},
	}
	for name, rule := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTable([]Rule{rule})
			if !errors.Is(err, ErrInvalidRule) {
				t.Fatalf("expected ErrInvalidRule, got %v", err)
			}
		})
	}
}

func TestRulesReturnsCopy(t *testing.T) {
	table := newDefaultTable(t)
	rules := table.Rules()
	if len(rules) != 4 {
		t.Fatalf("expected 4 rules, got %d", len(rules))
	}
	rules[0].Destination = "mutated"
	if table.Rules()[0].Destination == "mutated" {
		t.Fatalf("Rules must not expose internal state")
	}
}
