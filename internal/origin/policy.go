// Package origin decides which browser origins may call the API and emits
// the matching CORS headers.
package origin

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Decision is the outcome of evaluating an origin.
type Decision int

const (
	// Deny rejects the origin.
	Deny Decision = iota
	// Allow accepts the origin.
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Mode selects one of the policy presets.
type Mode string

// Policy presets.
const (
	// ModeStrict allows development hosts and the exact allow-list only.
	ModeStrict Mode = "strict"
	// ModeStandard also allows hosts under the platform suffixes.
	ModeStandard Mode = "standard"
	// ModeOpen allows every origin.
	ModeOpen Mode = "open"
)

// DefaultDevSubstrings are host fragments that identify a developer machine.
var DefaultDevSubstrings = []string{"localhost", "127.0.0.1"}

// Policy is a declarative list of origin rules. Rules are checked in the
// order empty, dev substring, platform suffix, exact match.
type Policy struct {
	AllowAll      bool
	DevSubstrings []string
	Suffixes      []string
	Exact         []string
}

// NewPolicy builds the preset for mode. Exact entries are compared without a
// trailing slash; suffixes are lowercased and ignored in strict mode.
func NewPolicy(mode Mode, exact, suffixes []string) (Policy, error) {
	p := Policy{
		DevSubstrings: slices.Clone(DefaultDevSubstrings),
		Exact:         normalizeAll(exact, func(s string) string { return strings.TrimSuffix(s, "/") }),
	}
	switch mode {
	case ModeOpen:
		p.AllowAll = true
	case ModeStandard:
		p.Suffixes = normalizeAll(suffixes, strings.ToLower)
	case ModeStrict:
	default:
		return Policy{}, fmt.Errorf("unknown cors mode %q", mode)
	}
	return p, nil
}

// Evaluate applies the rules to origin; the first matching rule wins.
func (p Policy) Evaluate(origin string) Decision {
	if p.AllowAll || origin == "" {
		return Allow
	}
	host := hostOf(origin)
	if host != "" {
		for _, dev := range p.DevSubstrings {
			if strings.Contains(host, dev) {
				return Allow
			}
		}
		for _, suffix := range p.Suffixes {
			if strings.HasSuffix(host, suffix) {
				return Allow
			}
		}
	}
	if slices.Contains(p.Exact, strings.TrimSuffix(origin, "/")) {
		return Allow
	}
	return Deny
}

// Allows is Evaluate as a predicate.
func (p Policy) Allows(origin string) bool {
	return p.Evaluate(origin) == Allow
}

func hostOf(origin string) string {
	u, err := url.Parse(origin)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func normalizeAll(in []string, fn func(string) string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, fn(s))
	}
	return out
}

// PolicyError reports an origin refused by the policy.
type PolicyError struct {
	Origin string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("origin %q not allowed by CORS policy", e.Origin)
}
