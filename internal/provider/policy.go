// Package provider enforces the operator-controlled inference-provider
// allow-list. The list arrives as a comma-separated string (ALLOW_PROVIDERS,
// default "local") and membership is exact and case-folded: no prefix or
// substring matching. The list is parsed on every call; it is a handful of
// entries and is not read in a hot loop.
package provider

import (
	"fmt"
	"strings"
)

// ErrNotAllowed is the sentinel wrapped by AssertAllowed for providers
// missing from the allow-list. Handlers map it to HTTP 403.
var ErrNotAllowed = fmt.Errorf("provider not allowed by policy")

// ParseAllowlist splits a comma-separated provider list into a case-folded
// membership set. Blank entries are dropped.
func ParseAllowlist(csv string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, p := range strings.Split(csv, ",") {
		if t := strings.ToLower(strings.TrimSpace(p)); t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}

// IsAllowed reports whether name is present in the allow-list,
// case-insensitively.
func IsAllowed(name, allowlist string) bool {
	set := ParseAllowlist(allowlist)
	_, ok := set[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// AssertAllowed returns an error wrapping ErrNotAllowed when name is not in
// the allow-list. The error names the rejected provider so the 403 body can
// carry it.
func AssertAllowed(name, allowlist string) error {
	if IsAllowed(name, allowlist) {
		return nil
	}
	return fmt.Errorf("provider %q: %w", name, ErrNotAllowed)
}
