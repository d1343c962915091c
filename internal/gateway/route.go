package gateway

import "strings"

// MatchKind distinguishes the two supported route patterns.
type MatchKind int

const (
	// MatchExact matches when the request path equals the pattern.
	MatchExact MatchKind = iota
	// MatchPrefix matches when the request path starts with the pattern.
	MatchPrefix
)

// Matcher is a closed route pattern: either an exact path or a path prefix.
type Matcher struct {
	kind MatchKind
	path string
}

// Exact builds a matcher for a literal path.
func Exact(path string) Matcher {
	return Matcher{kind: MatchExact, path: path}
}

// Prefix builds a matcher for a path prefix. A trailing "/*" or "*" in the
// pattern is stripped so callers can register wildcard-style patterns.
func Prefix(path string) Matcher {
	path = strings.TrimSuffix(path, "*")
	return Matcher{kind: MatchPrefix, path: path}
}

// Matches reports whether the matcher accepts the given path.
func (m Matcher) Matches(path string) bool {
	switch m.kind {
	case MatchExact:
		return path == m.path
	case MatchPrefix:
		return strings.HasPrefix(path, m.path)
	}
	return false
}

// Route binds a matcher to a named adapter. Method is optional; when empty
// the route matches any method.
type Route struct {
	Matcher Matcher
	Adapter string
	Method  string
}

// matches reports whether the route accepts the path/method pair.
func (r Route) matches(path, method string) bool {
	if r.Method != "" && r.Method != method {
		return false
	}
	return r.Matcher.Matches(path)
}
