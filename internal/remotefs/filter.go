package remotefs

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter selects directory entries by name.
type Filter interface {
	Match(name string) bool
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(name string) bool

// Match calls f(name).
func (f FilterFunc) Match(name string) bool { return f(name) }

// MatchAll accepts every entry.
func MatchAll() Filter {
	return FilterFunc(func(string) bool { return true })
}

// Regexp filters names with re.MatchString.
func Regexp(re *regexp.Regexp) Filter {
	return FilterFunc(re.MatchString)
}

// Wildcard builds a filter from a string where each run of "*" matches any
// run of characters and every other character matches itself. The match is
// not anchored: "log" accepts "catalog.txt".
func Wildcard(pattern string) Filter {
	parts := stars.Split(pattern, -1)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return Regexp(regexp.MustCompile(strings.Join(parts, ".*")))
}

var stars = regexp.MustCompile(`\*+`)

// Glob filters names with an anchored doublestar pattern such as
// "*.{json,yaml}". A malformed pattern matches nothing.
func Glob(pattern string) Filter {
	return FilterFunc(func(name string) bool {
		ok, err := doublestar.Match(pattern, name)
		return err == nil && ok
	})
}

func filterOrAll(f Filter) Filter {
	if f == nil {
		return MatchAll()
	}
	return f
}
