package services

import (
	"regexp"
	"strings"
	"sync"
)

var (
	globCacheMu sync.RWMutex
	globCache   = make(map[string]*regexp.Regexp)
)

// compileGlob turns a glob pattern into an anchored case-insensitive
// regexp: '*' becomes '.*', every other regex metacharacter is
// escaped literally.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	globCacheMu.RLock()
	re, ok := globCache[pattern]
	globCacheMu.RUnlock()
	if ok {
		return re, nil
	}

	var b strings.Builder
	b.WriteString("(?i)^")
	for i, part := range strings.Split(pattern, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(part))
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}

	globCacheMu.Lock()
	globCache[pattern] = re
	globCacheMu.Unlock()
	return re, nil
}

// matchGlob reports whether the value matches the glob pattern. A
// malformed pattern never matches.
func matchGlob(pattern, value string) bool {
	re, err := compileGlob(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(value)
}
