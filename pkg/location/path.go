package location

import (
	"regexp"
	"strings"
	"sync"
)

// originPattern matches a leading scheme and host ("https://example.com").
var originPattern = regexp.MustCompile(`^(https?:)?//[^/]*`)

// ParsePath splits a path string into pathname, search and hash.
// A leading origin is discarded. The hash is split off first, so a "?"
// inside the hash stays in the hash.
func ParsePath(path string) Location {
	pathname := extractPath(path)
	var search, hash string

	if i := strings.IndexByte(pathname, '#'); i != -1 {
		hash = pathname[i:]
		pathname = pathname[:i]
	}
	if i := strings.IndexByte(pathname, '?'); i != -1 {
		search = pathname[i:]
		pathname = pathname[:i]
	}
	if pathname == "" {
		pathname = "/"
	}

	return Location{Pathname: pathname, Search: search, Hash: hash}
}

// CreatePath joins a location's pathname, search and hash.
// A bare "?" search is dropped.
func CreatePath(l Location) string {
	path := l.Pathname
	if l.Search != "" && l.Search != "?" {
		path += l.Search
	}
	if l.Hash != "" {
		path += l.Hash
	}
	return path
}

func extractPath(s string) string {
	if loc := originPattern.FindStringIndex(s); loc != nil {
		return s[loc[1]:]
	}
	return s
}

// AddQueryValue appends key=value to the search part of path.
// The value is written as-is; keys produced by CreateKey need no escaping.
func AddQueryValue(path, key, value string) string {
	l := ParsePath(path)
	sep := "&"
	if !strings.Contains(l.Search, "?") {
		sep = "?"
	}
	l.Search = l.Search + sep + key + "=" + value
	return CreatePath(l)
}

// StripQueryValue removes the first key=value pair for key from the search
// part of path. Only alphanumeric values are recognized.
func StripQueryValue(path, key string) string {
	l := ParsePath(path)
	re := queryPattern(`([?&])`, key, `(&?)`)
	stripped := false
	l.Search = re.ReplaceAllStringFunc(l.Search, func(match string) string {
		if stripped {
			return match
		}
		stripped = true
		sub := re.FindStringSubmatch(match)
		if sub[1] == "?" {
			return "?"
		}
		return sub[3]
	})
	return CreatePath(l)
}

// QueryValue returns the value of key in the search part of path, or "".
func QueryValue(path, key string) string {
	l := ParsePath(path)
	m := queryPattern(`[?&]`, key, ``).FindStringSubmatch(l.Search)
	if m == nil {
		return ""
	}
	return m[len(m)-1]
}

// queryPatterns caches compiled patterns by source; a protocol uses one
// query key for its lifetime.
var queryPatterns sync.Map

func queryPattern(prefix, key, suffix string) *regexp.Regexp {
	src := prefix + regexp.QuoteMeta(key) + `=([a-zA-Z0-9]+)` + suffix
	if re, ok := queryPatterns.Load(src); ok {
		return re.(*regexp.Regexp)
	}
	re, _ := queryPatterns.LoadOrStore(src, regexp.MustCompile(src))
	return re.(*regexp.Regexp)
}
