package pathcoder

import (
	"errors"
	"strings"
)

// Canonicalization errors.
var (
	ErrBackslashInPath      = errors.New("path contains backslash")
	ErrNullByteInPath       = errors.New("path contains null byte")
	ErrInvalidPercentEscape = errors.New("invalid percent escape sequence")
	ErrPathEscapesRoot      = errors.New("path escapes root via ..")
)

// CanonicalizePath normalizes the pathname part of path:
//   - ensures a leading slash
//   - collapses repeated slashes (/a//b -> /a/b)
//   - removes "." segments and resolves ".." segments
//   - removes a trailing slash, except for root
//
// The search and hash parts are preserved verbatim. Backslashes, NUL bytes,
// malformed percent-escapes and ".." above root are rejected.
func CanonicalizePath(path string) (string, error) {
	pathname, rest := splitPathname(path)

	if strings.Contains(pathname, "\\") {
		return "", ErrBackslashInPath
	}
	if strings.Contains(pathname, "\x00") || strings.Contains(strings.ToUpper(pathname), "%00") {
		return "", ErrNullByteInPath
	}
	if strings.Contains(pathname, "%") {
		if err := validatePercentEscapes(pathname); err != nil {
			return "", err
		}
	}

	segments := strings.Split(pathname, "/")
	result := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(result) == 0 {
				return "", ErrPathEscapesRoot
			}
			result = result[:len(result)-1]
		default:
			result = append(result, seg)
		}
	}

	return "/" + strings.Join(result, "/") + rest, nil
}

// canonicalize is the Coder form of CanonicalizePath. Paths that cannot be
// canonicalized only get a leading slash, which keeps encoding idempotent.
func canonicalize(path string) string {
	out, err := CanonicalizePath(path)
	if err != nil {
		return addLeadingSlash(path)
	}
	return out
}

// splitPathname separates the pathname from a trailing "?search" or "#hash".
func splitPathname(path string) (pathname, rest string) {
	if i := strings.IndexAny(path, "?#"); i != -1 {
		return path[:i], path[i:]
	}
	return path, ""
}

// validatePercentEscapes checks that every '%' starts a %XX hex escape.
func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
