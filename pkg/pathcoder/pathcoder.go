// Package pathcoder provides the strategies that translate between an
// application path and the string stored in the URL fragment.
//
// A Coder must be a near-inverse pair: for any path p it accepts,
// DecodePath(EncodePath(p)) == p, and EncodePath must be idempotent on its
// own output. The hash history protocol treats a fragment that changes when
// re-encoded as malformed and rewrites it.
//
// Built-in coders, by name:
//
//	slash     "#/users"     (default)
//	noslash   "#users"
//	hashbang  "#!/users"
//	identity  fragment is the path, untouched
//	uri       "#/a%20b"     percent-escapes like encodeURI
//	canonical "#/a/b"       collapses slashes and resolves dot segments
package pathcoder

import (
	"fmt"
	"sort"
	"strings"
)

// Coder encodes a path into a hash-safe fragment and decodes it back.
type Coder interface {
	EncodePath(path string) string
	DecodePath(hash string) string
}

// Funcs adapts a pair of functions to the Coder interface.
// A nil function behaves as identity.
type Funcs struct {
	Encode func(string) string
	Decode func(string) string
}

func (f Funcs) EncodePath(path string) string {
	if f.Encode == nil {
		return path
	}
	return f.Encode(path)
}

func (f Funcs) DecodePath(hash string) string {
	if f.Decode == nil {
		return hash
	}
	return f.Decode(hash)
}

var (
	// Identity stores the path in the fragment unchanged.
	Identity Coder = Funcs{}

	// Slash guarantees a leading slash on both sides.
	Slash Coder = Funcs{Encode: addLeadingSlash, Decode: addLeadingSlash}

	// NoSlash stores the fragment without a leading slash.
	NoSlash Coder = Funcs{Encode: stripLeadingSlash, Decode: addLeadingSlash}

	// Hashbang stores "!/path", the legacy crawlable-AJAX form.
	Hashbang Coder = Funcs{Encode: encodeHashbang, Decode: decodeHashbang}

	// URI percent-escapes characters that encodeURI would escape.
	URI Coder = Funcs{Encode: encodeURI, Decode: decodeURI}

	// Canonical normalizes the pathname part of the path.
	Canonical Coder = Funcs{Encode: canonicalize, Decode: canonicalize}
)

// DefaultName is the coder used when none is configured.
const DefaultName = "slash"

var builtins = map[string]Coder{
	"identity":  Identity,
	"slash":     Slash,
	"noslash":   NoSlash,
	"hashbang":  Hashbang,
	"uri":       URI,
	"canonical": Canonical,
}

// Lookup returns the built-in coder registered under name.
// The empty name selects DefaultName.
func Lookup(name string) (Coder, error) {
	if name == "" {
		name = DefaultName
	}
	c, ok := builtins[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown hash type %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
	return c, nil
}

// Names lists the built-in coder names in sorted order.
func Names() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func addLeadingSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}

func stripLeadingSlash(path string) string {
	return strings.TrimPrefix(path, "/")
}

func encodeHashbang(path string) string {
	if strings.HasPrefix(path, "!") {
		return path
	}
	return "!/" + stripLeadingSlash(path)
}

func decodeHashbang(hash string) string {
	return strings.TrimPrefix(hash, "!")
}
