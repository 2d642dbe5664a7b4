// Package location defines the application-visible Location value and the
// path-string utilities the hash history protocol is built on.
//
// A path string has the shape pathname[?search][#hash]. The search and hash
// parts keep their leading "?" and "#", matching what a browser exposes.
//
//	loc := location.New("/users?tab=posts", map[string]any{"scroll": 120})
//	path := location.CreatePath(loc) // "/users?tab=posts"
package location

import (
	"crypto/rand"
	"math/big"
)

// Action describes how a location was reached.
type Action string

const (
	// Push adds a new history entry.
	Push Action = "PUSH"

	// Replace overwrites the current history entry.
	Replace Action = "REPLACE"

	// Pop is a location resolved from the browser (initial load, back/forward,
	// manual hash edit).
	Pop Action = "POP"
)

// Location is a single logical navigation unit.
//
// State is arbitrary caller data; nil means no state. Key correlates a hash
// entry with out-of-band persisted state; "" means no key. Locations are
// values and are never mutated once handed out.
type Location struct {
	Pathname string `json:"pathname"`
	Search   string `json:"search"`
	Hash     string `json:"hash"`
	State    any    `json:"state,omitempty"`
	Action   Action `json:"action"`
	Key      string `json:"key,omitempty"`
}

// Path returns pathname+search+hash.
func (l Location) Path() string {
	return CreatePath(l)
}

// Create normalizes parsed path components into a Location.
// An empty pathname becomes "/".
func Create(init Location, action Action, key string) Location {
	pathname := init.Pathname
	if pathname == "" {
		pathname = "/"
	}
	if action == "" {
		action = Pop
	}
	return Location{
		Pathname: pathname,
		Search:   init.Search,
		Hash:     init.Hash,
		State:    init.State,
		Action:   action,
		Key:      key,
	}
}

// New builds a push-ready location for path with a freshly generated key.
func New(path string, state any) Location {
	init := ParsePath(path)
	init.State = state
	return Create(init, Push, CreateKey())
}

// Equal reports whether a and b point at the same path with the same key.
// State and Action are not compared.
func Equal(a, b Location) bool {
	return a.Pathname == b.Pathname &&
		a.Search == b.Search &&
		a.Hash == b.Hash &&
		a.Key == b.Key
}

const (
	keyLength   = 6
	keyAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// CreateKey returns a random 6-character base-36 key.
func CreateKey() string {
	b := make([]byte, keyLength)
	max := big.NewInt(int64(len(keyAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms
			panic("location: crypto/rand unavailable: " + err.Error())
		}
		b[i] = keyAlphabet[n.Int64()]
	}
	return string(b)
}
