// Package statestore persists history state out of band, for browsers whose
// history entries cannot carry a state object.
//
// When pushState is unavailable the hash history protocol appends a key to
// the fragment ("#/a?_k=x7f2q1") and saves the location's state under that
// key. Resolving the fragment later reads it back.
//
// # Backends
//
// A Store moves opaque bytes:
//
//	store := statestore.NewMemoryStore()
//	// or
//	store := statestore.NewS3Store(s3Client, "my-bucket")
//
// # State encoding
//
// Storage wraps a Store with the JSON codec and key prefix used by the
// protocol:
//
//	storage := statestore.NewStorage(store, statestore.WithTTL(30*time.Minute))
//	err := storage.SaveState(ctx, "x7f2q1", map[string]any{"scroll": 120})
//	state, err := storage.ReadState(ctx, "x7f2q1") // map[string]any{"scroll": 120.0}
package statestore
