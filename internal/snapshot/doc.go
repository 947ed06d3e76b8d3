// Package snapshot persists numbered, immutable content versions for the
// files touched during a debugging session. Versions are append-only per
// file: numbers start at 1, increase without gaps, and are never reused.
// Concurrent writers are resolved with an optimistic expected-predecessor
// check; exactly one caller wins and the rest receive ErrVersionConflict.
package snapshot
