// Package store implements the content-addressable store under
// ~/.terrazul/store. Blobs are keyed by their SHA-256 hex digest with a
// two-character fan-out layout (sha256/ab/cdef...), written via temp file +
// rename so concurrent writers of identical content collide harmlessly.
// Package tarballs are extracted into a per-(name, version) path namespace
// with hardened entry validation.
package store
