// Package lockfile serializes the resolved dependency snapshot
// (agents-lock.toml). The on-disk ordering is a contract: package tables
// are emitted in ascending name order so the file diffs cleanly, and
// writes go through a temp file + rename so a crash never leaves a
// truncated lockfile behind. Apart from Write, every operation here is a
// pure function over in-memory values.
package lockfile
