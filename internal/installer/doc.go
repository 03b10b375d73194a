// Package installer orchestrates an install batch: resolve the requested
// ranges against the registry, download and verify tarballs, extract them
// through the content store, link them into the project, and finally write
// the merged lockfile. Downloads run concurrently under a bounded pool;
// extraction, linking, and the single lockfile write happen only after
// every download in the batch has been verified, so a failed batch never
// mutates the lockfile and an interrupted run never promotes unverified
// bytes into the store.
package installer
