// Package registry implements the HTTP client for the package registry:
// version listings, tarball location lookups, and tarball downloads.
// Responses are validated against an embedded JSON schema before decoding,
// so unrecognized shapes are rejected at the boundary instead of surfacing
// as nil-field surprises inside the resolver. Transient HTTP failures are
// retried with exponential backoff at the transport layer; resolution and
// integrity errors are never retried.
package registry
