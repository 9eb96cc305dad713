// Package artifacts manages the local directory that fetched documents are
// written to: atomic saves with content sniffing, existence checks, listing,
// metadata (size, blake2b digest, MIME type) and path-safe opening.
package artifacts
