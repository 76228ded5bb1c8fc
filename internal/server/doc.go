// Package server implements the HTTP server and HTTP handlers for
// Evidence Drop. It wires together the HTTP routes, the in-memory
// session store, the filesystem evidence store, and the optional
// object-storage archiver, and provides lifecycle helpers used by
// tests and the production binary.
package server
