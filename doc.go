// Package authkit is the client-side authentication and session subsystem
// for the Fynlo expense apps: multi-step login (password, then optional TOTP
// code, then optional security questions), local JWT expiry validation
// without a backend round-trip, secure token storage with legacy-store
// migration, a stale-while-revalidate permission cache, and a typed event
// bus broadcasting authentication-state transitions.
//
// The package is designed for concurrent callers: Client methods are safe
// from multiple goroutines after construction through [Builder.Build] and a
// single call to [Client.Initialize].
//
// # Architecture boundaries
//
// authkit is the public surface. It exposes [Client], [Builder], [Config],
// the event [Bus], and value types. The REST gateway lives under internal/
// and is never exported; storage backends ([store]), token decoding
// ([token]), the permission cache ([permissions]), and the login state
// machine ([loginflow]) are public subpackages.
//
// # Policy invariants
//
//   - The secure token store is mutated only by [Client]; every consumer
//     reads the token through Client accessors so expiry is decided in one
//     place.
//   - A token that cannot be decoded is expired (fail-closed).
//   - Detected expiry resolves to a silent local logout, never a surfaced
//     error.
//   - Backend error payloads are preserved verbatim up to the caller; the
//     client never substitutes a generic message for the backend's own.
package authkit
