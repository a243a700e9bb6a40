// Package store provides the scoped key/value storage used for the session
// token and lightweight identifiers.
//
// Three backends are included: FileStore (0600-permission file with atomic
// writes), RedisStore (prefix-scoped keys on a shared Redis), and MemoryStore
// (tests and embedding). The secure token key must only ever be written
// through the authkit client; everything else reads the token via the
// client's accessors so expiry policy stays in one place.
package store
