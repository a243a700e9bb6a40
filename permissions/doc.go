// Package permissions caches the authenticated user's permission set with a
// stale-while-revalidate policy.
//
// A fresh cache is served without I/O. A stale cache (or a persisted
// snapshot) is still served immediately while one detached refresh runs in
// the background; refresh failures are swallowed so permission checks degrade
// to last-known-good instead of failing unpredictably. Only a forced refresh
// blocks the caller on the network.
package permissions
