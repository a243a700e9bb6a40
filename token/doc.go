// Package token decodes bearer token payloads for local expiry checks.
//
// The client never verifies signatures; the backend is the authority on token
// validity. This package only answers one question without a network
// round-trip: can this token still plausibly be used? Any structural defect
// (wrong segment count, undecodable payload, missing exp claim) is treated as
// expired, so a corrupted token can never keep a session alive.
package token
