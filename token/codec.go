package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrMalformed is returned when a token does not have the three-segment JWT
// shape or its payload cannot be decoded into a numeric exp claim.
var ErrMalformed = errors.New("malformed token")

// StripBearer removes a leading "Bearer " scheme prefix and surrounding
// whitespace from a raw Authorization value.
func StripBearer(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 7 && strings.EqualFold(raw[:7], "Bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	return raw
}

// ValidShape reports whether raw has the three non-empty dot-separated
// segments expected of a compact JWT. It does not inspect segment contents.
func ValidShape(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

type expClaim struct {
	Exp *json.Number `json:"exp"`
}

// DecodeExpiry extracts the exp claim (Unix seconds) from the payload segment
// of raw and returns it as a time. The payload is base64url-decoded with
// padding tolerance; the signature is never checked. Returns [ErrMalformed]
// when raw is not a three-segment token, the payload is not valid base64url
// or JSON, or the exp claim is absent or non-numeric.
func DecodeExpiry(raw string) (time.Time, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return time.Time{}, ErrMalformed
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return time.Time{}, ErrMalformed
	}

	var claims expClaim
	if err := json.Unmarshal(payload, &claims); err != nil || claims.Exp == nil {
		return time.Time{}, ErrMalformed
	}
	secs, err := claims.Exp.Float64()
	if err != nil {
		return time.Time{}, ErrMalformed
	}

	return time.UnixMilli(int64(secs * 1000)).UTC(), nil
}

// IsExpired reports whether raw is expired relative to the current time.
// Any token [DecodeExpiry] cannot decode counts as expired.
func IsExpired(raw string) bool {
	return IsExpiredAt(raw, time.Now())
}

// IsExpiredAt is [IsExpired] against an explicit clock, for callers and tests
// that need deterministic time.
func IsExpiredAt(raw string, now time.Time) bool {
	exp, err := DecodeExpiry(raw)
	if err != nil {
		return true
	}
	return !now.Before(exp)
}

// Claims returns the unverified claim set of raw. Useful for recovering
// non-security-sensitive hints (subject, issuer) that the client persists
// alongside the token; never a substitute for backend validation.
func Claims(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, ErrMalformed
	}
	return claims, nil
}

// Subject returns the sub claim of raw, or empty when absent or undecodable.
func Subject(raw string) string {
	claims, err := Claims(raw)
	if err != nil {
		return ""
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return ""
	}
	return sub
}

// decodeSegment decodes a base64url JWT segment, translating the URL-safe
// alphabet and restoring stripped padding before decoding.
func decodeSegment(seg string) ([]byte, error) {
	seg = strings.ReplaceAll(seg, "-", "+")
	seg = strings.ReplaceAll(seg, "_", "/")
	if rem := len(seg) % 4; rem != 0 {
		seg += strings.Repeat("=", 4-rem)
	}
	return base64.StdEncoding.DecodeString(seg)
}
