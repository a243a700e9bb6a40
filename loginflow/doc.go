// Package loginflow drives the multi-step login challenge sequence as an
// explicit state machine.
//
// The transition rules live in a pure function, [Next], so every transition
// is unit-testable without a client or a backend. [Controller] layers the
// I/O on top: it stores the transient credentials across challenge steps,
// enforces the one-submission-in-flight rule, and resolves question payloads
// through a side-channel fetch when the step-up response carries none.
//
// A parallel forgot-password machine ([ResetController]) shares nothing with
// the primary flow except the error-display convention.
package loginflow
