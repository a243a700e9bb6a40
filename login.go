package authkit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/fynlo/authkit/internal/backend"
	"github.com/fynlo/authkit/store"
	"github.com/fynlo/authkit/token"
)

// Login performs one attempt of the multi-step login exchange.
//
// Outcomes:
//   - Completed session: result with Token and User, ChallengeNone. Exactly
//     one auth-changed(true) event is published per completed login.
//   - Step-up: result with ChallengeCode or ChallengeSecurityQuestions and
//     no token — no authentication state changes at all. Resubmit the same
//     Credentials with the challenge answer filled in.
//   - Rejection: a *APIError preserving the backend's literal payload,
//     classified as ErrCredentialsRejected or ErrAccountDisabled.
//   - Transport failure: the wrapped network error, testable with
//     [IsTransport].
//
// Security answers are case-normalized before transmission; the server
// remains the sole arbiter of correctness.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	if !c.initialized.Load() {
		return nil, ErrNotInitialized
	}
	creds = creds.normalized()

	resp, err := c.api.MobileLogin(ctx, backend.Credentials{
		Email:           creds.Email,
		Password:        creds.Password,
		Code:            creds.Code,
		SecurityAnswers: creds.SecurityAnswers,
	})
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			if apiErr.StepUp() {
				c.metrics.Inc(MetricLoginStepUp)
				return challengeResult(apiErr), nil
			}
			c.metrics.Inc(MetricLoginFailure)
			return nil, apiErrorFrom(apiErr)
		}
		if backend.IsTransport(err) {
			c.metrics.Inc(MetricLoginTransportFailure)
		}
		return nil, err
	}

	tok := token.StripBearer(resp.Token)
	if !token.ValidShape(tok) {
		c.metrics.Inc(MetricLoginFailure)
		return nil, ErrInvalidToken
	}
	user := userFromBackend(resp.User)

	if err := c.persistSession(ctx, tok, user); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.tok = tok
	c.user = user
	c.lastKnown = user
	c.mu.Unlock()

	if user != nil && len(user.Permissions) > 0 {
		c.perms.Seed(user.Permissions)
	} else {
		c.perms.Invalidate(ctx)
	}

	c.metrics.Inc(MetricLoginSuccess)
	c.bus.Publish(TopicAuthChanged, true)
	c.bus.Publish(TopicPermissionsRefresh, true)

	return &LoginResult{Token: tok, User: user}, nil
}

// persistSession writes the token and user id concurrently. A failed token
// write fails the login — memory is never updated ahead of durable state. A
// failed user-id write is only logged; the id is a convenience, not the
// session.
func (c *Client) persistSession(ctx context.Context, tok string, user *User) error {
	userID := ""
	if user != nil {
		userID = user.ID
	}
	if userID == "" {
		userID = token.Subject(tok)
	}

	var wg sync.WaitGroup
	var tokErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		tokErr = c.secure.Set(ctx, store.KeyAuthToken, tok)
	}()
	if userID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.idents.Set(ctx, store.KeyUserID, userID); err != nil {
				c.logger.Warn("user id write failed", "error", err)
			}
		}()
	}
	wg.Wait()

	if tokErr != nil {
		return fmt.Errorf("persist token: %w", tokErr)
	}
	return nil
}

func challengeResult(apiErr *backend.APIError) *LoginResult {
	result := &LoginResult{}
	switch apiErr.Code {
	case backend.CodeRequired:
		result.Challenge = ChallengeCode
	case backend.CodeSecurityQuestions:
		result.Challenge = ChallengeSecurityQuestions
		result.Questions = questionsFromBackend(apiErr.Questions)
	}
	return result
}

// SecurityQuestions fetches the user's challenge questions by email. Used as
// a side channel when a step-up response carries no question payload, and by
// the forgot-password flow.
func (c *Client) SecurityQuestions(ctx context.Context, email string) ([]SecurityQuestion, error) {
	if !c.initialized.Load() {
		return nil, ErrNotInitialized
	}
	questions, err := c.api.SecurityQuestions(ctx, email, c.cfg.Security.QuestionCount)
	if err != nil {
		return nil, liftError(err)
	}
	return questionsFromBackend(questions), nil
}

// RequestPasswordReset starts the forgot-password flow for email; the
// backend sends a one-time unlock code out of band.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	if !c.initialized.Load() {
		return ErrNotInitialized
	}
	return liftError(c.api.RequestPasswordReset(ctx, email))
}

// ValidateOTPUnlock asks the server to validate a forgot-password unlock
// code. The code is case-normalized before transmission; the result is never
// cached client-side, preserving the server's attempt lockout.
func (c *Client) ValidateOTPUnlock(ctx context.Context, code string) (bool, error) {
	if !c.initialized.Load() {
		return false, ErrNotInitialized
	}
	ok, err := c.api.ValidateOTPUnlock(ctx, NormalizeAnswer(code))
	if err != nil {
		return false, liftError(err)
	}
	return ok, nil
}

// ResetPassword completes the forgot-password flow. Answers and code are
// case-normalized before transmission.
func (c *Client) ResetPassword(ctx context.Context, email, code string, answers map[string]string, newPassword string) (bool, error) {
	if !c.initialized.Load() {
		return false, ErrNotInitialized
	}
	normalized := make(map[string]string, len(answers))
	for id, answer := range answers {
		normalized[id] = NormalizeAnswer(answer)
	}
	ok, err := c.api.ResetPassword(ctx, backend.ResetRequest{
		Email:           email,
		Code:            NormalizeAnswer(code),
		SecurityAnswers: normalized,
		NewPassword:     newPassword,
	})
	if err != nil {
		return false, liftError(err)
	}
	return ok, nil
}

// liftError converts internal backend errors to the public type, passing
// everything else through untouched.
func liftError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return apiErrorFrom(apiErr)
	}
	return err
}
