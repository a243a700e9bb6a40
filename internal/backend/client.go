// Package backend is the REST gateway to the authentication API. It maps
// HTTP exchanges into typed outcomes and never interprets them: step-up
// versus rejection is the caller's decision, made on the preserved payload.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 15 * time.Second

// Client talks to the auth backend. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a Client for baseURL. A nil httpClient gets a default
// with a 15s timeout; a nil logger discards.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// MobileLogin performs the multi-step login exchange. Step-up responses
// (code required, security questions required) and rejections both surface
// as *APIError with the original payload attached.
func (c *Client) MobileLogin(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/mobile-login", "", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SecurityQuestions fetches up to count challenge questions for email. Used
// as the side channel when a step-up response carries no question payload.
func (c *Client) SecurityQuestions(ctx context.Context, email string, count int) ([]SecurityQuestion, error) {
	var resp questionsResponse
	req := questionsRequest{Email: email, Count: count}
	if err := c.do(ctx, http.MethodPost, "/auth/security-questions", "", req, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// Logout notifies the backend that the session is ending. Best-effort only;
// callers must not let a failure here block local teardown.
func (c *Client) Logout(ctx context.Context, tok string) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", tok, nil, nil)
}

// Me fetches the authenticated user. When the backend rotates the bearer
// token it returns the replacement in a response header, surfaced here as
// the second return value (empty when no rotation happened).
func (c *Client) Me(ctx context.Context, tok string) (*User, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/users/me", tok, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", parseAPIError(resp.StatusCode, body)
	}

	var user User
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, "", fmt.Errorf("decode /users/me response: %w", err)
	}

	rotated := resp.Header.Get("X-Auth-Token")
	if rotated == "" {
		rotated = strings.TrimPrefix(resp.Header.Get("Authorization"), "Bearer ")
	}
	return &user, rotated, nil
}

// TwoFactorStatus reports whether TOTP is enabled for the account.
func (c *Client) TwoFactorStatus(ctx context.Context, tok string) (bool, error) {
	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, "/auth/2fa/status", tok, nil, &resp); err != nil {
		return false, err
	}
	return resp.Enabled, nil
}

// ValidateOTP checks a TOTP code against the authenticated account.
func (c *Client) ValidateOTP(ctx context.Context, tok, code string) (bool, error) {
	var resp successResponse
	if err := c.do(ctx, http.MethodPost, "/auth/validate-otp", tok, otpRequest{Code: code}, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// ValidateOTPUnlock checks a one-time unlock code during password reset.
// The server is the sole arbiter; a false return is never cached locally.
func (c *Client) ValidateOTPUnlock(ctx context.Context, code string) (bool, error) {
	var resp successResponse
	if err := c.do(ctx, http.MethodPost, "/auth/validate-otp-unlock", "", otpRequest{Code: code}, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// RequestPasswordReset asks the backend to start a reset flow for email,
// typically by sending a one-time unlock code out of band. Always answers
// success-shaped to avoid disclosing whether the account exists.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/auth/forgot-password", "", resetRequest{Email: email}, nil)
}

// ResetPassword completes a reset flow with the previously validated unlock
// code and security answers.
func (c *Client) ResetPassword(ctx context.Context, req ResetRequest) (bool, error) {
	var resp successResponse
	if err := c.do(ctx, http.MethodPost, "/auth/reset-password", "", req, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// Refresh asks for a replacement token. An empty token in a 2xx response
// means the backend declined to rotate, which is not an error.
func (c *Client) Refresh(ctx context.Context, tok string) (string, error) {
	var resp refreshResponse
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", tok, nil, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, tok string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", path, err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path, tok string, payload, out any) error {
	req, err := c.newRequest(ctx, method, path, tok, payload)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp.StatusCode, body)
		c.logger.Debug("auth backend rejected request",
			"path", path, "status", apiErr.Status, "code", apiErr.Code)
		return apiErr
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
