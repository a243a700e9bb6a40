package backend

import "encoding/json"

// Credentials is the wire shape of a login attempt. It exists only for the
// duration of a request and is never persisted.
type Credentials struct {
	Email           string            `json:"email"`
	Password        string            `json:"password"`
	Code            string            `json:"code,omitempty"`
	SecurityAnswers map[string]string `json:"securityAnswers,omitempty"`
}

// SecurityQuestion is one challenge question offered during step-up login or
// password reset.
type SecurityQuestion struct {
	ID       string `json:"id"`
	Question string `json:"question"`
}

// Role carries the authenticated user's role and raw permission records.
// Permission entries are kept as raw JSON because the backend has shipped
// them as bare names, {name} objects, and {permission:{name}} wrappers.
type Role struct {
	ID          string            `json:"id,omitempty"`
	Name        string            `json:"name,omitempty"`
	Permissions []json.RawMessage `json:"permissions,omitempty"`
}

// User is the backend account representation returned by login and /users/me.
type User struct {
	ID                       string `json:"id"`
	Email                    string `json:"email"`
	FirstName                string `json:"firstName,omitempty"`
	LastName                 string `json:"lastName,omitempty"`
	Role                     Role   `json:"role,omitempty"`
	TwoFactorEnabled         bool   `json:"twoFactorEnabled,omitempty"`
	SecurityQuestionsEnabled bool   `json:"securityQuestionsEnabled,omitempty"`
}

// LoginResponse is the success payload of POST /auth/mobile-login.
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	User    *User  `json:"user,omitempty"`
}

type questionsRequest struct {
	Email string `json:"email"`
	Count int    `json:"count"`
}

type questionsResponse struct {
	Questions []SecurityQuestion `json:"questions"`
}

type statusResponse struct {
	Enabled bool `json:"enabled"`
}

type otpRequest struct {
	Code string `json:"code"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type refreshResponse struct {
	Token string `json:"token,omitempty"`
}

type resetRequest struct {
	Email string `json:"email"`
}

// ResetRequest completes a password reset. Code and answers must already be
// normalized by the caller; the server remains the sole arbiter of both.
type ResetRequest struct {
	Email           string            `json:"email"`
	Code            string            `json:"code"`
	SecurityAnswers map[string]string `json:"securityAnswers,omitempty"`
	NewPassword     string            `json:"newPassword"`
}
