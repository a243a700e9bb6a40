package authkit

import (
	"strings"

	"github.com/fynlo/authkit/internal/backend"
	"github.com/fynlo/authkit/permissions"
)

// User is the authenticated account as the backend reports it.
type User struct {
	ID                       string
	Email                    string
	FirstName                string
	LastName                 string
	Role                     string
	Permissions              []string
	TwoFactorEnabled         bool
	SecurityQuestionsEnabled bool
}

// SecurityQuestion is one step-up challenge question.
type SecurityQuestion struct {
	ID       string
	Question string
}

// Credentials is a transient login attempt. It exists only across the
// challenge steps of a single login and is never persisted by the client.
// Code and SecurityAnswers are optional and filled in as step-up challenges
// arrive.
type Credentials struct {
	Email           string
	Password        string
	Code            string
	SecurityAnswers map[string]string
}

// normalized returns a copy with the answer map case-normalized
// (trim + lowercase). The server is the sole arbiter of answer correctness;
// normalization only removes accidental formatting differences.
func (c Credentials) normalized() Credentials {
	c.Email = strings.TrimSpace(c.Email)
	c.Code = strings.TrimSpace(c.Code)
	if len(c.SecurityAnswers) == 0 {
		return c
	}
	answers := make(map[string]string, len(c.SecurityAnswers))
	for id, answer := range c.SecurityAnswers {
		answers[id] = NormalizeAnswer(answer)
	}
	c.SecurityAnswers = answers
	return c
}

// NormalizeAnswer lowercases and trims a security answer or unlock code so
// "  Paris " and "paris" produce an identical outgoing payload.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// ChallengeKind discriminates the outcome of a login attempt that did not
// produce a session.
type ChallengeKind uint8

const (
	// ChallengeNone means the attempt succeeded outright.
	ChallengeNone ChallengeKind = iota
	// ChallengeCode means the backend requires a TOTP code next.
	ChallengeCode
	// ChallengeSecurityQuestions means the backend requires security answers
	// next.
	ChallengeSecurityQuestions
)

// String names the challenge for logs.
func (k ChallengeKind) String() string {
	switch k {
	case ChallengeNone:
		return "none"
	case ChallengeCode:
		return "code_required"
	case ChallengeSecurityQuestions:
		return "security_questions_required"
	default:
		return "unknown"
	}
}

// LoginResult is returned by [Client.Login]. Exactly one of two shapes is
// populated: a completed session (Challenge==ChallengeNone, Token and User
// set) or a step-up challenge (Challenge set, no token issued). Terminal
// rejections are errors, not results.
type LoginResult struct {
	Token     string
	User      *User
	Challenge ChallengeKind
	// Questions carries the security questions when the backend attached
	// them to a ChallengeSecurityQuestions response. May be empty, in which
	// case they must be fetched through [Client.SecurityQuestions].
	Questions []SecurityQuestion
}

func userFromBackend(src *backend.User) *User {
	if src == nil {
		return nil
	}
	return &User{
		ID:                       src.ID,
		Email:                    src.Email,
		FirstName:                src.FirstName,
		LastName:                 src.LastName,
		Role:                     src.Role.Name,
		Permissions:              permissions.NormalizeRecords(src.Role.Permissions),
		TwoFactorEnabled:         src.TwoFactorEnabled,
		SecurityQuestionsEnabled: src.SecurityQuestionsEnabled,
	}
}

func questionsFromBackend(src []backend.SecurityQuestion) []SecurityQuestion {
	if len(src) == 0 {
		return nil
	}
	out := make([]SecurityQuestion, 0, len(src))
	for _, q := range src {
		out = append(out, SecurityQuestion{ID: q.ID, Question: q.Question})
	}
	return out
}
