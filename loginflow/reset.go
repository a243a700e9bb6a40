package loginflow

import (
	"context"
	"sync"

	"github.com/fynlo/authkit"
)

// ResetStep identifies a position in the forgot-password flow.
type ResetStep uint8

const (
	// ResetEmail collects the account email.
	ResetEmail ResetStep = iota
	// ResetOTP collects the unlock code sent to that email.
	ResetOTP
	// ResetQuestions collects security answers.
	ResetQuestions
	// ResetNewPassword collects the replacement password.
	ResetNewPassword
	// ResetComplete means the password was changed.
	ResetComplete
)

func (s ResetStep) String() string {
	switch s {
	case ResetEmail:
		return "reset-email"
	case ResetOTP:
		return "reset-otp"
	case ResetQuestions:
		return "reset-questions"
	case ResetNewPassword:
		return "reset-new-password"
	case ResetComplete:
		return "reset-complete"
	default:
		return "unknown"
	}
}

// PasswordResetter is the slice of the auth client the reset flow drives.
// *authkit.Client satisfies it.
type PasswordResetter interface {
	RequestPasswordReset(ctx context.Context, email string) error
	ValidateOTPUnlock(ctx context.Context, code string) (bool, error)
	SecurityQuestions(ctx context.Context, email string) ([]authkit.SecurityQuestion, error)
	ResetPassword(ctx context.Context, email, code string, answers map[string]string, newPassword string) (bool, error)
}

// ResetController runs the forgot-password flow. It is independent of
// [Controller]: abandoning a reset never disturbs login state.
type ResetController struct {
	api PasswordResetter

	mu        sync.Mutex
	busy      bool
	step      ResetStep
	email     string
	code      string
	answers   map[string]string
	questions []authkit.SecurityQuestion
	errMsg    string
}

// NewResetController returns a controller positioned at ResetEmail.
func NewResetController(api PasswordResetter) *ResetController {
	return &ResetController{api: api, step: ResetEmail}
}

// Step returns the current flow position.
func (f *ResetController) Step() ResetStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Busy reports whether a submission is in flight.
func (f *ResetController) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// Err returns the message to display for the last failed submission.
func (f *ResetController) Err() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMsg
}

// Questions returns the security questions to present at ResetQuestions.
func (f *ResetController) Questions() []authkit.SecurityQuestion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.questions
}

// SubmitEmail sends the reset code and advances to ResetOTP.
func (f *ResetController) SubmitEmail(ctx context.Context, email string) (ResetStep, error) {
	if err := f.begin(ResetEmail); err != nil {
		return f.Step(), err
	}
	err := f.api.RequestPasswordReset(ctx, email)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if err != nil {
		f.errMsg = messageFor(err)
		return f.step, err
	}
	f.email = email
	f.errMsg = ""
	f.step = ResetOTP
	return f.step, nil
}

// SubmitCode validates the unlock code. On success the security questions
// for the account are fetched and the flow advances to ResetQuestions.
func (f *ResetController) SubmitCode(ctx context.Context, code string) (ResetStep, error) {
	if err := f.begin(ResetOTP); err != nil {
		return f.Step(), err
	}
	f.mu.Lock()
	email := f.email
	f.mu.Unlock()

	ok, err := f.api.ValidateOTPUnlock(ctx, code)
	var questions []authkit.SecurityQuestion
	if err == nil && ok {
		// Non-fatal on failure, the questions step renders without them.
		questions, _ = f.api.SecurityQuestions(ctx, email)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	switch {
	case err != nil:
		f.errMsg = messageFor(err)
		return f.step, err
	case !ok:
		f.errMsg = "code was not accepted"
		return f.step, nil
	}
	f.code = code
	f.questions = questions
	f.errMsg = ""
	f.step = ResetQuestions
	return f.step, nil
}

// SubmitAnswers records the security answers and advances to
// ResetNewPassword. The server checks them as part of the final reset call,
// so a wrong answer surfaces there, not here.
func (f *ResetController) SubmitAnswers(answers map[string]string) (ResetStep, error) {
	if err := f.begin(ResetQuestions); err != nil {
		return f.Step(), err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	f.answers = answers
	f.errMsg = ""
	f.step = ResetNewPassword
	return f.step, nil
}

// SubmitNewPassword performs the reset. On rejection the flow stays at
// ResetNewPassword with the answers preserved for correction via Back.
func (f *ResetController) SubmitNewPassword(ctx context.Context, newPassword string) (ResetStep, error) {
	if err := f.begin(ResetNewPassword); err != nil {
		return f.Step(), err
	}
	f.mu.Lock()
	email, code, answers := f.email, f.code, f.answers
	f.mu.Unlock()

	ok, err := f.api.ResetPassword(ctx, email, code, answers, newPassword)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	switch {
	case err != nil:
		f.errMsg = messageFor(err)
		return f.step, err
	case !ok:
		f.errMsg = "password reset was not accepted"
		return f.step, nil
	}
	f.errMsg = ""
	f.step = ResetComplete
	return f.step, nil
}

// Back navigates one step backwards, clearing the values collected at the
// abandoned step. No-op at ResetEmail and ResetComplete.
func (f *ResetController) Back() ResetStep {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return f.step
	}
	switch f.step {
	case ResetOTP:
		f.code = ""
		f.step = ResetEmail
	case ResetQuestions:
		f.answers = nil
		f.questions = nil
		f.step = ResetOTP
	case ResetNewPassword:
		f.step = ResetQuestions
	}
	f.errMsg = ""
	return f.step
}

func (f *ResetController) begin(want ResetStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy {
		return ErrBusy
	}
	if f.step != want {
		return ErrWrongStep
	}
	f.busy = true
	return nil
}

func messageFor(err error) string {
	if apiErr, ok := authkit.AsAPIError(err); ok && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
