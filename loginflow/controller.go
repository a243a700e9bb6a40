package loginflow

import (
	"context"
	"errors"
	"sync"

	"github.com/fynlo/authkit"
)

// ErrBusy is returned when a submission arrives while a previous one is
// still in flight. The flow state is unchanged.
var ErrBusy = errors.New("loginflow: submission already in flight")

// ErrTerminal is returned for submissions against a terminal step.
var ErrTerminal = errors.New("loginflow: flow is terminal")

// ErrWrongStep is returned when a submission does not match the step the
// flow is positioned at.
var ErrWrongStep = errors.New("loginflow: submission does not match the current step")

// Authenticator is the slice of the auth client the controller drives.
// *authkit.Client satisfies it.
type Authenticator interface {
	Login(ctx context.Context, creds authkit.Credentials) (*authkit.LoginResult, error)
	SecurityQuestions(ctx context.Context, email string) ([]authkit.SecurityQuestion, error)
}

// Controller runs the primary login flow. It holds the submitted credentials
// across challenge steps so the second and third submissions replay the full
// set, and wipes them the moment the flow terminates.
//
// Methods are safe for concurrent use; only one submission runs at a time.
type Controller struct {
	auth Authenticator

	mu        sync.Mutex
	busy      bool
	step      Step
	prev      Step
	creds     authkit.Credentials
	questions []authkit.SecurityQuestion
	result    *authkit.LoginResult
	errMsg    string
}

// NewController returns a controller positioned at StepEmail.
func NewController(auth Authenticator) *Controller {
	return &Controller{auth: auth, step: StepEmail, prev: StepEmail}
}

// Step returns the current flow position.
func (f *Controller) Step() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.step
}

// Busy reports whether a submission is in flight.
func (f *Controller) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

// Err returns the message to display for the last failed submission, empty
// when the last submission succeeded or advanced the flow.
func (f *Controller) Err() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errMsg
}

// Questions returns the security questions to present at
// StepSecurityQuestions.
func (f *Controller) Questions() []authkit.SecurityQuestion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.questions
}

// Result returns the established session once the flow reaches StepComplete,
// nil before that.
func (f *Controller) Result() *authkit.LoginResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// SubmitCredentials runs the first step. Calling it from a later
// non-terminal step restarts the flow with the new credentials.
func (f *Controller) SubmitCredentials(ctx context.Context, email, password string) (Step, error) {
	if err := f.begin(); err != nil {
		return f.Step(), err
	}
	f.mu.Lock()
	f.creds = authkit.Credentials{Email: email, Password: password}
	f.mu.Unlock()
	return f.attempt(ctx)
}

// SubmitCode replays the stored credentials with the one-time code attached.
// Valid only at StepTwoFactor.
func (f *Controller) SubmitCode(ctx context.Context, code string) (Step, error) {
	if err := f.beginAt(StepTwoFactor); err != nil {
		return f.Step(), err
	}
	f.mu.Lock()
	f.creds.Code = code
	f.mu.Unlock()
	return f.attempt(ctx)
}

// SubmitAnswers replays the stored credentials with the security answers
// attached. Answers are case-normalized by the client before they leave the
// process. Valid only at StepSecurityQuestions.
func (f *Controller) SubmitAnswers(ctx context.Context, answers map[string]string) (Step, error) {
	if err := f.beginAt(StepSecurityQuestions); err != nil {
		return f.Step(), err
	}
	f.mu.Lock()
	f.creds.SecurityAnswers = answers
	f.mu.Unlock()
	return f.attempt(ctx)
}

// Back navigates one step backwards and clears the values collected at the
// abandoned step. It is a no-op at StepEmail and at terminal steps;
// StepDisabled in particular cannot be escaped by navigation.
func (f *Controller) Back() Step {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.busy || f.step.Terminal() {
		return f.step
	}
	switch f.step {
	case StepTwoFactor:
		f.creds.Code = ""
		f.step = StepEmail
	case StepSecurityQuestions:
		f.creds.SecurityAnswers = nil
		f.step = f.prev
	}
	f.errMsg = ""
	return f.step
}

func (f *Controller) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beginLocked(f.step)
}

func (f *Controller) beginAt(want Step) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.beginLocked(want)
}

func (f *Controller) beginLocked(want Step) error {
	if f.busy {
		return ErrBusy
	}
	if f.step.Terminal() {
		if f.step == StepDisabled {
			return authkit.ErrAccountDisabled
		}
		return ErrTerminal
	}
	if f.step != want {
		return ErrWrongStep
	}
	f.busy = true
	return nil
}

// attempt runs one login round trip and applies its outcome. The network
// call happens outside the lock; begin has already fenced off concurrent
// submissions.
func (f *Controller) attempt(ctx context.Context) (Step, error) {
	f.mu.Lock()
	creds := f.creds
	from := f.step
	f.mu.Unlock()

	result, err := f.auth.Login(ctx, creds)
	outcome, msg := Classify(result, err)

	var questions []authkit.SecurityQuestion
	if outcome == OutcomeQuestionsRequired {
		questions = result.Questions
		if len(questions) == 0 {
			// The step-up response carried no questions; resolve them through
			// the dedicated endpoint. A failure here leaves the list empty
			// and the step still renders, so the error is not fatal.
			if fetched, qerr := f.auth.SecurityQuestions(ctx, creds.Email); qerr == nil {
				questions = fetched
			}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	f.errMsg = msg
	next := Next(from, outcome)
	switch outcome {
	case OutcomeSuccess:
		f.result = result
		f.creds = authkit.Credentials{}
		f.questions = nil
	case OutcomeDisabled:
		f.creds = authkit.Credentials{}
		f.questions = nil
	case OutcomeQuestionsRequired:
		f.questions = questions
	case OutcomeRejected:
		// A rejected code is spent; clear it so the retry starts blank.
		if from == StepTwoFactor {
			f.creds.Code = ""
		}
	}
	if next != from && !next.Terminal() {
		f.prev = from
	}
	f.step = next
	return next, err
}

// Classify maps a login round trip onto an outcome and the message to show
// for it. Backend-supplied messages take priority over generic wording.
func Classify(result *authkit.LoginResult, err error) (Outcome, string) {
	if err != nil {
		msg := err.Error()
		if apiErr, ok := authkit.AsAPIError(err); ok && apiErr.Message != "" {
			msg = apiErr.Message
		}
		switch {
		case errors.Is(err, authkit.ErrAccountDisabled):
			return OutcomeDisabled, msg
		case authkit.IsTransport(err):
			return OutcomeTransport, msg
		default:
			return OutcomeRejected, msg
		}
	}
	switch result.Challenge {
	case authkit.ChallengeCode:
		return OutcomeCodeRequired, ""
	case authkit.ChallengeSecurityQuestions:
		return OutcomeQuestionsRequired, ""
	default:
		return OutcomeSuccess, ""
	}
}
