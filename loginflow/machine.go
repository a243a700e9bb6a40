package loginflow

// Step identifies a position in the login flow.
type Step uint8

const (
	// StepEmail collects email and password.
	StepEmail Step = iota
	// StepTwoFactor collects a one-time code after a CODE_REQUIRED step-up.
	StepTwoFactor
	// StepSecurityQuestions collects security answers after a
	// SECURITY_QUESTIONS_REQUIRED step-up.
	StepSecurityQuestions
	// StepComplete holds the established session.
	StepComplete
	// StepDisabled is terminal. No submission or back-navigation leaves it.
	StepDisabled
)

func (s Step) String() string {
	switch s {
	case StepEmail:
		return "email"
	case StepTwoFactor:
		return "two-factor"
	case StepSecurityQuestions:
		return "security-questions"
	case StepComplete:
		return "complete"
	case StepDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further submissions are accepted from s.
func (s Step) Terminal() bool {
	return s == StepComplete || s == StepDisabled
}

// Outcome classifies the result of one login attempt.
type Outcome uint8

const (
	// OutcomeSuccess established a session.
	OutcomeSuccess Outcome = iota
	// OutcomeCodeRequired asks for a one-time code.
	OutcomeCodeRequired
	// OutcomeQuestionsRequired asks for security answers.
	OutcomeQuestionsRequired
	// OutcomeRejected is a terminal rejection of the submitted values.
	// The flow stays on the current step so the user can correct them.
	OutcomeRejected
	// OutcomeDisabled means the account is locked out.
	OutcomeDisabled
	// OutcomeTransport is a connectivity failure. The flow stays put.
	OutcomeTransport
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCodeRequired:
		return "code-required"
	case OutcomeQuestionsRequired:
		return "questions-required"
	case OutcomeRejected:
		return "rejected"
	case OutcomeDisabled:
		return "disabled"
	case OutcomeTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Next returns the step the flow moves to when outcome o is observed at
// step s. It is a pure function: challenge outcomes advance the flow even
// mid-sequence (a code that checks out can still be answered with a
// security-questions step-up), rejections and transport failures hold the
// current step, and StepDisabled absorbs everything.
func Next(s Step, o Outcome) Step {
	if s == StepDisabled {
		return StepDisabled
	}
	switch o {
	case OutcomeSuccess:
		return StepComplete
	case OutcomeCodeRequired:
		return StepTwoFactor
	case OutcomeQuestionsRequired:
		return StepSecurityQuestions
	case OutcomeDisabled:
		return StepDisabled
	default:
		return s
	}
}
