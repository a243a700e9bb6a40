package loginflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fynlo/authkit"
)

// fakeAuth scripts one response per login attempt and records the
// credentials each attempt carried.
type fakeAuth struct {
	results   []*authkit.LoginResult
	errs      []error
	calls     []authkit.Credentials
	questions []authkit.SecurityQuestion
	qErr      error
	qCalls    int
}

func (a *fakeAuth) Login(_ context.Context, creds authkit.Credentials) (*authkit.LoginResult, error) {
	i := len(a.calls)
	a.calls = append(a.calls, creds)
	if i >= len(a.results) {
		return nil, errors.New("unexpected login attempt")
	}
	return a.results[i], a.errs[i]
}

func (a *fakeAuth) SecurityQuestions(context.Context, string) ([]authkit.SecurityQuestion, error) {
	a.qCalls++
	return a.questions, a.qErr
}

func (a *fakeAuth) script(result *authkit.LoginResult, err error) {
	a.results = append(a.results, result)
	a.errs = append(a.errs, err)
}

func sessionResult() *authkit.LoginResult {
	return &authkit.LoginResult{
		Token: "h.p.s",
		User:  &authkit.User{ID: "u1", Email: "a@b.com"},
	}
}

func TestControllerDirectSuccess(t *testing.T) {
	auth := &fakeAuth{}
	auth.script(sessionResult(), nil)
	f := NewController(auth)

	step, err := f.SubmitCredentials(context.Background(), "a@b.com", "x")
	if err != nil {
		t.Fatalf("SubmitCredentials: %v", err)
	}
	if step != StepComplete {
		t.Fatalf("step = %v, want StepComplete", step)
	}
	if f.Result() == nil || f.Result().Token != "h.p.s" {
		t.Fatalf("result not captured: %+v", f.Result())
	}
	if f.Err() != "" {
		t.Fatalf("unexpected error message %q", f.Err())
	}
}

func TestControllerCodeChallengePreservesCredentials(t *testing.T) {
	auth := &fakeAuth{}
	auth.script(&authkit.LoginResult{Challenge: authkit.ChallengeCode}, nil)
	auth.script(sessionResult(), nil)
	f := NewController(auth)

	step, err := f.SubmitCredentials(context.Background(), "a@b.com", "x")
	if err != nil {
		t.Fatalf("SubmitCredentials: %v", err)
	}
	if step != StepTwoFactor {
		t.Fatalf("step = %v, want StepTwoFactor", step)
	}

	step, err = f.SubmitCode(context.Background(), "123456")
	if err != nil {
		t.Fatalf("SubmitCode: %v", err)
	}
	if step != StepComplete {
		t.Fatalf("step = %v, want StepComplete", step)
	}

	// The second attempt must replay the full credential set plus the code.
	got := auth.calls[1]
	if got.Email != "a@b.com" || got.Password != "x" || got.Code != "123456" {
		t.Fatalf("replayed credentials = %+v", got)
	}
}

func TestControllerCodeThenQuestionsStepUp(t *testing.T) {
	questions := []authkit.SecurityQuestion{{ID: "q1", Question: "First pet?"}}
	auth := &fakeAuth{}
	auth.script(&authkit.LoginResult{Challenge: authkit.ChallengeCode}, nil)
	auth.script(&authkit.LoginResult{
		Challenge: authkit.ChallengeSecurityQuestions,
		Questions: questions,
	}, nil)
	auth.script(sessionResult(), nil)
	f := NewController(auth)

	if _, err := f.SubmitCredentials(context.Background(), "a@b.com", "x"); err != nil {
		t.Fatal(err)
	}
	step, err := f.SubmitCode(context.Background(), "123456")
	if err != nil {
		t.Fatalf("SubmitCode: %v", err)
	}
	// A valid code answered with a questions step-up lands on the questions
	// step, not on completion.
	if step != StepSecurityQuestions {
		t.Fatalf("step = %v, want StepSecurityQuestions", step)
	}
	if len(f.Questions()) != 1 || f.Questions()[0].ID != "q1" {
		t.Fatalf("questions = %+v", f.Questions())
	}
	if auth.qCalls != 0 {
		t.Fatal("side-channel fetch should be skipped when questions arrive inline")
	}

	step, err = f.SubmitAnswers(context.Background(), map[string]string{"q1": "  Rex "})
	if err != nil {
		t.Fatalf("SubmitAnswers: %v", err)
	}
	if step != StepComplete {
		t.Fatalf("step = %v, want StepComplete", step)
	}
	if got := auth.calls[2].SecurityAnswers["q1"]; got != "  Rex " {
		t.Fatalf("answers not forwarded: %q", got)
	}
}

func TestControllerFetchesQuestionsWhenResponseOmitsThem(t *testing.T) {
	auth := &fakeAuth{
		questions: []authkit.SecurityQuestion{{ID: "q1", Question: "First pet?"}},
	}
	auth.script(&authkit.LoginResult{Challenge: authkit.ChallengeSecurityQuestions}, nil)
	f := NewController(auth)

	step, err := f.SubmitCredentials(context.Background(), "a@b.com", "x")
	if err != nil {
		t.Fatal(err)
	}
	if step != StepSecurityQuestions {
		t.Fatalf("step = %v", step)
	}
	if auth.qCalls != 1 {
		t.Fatalf("qCalls = %d, want 1", auth.qCalls)
	}
	if len(f.Questions()) != 1 {
		t.Fatalf("questions = %+v", f.Questions())
	}
}

func TestControllerRejectionStaysAndKeepsMessage(t *testing.T) {
	auth := &fakeAuth{}
	auth.script(nil, fmt.Errorf("%w: Invalid email or password", authkit.ErrCredentialsRejected))
	f := NewController(auth)

	step, err := f.SubmitCredentials(context.Background(), "a@b.com", "wrong")
	if err == nil {
		t.Fatal("expected rejection error")
	}
	if step != StepEmail {
		t.Fatalf("step = %v, want StepEmail", step)
	}
	if f.Err() == "" {
		t.Fatal("error message not recorded")
	}
}

func TestControllerRejectedCodeIsCleared(t *testing.T) {
	auth := &fakeAuth{}
	auth.script(&authkit.LoginResult{Challenge: authkit.ChallengeCode}, nil)
	auth.script(nil, fmt.Errorf("%w: Invalid verification code", authkit.ErrCredentialsRejected))
	auth.script(sessionResult(), nil)
	f := NewController(auth)

	if _, err := f.SubmitCredentials(context.Background(), "a@b.com", "x"); err != nil {
		t.Fatal(err)
	}
	if step, _ := f.SubmitCode(context.Background(), "000000"); step != StepTwoFactor {
		t.Fatalf("step = %v, want StepTwoFactor after rejection", step)
	}
	if _, err := f.SubmitCode(context.Background(), "123456"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := auth.calls[2].Code; got != "123456" {
		t.Fatalf("retry carried stale code: %q", got)
	}
}

func TestControllerDisabledIsTerminal(t *testing.T) {
	auth := &fakeAuth{}
	auth.script(nil, fmt.Errorf("%w: account is disabled", authkit.ErrAccountDisabled))
	f := NewController(auth)

	step, err := f.SubmitCredentials(context.Background(), "a@b.com", "x")
	if !errors.Is(err, authkit.ErrAccountDisabled) {
		t.Fatalf("err = %v", err)
	}
	if step != StepDisabled {
		t.Fatalf("step = %v, want StepDisabled", step)
	}

	if _, err := f.SubmitCredentials(context.Background(), "a@b.com", "x"); !errors.Is(err, authkit.ErrAccountDisabled) {
		t.Fatalf("resubmission should be blocked, got %v", err)
	}
	if got := f.Back(); got != StepDisabled {
		t.Fatalf("Back escaped the disabled step: %v", got)
	}
	if len(auth.calls) != 1 {
		t.Fatalf("extra network calls after disablement: %d", len(auth.calls))
	}
}

func TestControllerTransportFailureStaysPut(t *testing.T) {
	auth := &fakeAuth{}
	auth.script(nil, fmt.Errorf("%w: dial tcp: connection refused", authkit.ErrTransport))
	auth.script(sessionResult(), nil)
	f := NewController(auth)

	step, err := f.SubmitCredentials(context.Background(), "a@b.com", "x")
	if !authkit.IsTransport(err) {
		t.Fatalf("err = %v", err)
	}
	if step != StepEmail {
		t.Fatalf("step = %v, want StepEmail", step)
	}
	if step, err := f.SubmitCredentials(context.Background(), "a@b.com", "x"); err != nil || step != StepComplete {
		t.Fatalf("retry: step=%v err=%v", step, err)
	}
}

func TestControllerBackFromTwoFactor(t *testing.T) {
	auth := &fakeAuth{}
	auth.script(&authkit.LoginResult{Challenge: authkit.ChallengeCode}, nil)
	auth.script(sessionResult(), nil)
	f := NewController(auth)

	if _, err := f.SubmitCredentials(context.Background(), "a@b.com", "x"); err != nil {
		t.Fatal(err)
	}
	if got := f.Back(); got != StepEmail {
		t.Fatalf("Back = %v, want StepEmail", got)
	}
	if _, err := f.SubmitCredentials(context.Background(), "a@b.com", "x"); err != nil {
		t.Fatal(err)
	}
	if got := auth.calls[1].Code; got != "" {
		t.Fatalf("code survived back-navigation: %q", got)
	}
}

func TestControllerBackFromQuestionsReturnsToPriorStep(t *testing.T) {
	auth := &fakeAuth{}
	auth.script(&authkit.LoginResult{Challenge: authkit.ChallengeCode}, nil)
	auth.script(&authkit.LoginResult{
		Challenge: authkit.ChallengeSecurityQuestions,
		Questions: []authkit.SecurityQuestion{{ID: "q1"}},
	}, nil)
	f := NewController(auth)

	if _, err := f.SubmitCredentials(context.Background(), "a@b.com", "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.SubmitCode(context.Background(), "123456"); err != nil {
		t.Fatal(err)
	}
	if got := f.Back(); got != StepTwoFactor {
		t.Fatalf("Back = %v, want StepTwoFactor", got)
	}
}

func TestControllerWrongStepSubmission(t *testing.T) {
	f := NewController(&fakeAuth{})
	if _, err := f.SubmitCode(context.Background(), "123456"); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("err = %v, want ErrWrongStep", err)
	}
	if _, err := f.SubmitAnswers(context.Background(), nil); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("err = %v, want ErrWrongStep", err)
	}
}

func TestControllerClassify(t *testing.T) {
	if o, _ := Classify(&authkit.LoginResult{Challenge: authkit.ChallengeCode}, nil); o != OutcomeCodeRequired {
		t.Fatalf("code challenge classified as %v", o)
	}
	if o, _ := Classify(&authkit.LoginResult{Challenge: authkit.ChallengeSecurityQuestions}, nil); o != OutcomeQuestionsRequired {
		t.Fatalf("questions challenge classified as %v", o)
	}
	if o, _ := Classify(sessionResult(), nil); o != OutcomeSuccess {
		t.Fatalf("session classified as %v", o)
	}
	if o, _ := Classify(nil, fmt.Errorf("%w: nope", authkit.ErrAccountDisabled)); o != OutcomeDisabled {
		t.Fatalf("disabled classified as %v", o)
	}
	if o, _ := Classify(nil, fmt.Errorf("%w: dial tcp", authkit.ErrTransport)); o != OutcomeTransport {
		t.Fatalf("transport classified as %v", o)
	}
	if o, msg := Classify(nil, errors.New("Invalid email or password")); o != OutcomeRejected || msg != "Invalid email or password" {
		t.Fatalf("rejection classified as %v / %q", o, msg)
	}
}
