package connection

import (
	"errors"

	"opsconsole/internal/domain"
)

// TestResultKind is the outcome category of a manual connection test.
type TestResultKind string

const (
	TestSuccess       TestResultKind = "success"
	TestAuthFailed    TestResultKind = "auth_failed"
	TestCannotConnect TestResultKind = "cannot_connect"
	TestTimedOut      TestResultKind = "timed_out"
	TestUnknown       TestResultKind = "unknown"
)

// Messages shown for a manual connection test.
const (
	MsgTestOK            = "Connection OK."
	MsgTestAuthFailed    = "Auth failed. Check your Gateway token."
	MsgTestCannotConnect = "Can't reach the Gateway. Check the URL and that the Gateway is running."
	MsgTestTimedOut      = "Gateway timed out. Check the URL/network, then try again."
)

// TestResult is what the settings screen and the `test` command print.
type TestResult struct {
	Kind    TestResultKind `json:"kind"`
	Message string         `json:"message"`
}

// OK reports whether the test passed.
func (r TestResult) OK() bool { return r.Kind == TestSuccess }

// PresentTestResult phrases the outcome of TestConnection. Unlike the
// banner it names an action; the category still comes from domain.Classify.
func PresentTestResult(err error) TestResult {
	if err == nil {
		return TestResult{Kind: TestSuccess, Message: MsgTestOK}
	}
	switch domain.Classify(err) {
	case domain.ClassAuth:
		return TestResult{Kind: TestAuthFailed, Message: MsgTestAuthFailed}
	case domain.ClassTimeout:
		return TestResult{Kind: TestTimedOut, Message: MsgTestTimedOut}
	case domain.ClassTransient:
		if !errors.Is(err, domain.ErrCircuitOpen) {
			return TestResult{Kind: TestCannotConnect, Message: MsgTestCannotConnect}
		}
	}
	return TestResult{Kind: TestUnknown, Message: domain.PresentError(err)}
}
