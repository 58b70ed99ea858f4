// Package uxerror turns gateway errors into operator-facing messages with
// recovery hints, for the dashboard banner and the one-shot commands.
package uxerror

import (
	"fmt"
	"strings"

	"opsconsole/internal/adapter/tui/theme"
	"opsconsole/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Gateway Unreachable"
	Message string   // banner wording from domain.PresentError
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text, for --verbose output
}

// Render formats the FriendlyError as indented plain text.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type guidance struct {
	title string
	hints []string
}

var byClass = map[domain.ErrorClass]guidance{
	domain.ClassAuth: {"Authentication Failed", []string{
		"Check the token of the active profile in opsconsole.yaml",
		"Set OPSCONSOLE_GATEWAY_TOKEN to override it",
		"Press r to reconnect after fixing it",
	}},
	domain.ClassTransient: {"Gateway Unreachable", []string{
		"Check that the Gateway is running",
		"Verify the base URL of the active profile",
		"Press r to retry now instead of waiting",
	}},
	domain.ClassTimeout: {"Gateway Timed Out", []string{
		"Check your network connection",
		"Raise gateway.timeouts in opsconsole.yaml for slow links",
	}},
	domain.ClassInvalidConfig: {"Invalid Gateway URL", []string{
		"Use a base URL like http://127.0.0.1:18789",
		"Leave out any path, query or fragment",
	}},
	domain.ClassUnexpected: {"Unexpected Gateway Response", []string{
		"Check that the Gateway and console versions match",
	}},
}

var classNames = map[string]domain.ErrorClass{}

func init() {
	for c := range byClass {
		classNames[c.String()] = c
	}
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}
	fe := FriendlyError{Message: domain.PresentError(err), Raw: err.Error()}
	if g, ok := byClass[domain.Classify(err)]; ok {
		fe.Title = g.title
		fe.Hints = g.hints
		return fe
	}
	fe.Title = "Gateway Error"
	fe.Hints = []string{"Try again", "Run with OPSCONSOLE_LOGGER_LEVEL=debug for details"}
	return fe
}

// HintsForClass returns the hints for a class name as carried in
// domain.ErrorPayload. Unknown names get none.
func HintsForClass(name string) []string {
	c, ok := classNames[name]
	if !ok {
		return nil
	}
	return byClass[c].hints
}
