package uxerror

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"opsconsole/internal/domain"
)

func TestHumanize(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantTitle string
		wantMsg   string
	}{
		{"auth", &domain.GatewayError{Code: "auth.invalid", Message: "Invalid token"}, "Authentication Failed", domain.MsgAuthFailed},
		{"lost", fmt.Errorf("read: %w", io.EOF), "Gateway Unreachable", domain.MsgConnectionLost},
		{"timeout", &domain.TimeoutError{Operation: "connecting to Gateway"}, "Gateway Timed Out", "Gateway timed out while connecting to Gateway."},
		{"bad url", domain.InvalidBaseURLError("nope"), "Invalid Gateway URL", domain.MsgInvalidURL},
		{"unexpected", fmt.Errorf("%w: bad json", domain.ErrUnexpectedFrame), "Unexpected Gateway Response", domain.MsgUnexpectedFrame},
		{"gateway error", &domain.GatewayError{Code: "E_BUSY", Message: "try later"}, "Gateway Error", "Gateway error: try later"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := Humanize(tt.err)
			assert.Equal(t, tt.wantTitle, fe.Title)
			assert.Equal(t, tt.wantMsg, fe.Message)
			assert.NotEmpty(t, fe.Hints)
			assert.Equal(t, tt.err.Error(), fe.Raw)
		})
	}
}

func TestHumanizeNil(t *testing.T) {
	assert.Equal(t, "Unknown Error", Humanize(nil).Title)
}

func TestRender(t *testing.T) {
	out := Humanize(errors.New("boom")).Render()
	assert.True(t, strings.HasPrefix(out, "Gateway Error\n  boom"))
	assert.Contains(t, out, "Suggestions:")
}

func TestHintsForClass(t *testing.T) {
	assert.NotEmpty(t, HintsForClass("auth"))
	assert.NotEmpty(t, HintsForClass(domain.ClassTransient.String()))
	assert.Nil(t, HintsForClass("unknown"))
	assert.Nil(t, HintsForClass(""))
}
