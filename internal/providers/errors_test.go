package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	cases := map[string]ErrorType{
		"insufficient_quota":      ErrorQuota,
		"429 rate":                ErrorRate,
		"context length exceeded": ErrorContext,
		"status 401":              ErrorAuth,
		"timeout":                 ErrorTransient,
		"bad request":             ErrorPermanent,
	}
	for msg, want := range cases {
		require.Equal(t, want, ClassifyError(errors.New(msg)), msg)
	}
	require.Equal(t, ErrorNotReady, ClassifyError(unavailable("x", "missing key")))
	require.Equal(t, ErrorType(""), ClassifyError(nil))
}

func TestModelErrorMatchesKind(t *testing.T) {
	cause := context.DeadlineExceeded
	err := callFailed("openai", cause)
	require.ErrorIs(t, err, ErrModelCallFailed)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotErrorIs(t, err, ErrModelUnavailable)

	var me *ModelError
	require.ErrorAs(t, err, &me)
	require.Equal(t, "openai", me.Provider)
}
