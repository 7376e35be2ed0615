package procsrc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lionel-/deferred"
	"github.com/lionel-/deferred/adapters/procsrc"
)

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	result, err := deferred.Synchronize[procsrc.Result](func(b *deferred.Barrier) *deferred.Deferred {
		return procsrc.Run(b, "sh", "-c", "echo out; echo err 1>&2")
	})

	require.NoError(t, err)
	require.Equal(t, []string{"out"}, result.Stdout)
	require.Equal(t, []string{"err"}, result.Stderr)
	require.Equal(t, 0, result.ExitCode)
}

func TestRunReportsNonZeroExit(t *testing.T) {
	result, err := deferred.Synchronize[procsrc.Result](func(b *deferred.Barrier) *deferred.Deferred {
		return procsrc.Run(b, "sh", "-c", "exit 3")
	})

	require.NoError(t, err)
	require.Equal(t, 3, result.ExitCode)
}
