package shell

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReplaceEnvVars(t *testing.T) {
	t.Setenv("CAMGRAB_DEVICE", "/dev/video2")

	require.Equal(t, "device: /dev/video2", ReplaceEnvVars("device: ${CAMGRAB_DEVICE}"))
	require.Equal(t, "device: /dev/video2", ReplaceEnvVars("device: ${CAMGRAB_DEVICE:/dev/video0}"))
	require.Equal(t, "prefix: image", ReplaceEnvVars("prefix: ${CAMGRAB_UNKNOWN:image}"))
	require.Equal(t, "prefix: ${CAMGRAB_UNKNOWN}", ReplaceEnvVars("prefix: ${CAMGRAB_UNKNOWN}"))
}
