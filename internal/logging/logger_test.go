package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "nguctl.log")

	rt, err := New("debug", path)
	require.NoError(t, err)
	require.Equal(t, path, rt.Path)
	require.Equal(t, logrus.DebugLevel, rt.Logger.GetLevel())

	Component(rt.Logger, "channel").Info("connected")
	require.NoError(t, rt.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "component=channel")
	require.Contains(t, string(data), "connected")
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("loud", "")
	require.Error(t, err)
}

func TestComponentWithoutLogger(t *testing.T) {
	entry := Component(nil, "hooks")
	require.NotNil(t, entry)
	entry.Info("dropped")
}
