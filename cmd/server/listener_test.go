//go:build !windows

package server

import (
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"

	"kairo-keeper/internal/rpc"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// shortDir keeps socket paths under the sun_path limit on darwin
func shortDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "kairo")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

func TestCreateListeners(t *testing.T) {
	sock := filepath.Join(shortDir(t), "run", "kairo.sock")
	require.NoError(t, os.MkdirAll(filepath.Dir(sock), 0700))
	// stale socket file from a crashed server
	require.NoError(t, os.WriteFile(sock, nil, 0600))

	listeners, err := CreateListeners([]rpc.Endpoint{
		{Network: "unix", Address: sock},
		{Network: "tcp", Address: "127.0.0.1:0"},
	})
	require.NoError(t, err)
	require.Len(t, listeners, 2)
	defer closeListeners(listeners)

	info, err := os.Stat(sock)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	conn, err := net.Dial("unix", sock)
	require.NoError(t, err)
	conn.Close()
}

func TestCreateListenersCreatesRunDir(t *testing.T) {
	sock := filepath.Join(shortDir(t), "run", "kairo.sock")

	listeners, err := CreateListeners([]rpc.Endpoint{{Network: "unix", Address: sock}})
	require.NoError(t, err)
	require.Len(t, listeners, 1)
	closeListeners(listeners)
	assert.NoFileExists(t, sock)
}

func TestCreateListenersRefusesLiveServer(t *testing.T) {
	sock := filepath.Join(shortDir(t), "kairo.sock")
	live, err := net.Listen("unix", sock)
	require.NoError(t, err)
	defer live.Close()

	listeners, err := CreateListeners([]rpc.Endpoint{
		{Network: "tcp", Address: "127.0.0.1:0"},
		{Network: "unix", Address: sock},
	})
	assert.True(t, errors.Is(err, ErrAlreadyServing))
	assert.Empty(t, listeners)
	// the running server keeps its socket
	assert.FileExists(t, sock)
}

func TestCreateListenersPartialFailure(t *testing.T) {
	// socket dir can't be created below a regular file
	notDir := filepath.Join(shortDir(t), "file")
	require.NoError(t, os.WriteFile(notDir, nil, 0600))

	listeners, err := CreateListeners([]rpc.Endpoint{
		{Network: "unix", Address: filepath.Join(notDir, "run", "kairo.sock")},
		{Network: "tcp", Address: "127.0.0.1:0"},
	})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrAlreadyServing))
	require.Len(t, listeners, 1)
	listeners[0].Close()
}
