package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"kairo-keeper/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	rec   config.BinaryConfig
	saves int
}

func (m *memoryStore) Load() (config.BinaryConfig, error) {
	if m.rec.Path == "" {
		return m.rec, config.ErrNoInstalledBinary
	}
	return m.rec, nil
}

func (m *memoryStore) Save(path, version string) error {
	m.saves++
	m.rec = config.BinaryConfig{Path: path, Version: version}
	return nil
}

func TestBinaryServiceEnsureAcquiresOnce(t *testing.T) {
	archive := makeTarGz(t, map[string]string{"frpc": "bin"})
	rs := newReleaseServer(t, archive, true)
	p, _ := newTestPipeline(t, rs.URL+"/latest", nil)
	store := &memoryStore{}
	svc := NewBinaryService(p, store)

	_, ok := svc.Installed()
	assert.False(t, ok)

	bin, err := svc.Ensure(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, bin.AbsolutePath, store.rec.Path)
	assert.Equal(t, "0.51.3", store.rec.Version)

	again, err := svc.Ensure(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, bin.AbsolutePath, again.AbsolutePath)
	assert.Equal(t, 1, store.saves)
	assert.Equal(t, int32(1), rs.assetHits.Load())
}

func TestBinaryServiceInstalledMissingFile(t *testing.T) {
	store := &memoryStore{rec: config.BinaryConfig{Path: filepath.Join(t.TempDir(), "gone"), Version: "0.1.0"}}
	svc := NewBinaryService(nil, store)
	_, ok := svc.Installed()
	assert.False(t, ok)
}

func TestBinaryServiceCheck(t *testing.T) {
	archive := makeTarGz(t, map[string]string{"frpc": "bin"})
	rs := newReleaseServer(t, archive, false)
	p, _ := newTestPipeline(t, rs.URL+"/latest", nil)

	exe := filepath.Join(t.TempDir(), "frpc")
	require.NoError(t, os.WriteFile(exe, []byte("bin"), 0755))
	store := &memoryStore{rec: config.BinaryConfig{Path: exe, Version: "0.50.0"}}
	svc := NewBinaryService(p, store)

	check, err := svc.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.50.0", check.Installed)
	assert.Equal(t, "0.51.3", check.Latest)
	assert.True(t, check.Upgrade)

	store.rec.Version = "0.51.3"
	check, err = svc.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, check.Upgrade)
}

func TestBinaryServiceRemove(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "frpc")
	require.NoError(t, os.WriteFile(exe, []byte("bin"), 0755))
	store := &memoryStore{rec: config.BinaryConfig{Path: exe, Version: "0.51.3"}}
	svc := NewBinaryService(nil, store)

	require.NoError(t, svc.Remove())
	assert.NoFileExists(t, exe)
	assert.Equal(t, "", store.rec.Path)

	// nothing installed any more
	require.NoError(t, svc.Remove())
}
