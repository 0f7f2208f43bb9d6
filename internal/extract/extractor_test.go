package extract

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"kairo-keeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name    string
	content string
	dir     bool
	link    string
}

func createTestZip(t *testing.T, path string, entries []entry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.dir {
			hdr.SetMode(os.ModeDir | 0755)
		} else {
			hdr.SetMode(0755)
		}
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		if !e.dir {
			_, err = w.Write([]byte(e.content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
}

func createTestTarGz(t *testing.T, path string, entries []entry) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0755}
		switch {
		case e.dir:
			hdr.Typeflag = tar.TypeDir
		case e.link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.link
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.content))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gw.Close())
}

func TestExtractZipNested(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "frp_windows_amd64.zip")
	createTestZip(t, archive, []entry{
		{name: "frp_windows_amd64/", dir: true},
		{name: "frp_windows_amd64/frpc.exe", content: "v1"},
		{name: "frp_windows_amd64/frpc.toml", content: "cfg"},
	})

	e := NewExtractor()
	out := filepath.Join(dir, "out")
	require.NoError(t, e.Extract(archive, out))

	exe, err := e.FindExecutable(out, "frpc", ".exe")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "frp_windows_amd64", "frpc.exe"), exe)
}

func TestExtractTarGzSkipsLinks(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "frp_linux_amd64.tar.gz")
	createTestTarGz(t, archive, []entry{
		{name: "frp_linux_amd64", dir: true},
		{name: "frp_linux_amd64/frpc", content: "#!/bin/sh\n"},
		{name: "frp_linux_amd64/link", link: "/etc/passwd"},
	})

	e := NewExtractor()
	out := filepath.Join(dir, "out")
	require.NoError(t, e.Extract(archive, out))

	assert.FileExists(t, filepath.Join(out, "frp_linux_amd64", "frpc"))
	_, err := os.Lstat(filepath.Join(out, "frp_linux_amd64", "link"))
	assert.True(t, os.IsNotExist(err))

	exe, err := e.FindExecutable(out, "frpc", "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "frp_linux_amd64", "frpc"), exe)
}

func TestExtractRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "evil.tar.gz")
	createTestTarGz(t, archive, []entry{{name: "../escaped", content: "x"}})

	err := NewExtractor().Extract(archive, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExtractionFailed))
	assert.NoFileExists(t, filepath.Join(dir, "escaped"))
}

func TestExtractFailures(t *testing.T) {
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.zip")
	require.NoError(t, os.WriteFile(corrupt, []byte("not a zip"), 0644))
	err := NewExtractor().Extract(corrupt, filepath.Join(dir, "a"))
	assert.True(t, errors.Is(err, models.ErrExtractionFailed))

	unsupported := filepath.Join(dir, "frp.7z")
	require.NoError(t, os.WriteFile(unsupported, []byte("7z"), 0644))
	err = NewExtractor().Extract(unsupported, filepath.Join(dir, "b"))
	assert.True(t, errors.Is(err, models.ErrExtractionFailed))
}

func TestFindExecutableMissing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("docs"), 0644))

	_, err := NewExtractor().FindExecutable(dir, "frpc", "")
	assert.True(t, errors.Is(err, models.ErrExecutableNotFound))
}

func TestFindExecutableOtherPlatform(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "frpc.exe"), []byte("bin"), 0755))

	// a windows build must not be installed on linux
	_, err := NewExtractor().FindExecutable(dir, "frpc", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrExecutableNotFound))

	exe, err := NewExtractor().FindExecutable(dir, "frpc", ".exe")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a", "frpc.exe"), exe)

	// and the other way round
	other := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(other, "frpc"), []byte("bin"), 0755))
	_, err = NewExtractor().FindExecutable(other, "frpc", ".exe")
	assert.True(t, errors.Is(err, models.ErrExecutableNotFound))
}

func TestInstallOverwrites(t *testing.T) {
	dir := t.TempDir()
	e := NewExtractor()
	dst := filepath.Join(dir, "bin", "frpc")

	for _, version := range []string{"old", "new"} {
		archive := filepath.Join(dir, version+".zip")
		createTestZip(t, archive, []entry{{name: "pkg/nested/frpc", content: version}})
		out := filepath.Join(dir, "out-"+version)
		require.NoError(t, e.Extract(archive, out))

		src, err := e.FindExecutable(out, "frpc", "")
		require.NoError(t, err)
		require.NoError(t, e.Install(src, dst))

		// copied, not moved
		assert.FileExists(t, src)
	}

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))

	leftovers, err := filepath.Glob(filepath.Join(dir, "bin", ".frpc.*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestMakeExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not meaningful on windows")
	}
	path := filepath.Join(t.TempDir(), "frpc")
	require.NoError(t, os.WriteFile(path, []byte("bin"), 0644))

	e := NewExtractor()
	require.NoError(t, e.MakeExecutable(path, runtime.GOOS))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0755), info.Mode().Perm())

	assert.Error(t, e.MakeExecutable(filepath.Join(t.TempDir(), "missing"), runtime.GOOS))
}
