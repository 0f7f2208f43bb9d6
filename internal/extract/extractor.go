package extract

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"kairo-keeper/internal/models"

	"github.com/klauspost/compress/zip"
	"github.com/mholt/archiver/v3"
)

// Extractor unpacks release archives and installs the executable they carry.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

/**
 * Extract a .zip or .tar.gz archive into destDir
 * @param {string} archivePath - Archive on disk, format chosen by extension
 * @param {string} destDir - Destination directory, created when missing
 * @returns {error} ErrExtractionFailed for corrupt, unsupported or unsafe archives
 * @description
 * - Only directories and regular files are written, links and devices are skipped
 * - Entries escaping destDir are rejected
 */
func (e *Extractor) Extract(archivePath, destDir string) error {
	var walker archiver.Walker
	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		walker = archiver.NewZip()
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		walker = archiver.NewTarGz()
	default:
		return fmt.Errorf("%w: unsupported archive format: %s", models.ErrExtractionFailed, filepath.Base(archivePath))
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("%w: create dest dir: %v", models.ErrExtractionFailed, err)
	}
	root := filepath.Clean(destDir)

	err := walker.Walk(archivePath, func(f archiver.File) error {
		name := entryName(f)
		if name == "" {
			return nil
		}
		target := filepath.Join(root, filepath.FromSlash(name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("illegal file path: %s", name)
		}

		switch {
		case f.IsDir():
			return os.MkdirAll(target, 0755)
		case f.Mode().IsRegular():
			return writeFile(target, f, f.Mode().Perm())
		default:
			return nil
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrExtractionFailed, err)
	}
	return nil
}

func entryName(f archiver.File) string {
	switch h := f.Header.(type) {
	case zip.FileHeader:
		return h.Name
	case *tar.Header:
		return h.Name
	default:
		return f.Name()
	}
}

func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

/**
 * Search an extracted tree for the tunnel client executable
 * @param {string} root - Extraction directory
 * @param {string} name - Executable name without suffix
 * @param {string} exeSuffix - ".exe" on windows, "" elsewhere
 * @returns {string} Path of the first match in lexical walk order
 * @returns {error} ErrExecutableNotFound when no "<name><suffix>" exists
 * @description
 * - Only the host form counts: "frpc.exe" on windows, "frpc" elsewhere
 */
func (e *Extractor) FindExecutable(root, name, exeSuffix string) (string, error) {
	want := name + exeSuffix

	var found string
	errFound := errors.New("found")
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if strings.EqualFold(d.Name(), want) {
			found = path
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", fmt.Errorf("%w: %v", models.ErrExecutableNotFound, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: %s", models.ErrExecutableNotFound, want)
	}
	return found, nil
}

/**
 * Copy the extracted executable to its stable location
 * @param {string} src - Extracted executable
 * @param {string} dst - Install path, overwritten when present
 * @returns {error} Error if the copy fails, dst is left untouched in that case
 * @description
 * - Writes a sibling temp file and renames it over dst
 * - The source is copied, never moved, so the extraction dir can be cleaned independently
 */
func (e *Extractor) Install(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create install dir: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open executable: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("copy executable: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace executable: %w", err)
	}
	return nil
}

// MakeExecutable sets 0755 on non-windows hosts. Failure is for the caller to report.
func (e *Extractor) MakeExecutable(path, goos string) error {
	if goos == "windows" {
		return nil
	}
	return os.Chmod(path, 0755)
}
