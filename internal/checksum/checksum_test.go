package checksum

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kairo-keeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
const emptyMD5 = "d41d8cd98f00b204e9800998ecf8427e"

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		fileName string
		want     models.ChecksumEntry
		found    bool
	}{
		{
			name:  "sha256_with_name",
			text:  emptySHA256 + "  filename\n",
			want:  models.ChecksumEntry{Algorithm: models.SHA256, HexDigest: emptySHA256},
			found: true,
		},
		{
			name:  "bare_md5",
			text:  emptyMD5,
			want:  models.ChecksumEntry{Algorithm: models.MD5, HexDigest: emptyMD5},
			found: true,
		},
		{
			name:  "sha256_preferred_over_earlier_md5",
			text:  emptyMD5 + "  a\n" + emptySHA256 + "  a\n",
			want:  models.ChecksumEntry{Algorithm: models.SHA256, HexDigest: emptySHA256},
			found: true,
		},
		{
			name:  "uppercase_is_normalized",
			text:  strings.ToUpper(emptySHA256),
			want:  models.ChecksumEntry{Algorithm: models.SHA256, HexDigest: emptySHA256},
			found: true,
		},
		{
			name:  "no_digest",
			text:  "# checksums\nnot-a-digest file\n",
			found: false,
		},
		{
			name:     "picks_named_line",
			text:     strings.Repeat("a", 64) + "  other.tar.gz\n" + emptySHA256 + " *frp.tar.gz\n",
			fileName: "frp.tar.gz",
			want:     models.ChecksumEntry{Algorithm: models.SHA256, HexDigest: emptySHA256},
			found:    true,
		},
		{
			name:     "falls_back_when_no_line_names_file",
			text:     emptySHA256 + "  something-else\n",
			fileName: "frp.tar.gz",
			want:     models.ChecksumEntry{Algorithm: models.SHA256, HexDigest: emptySHA256},
			found:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Parse(tt.text, tt.fileName)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.bin")
	require.NoError(t, os.WriteFile(empty, nil, 0644))

	entry, ok := Parse(emptySHA256+"  filename", "")
	require.True(t, ok)
	assert.NoError(t, Verify(empty, entry))

	md5Entry, ok := Parse(emptyMD5, "")
	require.True(t, ok)
	assert.NoError(t, Verify(empty, md5Entry))

	// a single byte changes the digest
	require.NoError(t, os.WriteFile(empty, []byte{0}, 0644))
	err := Verify(empty, entry)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrChecksumMismatch))
}

func TestVerifyMissingFile(t *testing.T) {
	err := Verify(filepath.Join(t.TempDir(), "missing"), models.ChecksumEntry{Algorithm: models.SHA256, HexDigest: emptySHA256})
	require.Error(t, err)
	assert.False(t, errors.Is(err, models.ErrChecksumMismatch))
}
