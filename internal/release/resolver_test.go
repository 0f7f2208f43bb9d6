package release

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"kairo-keeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const releaseJSON = `{
  "tag_name": "v0.51.3-2",
  "name": "frp 0.51.3",
  "assets": [
    {"name": "frp-0.51.3_linux_amd64.tar.gz", "browser_download_url": "https://example.invalid/a.tar.gz"}
  ]
}`

func TestResolverPrimary(t *testing.T) {
	var mirrorHits int
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(releaseJSON))
	}))
	defer primary.Close()
	mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mirrorHits++
	}))
	defer mirror.Close()

	rel, err := NewResolver(nil, primary.URL, mirror.URL).Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "v0.51.3-2", rel.TagName)
	assert.Equal(t, "frp 0.51.3", rel.Name)
	require.Len(t, rel.Assets, 1)
	assert.Equal(t, "https://example.invalid/a.tar.gz", rel.Assets[0].BrowserDownloadUrl)
	assert.Zero(t, mirrorHits)
}

func TestResolverFallsBackToMirror(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server_error", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"malformed_json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"tag_name":`))
		}},
		{"missing_tag", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"assets": []}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			primary := httptest.NewServer(tt.handler)
			defer primary.Close()
			mirror := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(releaseJSON))
			}))
			defer mirror.Close()

			rel, err := NewResolver(nil, primary.URL, mirror.URL).Latest(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "v0.51.3-2", rel.TagName)
		})
	}
}

func TestResolverMetadataUnavailable(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()

	_, err := NewResolver(nil, failing.URL, failing.URL).Latest(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrMetadataUnavailable))
}

func TestResolverCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewResolver(nil, srv.URL, srv.URL).Latest(ctx)
	assert.True(t, errors.Is(err, models.ErrCancelled))
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"v0.51.3-2", "0.51.3"},
		{"v1.2.3-240715", "1.2.3"},
		{"v0.61.0", "0.61.0"},
		{"0.61.0", "0.61.0"},
		{"nightly", "nightly"},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseVersion(tt.tag))
		})
	}
}

func TestIsNewer(t *testing.T) {
	assert.True(t, IsNewer("", "0.51.3"))
	assert.True(t, IsNewer("0.51.2", "0.51.3"))
	assert.False(t, IsNewer("0.51.3", "0.51.3"))
	assert.False(t, IsNewer("0.52.0", "0.51.3"))
	assert.True(t, IsNewer("nightly-a", "nightly-b"))
}
