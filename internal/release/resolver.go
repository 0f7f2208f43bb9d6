package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"kairo-keeper/internal/logger"
	"kairo-keeper/internal/models"
)

// Resolver fetches the latest release document, trying the primary feed
// before the mirror.
type Resolver struct {
	client     *http.Client
	primaryURL string
	mirrorURL  string
}

/**
 * Create a release resolver
 * @param {*http.Client} client - HTTP client, http.DefaultClient when nil
 * @param {string} primaryURL - Latest-release JSON endpoint
 * @param {string} mirrorURL - Fallback endpoint, skipped when empty
 * @returns {*Resolver} New resolver
 */
func NewResolver(client *http.Client, primaryURL, mirrorURL string) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{client: client, primaryURL: primaryURL, mirrorURL: mirrorURL}
}

/**
 * Fetch the latest release metadata
 * @param {context.Context} ctx - Cancellation signal
 * @returns {*models.Release} Parsed release
 * @returns {error} ErrMetadataUnavailable when both sources fail, ErrCancelled on cancellation
 * @description
 * - Network errors, non-2xx responses, malformed JSON and a missing tag_name
 *   all count as a failure of that source
 * - The mirror is consulted only after the primary failed
 */
func (r *Resolver) Latest(ctx context.Context) (*models.Release, error) {
	var errs []error
	for _, src := range []struct{ label, url string }{
		{"primary", r.primaryURL},
		{"mirror", r.mirrorURL},
	} {
		if src.url == "" {
			continue
		}
		rel, err := r.fetch(ctx, src.url)
		if err == nil {
			logger.Infof("Resolved release %s from %s feed", rel.TagName, src.label)
			return rel, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrCancelled, ctx.Err())
		}
		logger.Warnf("Failed to fetch release metadata from %s feed (%s): %v", src.label, src.url, err)
		errs = append(errs, fmt.Errorf("%s: %w", src.label, err))
	}
	if len(errs) == 0 {
		errs = append(errs, errors.New("no release feed configured"))
	}
	return nil, fmt.Errorf("%w: %w", models.ErrMetadataUnavailable, errors.Join(errs...))
}

func (r *Resolver) fetch(ctx context.Context, url string) (*models.Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "kairo-keeper")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	var rel models.Release
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("malformed release document: %w", err)
	}
	if rel.TagName == "" {
		return nil, errors.New("malformed release document: missing tag_name")
	}
	return &rel, nil
}
