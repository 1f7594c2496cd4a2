// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package version checks GitHub for newer sweeparr releases.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	goversion "github.com/hashicorp/go-version"
	"github.com/pkg/errors"

	"github.com/autobrr/sweeparr/pkg/httphelpers"
)

// Release is a GitHub release as returned by the releases API.
type Release struct {
	ID          int64     `json:"id,omitempty"`
	TagName     string    `json:"tag_name"`
	Name        *string   `json:"name,omitempty"`
	Body        *string   `json:"body,omitempty"`
	HTMLURL     string    `json:"html_url,omitempty"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	Draft       bool      `json:"draft,omitempty"`
	Prerelease  bool      `json:"prerelease,omitempty"`
	Assets      []Asset   `json:"assets,omitempty"`
}

// Asset is a downloadable artifact attached to a Release.
type Asset struct {
	ID                 int64  `json:"id,omitempty"`
	Name               string `json:"name,omitempty"`
	ContentType        string `json:"content_type,omitempty"`
	State              string `json:"state,omitempty"`
	Size               int64  `json:"size,omitempty"`
	DownloadCount      int64  `json:"download_count,omitempty"`
	BrowserDownloadURL string `json:"browser_download_url,omitempty"`
}

// Checker queries the GitHub releases API for a single repository.
type Checker struct {
	Owner     string
	Repo      string
	UserAgent string

	httpClient *http.Client
}

func NewChecker(owner, repo, userAgent string) *Checker {
	return &Checker{
		Owner:     owner,
		Repo:      repo,
		UserAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CheckNewVersion reports whether the repository has a release newer than
// currentVersion, returning the release when one exists. Development builds
// never report updates.
func (c *Checker) CheckNewVersion(ctx context.Context, currentVersion string) (bool, *Release, error) {
	if isDevelop(currentVersion) {
		return false, nil, nil
	}

	release, err := c.getLatestRelease(ctx)
	if err != nil {
		return false, nil, err
	}

	return c.compareVersions(currentVersion, release)
}

func (c *Checker) getLatestRelease(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/latest", c.Owner, c.Repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "could not build release request")
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "could not fetch latest release for %s/%s", c.Owner, c.Repo)
	}
	defer httphelpers.DrainAndClose(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %d fetching latest release for %s/%s", resp.StatusCode, c.Owner, c.Repo)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, errors.Wrap(err, "could not decode release response")
	}

	return &release, nil
}

func (c *Checker) compareVersions(currentVersion string, release *Release) (bool, *Release, error) {
	current, err := goversion.NewVersion(currentVersion)
	if err != nil {
		return false, nil, errors.Wrapf(err, "could not parse current version %q", currentVersion)
	}

	candidate, err := goversion.NewVersion(release.TagName)
	if err != nil {
		return false, nil, errors.Wrapf(err, "could not parse release tag %q", release.TagName)
	}

	// Stable installs never upgrade onto prerelease tags.
	if current.Prerelease() == "" && candidate.Prerelease() != "" {
		return false, nil, nil
	}

	if candidate.GreaterThan(current) {
		return true, release, nil
	}

	return false, nil, nil
}

func isDevelop(version string) bool {
	if version == "" {
		return true
	}

	switch version {
	case "dev", "develop", "main", "latest":
		return true
	}

	if strings.HasPrefix(version, "pr-") {
		return true
	}

	return strings.HasSuffix(version, "-dev") || strings.HasSuffix(version, "-develop")
}
