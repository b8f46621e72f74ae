package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	gogithub "github.com/google/go-github/v27/github"
	"golang.org/x/oauth2"

	"github.com/briehq/brie"
	"github.com/briehq/brie/internal/download"
)

const defaultGithubAPIBase = "https://api.github.com"

// AssetMatcher selects the one release asset (or workflow artifact) a
// library cares about out of a release's full list.
type AssetMatcher func(name string) bool

// WithSuffix is the common "asset name ends with this suffix" matcher used
// by every GitHub-Releases-backed library (spec §4.2 table).
func WithSuffix(suffix string) AssetMatcher {
	return func(name string) bool { return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix }
}

func githubClient(token string) *gogithub.Client {
	if token == "" {
		return gogithub.NewClient(nil)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return gogithub.NewClient(oauth2.NewClient(context.Background(), ts))
}

// GithubRelease resolves a release via the GitHub Releases API
// (/repos/{owner}/{repo}/releases/{latest|tags/<tag>}).
type GithubRelease struct {
	Repo    Repo
	Matcher AssetMatcher

	// apiBase overrides the GitHub API base URL; only ever set by tests,
	// which point it at an httptest.Server instead of api.github.com.
	apiBase string
}

func (p GithubRelease) Resolve(version brie.ReleaseVersion, tokens Tokens) (Release, error) {
	client := githubClient(tokens.GitHub)
	if p.apiBase != "" {
		u, err := url.Parse(strings.TrimSuffix(p.apiBase, "/") + "/")
		if err != nil {
			return Release{}, transportErr(err)
		}
		client.BaseURL = u
	}
	ctx := context.Background()

	var (
		release *gogithub.RepositoryRelease
		err     error
	)
	if version.IsLatest() {
		release, _, err = client.Repositories.GetLatestRelease(ctx, p.Repo.Owner, p.Repo.Name)
	} else {
		release, _, err = client.Repositories.GetReleaseByTag(ctx, p.Repo.Owner, p.Repo.Name, version.Key())
	}
	if err != nil {
		return Release{}, transportErr(err)
	}

	for _, asset := range release.Assets {
		if asset.Name == nil || !p.Matcher(*asset.Name) {
			continue
		}
		return Release{
			Version:  release.GetTagName(),
			Filename: asset.GetName(),
			URL:      asset.GetBrowserDownloadURL(),
		}, nil
	}
	return Release{}, noMatch()
}

// ghWorkflowRuns and ghArtifacts mirror the two GitHub Actions endpoints
// used by GithubWorkflowArtifact. go-github v27 predates the Actions API,
// so these two calls are made directly against the REST API with the
// shared download.Client (spec §4.2).
type ghWorkflowRuns struct {
	WorkflowRuns []struct {
		ID int64 `json:"id"`
	} `json:"workflow_runs"`
}

type ghArtifacts struct {
	Artifacts []struct {
		Name               string `json:"name"`
		ArchiveDownloadURL string `json:"archive_download_url"`
	} `json:"artifacts"`
}

// GithubWorkflowArtifact resolves a release via a GitHub Actions workflow
// run's artifacts. For Latest, the most recent successful run of
// WorkflowID is used; for a Tag, the tag is treated as a literal run ID
// (spec §4.2).
type GithubWorkflowArtifact struct {
	Repo       Repo
	WorkflowID int64
	Matcher    AssetMatcher

	// apiBase overrides the GitHub API base URL; only ever set by tests.
	apiBase string
}

func (p GithubWorkflowArtifact) base() string {
	if p.apiBase != "" {
		return strings.TrimSuffix(p.apiBase, "/")
	}
	return defaultGithubAPIBase
}

func (p GithubWorkflowArtifact) Resolve(version brie.ReleaseVersion, tokens Tokens) (Release, error) {
	client := download.New()

	runID := version.Key()
	if version.IsLatest() {
		url := p.base() + "/repos/" + p.Repo.String() +
			"/actions/workflows/" + itoa(p.WorkflowID) + "/runs?status=success&per_page=1"
		var runs ghWorkflowRuns
		if err := p.getJSON(client, url, tokens.GitHub, &runs); err != nil {
			return Release{}, err
		}
		if len(runs.WorkflowRuns) == 0 {
			return Release{}, noMatch()
		}
		runID = itoa(runs.WorkflowRuns[0].ID)
	}

	url := p.base() + "/repos/" + p.Repo.String() + "/actions/runs/" + runID + "/artifacts"
	var artifacts ghArtifacts
	if err := p.getJSON(client, url, tokens.GitHub, &artifacts); err != nil {
		return Release{}, err
	}

	for _, a := range artifacts.Artifacts {
		if !p.Matcher(a.Name) {
			continue
		}
		// archive_download_url always serves a zip; the suffix routes it to
		// archive.Unpack's zip branch.
		return Release{Version: runID, Filename: a.Name + ".zip", URL: a.ArchiveDownloadURL}, nil
	}
	return Release{}, noMatch()
}

func (p GithubWorkflowArtifact) getJSON(client *download.Client, url, token string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return transportErr(err)
	}
	req.Header.Set("User-Agent", download.UserAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.HTTP.Do(req)
	if err != nil {
		return transportErr(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return transportErr(errStatus(resp.StatusCode, url))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return parseErr(err)
	}
	return nil
}
