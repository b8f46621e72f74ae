package provider

import (
	"sort"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/briehq/brie"
)

// VersionExtractor pulls the release tag out of a tree entry's filename,
// e.g. stripping a "dxvk-gplasync-" prefix and ".tar.gz" suffix.
type VersionExtractor func(filename string) (string, bool)

// StripPrefixSuffix is the common extractor: strip prefix, then suffix.
func StripPrefixSuffix(prefix, suffix string) VersionExtractor {
	return func(filename string) (string, bool) {
		rest, ok := strings.CutPrefix(filename, prefix)
		if !ok {
			return "", false
		}
		rest, ok = strings.CutSuffix(rest, suffix)
		if !ok {
			return "", false
		}
		return rest, true
	}
}

// GitlabTree resolves a release by listing a project's repository tree at
// TreePath and picking one entry: for Latest, the name-ascending-sorted
// last entry; for a Tag, the entry whose name contains "<repo>-<tag>."
// (spec §4.2). No authentication is sent — GitLab calls carry no token.
type GitlabTree struct {
	Repo      Repo
	TreePath  string
	Extractor VersionExtractor

	// baseURL overrides the GitLab API base URL; only ever set by tests.
	baseURL string
}

func (p GitlabTree) Resolve(version brie.ReleaseVersion, _ Tokens) (Release, error) {
	var opts []gitlab.ClientOptionFunc
	if p.baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(p.baseURL))
	}
	client, err := gitlab.NewClient("", opts...)
	if err != nil {
		return Release{}, transportErr(err)
	}

	entries, _, err := client.Repositories.ListTree(p.Repo.String(), &gitlab.ListTreeOptions{
		Path: gitlab.Ptr(p.TreePath),
	})
	if err != nil {
		return Release{}, transportErr(err)
	}

	var chosen *gitlab.TreeNode
	switch {
	case version.IsLatest():
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		if len(entries) > 0 {
			chosen = entries[len(entries)-1]
		}
	default:
		sub := p.Repo.Name + "-" + version.Key() + "."
		for _, e := range entries {
			if strings.Contains(e.Name, sub) {
				chosen = e
				break
			}
		}
	}
	if chosen == nil {
		return Release{}, noMatch()
	}

	resolved, ok := p.Extractor(chosen.Name)
	if !ok {
		return Release{}, noMatch()
	}

	url := "https://gitlab.com/" + p.Repo.String() + "/-/raw/main/" + chosen.Path + "?ref_type=heads&inline=false"
	return Release{Version: resolved, Filename: chosen.Name, URL: url}, nil
}
