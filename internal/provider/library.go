package provider

import (
	"strings"

	"github.com/briehq/brie"
)

// Route is the fixed per-library mapping to a Resolver, per spec.md §4.2's
// table; the two runtimes use WineGeResolver and WineTkgResolver instead. One Resolver value is constructed per downloadable
// thing; it has no mutable state and is safe to reuse across launches.
func Route(l brie.Library) Resolver {
	switch l {
	case brie.Dxvk:
		return GithubRelease{
			Repo:    Repo{Owner: "doitsujin", Name: "dxvk"},
			Matcher: endsWithAndNot(".tar.gz", "sniper"),
		}
	case brie.DxvkGplAsync:
		return GitlabTree{
			Repo:      Repo{Owner: "Ph42oN", Name: "dxvk-gplasync"},
			TreePath:  "releases",
			Extractor: StripPrefixSuffix("dxvk-gplasync-", ".tar.gz"),
		}
	case brie.DxvkNvapi:
		return GithubRelease{
			Repo:    Repo{Owner: "jp7677", Name: "dxvk-nvapi"},
			Matcher: WithSuffix(".tar.gz"),
		}
	case brie.Vkd3dProton:
		return GithubRelease{
			Repo:    Repo{Owner: "HansKristian-Work", Name: "vkd3d-proton"},
			Matcher: WithSuffix(".tar.zst"),
		}
	case brie.NvidiaLibs:
		return GithubRelease{
			Repo:    Repo{Owner: "SveSop", Name: "nvidia-libs"},
			Matcher: WithSuffix(".tar.xz"),
		}
	default:
		panic("provider: unknown library")
	}
}

// Substring is the expected-parent-directory-name substring used when
// flattening a single-wrapped-directory archive (cache.Ensure). It is always
// the library's own cache name; wine-ge-custom, whose release archives wrap
// a "GE-Proton-…" directory, is not a brie.Library and uses WineGeSubstring.
func Substring(l brie.Library) string { return l.Name() }

// WineGeName and WineTkgName are the cache keys for the two runtime
// downloads that aren't brie.Library values (they're Runtime selectors,
// not DLL bundles installed into a prefix).
const (
	WineGeName        = "wine-ge-custom"
	WineGeSubstring   = "GE-Proton"
	WineTkgName       = "wine-tkg-git"
	wineTkgWorkflowID = 11219483
)

// WineGeResolver resolves the GloriousEggroll/wine-ge-custom GitHub
// Release matching the runtime matrix in spec §4.2.
func WineGeResolver() Resolver {
	return GithubRelease{
		Repo:    Repo{Owner: "GloriousEggroll", Name: "wine-ge-custom"},
		Matcher: WithSuffix(".tar.xz"),
	}
}

// WineTkgResolver resolves the Frogging-Family/wine-tkg-git workflow
// artifact matching the runtime matrix in spec §4.2.
func WineTkgResolver() Resolver {
	return GithubWorkflowArtifact{
		Repo:       Repo{Owner: "Frogging-Family", Name: "wine-tkg-git"},
		WorkflowID: wineTkgWorkflowID,
		Matcher:    WithSuffix("wine-tkg-build"),
	}
}

func endsWithAndNot(suffix, excludeSubstring string) AssetMatcher {
	hasSuffix := WithSuffix(suffix)
	return func(name string) bool {
		return hasSuffix(name) && !strings.Contains(name, excludeSubstring)
	}
}
