package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/briehq/brie"
)

func TestWithSuffix(t *testing.T) {
	matcher := WithSuffix(".tar.gz")
	if !matcher("dxvk-nvapi-v0.8.tar.gz") {
		t.Error("WithSuffix(.tar.gz) rejected a matching name")
	}
	if matcher("dxvk-nvapi-v0.8.tar.xz") {
		t.Error("WithSuffix(.tar.gz) accepted a non-matching name")
	}
	if matcher("gz") {
		t.Error("WithSuffix(.tar.gz) accepted a name shorter than the suffix")
	}
}

func TestGithubReleaseResolveLatestRelease(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/doitsujin/dxvk/releases/latest" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tag_name": "v2.3",
			"assets": []map[string]interface{}{
				{"name": "dxvk-v2.3-sniper.tar.gz", "browser_download_url": "https://example.com/sniper.tar.gz"},
				{"name": "dxvk-v2.3.tar.gz", "browser_download_url": "https://example.com/dxvk-v2.3.tar.gz"},
			},
		})
	}))
	defer srv.Close()

	p := GithubRelease{
		Repo:    Repo{Owner: "doitsujin", Name: "dxvk"},
		Matcher: endsWithAndNot(".tar.gz", "sniper"),
		apiBase: srv.URL,
	}

	release, err := p.Resolve(brie.Latest, Tokens{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if release.Version != "v2.3" || release.Filename != "dxvk-v2.3.tar.gz" || release.URL != "https://example.com/dxvk-v2.3.tar.gz" {
		t.Errorf("Resolve = %+v, want the non-sniper asset", release)
	}
}

func TestGithubReleaseResolveByTag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/jp7677/dxvk-nvapi/releases/tags/v0.8.0" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tag_name": "v0.8.0",
			"assets": []map[string]interface{}{
				{"name": "dxvk-nvapi-v0.8.0.tar.gz", "browser_download_url": "https://example.com/nvapi.tar.gz"},
			},
		})
	}))
	defer srv.Close()

	p := GithubRelease{
		Repo:    Repo{Owner: "jp7677", Name: "dxvk-nvapi"},
		Matcher: WithSuffix(".tar.gz"),
		apiBase: srv.URL,
	}

	release, err := p.Resolve(brie.Tag("v0.8.0"), Tokens{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if release.Filename != "dxvk-nvapi-v0.8.0.tar.gz" {
		t.Errorf("Filename = %q, want dxvk-nvapi-v0.8.0.tar.gz", release.Filename)
	}
}

func TestGithubReleaseResolveNoMatchingAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"tag_name": "v2.3",
			"assets": []map[string]interface{}{
				{"name": "dxvk-v2.3.tar.xz", "browser_download_url": "https://example.com/dxvk-v2.3.tar.xz"},
			},
		})
	}))
	defer srv.Close()

	p := GithubRelease{Repo: Repo{Owner: "doitsujin", Name: "dxvk"}, Matcher: WithSuffix(".tar.gz"), apiBase: srv.URL}
	_, err := p.Resolve(brie.Latest, Tokens{})
	perr, ok := err.(*Error)
	if !ok || perr.Kind != ErrNoMatchingAsset {
		t.Fatalf("Resolve err = %v, want *Error{Kind: ErrNoMatchingAsset}", err)
	}
}

func TestGithubWorkflowArtifactResolveLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/repos/Frogging-Family/wine-tkg-git/actions/workflows/11219483/runs":
			if got := r.URL.Query().Get("status"); got != "success" {
				t.Errorf("status query = %q, want success", got)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"workflow_runs": []map[string]interface{}{{"id": 999}},
			})
		case "/repos/Frogging-Family/wine-tkg-git/actions/runs/999/artifacts":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"artifacts": []map[string]interface{}{
					{"name": "wine-tkg-git-9.0-wine-tkg-build", "archive_download_url": "https://example.com/art.zip"},
				},
			})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	p := GithubWorkflowArtifact{
		Repo:       Repo{Owner: "Frogging-Family", Name: "wine-tkg-git"},
		WorkflowID: 11219483,
		Matcher:    WithSuffix("wine-tkg-build"),
		apiBase:    srv.URL,
	}

	release, err := p.Resolve(brie.Latest, Tokens{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if release.Version != "999" || release.URL != "https://example.com/art.zip" {
		t.Errorf("Resolve = %+v, want run 999's matching artifact", release)
	}
}

func TestGithubWorkflowArtifactResolveNoSuccessfulRuns(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"workflow_runs": []map[string]interface{}{}})
	}))
	defer srv.Close()

	p := GithubWorkflowArtifact{Repo: Repo{Owner: "a", Name: "b"}, WorkflowID: 1, Matcher: WithSuffix("x"), apiBase: srv.URL}
	_, err := p.Resolve(brie.Latest, Tokens{})
	perr, ok := err.(*Error)
	if !ok || perr.Kind != ErrNoMatchingAsset {
		t.Fatalf("Resolve err = %v, want *Error{Kind: ErrNoMatchingAsset}", err)
	}
}
