// Package download is the process-wide HTTP GET client every other
// component fetches bytes through: release metadata, archives, the
// auxiliary winetricks/cabextract tools (spec.md §4.1).
package download

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// UserAgent is sent on every request the core makes, per spec §6.
const UserAgent = "github.com/nikarh/brie"

// Client is a thin wrapper around http.Client fixing the user-agent and
// exposing a streaming Get. There are no retries and no extra redirect
// handling beyond net/http's defaults — spec §5 explicitly rules out
// per-operation timeouts and cancellation here.
type Client struct {
	HTTP *http.Client
}

// New returns a Client using http.DefaultTransport. The TLS context is
// initialized lazily by the standard library on first use, matching
// spec §4.1's "TLS context initialized lazily once".
func New() *Client {
	return &Client{HTTP: http.DefaultClient}
}

// Stream is a GET response: a streaming body and, if the server sent
// Content-Length, its size.
type Stream struct {
	Body          io.ReadCloser
	ContentLength int64 // -1 if unknown
}

// Get issues a GET to url with the fixed User-Agent. If auth is non-empty
// and url targets a github.com host, an "Authorization: Bearer <auth>"
// header is attached (spec §6 — GitLab calls never carry a token).
// Ownership of the response body transfers to the caller, who must Close
// it.
func (c *Client) Get(url, auth string) (*Stream, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	if auth != "" && isGithubHost(req.URL.Host) {
		req.Header.Set("Authorization", "Bearer "+auth)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}

	return &Stream{Body: resp.Body, ContentLength: resp.ContentLength}, nil
}

func isGithubHost(host string) bool {
	return host == "github.com" || strings.HasSuffix(host, ".github.com")
}
