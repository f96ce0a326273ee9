package zendesk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const apiPrefix = "/api/v2"

// SearchPage is one page of search results.
type SearchPage struct {
	Results []TicketRecord `json:"results"`
	// NextPage is the absolute URL of the following page, empty on the last page.
	NextPage string `json:"next_page"`
	Count    int    `json:"count"`
}

// Search runs query and returns the first page of results.
func (c *Client) Search(ctx context.Context, query string) (*SearchPage, error) {
	path := "/search.json?" + url.Values{"query": {query}}.Encode()
	return c.SearchNext(ctx, path)
}

// SearchNext fetches a follow-up page. path is relative to the base URL, as
// produced by RelativePath.
func (c *Client) SearchNext(ctx context.Context, path string) (*SearchPage, error) {
	var page SearchPage
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// RelativePath converts the absolute next_page URL returned by the API into
// a path relative to the client's base URL: the host and the /api/v2 prefix
// are dropped and the query string is preserved.
func RelativePath(next string) (string, error) {
	if strings.TrimSpace(next) == "" {
		return "", nil
	}
	parsed, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("zendesk: parsing next page %q: %w", next, err)
	}
	path := parsed.Path
	if strings.HasPrefix(path, apiPrefix) {
		path = strings.TrimPrefix(path, apiPrefix)
	}
	if path == "" {
		return "", fmt.Errorf("zendesk: next page %q has no path", next)
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return path, nil
}
