// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scidir queries the Elsevier article metadata search API for
// open-access articles of one journal and publication year, one page at a
// time.
package scidir

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/pdiddy/sd-oa-harvest/internal/httputil"
	"github.com/pdiddy/sd-oa-harvest/pkg/types"
)

// DefaultBaseURL is the article metadata search endpoint, up to the query value.
const DefaultBaseURL = "https://api.elsevier.com/content/metadata/article?query="

// DefaultPageSize is the largest count the endpoint accepts.
const DefaultPageSize = 100

// APIKeyHeader carries the credential on every request.
const APIKeyHeader = "X-ELS-APIKey"

// Client fetches search result pages.
type Client struct {
	HTTP      *http.Client
	APIKey    string
	BaseURL   string
	PageSize  int
	UserAgent string
}

// FirstPageURL builds the query selecting open-access articles of issn
// published in year, restricted to the prism:url field.
func (c *Client) FirstPageURL(issn string, year int) string {
	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	count := c.PageSize
	if count <= 0 {
		count = DefaultPageSize
	}
	return base + fmt.Sprintf("openaccess(1)+AND+issn(%s)+AND+pub-date+IS+%d&count=%d&field=prism:url",
		issn, year, count)
}

// Page is one parsed result page.
type Page struct {
	// ItemsPerPage is the result count reported by the API.
	ItemsPerPage int

	// URIs are the prism:url values in response order.
	URIs []string

	// Next is the href of the "next" link, empty on the last page.
	Next string
}

// Fetch requests url and parses the result page.
func (c *Client) Fetch(ctx context.Context, url string) (Page, error) {
	h := http.Header{}
	h.Set(APIKeyHeader, c.APIKey)
	h.Set("Accept", "application/json")
	if c.UserAgent != "" {
		h.Set("User-Agent", c.UserAgent)
	}

	body, err := httputil.Get(ctx, c.HTTP, url, h)
	if err != nil {
		return Page{}, err
	}
	return ParsePage(body)
}

// ParsePage decodes and validates a search response. Malformed JSON or a
// missing required field is an ErrTransientFetch naming the field. Entries
// and links are only consulted when itemsPerPage is positive.
func ParsePage(data []byte) (Page, error) {
	var resp searchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Page{}, fmt.Errorf("%w: parsing search response: %v", types.ErrTransientFetch, err)
	}

	sr := resp.SearchResults
	if sr == nil {
		return Page{}, missingField("search-results")
	}
	if sr.ItemsPerPage == nil {
		return Page{}, missingField("search-results.opensearch:itemsPerPage")
	}
	count, err := strconv.Atoi(strings.TrimSpace(string(*sr.ItemsPerPage)))
	if err != nil {
		return Page{}, fmt.Errorf("%w: opensearch:itemsPerPage %q is not an integer",
			types.ErrTransientFetch, string(*sr.ItemsPerPage))
	}

	page := Page{ItemsPerPage: count}
	if count <= 0 {
		return page, nil
	}

	if sr.Entries == nil {
		return Page{}, missingField("search-results.entry")
	}
	page.URIs = make([]string, 0, len(sr.Entries))
	for i, e := range sr.Entries {
		if e.URL == "" {
			return Page{}, missingField(fmt.Sprintf("search-results.entry[%d].prism:url", i))
		}
		page.URIs = append(page.URIs, e.URL)
	}

	for _, l := range sr.Links {
		if l.Ref == "next" {
			page.Next = l.Href
			break
		}
	}
	return page, nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: search response missing %s", types.ErrTransientFetch, name)
}

// Search API JSON structures.
type searchResponse struct {
	SearchResults *searchResults `json:"search-results"`
}

type searchResults struct {
	ItemsPerPage *flexInt      `json:"opensearch:itemsPerPage"`
	Entries      []searchEntry `json:"entry"`
	Links        []searchLink  `json:"link"`
}

type searchEntry struct {
	URL string `json:"prism:url"`
}

type searchLink struct {
	Ref  string `json:"@ref"`
	Href string `json:"@href"`
}

// flexInt holds a count the API sends as a JSON string ("25") or,
// occasionally, a bare number.
type flexInt string

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexInt(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("opensearch:itemsPerPage: %w", err)
	}
	*f = flexInt(n.String())
	return nil
}
