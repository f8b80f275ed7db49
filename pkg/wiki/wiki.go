package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultEndpoint = "https://{lang}.wikipedia.org/w/api.php"

// LookupResult is the outcome of one article lookup against the verification
// source. Exists is false when no article matches the name. When the name
// lands on a disambiguation page, IsDisambiguation is true and
// DisambiguationOptions lists the linked candidate titles.
type LookupResult struct {
	Exists                bool
	IsDisambiguation      bool
	WikibaseItem          string
	Title                 string
	URL                   string
	PageID                string
	Extract               string
	DisambiguationOptions []string
}

// Client looks up articles on the MediaWiki action API. One lookup is one
// HTTP round trip; the configured timeout bounds each call.
type Client struct {
	endpoint   string
	userAgent  string
	httpClient *http.Client
}

// NewClientParams configures a Client. Endpoint may contain a "{lang}"
// placeholder substituted with the request language; when empty the public
// Wikipedia endpoint is used.
type NewClientParams struct {
	Endpoint  string
	UserAgent string
	Timeout   time.Duration
}

// NewClient creates a verification-source client.
func NewClient(params NewClientParams) *Client {
	endpoint := params.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	userAgent := params.UserAgent
	if userAgent == "" {
		userAgent = "chronicle-backend/1.0"
	}
	return &Client{
		endpoint:   endpoint,
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// queryResponse matches the action API's formatversion=2 shape: pages come
// as an array and the missing flag is a real boolean. Formatversion 1 would
// key pages by id and serialize missing as "", so every request must pin
// formatversion=2.
type queryResponse struct {
	Query struct {
		Pages []queryPage `json:"pages"`
	} `json:"query"`
}

type queryPage struct {
	PageID    int64  `json:"pageid"`
	Title     string `json:"title"`
	Missing   bool   `json:"missing"`
	FullURL   string `json:"fullurl"`
	Extract   string `json:"extract"`
	PageProps struct {
		WikibaseItem   string  `json:"wikibase_item"`
		Disambiguation *string `json:"disambiguation,omitempty"`
	} `json:"pageprops"`
	Links []struct {
		Title string `json:"title"`
	} `json:"links"`
}

// Lookup resolves a free-text name in the given language to an article.
// A missing article yields Exists=false with a nil error; network and decode
// failures yield an error.
func (c *Client) Lookup(ctx context.Context, name, language string) (*LookupResult, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("lookup name is empty")
	}
	if language == "" {
		language = "en"
	}

	endpoint := strings.ReplaceAll(c.endpoint, "{lang}", language)

	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("formatversion", "2")
	params.Set("redirects", "1")
	params.Set("titles", name)
	params.Set("prop", "pageprops|extracts|info|links")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("inprop", "url")
	params.Set("pllimit", "20")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wiki lookup failed: status %d", res.StatusCode)
	}

	data := new(queryResponse)
	if err := json.NewDecoder(res.Body).Decode(data); err != nil {
		return nil, fmt.Errorf("failed to decode wiki response: %w", err)
	}

	// A well-formed single-title query returns exactly one page; missing
	// titles come back as a page entry flagged missing.
	for _, page := range data.Query.Pages {
		if page.Missing {
			return &LookupResult{Exists: false}, nil
		}

		result := &LookupResult{
			Exists:           true,
			IsDisambiguation: page.PageProps.Disambiguation != nil,
			WikibaseItem:     page.PageProps.WikibaseItem,
			Title:            page.Title,
			URL:              page.FullURL,
			PageID:           strconv.FormatInt(page.PageID, 10),
			Extract:          page.Extract,
		}
		if result.IsDisambiguation {
			for _, link := range page.Links {
				result.DisambiguationOptions = append(result.DisambiguationOptions, link.Title)
			}
		}
		return result, nil
	}

	return &LookupResult{Exists: false}, nil
}
