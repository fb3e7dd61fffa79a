// Package plex answers whether a title is already in the Plex library.
package plex

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// MediaType is the Plex metadata type of a search hit
type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeShow  MediaType = "show"
)

const (
	defaultTimeout = 10 * time.Second
	productName    = "requestarr"
	productVersion = "v2.0"
)

// Client queries a Plex Media Server
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithTimeout sets the per-call timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithToken sets the X-Plex-Token sent with each call
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Plex client. It does not contact the server.
func NewClient(baseURL string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("plex URL is required")
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// mediaContainer is the root of a Plex XML reply. Movies come back as Video
// elements, shows as Directory elements.
type mediaContainer struct {
	XMLName     xml.Name      `xml:"MediaContainer"`
	Videos      []SearchEntry `xml:"Video"`
	Directories []SearchEntry `xml:"Directory"`
}

// SearchEntry is one search hit
type SearchEntry struct {
	Title string `xml:"title,attr"`
	Year  string `xml:"year,attr"`
	Type  string `xml:"type,attr"`
}

// Matches reports an exact title, year and type match
func (e SearchEntry) Matches(kind MediaType, title, year string) bool {
	return e.Title == title && e.Year == year && e.Type == string(kind)
}

// IsAvailable reports whether the library holds a title of the given kind
// and release year. Errors wrap ErrUnavailable and carry no availability
// information.
func (c *Client) IsAvailable(ctx context.Context, kind MediaType, title, year string) (bool, error) {
	entries, err := c.Search(ctx, title)
	if err != nil {
		return false, err
	}

	for _, entry := range entries {
		if entry.Matches(kind, title, year) {
			c.logger.Debug().
				Str("title", title).
				Str("year", year).
				Str("type", string(kind)).
				Msg("Title found in Plex library")
			return true, nil
		}
	}
	return false, nil
}

// Search runs a library search and returns every hit
func (c *Client) Search(ctx context.Context, query string) ([]SearchEntry, error) {
	params := url.Values{}
	params.Set("query", query)

	body, err := c.doRequest(ctx, "/search", params)
	if err != nil {
		return nil, err
	}

	var container mediaContainer
	if err := xml.Unmarshal(body, &container); err != nil {
		return nil, fmt.Errorf("%w: parse search response: %v", ErrUnavailable, err)
	}

	entries := make([]SearchEntry, 0, len(container.Videos)+len(container.Directories))
	entries = append(entries, container.Videos...)
	entries = append(entries, container.Directories...)
	return entries, nil
}

// Ping checks that the server answers
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, "/identity", nil)
	return err
}

// doRequest performs a GET with the Plex client headers
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	requestURL := c.baseURL + endpoint
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrUnavailable, err)
	}

	req.Header.Set("Accept", "application/xml")
	req.Header.Set("X-Plex-Product", productName)
	req.Header.Set("X-Plex-Version", productVersion)
	if c.token != "" {
		req.Header.Set("X-Plex-Token", c.token)
	}

	c.logger.Debug().Str("endpoint", endpoint).Msg("Making Plex API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(body)}
		if apiErr.IsUnauthorized() {
			c.logger.Warn().
				Int("status", resp.StatusCode).
				Bool("token_set", c.token != "").
				Msg("Plex refused the request; check plex.token")
		}
		return nil, apiErr
	}

	return body, nil
}
