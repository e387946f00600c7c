// Copyright 2026 Aiku AI
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package goodreads implements the external book lookup: resolving a
// free-text query to a canonical Goodreads book URL and scraping the
// detail page for the cover image and title.
package goodreads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

var (
	// ErrNoResults is returned by Resolve when the provider search lists
	// no candidates. Callers treat this as a normal outcome, not a fault.
	ErrNoResults = errors.New("goodreads: no search results")

	// ErrMissingElement is returned by FetchDetail when the detail page
	// lacks the cover image or the title heading.
	ErrMissingElement = errors.New("goodreads: page is missing an expected element")
)

const (
	// DefaultSearchBaseURL is the host the search query is sent to.
	DefaultSearchBaseURL = "https://www.goodreads.com"
	// DefaultBookBaseURL is the host prefixed onto resolved detail paths.
	// Goodreads serves book pages on the bare apex as well as www.
	DefaultBookBaseURL = "https://goodreads.com"

	userAgent = "matrix-bookbot"

	fallbackMimeType = "image/jpeg"
)

// Detail holds the display fields scraped from a book's detail page.
type Detail struct {
	Title    string
	ImageURL string
}

// Client performs Goodreads searches and detail-page scrapes over plain
// HTTP GETs. It is safe for concurrent use.
type Client struct {
	searchBaseURL string
	bookBaseURL   string
	http          *http.Client
	log           zerolog.Logger
}

// NewClient creates a lookup client. Empty base URLs fall back to the
// Goodreads defaults; a nil httpClient gets a 30 second timeout.
func NewClient(searchBaseURL, bookBaseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	if searchBaseURL == "" {
		searchBaseURL = DefaultSearchBaseURL
	}
	if bookBaseURL == "" {
		bookBaseURL = DefaultBookBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		searchBaseURL: strings.TrimRight(searchBaseURL, "/"),
		bookBaseURL:   strings.TrimRight(bookBaseURL, "/"),
		http:          httpClient,
		log:           log,
	}
}

// Resolve maps a "+"-joined query string to the canonical URL of the first
// search result. Returns ErrNoResults when the search lists nothing.
func (c *Client) Resolve(ctx context.Context, query string) (string, error) {
	doc, err := c.fetchDocument(ctx, c.searchBaseURL+"/search?q="+query)
	if err != nil {
		return "", fmt.Errorf("search: %w", err)
	}
	href, ok := doc.Find("a.bookTitle").First().Attr("href")
	if !ok {
		return "", ErrNoResults
	}
	return c.bookBaseURL + trimBookPath(href), nil
}

// trimBookPath cuts a search-result href down to the canonical detail
// path: everything from the first "-" onward is a title slug, and
// everything from the first "." onward is a dotted slug variant.
func trimBookPath(href string) string {
	if i := strings.IndexByte(href, '-'); i >= 0 {
		href = href[:i]
	}
	if i := strings.IndexByte(href, '.'); i >= 0 {
		href = href[:i]
	}
	return href
}

// FetchDetail retrieves a book's detail page and extracts the cover image
// URL and the title heading text. Returns ErrMissingElement if either is
// absent from the page.
func (c *Client) FetchDetail(ctx context.Context, bookURL string) (Detail, error) {
	doc, err := c.fetchDocument(ctx, bookURL)
	if err != nil {
		return Detail{}, fmt.Errorf("detail page: %w", err)
	}
	imageURL, ok := doc.Find("img#coverImage").First().Attr("src")
	if !ok {
		return Detail{}, fmt.Errorf("%w: img#coverImage", ErrMissingElement)
	}
	title := doc.Find("h1#bookTitle").First()
	if title.Length() == 0 {
		return Detail{}, fmt.Errorf("%w: h1#bookTitle", ErrMissingElement)
	}
	return Detail{
		Title:    strings.TrimSpace(title.Text()),
		ImageURL: imageURL,
	}, nil
}

// FetchImage downloads the cover image and returns its bytes along with
// the response content type, defaulting to image/jpeg when the server
// does not say.
func (c *Client) FetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	resp, err := c.get(ctx, imageURL)
	if err != nil {
		return nil, "", fmt.Errorf("cover image: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("cover image: %w", err)
	}
	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = fallbackMimeType
	}
	return data, mimeType, nil
}

func (c *Client) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	return doc, nil
}

func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	c.log.Debug().Str("url", rawURL).Msg("GET")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: unexpected status %d", rawURL, resp.StatusCode)
	}
	return resp, nil
}
