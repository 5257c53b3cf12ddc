// ABOUTME: HTTP client for the Canvas LMS API.
// ABOUTME: Handles bearer authentication, base URL resolution, errors, and Link-header pagination.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tomnomnom/linkheader"
)

const (
	defaultPollInterval = time.Second
	maxErrorBody        = 64 * 1024
)

type CanvasClient struct {
	baseURL      *url.URL
	accessToken  string
	httpClient   *http.Client
	pollInterval time.Duration
}

type ClientOption func(*CanvasClient)

// WithHTTPClient replaces the default client. The default has no overall
// timeout since attachment downloads can run for a long time.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *CanvasClient) {
		c.httpClient = hc
	}
}

// WithPollInterval sets the delay between export status polls.
func WithPollInterval(d time.Duration) ClientOption {
	return func(c *CanvasClient) {
		if d >= 0 {
			c.pollInterval = d
		}
	}
}

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("Canvas API error: %s %s: %d - %s", e.Method, e.URL, e.StatusCode, strings.TrimSpace(string(e.Body)))
}

func NewCanvasClient(baseURL, accessToken string, opts ...ClientOption) (*CanvasClient, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing API base %q: %w", baseURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("API base %q must be an absolute URL", baseURL)
	}

	c := &CanvasClient{
		baseURL:      base,
		accessToken:  accessToken,
		httpClient:   &http.Client{},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type requestOptions struct {
	header http.Header
	form   url.Values
}

func (c *CanvasClient) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// request issues an authenticated request. Caller headers in opts are applied
// after Authorization, so they win per key. The returned response body is
// unread and must be closed by the caller.
func (c *CanvasClient) request(ctx context.Context, method, path string, opts *requestOptions) (*http.Response, error) {
	fullURL, err := c.resolve(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", path, err)
	}

	var body io.Reader
	if opts != nil && opts.form != nil {
		body = strings.NewReader(opts.form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if opts != nil {
		for key, values := range opts.header {
			req.Header.Del(key)
			for _, v := range values {
				req.Header.Add(key, v)
			}
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"method": method,
		"url":    fullURL,
		"status": resp.StatusCode,
	}).Debug("Canvas request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &HTTPError{
			Method:     method,
			URL:        fullURL,
			StatusCode: resp.StatusCode,
			Body:       errBody,
		}
	}

	return resp, nil
}

func (c *CanvasClient) getJSON(ctx context.Context, path string, out any) (http.Header, error) {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

func (c *CanvasClient) doJSON(ctx context.Context, method, path string, opts *requestOptions, out any) (http.Header, error) {
	resp, err := c.request(ctx, method, path, opts)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return resp.Header, nil
}

// Courses returns every course visible to the token, in server order.
func (c *CanvasClient) Courses(ctx context.Context) ([]Course, error) {
	var courses []Course
	for course, err := range paginate[Course](ctx, c, "/api/v1/courses") {
		if err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, nil
}

// paginate yields the items of a JSON array endpoint one at a time, fetching
// the page named by the Link rel="next" entry only after the current page has
// been consumed. An error ends the sequence.
func paginate[T any](ctx context.Context, c *CanvasClient, path string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		next := path
		for next != "" {
			var page []T
			header, err := c.getJSON(ctx, next, &page)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}

			for _, item := range page {
				if !yield(item, nil) {
					return
				}
			}

			next = nextLink(header)
		}
	}
}

func nextLink(header http.Header) string {
	links := linkheader.ParseMultiple(header.Values("Link")).FilterByRel("next")
	if len(links) == 0 {
		return ""
	}
	return links[0].URL
}
