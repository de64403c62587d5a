// Package whttp fetches remote input files with retries.
package whttp

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const userAgent = "powerlole/1.0"

// MaxBodySize caps the size of a fetched file.
const MaxBodySize = 512 << 20

type WHTTPReq struct {
	URL string
}

type WHTTPRes struct {
	StatusCode int
	Body       []byte
}

// StatusError is returned by Get for a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
}

// NewClient returns a retrying client. An empty proxy means a direct
// connection.
func NewClient(proxy string, retries int) (*retryablehttp.Client, error) {
	client := retryablehttp.NewClient()
	client.Logger = log.New(io.Discard, "", 0)
	client.RetryMax = retries
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.HTTPClient.Timeout = 2 * time.Minute

	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %v", err)
		}
		client.HTTPClient.Transport = &http.Transport{
			Proxy: http.ProxyURL(proxyURL),
		}
	}
	return client, nil
}

func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (*WHTTPRes, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, wReq.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, err
	}

	return &WHTTPRes{
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

// Get fetches rawURL and fails with a *StatusError on any non-2xx status.
func Get(ctx context.Context, client *retryablehttp.Client, rawURL string) ([]byte, error) {
	res, err := SendHTTPRequest(ctx, &WHTTPReq{URL: rawURL}, client)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: res.StatusCode}
	}
	return res.Body, nil
}
