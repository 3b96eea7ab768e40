package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/segmentio/encoding/json"
	"traderhub.com/internal/market/provider"
)

const maxBody = 4 << 20

// Client 共享的 http client；每次请求的超时由 chain member 的 ctx 决定，
// http.Client 不设 Timeout，否则会压住比它长的 member 超时
type Client struct {
	HTTP      *http.Client
	UserAgent string
	// Fallback ctx 没有 deadline 时才用
	Fallback time.Duration
}

func NewClient(fallback time.Duration) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
	}
	return &Client{
		HTTP:      &http.Client{Transport: transport},
		UserAgent: "Mozilla/5.0 (compatible; market-hub/1.0)",
		Fallback:  fallback,
	}
}

// getJSON GET + 解码；非 2xx 归为 ErrProviderFailed，解码失败归为 ErrMalformedResponse
func (c *Client) getJSON(ctx context.Context, rawURL string, query url.Values, headers map[string]string, out any) error {
	if _, ok := ctx.Deadline(); !ok && c.Fallback > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Fallback)
		defer cancel()
	}
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", provider.ErrProviderFailed, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return fmt.Errorf("%w: %w", provider.ErrProviderTimeout, context.DeadlineExceeded)
		}
		return fmt.Errorf("%w: %v", provider.ErrProviderFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return provider.StatusError(resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", provider.ErrProviderFailed, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return provider.Malformed(err)
	}
	return nil
}

func errMissing(field string) error {
	return fmt.Errorf("missing field %q", field)
}
