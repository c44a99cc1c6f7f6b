package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tunemux/cache"
)

const userAgent = "tunemux/1.0"

// Fetcher performs provider GETs through the response cache.
type Fetcher struct {
	client *http.Client
	cache  *cache.ResponseCache
}

// NewFetcher builds a fetcher whose requests are bounded by timeout.
func NewFetcher(c *cache.ResponseCache, timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		cache:  c,
	}
}

// getJSON fetches base?params through f and decodes the body into a T. A
// cached response younger than the cache TTL is used without touching the
// network. check, when non-nil, vets the decoded payload; a body that fails to
// decode or is rejected by check is returned as an error and never cached.
func getJSON[T any](ctx context.Context, f *Fetcher, base string, params url.Values, check func(*T) error) (*T, error) {
	full, key := base, cache.Key(base, nil)
	if len(params) > 0 {
		sep := "?"
		if strings.Contains(base, "?") {
			sep = "&"
		}
		full = base + sep + params.Encode()
		key = cache.Key(base, params)
	}

	decode := func(body []byte) (*T, error) {
		v := new(T)
		if err := json.Unmarshal(body, v); err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrProvider, base, err)
		}
		if check != nil {
			if err := check(v); err != nil {
				return nil, err
			}
		}
		return v, nil
	}

	body, err := f.cache.FetchWithCache(ctx, key, func(ctx context.Context) ([]byte, error) {
		body, err := f.get(ctx, full)
		if err != nil {
			return nil, err
		}
		if _, err := decode(body); err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return decode(body)
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrProvider, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request %s: %w", ErrProvider, req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: %s returned status %d", ErrProvider, req.URL.Path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrProvider, err)
	}
	return body, nil
}
