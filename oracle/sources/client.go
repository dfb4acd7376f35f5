package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const maxBodySize = 4 << 20

var (
	once       sync.Once
	httpClient *http.Client
)

func defaultClient() *http.Client {
	once.Do(func() {
		transport := new(http.Transport)
		transport.MaxIdleConns = 1000
		transport.MaxIdleConnsPerHost = 100
		transport.IdleConnTimeout = 90 * time.Second
		transport.MaxConnsPerHost = 200
		transport.WriteBufferSize = 32 * 1024
		transport.ReadBufferSize = 32 * 1024

		httpClient = new(http.Client)
		httpClient.Timeout = 30 * time.Second
		httpClient.Transport = transport
	})

	return httpClient
}

func fetchRawData(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Oracle-Relayer/1.0")
	req.Header.Set("Accept", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch raw data: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d from %s", res.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, nil
}
