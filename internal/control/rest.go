package control

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// RESTConfig contains HTTP API client configuration
type RESTConfig struct {
	Host    string
	Timeout time.Duration
}

// RESTClient drives the streams through the machine's HTTP API instead of
// the raw command port. Newer firmware exposes POST and DELETE on
// /v1/streams/{video,audio}; the duration parameter of the binary
// protocol has no HTTP equivalent and is ignored.
type RESTClient struct {
	config     RESTConfig
	httpClient *http.Client
}

// NewRESTClient creates an HTTP API client for the machine at config.Host.
func NewRESTClient(config RESTConfig) (*RESTClient, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("host cannot be empty")
	}

	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	httpClient := &http.Client{
		Timeout: config.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:    2,
			IdleConnTimeout: 30 * time.Second,
		},
	}

	return &RESTClient{
		config:     config,
		httpClient: httpClient,
	}, nil
}

// StartStream starts the given stream toward ip:port via POST.
func (c *RESTClient) StartStream(ctx context.Context, stream StreamID, ip string, port int, duration uint16) error {
	target := net.JoinHostPort(ip, strconv.Itoa(port))
	endpoint := c.streamURL(stream) + "?ip=" + url.QueryEscape(target)

	if err := c.doRequest(ctx, http.MethodPost, endpoint); err != nil {
		return fmt.Errorf("failed to start %s stream: %w", stream, err)
	}
	return nil
}

// StopStream stops the given stream via DELETE.
func (c *RESTClient) StopStream(ctx context.Context, stream StreamID) error {
	if err := c.doRequest(ctx, http.MethodDelete, c.streamURL(stream)); err != nil {
		return fmt.Errorf("failed to stop %s stream: %w", stream, err)
	}
	return nil
}

func (c *RESTClient) streamURL(stream StreamID) string {
	return fmt.Sprintf("http://%s/v1/streams/%s", c.config.Host, stream)
}

// doRequest performs a single HTTP request, no body, no retries.
func (c *RESTClient) doRequest(ctx context.Context, method, endpoint string) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
