package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"

	"kairo-keeper/internal/logger"
)

// httpClient HTTP客户端实现
type httpClient struct {
	config    *HTTPConfig
	client    *http.Client
	transport *http.Transport
	connected bool
	mu        sync.Mutex
}

/**
 * Create new HTTP client for the kairo control API
 * @param {HTTPConfig} config - HTTP client configuration, DefaultHTTPConfig() when nil
 * @returns {HTTPClient} HTTP client interface
 * @description
 * - Dials config.Network/config.Address (unix socket or tcp) for every request
 * - The connection is checked lazily on the first request
 * @example
 * client := rpc.NewHTTPClient(nil)
 * defer client.Close()
 * resp, err := client.Get(rpc.APIPrefix+"/tunnels", nil)
 */
func NewHTTPClient(config *HTTPConfig) HTTPClient {
	if config == nil {
		config = DefaultHTTPConfig()
	}

	client := &httpClient{
		config:    config,
		transport: &http.Transport{},
	}
	client.client = &http.Client{
		Transport: client.transport,
		Timeout:   config.Timeout,
	}
	return client
}

// Get 发送GET请求
func (c *httpClient) Get(path string, query url.Values) (*HTTPResponse, error) {
	return c.do(http.MethodGet, path, query, nil)
}

// Post 发送POST请求
func (c *httpClient) Post(path string, data interface{}) (*HTTPResponse, error) {
	return c.do(http.MethodPost, path, nil, data)
}

// Delete 发送DELETE请求
func (c *httpClient) Delete(path string) (*HTTPResponse, error) {
	return c.do(http.MethodDelete, path, nil, nil)
}

/**
 * Send one request to the server
 * @param {string} method - HTTP method
 * @param {string} path - API endpoint path
 * @param {url.Values} query - Query parameters, may be nil
 * @param {interface{}} data - JSON request body, may be nil
 * @returns {*HTTPResponse} Response; non-2xx statuses are reported in HTTPResponse.Error
 * @returns {error} ErrServerUnavailable when nothing answers, other errors for bad input
 */
func (c *httpClient) do(method, path string, query url.Values, data interface{}) (*HTTPResponse, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}

	target, err := buildURL(c.config.BaseURL, path, query)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}

	var body io.Reader
	if data != nil {
		payload, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize data: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	logger.Debugf("Sending %s request to %s via %s", method, target, c.config.Endpoint)

	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrServerUnavailable, method, path, err)
	}
	return readResponse(resp)
}

// Close 关闭客户端连接
func (c *httpClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		c.client.CloseIdleConnections()
	}
	c.connected = false
	logger.Debugf("HTTP client connection closed")
	return nil
}

// IsConnected 检查客户端是否已连接
func (c *httpClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

/**
 * Ensure the client can reach the server
 * @returns {error} Error if the unix socket file does not exist
 * @description
 * - For unix sockets, checks the socket file before dialing
 * - Points the transport's dialer at config.Network/config.Address
 */
func (c *httpClient) ensureConnected() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}

	network, address := c.config.Network, c.config.Address
	if network == "unix" {
		// 检查socket文件是否存在
		if _, err := os.Stat(address); os.IsNotExist(err) {
			return fmt.Errorf("%w: socket file not found at %s", ErrServerUnavailable, address)
		}
	}

	var dialer net.Dialer
	c.transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return dialer.DialContext(ctx, network, address)
	}
	c.connected = true

	logger.Debugf("Connected to HTTP server at %s://%s", network, address)
	return nil
}

// Decode unmarshals a successful response body into v.
func (r *HTTPResponse) Decode(v interface{}) error {
	if err := r.Err(); err != nil {
		return err
	}
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// Err returns the server-side error of a non-2xx response, nil otherwise.
func (r *HTTPResponse) Err() error {
	if r.StatusCode >= 200 && r.StatusCode < 300 {
		return nil
	}
	if r.Code != "" {
		return fmt.Errorf("%s (%s, HTTP %d)", r.Error, r.Code, r.StatusCode)
	}
	return fmt.Errorf("%s (HTTP %d)", r.Error, r.StatusCode)
}
