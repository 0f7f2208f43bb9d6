package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"kairo-keeper/internal/config"
	"kairo-keeper/internal/env"
	"kairo-keeper/internal/models"
)

const (
	APIPrefix      = "/kairo/api/v1"
	DefaultTimeout = 5 * time.Second
)

// ErrServerUnavailable means no kairo server answered on any control endpoint.
var ErrServerUnavailable = errors.New("kairo server is not reachable")

// HTTPClient 定义HTTP客户端接口
type HTTPClient interface {
	Get(path string, query url.Values) (*HTTPResponse, error)
	Post(path string, data interface{}) (*HTTPResponse, error)
	Delete(path string) (*HTTPResponse, error)
	Close() error
}

// Endpoint is one address the control API is served on.
type Endpoint struct {
	Network string // unix, tcp
	Address string
}

func (e Endpoint) String() string {
	return e.Network + "://" + e.Address
}

// HTTPConfig 定义HTTP客户端配置
type HTTPConfig struct {
	Endpoint
	Timeout time.Duration
	BaseURL string
}

/**
 * Control endpoints of the kairo server, in the order clients try them
 * @param {*config.AppConfig} cfg - Application configuration
 * @returns {[]Endpoint} Unix socket (where supported), then the TCP address
 * @description
 * - The socket lives at <KairoDir>/run/<server.socket>
 * - An empty server.address disables the TCP endpoint
 */
func Endpoints(cfg *config.AppConfig) []Endpoint {
	var eps []Endpoint
	if unixSocketSupported() {
		eps = append(eps, Endpoint{Network: "unix", Address: getSocketPath(cfg.Server.Socket, "")})
	}
	if cfg.Server.Address != "" {
		eps = append(eps, Endpoint{Network: "tcp", Address: cfg.Server.Address})
	}
	return eps
}

// DefaultHTTPConfig uses the socket when its file exists, the TCP address otherwise.
func DefaultHTTPConfig() *HTTPConfig {
	c := &HTTPConfig{
		Endpoint: Endpoint{Network: "tcp", Address: "127.0.0.1:8999"},
		Timeout:  DefaultTimeout,
		BaseURL:  "http://localhost",
	}
	eps := Endpoints(config.App())
	for _, ep := range eps {
		if ep.Network == "unix" {
			if _, err := os.Stat(ep.Address); err != nil {
				continue
			}
		}
		c.Endpoint = ep
		return c
	}
	if len(eps) > 0 {
		c.Endpoint = eps[len(eps)-1]
	}
	return c
}

// HTTPResponse 定义HTTP响应结构
type HTTPResponse struct {
	StatusCode int         `json:"status_code"`
	Headers    http.Header `json:"headers"`
	Body       []byte      `json:"body"`
	Error      string      `json:"error"`
	Code       string      `json:"code"`
}

func buildURL(baseURL, path string, query url.Values) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// readResponse 读取响应, 非2xx时解析models.ErrorResponse
func readResponse(resp *http.Response) (*HTTPResponse, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	r := &HTTPResponse{StatusCode: resp.StatusCode, Headers: resp.Header, Body: body}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return r, nil
	}

	var errBody models.ErrorResponse
	if len(body) > 0 && json.Unmarshal(body, &errBody) == nil {
		r.Error, r.Code = errBody.Error, errBody.Code
	}
	if r.Error == "" {
		r.Error = resp.Status
	}
	return r, nil
}

func getSocketPath(socketName string, socketDir string) string {
	if socketName == "" {
		socketName = "kairo.sock"
	}
	if socketDir == "" {
		socketDir = filepath.Join(env.KairoDir, "run")
	}
	return filepath.Join(socketDir, socketName)
}

// unixSocketSupported checks AF_UNIX support on windows, which older builds lack.
func unixSocketSupported() bool {
	if runtime.GOOS != "windows" {
		return true
	}
	dir, err := os.MkdirTemp("", "kairo-sock")
	if err != nil {
		return false
	}
	defer os.RemoveAll(dir)
	ln, err := net.Listen("unix", filepath.Join(dir, "check.sock"))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
