package rpc

import (
	"fmt"
	"net/url"
	"strconv"

	"kairo-keeper/internal/models"
)

const TunnelsPath = APIPrefix + "/tunnels"

func TunnelPath(id int) string {
	return fmt.Sprintf("%s/%d", TunnelsPath, id)
}

/**
 * TunnelClient calls the tunnel routes of a running kairo server
 * @description
 * - Transport failures wrap ErrServerUnavailable, server-side errors carry
 *   the API error code
 * @example
 * tc := rpc.NewTunnelClient(nil)
 * defer tc.Close()
 * resp, err := tc.Start(42, token)
 */
type TunnelClient struct {
	client HTTPClient
}

// NewTunnelClient wraps client, or a default client when nil.
func NewTunnelClient(client HTTPClient) *TunnelClient {
	if client == nil {
		client = NewHTTPClient(nil)
	}
	return &TunnelClient{client: client}
}

func (tc *TunnelClient) Close() error {
	return tc.client.Close()
}

func (tc *TunnelClient) Start(id int, token string) (models.TunnelResponse, error) {
	var out models.TunnelResponse
	resp, err := tc.client.Post(TunnelsPath, models.CreateTunnelRequest{TunnelId: id, Token: token})
	if err != nil {
		return out, err
	}
	return out, resp.Decode(&out)
}

func (tc *TunnelClient) Stop(id int) (models.TunnelResponse, error) {
	var out models.TunnelResponse
	resp, err := tc.client.Delete(TunnelPath(id))
	if err != nil {
		return out, err
	}
	return out, resp.Decode(&out)
}

// StopAll returns how many tunnels the server stopped.
func (tc *TunnelClient) StopAll() (int, error) {
	var out models.StopAllResponse
	resp, err := tc.client.Delete(TunnelsPath)
	if err != nil {
		return 0, err
	}
	if err := resp.Decode(&out); err != nil {
		return 0, err
	}
	return out.Stopped, nil
}

func (tc *TunnelClient) List() ([]models.TunnelRecord, error) {
	var out []models.TunnelRecord
	resp, err := tc.client.Get(TunnelsPath, nil)
	if err != nil {
		return nil, err
	}
	return out, resp.Decode(&out)
}

// Logs returns the retained output of a tunnel, the last tail lines when tail > 0.
func (tc *TunnelClient) Logs(id, tail int) ([]models.LogLine, error) {
	var query url.Values
	if tail > 0 {
		query = url.Values{"tail": {strconv.Itoa(tail)}}
	}
	var out []models.LogLine
	resp, err := tc.client.Get(TunnelPath(id)+"/logs", query)
	if err != nil {
		return nil, err
	}
	return out, resp.Decode(&out)
}
