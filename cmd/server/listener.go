package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"kairo-keeper/internal/logger"
	"kairo-keeper/internal/rpc"
	"kairo-keeper/internal/utils"
)

// ErrAlreadyServing means another kairo server answers on one of the endpoints.
var ErrAlreadyServing = errors.New("kairo server is already running")

/**
 * Open one listener per control endpoint
 * @param {[]rpc.Endpoint} endpoints - Unix socket and/or TCP endpoints
 * @returns {[]net.Listener} Listeners that could be opened
 * @returns {error} ErrAlreadyServing if a live server holds an endpoint, otherwise the joined listen errors
 * @description
 * - A socket file nobody answers on is left over from a crashed server and is removed
 * - The socket file is restricted to the current user, it grants tunnel control
 * - Failing endpoints are skipped so the server still comes up on the others
 */
func CreateListeners(endpoints []rpc.Endpoint) ([]net.Listener, error) {
	for _, ep := range endpoints {
		if utils.AddressInUse(ep.Network, ep.Address) {
			return nil, fmt.Errorf("%w on %s", ErrAlreadyServing, ep)
		}
	}

	var listeners []net.Listener
	var errs []error
	for _, ep := range endpoints {
		ln, err := listen(ep)
		if err != nil {
			logger.Errorf("Failed to create listener on %s: %v", ep, err)
			errs = append(errs, err)
			continue
		}
		listeners = append(listeners, ln)
	}
	return listeners, errors.Join(errs...)
}

func listen(ep rpc.Endpoint) (net.Listener, error) {
	if ep.Network != "unix" {
		return net.Listen(ep.Network, ep.Address)
	}

	if err := os.MkdirAll(filepath.Dir(ep.Address), 0700); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}
	if err := os.Remove(ep.Address); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket: %w", err)
	}
	ln, err := net.Listen("unix", ep.Address)
	if err != nil {
		return nil, err
	}
	// 仅允许当前用户访问
	if err := os.Chmod(ep.Address, 0600); err != nil {
		logger.Warnf("Failed to chmod socket %s: %v", ep.Address, err)
	}
	return ln, nil
}

func removeSocket(listeners []net.Listener) {
	for _, ln := range listeners {
		if ln.Addr().Network() == "unix" {
			if err := os.Remove(ln.Addr().String()); err != nil && !os.IsNotExist(err) {
				logger.Warnf("Failed to remove socket %s: %v", ln.Addr(), err)
			}
		}
	}
}
