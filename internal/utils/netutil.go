package utils

import (
	"net"
	"time"
)

/**
 * Check whether something already accepts connections on an address
 * @param {string} network - "tcp" or "unix"
 * @param {string} address - host:port or socket path
 * @returns {bool} true when a dial succeeds
 * @description
 * - Used before starting the control server, a second server must not steal the socket
 */
func AddressInUse(network, address string) bool {
	conn, err := net.DialTimeout(network, address, time.Second)
	if err != nil {
		// 连接失败，说明地址可用
		return false
	}
	conn.Close()
	return true
}
